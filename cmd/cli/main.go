package main

import (
	"context"

	"covid19-tracker/cmd/cli/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
