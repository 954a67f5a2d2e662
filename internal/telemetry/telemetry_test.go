package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPIPrefixesIDs(t *testing.T) {
	rec := &Recorder{}
	tel := NewScopedAPI("countries", rec)

	tel.ReportBroken("merge", errors.New("boom"))
	tel.ReportWarning("header", "col", 2)
	tel.ReportCount("rows", 3)

	broken := rec.Reports(LevelBroken)
	require.Len(t, broken, 1)
	require.Equal(t, "countries: merge", broken[0].ID)
	require.Equal(t, "countries: merge boom", broken[0].String())

	warnings := rec.Reports(LevelWarning)
	require.Len(t, warnings, 1)
	require.Equal(t, []any{"col", 2}, warnings[0].Params)

	counts := rec.Reports(LevelCount)
	require.Len(t, counts, 1)
	require.Equal(t, int64(3), counts[0].Params[0])
}
