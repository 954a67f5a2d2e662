
package parser

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Cell is the view of a table cell that the decoders work against.
type Cell interface {
	// TextAt follows first children depth+1 levels down and returns that
	// node's text, or "" if it is missing or not a text node.
	TextAt(depth int) string
	// LinkText returns the text of the first child of the sibling that
	// follows the cell's first child, the shape of a linked name.
	LinkText() string
	Empty() bool
	Text() string
}

type NodeCell struct {
	n *html.Node
}

func NewCell(n *html.Node) NodeCell { return NodeCell{n: n} }

func (c NodeCell) TextAt(depth int) string {
	if c.n == nil {
		return ""
	}
	n := c.n.FirstChild
	for i := 0; i < depth && n != nil; i++ {
		n = n.FirstChild
	}
	if n == nil || n.Type != html.TextNode {
		return ""
	}
	return n.Data
}

func (c NodeCell) LinkText() string {
	if c.n == nil || c.n.FirstChild == nil {
		return ""
	}
	sib := c.n.FirstChild.NextSibling
	if sib == nil || sib.FirstChild == nil || sib.FirstChild.Type != html.TextNode {
		return ""
	}
	return sib.FirstChild.Data
}

func (c NodeCell) Empty() bool {
	return c.n == nil || c.n.FirstChild == nil
}

func (c NodeCell) Text() string {
	var buffer bytes.Buffer
	getTextRecursive(c.n, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

type nameStrategy func(Cell) string

func textAtDepth(depth int) nameStrategy {
	return func(c Cell) string { return c.TextAt(depth) }
}

// tried in order; the first non-empty text wins
var nameStrategies = []nameStrategy{
	textAtDepth(0), // Name
	textAtDepth(1), // <span>Name</span>
	textAtDepth(2), // <a><span>Name</span></a>
	textAtDepth(3), // <span><a><span>Name</span></a></span>
}

// CountryName decodes the country column. If the text found by the nested
// shapes trims to nothing, the name is taken from a link next to it.
func CountryName(c Cell) string {
	name := ""
	for _, strategy := range nameStrategies {
		if raw := strategy(c); raw != "" {
			name = strings.TrimSpace(raw)
			break
		}
	}
	if name == "" {
		name = strings.TrimSpace(c.LinkText())
	}
	return name
}

func parseInt(text string) (int64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	return strconv.ParseInt(s, 10, 64)
}

// CellCount decodes a numeric table cell. A cell without children, or
// whose text is not an integer, is nil.
func CellCount(c Cell) *int64 {
	if c.Empty() {
		return nil
	}
	v, err := parseInt(c.Text())
	if err != nil {
		return nil
	}
	return &v
}

// Counter decodes a headline counter such as "1,234,567". Anything that is
// not an integer is 0.
func Counter(text string) int64 {
	v, err := parseInt(text)
	if err != nil {
		return 0
	}
	return v
}

var headerNoise = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHeader lowercases s and drops everything but letters and digits,
// so "Total\nCases" and "TotalCases" compare equal.
func NormalizeHeader(s string) string {
	return headerNoise.ReplaceAllString(strings.ToLower(s), "")
}
