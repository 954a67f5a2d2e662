
package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `<!doctype html><html lang="en"><head>
<meta charset="iso-8859-1">
<title>Test Page</title>
<script>var x = "<td>noise</td>";</script>
</head><body>
<div class="maincounter-number"><span>1,234</span></div>
</body></html>`

func TestDocument(t *testing.T) {
	p := New()
	doc, err := p.Document(strings.NewReader(sampleHTML), "text/html")
	if err != nil {
		t.Fatalf("document error: %v", err)
	}
	if got := strings.TrimSpace(doc.Find("title").Text()); got != "Test Page" {
		t.Fatalf("want title Test Page, got %q", got)
	}
	if doc.Find("script").Length() != 0 {
		t.Fatal("scripts should be removed")
	}
	if got := strings.TrimSpace(doc.Find(".maincounter-number").Text()); got != "1,234" {
		t.Fatalf("want counter text, got %q", got)
	}
}

func TestDocumentDecodesLatin1(t *testing.T) {
	// "Curaçao" in ISO-8859-1
	body := []byte("<html><body><p>Cura\xe7ao</p></body></html>")
	doc, err := New().Document(strings.NewReader(string(body)), "text/html; charset=iso-8859-1")
	require.NoError(t, err)
	require.Equal(t, "Curaçao", doc.Find("p").Text())
}

// cell parses a single <td> fragment.
func cell(t *testing.T, td string) NodeCell {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table><tr>" + td + "</tr></table>"))
	require.NoError(t, err)
	sel := doc.Find("td")
	require.Equal(t, 1, sel.Length())
	return NewCell(sel.Nodes[0])
}

func TestCountryNameShapes(t *testing.T) {
	testCases := []struct {
		name string
		td   string
		want string
	}{
		{"plain text", `<td> China </td>`, "China"},
		{"one level", `<td><span style="color:#00B5F0">Italy</span></td>`, "Italy"},
		{"two levels", `<td><a href="country/spain/"><span>Spain</span></a></td>`, "Spain"},
		{"two levels wrapped", `<td><span><a href="country/iran/"><b>Iran</b></a></span></td>`, "Iran"},
		{"hyperlink sibling", `<td> <a class="mt_a" href="country/us/">USA</a></td>`, "USA"},
		{"empty", `<td></td>`, ""},
		{"whitespace only", `<td>   </td>`, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CountryName(cell(t, tc.td)))
		})
	}
}

func TestCellCount(t *testing.T) {
	require.Nil(t, CellCount(cell(t, `<td></td>`)))
	require.Nil(t, CellCount(cell(t, `<td>N/A</td>`)))
	require.Nil(t, CellCount(cell(t, `<td> </td>`)))

	v := CellCount(cell(t, `<td>80,894 </td>`))
	require.NotNil(t, v)
	require.Equal(t, int64(80894), *v)

	v = CellCount(cell(t, `<td style="background:#FFEEAA">+1,159</td>`))
	require.NotNil(t, v)
	require.Equal(t, int64(1159), *v)
}

func TestCounter(t *testing.T) {
	require.Equal(t, int64(1234567), Counter("1,234,567"))
	require.Equal(t, int64(1234567), Counter(" 1,234,567 "))
	require.Equal(t, int64(0), Counter(""))
	require.Equal(t, int64(0), Counter("N/A"))
}

func TestNormalizeHeader(t *testing.T) {
	require.Equal(t, "totalcases", NormalizeHeader("Total\nCases"))
	require.Equal(t, "countryother", NormalizeHeader("Country,Other"))
}
