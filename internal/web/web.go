// Package web holds the gate's HTML templates and the dashboard assets,
// compiled into the binary.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Pair is one demo market shown on the dashboard. Prices are static seeds;
// the page script jitters them client side.
type Pair struct {
	Symbol  string
	Spot    string
	Futures string
}

var pairs = []Pair{
	{Symbol: "BTCUSDT", Spot: "43250.50", Futures: "43318.20"},
	{Symbol: "ETHUSDT", Spot: "2280.75", Futures: "2284.10"},
	{Symbol: "SOLUSDT", Spot: "98.42", Futures: "98.61"},
	{Symbol: "XRPUSDT", Spot: "0.6215", Futures: "0.6229"},
}

// Pairs returns the dashboard markets.
func Pairs() []Pair {
	out := make([]Pair, len(pairs))
	copy(out, pairs)
	return out
}

// Templates parses every page template. Pages share the "header" and
// "footer" blocks from layout.html.
func Templates() (*template.Template, error) {
	return template.New("").
		Funcs(template.FuncMap{"dashboardPairs": Pairs}).
		ParseFS(templateFS, "templates/*.html")
}

// MustTemplates is Templates for program startup.
func MustTemplates() *template.Template {
	return template.Must(Templates())
}

// Static returns the asset tree rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
