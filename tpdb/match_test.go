package tpdb

import (
	"math"
	"strings"
	"testing"

	"github.com/use-agent/posterbridge/models"
)

var titleSamples = []string{
	"",
	"Dune",
	"Dune (2021)",
	"  The   Lord of the Rings: The Fellowship of the Ring  ",
	"Fast & Furious",
	"Love + Hate",
	"#Alive",
	"100% Wolf",
	"Mr. Robot",
	"Amélie",
	"WALL·E",
	"Spider-Man: Into the Spider-Verse",
	"!!!",
	"Ça & Là",
	"snake_case_title",
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Dune (2021)", "dune 2021"},
		{"  Fast & Furious  ", "fast and furious"},
		{"Love + Hate", "love plus hate"},
		{"#Alive", "number alive"},
		{"100% Wolf", "100 percent wolf"},
		{"Me @ Home", "me at home"},
		{"Spider-Man: Into the Spider-Verse", "spider man into the spider verse"},
		{"Amélie", "amélie"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range titleSamples {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name             string
		expected, result string
		want             float64
	}{
		{"exact after normalisation", "Dune (2021)", "dune 2021", 1.0},
		{"symbols spelled out", "Fast and Furious", "Fast & Furious", 1.0},
		{"containment", "Dune", "Dune (2021)", 0.9},
		{"containment reversed", "Dune (2021)", "Dune", 0.9},
		{"jaccard", "Dune (2021)", "Dune (1984)", 0.5},
		{"no overlap", "Dune (2021)", "Dunkirk", 0},
		{"empty expected", "", "Dune", 0},
		{"empty result", "Dune", "", 0},
		{"punctuation only", "Dune", "!!!", 0.9},
		{"both punctuation only", "???", "!!!", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.expected, tt.result)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score(%q, %q) = %v, want %v", tt.expected, tt.result, got, tt.want)
			}
		})
	}
}

func TestScoreRangeAndSymmetry(t *testing.T) {
	for _, a := range titleSamples {
		for _, b := range titleSamples {
			s := Score(a, b)
			if s < 0 || s > 1 {
				t.Errorf("Score(%q, %q) = %v out of range", a, b, s)
			}
			na, nb := Normalize(a), Normalize(b)
			if na == "" || nb == "" {
				continue
			}
			contained := na != nb && (strings.Contains(na, nb) || strings.Contains(nb, na))
			if !contained && s != Score(b, a) {
				t.Errorf("Score not symmetric for %q, %q: %v vs %v", a, b, s, Score(b, a))
			}
		}
	}
}

func results(titles ...string) []models.SearchResult {
	out := make([]models.SearchResult, len(titles))
	for i, t := range titles {
		out[i] = models.SearchResult{Title: t, Href: "/poster/" + t}
	}
	return out
}

func TestSelectResult(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		results     []models.SearchResult
		wantTitle   string
		wantMatched bool
	}{
		{
			name:        "best match above threshold wins over page order",
			query:       "The Target Movie (2020)",
			results:     results("Totally Unrelated Name", "The Target Movie (2020)"),
			wantTitle:   "The Target Movie (2020)",
			wantMatched: true,
		},
		{
			name:        "falls back to first result below threshold",
			query:       "The Target Movie (2020)",
			results:     results("Totally Unrelated Name", "Target Practice"),
			wantTitle:   "Totally Unrelated Name",
			wantMatched: false,
		},
		{
			name:        "ties keep the earlier result",
			query:       "Dune",
			results:     results("Dune Part One", "Dune Part Two"),
			wantTitle:   "Dune Part One",
			wantMatched: true,
		},
		{
			name:        "dune scenario",
			query:       "Dune (2021)",
			results:     results("Dune (1984)", "Dune (2021)", "Dunkirk"),
			wantTitle:   "Dune (2021)",
			wantMatched: true,
		},
		{
			name:        "punctuation-only title is contained in the query",
			query:       "Dune (2021)",
			results:     results("Dunkirk", "???"),
			wantTitle:   "???",
			wantMatched: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, ok := SelectResult(tt.query, tt.results)
			if !ok {
				t.Fatal("SelectResult returned no selection")
			}
			if sel.Result.Title != tt.wantTitle || sel.Matched != tt.wantMatched {
				t.Errorf("selected %q (matched=%v), want %q (matched=%v)",
					sel.Result.Title, sel.Matched, tt.wantTitle, tt.wantMatched)
			}
		})
	}

	if _, ok := SelectResult("Dune", nil); ok {
		t.Error("SelectResult on no results should report ok=false")
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, href string
		want       string
		wantOK     bool
	}{
		{"https://site", "https://x/y", "https://x/y", true},
		{"https://site", "/y", "https://site/y", true},
		{"https://site/", "/y", "https://site/y", true},
		{"https://site", "javascript:void(0)", "", false},
		{"https://site", "poster/1", "", false},
		{"https://site", "", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveURL(tt.base, tt.href)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ResolveURL(%q, %q) = %q, %v; want %q, %v", tt.base, tt.href, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestBuildSearchURL(t *testing.T) {
	const tmpl = "https://site/search?term={query}"
	tests := []struct {
		query string
		kind  models.MediaKind
		want  string
	}{
		{"Dune (2021)", models.KindMovie, "https://site/search?term=Dune+%282021%29&section=movies"},
		{"Fast & Furious", models.KindSeries, "https://site/search?term=Fast+%26+Furious&section=shows"},
		{"Dune", "", "https://site/search?term=Dune"},
		{"Dune", "MusicAlbum", "https://site/search?term=Dune"},
	}
	for _, tt := range tests {
		if got := BuildSearchURL(tmpl, tt.query, tt.kind); got != tt.want {
			t.Errorf("BuildSearchURL(%q, %q) = %q, want %q", tt.query, tt.kind, got, tt.want)
		}
	}
}
