package tpdb

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/posterbridge/models"
)

// Selectors for the poster site's current markup. Everything that depends
// on the site's HTML structure lives in this file.
var (
	resultLinkSel = cascadia.MustCompile(
		"a.btn.btn-dark-lighter.flex-grow-1.text-truncate.py-2.text-left.position-relative")
	resultTitleSel = cascadia.MustCompile(".text-truncate")
	resultSpanSel  = cascadia.MustCompile("span")
	posterLinkSel  = cascadia.MustCompile("a.bg-transparent.border-0.text-white[href]")
)

// FindResultLinks returns the search results on a results page in page
// order. Malformed or unrecognised markup yields no results.
func FindResultLinks(rawHTML string) []models.SearchResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var results []models.SearchResult
	doc.FindMatcher(resultLinkSel).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		results = append(results, models.SearchResult{
			Title: resultTitle(a),
			Href:  strings.TrimSpace(href),
		})
	})
	return results
}

// resultTitle prefers the truncated title label, then the first span,
// then the anchor's own text.
func resultTitle(a *goquery.Selection) string {
	if t := a.FindMatcher(resultTitleSel).First(); t.Length() > 0 {
		return strings.TrimSpace(t.Text())
	}
	if s := a.FindMatcher(resultSpanSel).First(); s.Length() > 0 {
		return strings.TrimSpace(s.Text())
	}
	return strings.TrimSpace(a.Text())
}

// FindPosterLinks returns the hrefs of the poster links on a detail page
// in document order.
func FindPosterLinks(rawHTML string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var hrefs []string
	doc.FindMatcher(posterLinkSel).Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			hrefs = append(hrefs, strings.TrimSpace(href))
		}
	})
	return hrefs
}
