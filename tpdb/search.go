package tpdb

import (
	"net/url"
	"strings"

	"github.com/use-agent/posterbridge/models"
)

// BuildSearchURL fills the {query} placeholder of template with the escaped
// query and adds a section filter for movies and series.
func BuildSearchURL(template, query string, kind models.MediaKind) string {
	u := strings.ReplaceAll(template, "{query}", url.QueryEscape(query))
	if section := kind.Section(); section != "" {
		u += "&section=" + section
	}
	return u
}
