// Package tmdb looks up canonical titles on The Movie Database.
//
// The poster site indexes titles by their official release name, which
// often differs from the media server's filename-derived title. The
// Resolver upgrades a local title to "{official title} ({year})" when the
// item carries a TMDB id, and falls back to the local title on any failure.
package tmdb
