package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/use-agent/posterbridge/models"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    models.MediaKind
		wantErr bool
	}{
		{"", "", false},
		{"movie", models.KindMovie, false},
		{"Series", models.KindSeries, false},
		{" tv ", models.KindSeries, false},
		{"episode", "", true},
	}
	for _, tt := range tests {
		got, err := parseKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseKind(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNewLogHandlerFormat(t *testing.T) {
	tests := []struct {
		format string
		prefix string
	}{
		{"", "{"}, // a buffer is not a terminal
		{"json", "{"},
		{"text", "time="},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		slog.New(newLogHandler(tt.format, &buf, slog.LevelInfo)).Info("hello")
		if !strings.HasPrefix(buf.String(), tt.prefix) {
			t.Errorf("format %q wrote %q", tt.format, buf.String())
		}
	}
}

func TestRenderPosters(t *testing.T) {
	out := renderPosters([]models.PosterCandidate{
		{ID: 1, URL: "https://site/a.jpg"},
		{ID: 2, URL: "https://site/b.jpg"},
	})
	for _, want := range []string{"URL", "https://site/a.jpg", "https://site/b.jpg"} {
		if !strings.Contains(out, want) {
			t.Errorf("table lacks %q:\n%s", want, out)
		}
	}
}

func TestRootCommandRejectsMissingConfigFile(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", "/nonexistent/posterbridge.toml", "search", "Dune"})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
