package tmdb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/use-agent/posterbridge/tmdb"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := tmdb.New("", "https://example.com", "en-US"); err == nil {
		t.Fatal("expected error when api key missing")
	}
	if _, err := tmdb.New("key", " ", "en-US"); err == nil {
		t.Fatal("expected error when base url missing")
	}
}

func TestDetailsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/1399" {
			t.Errorf("path = %q, want /tv/1399", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "key" || r.URL.Query().Get("language") != "en-US" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1399,"name":"Game of Thrones","first_air_date":"2011-04-17"}`))
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL+"/", "en-US")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	d, err := client.Details(context.Background(), "tv", "1399")
	if err != nil {
		t.Fatalf("Details returned error: %v", err)
	}
	if d.OfficialTitle("tv") != "Game of Thrones" {
		t.Errorf("title = %q", d.OfficialTitle("tv"))
	}
	if y, err := d.Year("tv"); err != nil || y != "2011" {
		t.Errorf("year = %q, %v", y, err)
	}
}

func TestDetailsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/movie/slow" {
			time.Sleep(200 * time.Millisecond)
		}
		if r.URL.Path == "/movie/garbage" {
			_, _ = w.Write([]byte(`{not json`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client, err := tmdb.New("key", server.URL, "", tmdb.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	for _, tc := range []struct{ mediaType, id string }{
		{"movie", "404"},
		{"movie", "garbage"},
		{"movie", "slow"},
		{"person", "1"},
		{"movie", ""},
	} {
		if _, err := client.Details(context.Background(), tc.mediaType, tc.id); err == nil {
			t.Errorf("Details(%q, %q) expected error", tc.mediaType, tc.id)
		}
	}
}

func TestYear(t *testing.T) {
	tests := []struct {
		date    string
		want    string
		wantErr bool
	}{
		{"2021-10-22", "2021", false},
		{"2021", "2021", false},
		{"", "", false},
		{"21", "", true},
		{"TBA-2020", "", true},
	}
	for _, tt := range tests {
		d := tmdb.Details{ReleaseDate: tt.date}
		got, err := d.Year("movie")
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("Year(%q) = %q, %v; want %q, err=%v", tt.date, got, err, tt.want, tt.wantErr)
		}
	}
}
