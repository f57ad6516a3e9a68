package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/posterbridge/cache"
	"github.com/use-agent/posterbridge/jellyfin"
	"github.com/use-agent/posterbridge/models"
	"github.com/use-agent/posterbridge/scraper"
	"github.com/use-agent/posterbridge/tmdb"
	"github.com/use-agent/posterbridge/tpdb"
	"github.com/use-agent/posterbridge/transfer"
)

const siteBase = "https://site"

// pageDriver serves canned HTML for URLs.
type pageDriver struct {
	mu    sync.Mutex
	pages map[string]string
	loads []string
}

func (d *pageDriver) Login(ctx context.Context, creds scraper.Credentials) error { return nil }

func (d *pageDriver) Load(ctx context.Context, url string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loads = append(d.loads, url)
	if html, ok := d.pages[url]; ok {
		return html, nil
	}
	return "", errors.New("navigation failed")
}

func (d *pageDriver) Cookies(ctx context.Context) (map[string]string, error) {
	return map[string]string{"tpdb_session": "secret"}, nil
}

func (d *pageDriver) Close() error { return nil }

func (d *pageDriver) loadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.loads)
}

type fakeMedia struct {
	mu       sync.Mutex
	items    []models.LibraryItem
	current  map[string][]byte
	uploads  map[string][]byte
	failFor  map[string]bool
	itemsErr error
}

func (m *fakeMedia) Items(ctx context.Context, filter, sort string) ([]models.LibraryItem, error) {
	return m.items, m.itemsErr
}

func (m *fakeMedia) PrimaryImage(ctx context.Context, itemID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.current[itemID]; ok {
		return b, nil
	}
	return nil, jellyfin.ErrNoImage
}

func (m *fakeMedia) UploadPrimaryImage(ctx context.Context, itemID string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[itemID] {
		return errors.New("jellyfin returned 500")
	}
	if m.uploads == nil {
		m.uploads = map[string][]byte{}
	}
	m.uploads[itemID] = data
	return nil
}

func resultLink(title, href string) string {
	return fmt.Sprintf(`<a class="btn btn-dark-lighter flex-grow-1 text-truncate py-2 text-left position-relative" href="%s"><span class="text-truncate">%s</span></a>`, href, title)
}

func posterLink(href string) string {
	return fmt.Sprintf(`<a class="bg-transparent border-0 text-white" href="%s"></a>`, href)
}

type fixture struct {
	p      *Pipeline
	driver *pageDriver
	media  *fakeMedia
	images *httptest.Server
}

// newFixture wires a pipeline whose poster site knows "Dune (2021)" and
// whose image host serves /dune-1.jpg and /dune-2.jpg.
func newFixture(t *testing.T, details tmdb.DetailsFetcher) *fixture {
	t.Helper()

	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("tpdb_session"); err != nil || c.Value != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/dune-1.jpg", "/dune-2.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("bytes" + r.URL.Path))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(images.Close)

	driver := &pageDriver{pages: map[string]string{
		siteBase + "/search?term=Dune+%282021%29&section=movies": "<html><body>" +
			resultLink("Dune (1984)", "/sets/dune-1984") +
			resultLink("Dune (2021)", "/sets/dune-2021") +
			resultLink("Dunkirk", "/sets/dunkirk") +
			"</body></html>",
		siteBase + "/sets/dune-2021": "<html><body>" +
			posterLink(images.URL+"/dune-1.jpg") +
			posterLink(images.URL+"/dune-2.jpg") +
			"</body></html>",
	}}

	session := scraper.NewManager(func(ctx context.Context) (scraper.Driver, error) {
		return driver, nil
	}, scraper.Credentials{}, time.Second)
	t.Cleanup(session.Teardown)

	imagesURL, _ := url.Parse(images.URL)
	fetcher, err := transfer.NewFetcher(siteBase, session,
		transfer.WithTransport(http.DefaultTransport),
		transfer.WithCookieHosts(imagesURL.Hostname()))
	if err != nil {
		t.Fatal(err)
	}
	postersCache := cache.New[[]models.PosterCandidate](10, time.Minute)
	t.Cleanup(postersCache.Close)

	media := &fakeMedia{}
	var resolver *tmdb.Resolver
	if details != nil {
		resolver = tmdb.NewResolver(details)
	}
	p := New(Deps{
		Session:      session,
		Resolver:     resolver,
		Posters:      tpdb.NewClient(siteBase, siteBase+"/search?term={query}", nil, 2),
		Images:       fetcher,
		Media:        media,
		Cache:        postersCache,
		ReadyTimeout: 200 * time.Millisecond,
		MaxPerItem:   18,
	})
	return &fixture{p: p, driver: driver, media: media, images: images}
}

type staticDetails struct{ d *tmdb.Details }

func (s staticDetails) Details(ctx context.Context, mediaType, id string) (*tmdb.Details, error) {
	return s.d, nil
}

func TestFindPostersNotReady(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.p.FindPosters(context.Background(), Request{Title: "Dune (2021)", Kind: models.KindMovie})
	if !models.HasCode(err, models.ErrCodeNotReady) {
		t.Fatalf("error = %v, want NOT_READY", err)
	}
}

func TestFindPostersEndToEnd(t *testing.T) {
	f := newFixture(t, staticDetails{&tmdb.Details{Title: "Dune", ReleaseDate: "2021-09-15"}})
	if err := f.p.Session.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}

	req := Request{Title: "dune.local", Year: 2021, Kind: models.KindMovie, ExternalID: "438631"}
	res, err := f.p.FindPosters(context.Background(), req)
	if err != nil {
		t.Fatalf("FindPosters: %v", err)
	}
	if res.Query != "Dune (2021)" || res.Resolution != tmdb.OutcomeResolved {
		t.Errorf("query = %q (%s)", res.Query, res.Resolution)
	}
	if len(res.Posters) != 2 || !strings.HasSuffix(res.Posters[0].URL, "/dune-1.jpg") {
		t.Fatalf("posters = %+v", res.Posters)
	}
	if res.CacheHit {
		t.Error("first lookup should miss the cache")
	}

	loads := f.driver.loadCount()
	again, err := f.p.FindPosters(context.Background(), req)
	if err != nil || !again.CacheHit || len(again.Posters) != 2 {
		t.Fatalf("second lookup = %+v, %v; want cache hit", again, err)
	}
	if f.driver.loadCount() != loads {
		t.Error("cache hit still navigated")
	}

	one, err := f.p.FindPosters(context.Background(), Request{Title: "Dune (2021)", Kind: models.KindMovie, Max: 1})
	if err != nil || len(one.Posters) != 1 {
		t.Fatalf("bounded lookup = %+v, %v", one, err)
	}
}

func TestFindPostersNothingFound(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.p.Session.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := f.p.FindPosters(context.Background(), Request{Title: "Unknown Film", Kind: models.KindMovie})
	if err != nil {
		t.Fatalf("FindPosters: %v", err)
	}
	if res.Posters == nil || len(res.Posters) != 0 {
		t.Errorf("posters = %#v, want empty slice", res.Posters)
	}
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.p.Session.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	skipped, err := f.p.Upload(ctx, "item-1", f.images.URL+"/dune-1.jpg")
	if err != nil || skipped {
		t.Fatalf("Upload = %v, %v", skipped, err)
	}
	if string(f.media.uploads["item-1"]) != "bytes/dune-1.jpg" {
		t.Errorf("uploaded %q", f.media.uploads["item-1"])
	}

	f.media.current = map[string][]byte{"item-2": []byte("bytes/dune-2.jpg")}
	skipped, err = f.p.Upload(ctx, "item-2", f.images.URL+"/dune-2.jpg")
	if err != nil || !skipped {
		t.Errorf("identical upload = %v, %v; want skipped", skipped, err)
	}
	if _, uploaded := f.media.uploads["item-2"]; uploaded {
		t.Error("identical image was uploaded")
	}

	if _, err := f.p.Upload(ctx, "item-3", f.images.URL+"/missing.jpg"); !models.HasCode(err, models.ErrCodeDownloadFailed) {
		t.Errorf("missing image error = %v, want DOWNLOAD_FAILED", err)
	}

	f.media.failFor = map[string]bool{"item-4": true}
	if _, err := f.p.Upload(ctx, "item-4", f.images.URL+"/dune-1.jpg"); !models.HasCode(err, models.ErrCodeUploadFailed) {
		t.Errorf("failed upload error = %v, want UPLOAD_FAILED", err)
	}

	if _, err := f.p.Upload(ctx, "", ""); !models.HasCode(err, models.ErrCodeInvalidInput) {
		t.Errorf("empty input error = %v, want INVALID_INPUT", err)
	}
}

func TestSelectItems(t *testing.T) {
	items := []models.LibraryItem{
		{ID: "1", Type: models.KindMovie, ThumbnailURL: "http://jf/1"},
		{ID: "2", Type: models.KindMovie},
		{ID: "3", Type: models.KindSeries},
	}
	tests := []struct {
		filter string
		want   string
	}{
		{FilterAll, "123"},
		{FilterNoPoster, "23"},
		{FilterMovies, "12"},
		{FilterSeries, "3"},
		{"bogus", ""},
	}
	for _, tt := range tests {
		var got string
		for _, it := range SelectItems(items, tt.filter) {
			got += it.ID
		}
		if got != tt.want {
			t.Errorf("SelectItems(%q) = %q, want %q", tt.filter, got, tt.want)
		}
	}
}

func TestAutoPoster(t *testing.T) {
	f := newFixture(t, nil)
	f.media.items = []models.LibraryItem{
		{ID: "dune", Title: "Dune (2021)", Type: models.KindMovie},
		{ID: "other", Title: "Unknown Film", Type: models.KindMovie},
		{ID: "has", Title: "Dune (2021)", Type: models.KindMovie, ThumbnailURL: "http://jf/has"},
	}

	report := f.p.AutoPoster(context.Background(), FilterNoPoster)
	if !report.Success || report.Error != nil {
		t.Fatalf("report = %+v", report)
	}
	if report.TotalItems != 2 || report.Processed != 2 || report.Successful != 1 || report.Failed != 1 {
		t.Errorf("counts = total %d processed %d ok %d failed %d",
			report.TotalItems, report.Processed, report.Successful, report.Failed)
	}
	if report.Results[0].ItemID != "dune" || !strings.HasSuffix(report.Results[0].PosterURL, "/dune-1.jpg") {
		t.Errorf("first result = %+v", report.Results[0])
	}
	if report.Results[1].Error != "no posters found" {
		t.Errorf("second result = %+v", report.Results[1])
	}
	if report.ID == "" {
		t.Error("report has no id")
	}
}

func TestAutoPosterLoginFailure(t *testing.T) {
	session := scraper.NewManager(func(ctx context.Context) (scraper.Driver, error) {
		return nil, errors.New("no chromium")
	}, scraper.Credentials{}, time.Second)
	p := New(Deps{Session: session, Media: &fakeMedia{}})

	report := p.AutoPoster(context.Background(), FilterAll)
	if report.Success || report.Error == nil || report.Error.Code != models.ErrCodeBrowserCrash {
		t.Errorf("report = %+v", report)
	}
}
