package transfer

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/posterbridge/models"
	"golang.org/x/net/publicsuffix"
)

const (
	chromeUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	imageAccept = "image/webp,image/apng,image/*,*/*;q=0.8"

	defaultDownloadTimeout = 30 * time.Second
	defaultPreviewTimeout  = 15 * time.Second
	defaultMaxBytes        = 25 << 20
)

// CookieSource supplies the browser session's cookies. *scraper.Manager
// satisfies it.
type CookieSource interface {
	Cookies() map[string]string
}

// Image is a downloaded image.
type Image struct {
	Data        []byte
	ContentType string
}

// DataURL encodes the image as an inline data: URL.
func (img *Image) DataURL() string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Fetcher downloads images from the poster site with the session's
// cookies and browser-like headers.
type Fetcher struct {
	client          *http.Client
	jar             http.CookieJar
	cookies         CookieSource
	site            *url.URL
	cookieHosts     []string
	referer         string
	downloadTimeout time.Duration
	previewTimeout  time.Duration
	maxBytes        int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTransport replaces the Chrome-fingerprint transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		if rt != nil {
			f.client.Transport = rt
		}
	}
}

// WithTimeouts overrides the download and preview timeouts.
func WithTimeouts(download, preview time.Duration) Option {
	return func(f *Fetcher) {
		if download > 0 {
			f.downloadTimeout = download
		}
		if preview > 0 {
			f.previewTimeout = preview
		}
	}
}

// WithCookieHosts adds image hosts that receive the session cookies. The
// poster site's own host and its subdomains always do; a host also
// covers its subdomains.
func WithCookieHosts(hosts ...string) Option {
	return func(f *Fetcher) {
		for _, h := range hosts {
			h = strings.ToLower(strings.Trim(strings.TrimSpace(h), "."))
			if h != "" {
				f.cookieHosts = append(f.cookieHosts, h)
			}
		}
	}
}

// WithMaxBytes caps the size of a downloaded image.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewFetcher creates a Fetcher for images referenced by siteURL, the poster
// site's base URL. cookies may be nil.
func NewFetcher(siteURL string, cookies CookieSource, opts ...Option) (*Fetcher, error) {
	site, err := url.Parse(strings.TrimRight(siteURL, "/"))
	if err != nil || site.Host == "" {
		return nil, fmt.Errorf("transfer: invalid site url %q", siteURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("transfer: cookie jar: %w", err)
	}

	f := &Fetcher{
		client: &http.Client{
			Transport: newChromeTransport(),
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		jar:             jar,
		cookies:         cookies,
		site:            site,
		cookieHosts:     []string{strings.ToLower(site.Hostname())},
		referer:         site.String() + "/",
		downloadTimeout: defaultDownloadTimeout,
		previewTimeout:  defaultPreviewTimeout,
		maxBytes:        defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// syncCookies copies the session cookies into the jar for the site domain
// and returns them.
func (f *Fetcher) syncCookies() map[string]string {
	if f.cookies == nil {
		return nil
	}
	session := f.cookies.Cookies()
	if len(session) == 0 {
		return nil
	}
	list := make([]*http.Cookie, 0, len(session))
	for name, value := range session {
		list = append(list, &http.Cookie{
			Name:   name,
			Value:  value,
			Path:   "/",
			Domain: f.site.Hostname(),
		})
	}
	f.jar.SetCookies(f.site, list)
	return session
}

// Fetch downloads url. Non-200 responses and bodies over the size cap are
// errors with code DOWNLOAD_FAILED.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	ctx, cancel := context.WithTimeout(ctx, f.downloadTimeout)
	defer cancel()
	return f.fetch(ctx, rawURL)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*Image, error) {
	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, downloadError(fmt.Sprintf("invalid image url %q", rawURL), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, downloadError("build request", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Referer", f.referer)
	req.Header.Set("Accept", imageAccept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	// The jar only covers the site's own domain. Other allowed image
	// hosts get the session cookies directly; unknown hosts get none.
	session := f.syncCookies()
	if len(f.jar.Cookies(target)) == 0 && f.sendsCookiesTo(target.Hostname()) {
		for name, value := range session {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, downloadError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, downloadError(fmt.Sprintf("HTTP %d for %s", resp.StatusCode, rawURL), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, downloadError("read body", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, downloadError(fmt.Sprintf("image larger than %d bytes", f.maxBytes), nil)
	}
	if len(body) == 0 {
		return nil, downloadError("empty image body", nil)
	}

	return &Image{Data: body, ContentType: imageContentType(resp.Header.Get("Content-Type"), body)}, nil
}

// sendsCookiesTo reports whether host may receive the session cookies.
func (f *Fetcher) sendsCookiesTo(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range f.cookieHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// Preview returns url as an inline data URL, or "" if it cannot be fetched.
func (f *Fetcher) Preview(ctx context.Context, rawURL string) string {
	ctx, cancel := context.WithTimeout(ctx, f.previewTimeout)
	defer cancel()

	img, err := f.fetch(ctx, rawURL)
	if err != nil {
		slog.Debug("preview fetch failed", "url", rawURL, "error", err)
		return ""
	}
	return img.DataURL()
}

// imageContentType trusts an image/* header, then sniffs, then assumes JPEG.
func imageContentType(header string, body []byte) string {
	ct := strings.TrimSpace(strings.SplitN(header, ";", 2)[0])
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	if sniffed := http.DetectContentType(body); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return "image/jpeg"
}

func downloadError(msg string, err error) *models.PipelineError {
	return models.NewPipelineError(models.ErrCodeDownloadFailed, msg, err)
}
