package scraper

import "context"

// Credentials identify the single shared poster-site account.
type Credentials struct {
	LoginURL string
	Email    string
	Password string
}

// Driver is one browser instance bound to one page. Implementations need
// not be safe for concurrent use; the Manager serialises access.
type Driver interface {
	// Login submits the login form and returns once the site shows an
	// authenticated state. Failures are AUTH_FAILED PipelineErrors.
	Login(ctx context.Context, creds Credentials) error

	// Load navigates to url and returns the rendered HTML.
	Load(ctx context.Context, url string) (string, error)

	// Cookies returns the browser's cookie set as name -> value.
	Cookies(ctx context.Context) (map[string]string, error)

	// Close kills the browser. It is called at most once.
	Close() error
}

// DriverFactory launches a new Driver.
type DriverFactory func(ctx context.Context) (Driver, error)
