package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/posterbridge/metrics"
	"github.com/use-agent/posterbridge/models"
)

// State is the lifecycle state of the shared browser session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Manager owns the single authenticated browser session of the process.
//
// The session moves Uninitialized -> Initializing -> Ready | Failed. A
// Failed session is retried by the next Ensure. Exactly one Lease can be
// held at a time, so only one navigation sequence runs at once.
type Manager struct {
	newDriver    DriverFactory
	creds        Credentials
	readyTimeout time.Duration

	// slot has capacity 1; holding its token is holding the lease.
	slot chan struct{}

	mu      sync.Mutex
	state   State
	driver  Driver
	cookies map[string]string
	lastErr error
	changed chan struct{} // closed and replaced on every transition
	gen     uint64        // bumped by Teardown
}

// NewManager creates a Manager. Nothing is launched until Ensure or Start.
func NewManager(newDriver DriverFactory, creds Credentials, readyTimeout time.Duration) *Manager {
	return &Manager{
		newDriver:    newDriver,
		creds:        creds,
		readyTimeout: readyTimeout,
		slot:         make(chan struct{}, 1),
		changed:      make(chan struct{}),
	}
}

// setStateLocked must be called with mu held.
func (m *Manager) setStateLocked(s State) {
	m.state = s
	close(m.changed)
	m.changed = make(chan struct{})
	metrics.SessionState.Set(float64(s))
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// BrowserActive reports whether a live browser is attached.
func (m *Manager) BrowserActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driver != nil
}

// Err returns the error of the last failed initialisation, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Start runs Ensure in the background. Failures are logged and leave the
// session Failed; WaitReady reports them to dependent callers.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		if err := m.Ensure(ctx); err != nil {
			slog.Error("browser session initialisation failed", "error", err)
		}
	}()
}

// Ensure makes sure a logged-in session exists. It is idempotent: a Ready
// session returns immediately and a concurrent caller waits for the
// in-flight initialisation instead of starting a second one.
func (m *Manager) Ensure(ctx context.Context) error {
	m.mu.Lock()
	for {
		switch m.state {
		case StateReady:
			m.mu.Unlock()
			return nil

		case StateInitializing:
			ch := m.changed
			m.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return models.NewPipelineError(models.ErrCodeNotReady,
					"gave up waiting for browser session", ctx.Err())
			}
			m.mu.Lock()

		default:
			m.setStateLocked(StateInitializing)
			gen := m.gen
			m.mu.Unlock()

			start := time.Now()
			driver, cookies, err := m.initialize(ctx)

			m.mu.Lock()
			if gen != m.gen {
				// Torn down while we were logging in.
				m.mu.Unlock()
				if driver != nil {
					closeDriver(driver)
				}
				return models.NewPipelineError(models.ErrCodeNotReady,
					"browser session was torn down during initialisation", nil)
			}
			if err != nil {
				m.lastErr = err
				m.setStateLocked(StateFailed)
				m.mu.Unlock()
				metrics.SessionInitsTotal.WithLabelValues("failed").Inc()
				return err
			}
			m.driver = driver
			m.cookies = cookies
			m.lastErr = nil
			m.setStateLocked(StateReady)
			m.mu.Unlock()

			metrics.SessionInitsTotal.WithLabelValues("ready").Inc()
			slog.Info("browser session ready",
				"cookies", len(cookies),
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
			return nil
		}
	}
}

// initialize launches a driver and logs in. A driver that fails to log in
// is closed before returning.
func (m *Manager) initialize(ctx context.Context) (Driver, map[string]string, error) {
	driver, err := m.newDriver(ctx)
	if err != nil {
		var pe *models.PipelineError
		if !errors.As(err, &pe) {
			err = models.NewPipelineError(models.ErrCodeBrowserCrash, "failed to start browser", err)
		}
		return nil, nil, err
	}

	if err := driver.Login(ctx, m.creds); err != nil {
		closeDriver(driver)
		var pe *models.PipelineError
		if !errors.As(err, &pe) {
			err = models.NewPipelineError(models.ErrCodeAuthFailed, "login failed", err)
		}
		return nil, nil, err
	}

	cookies, err := driver.Cookies(ctx)
	if err != nil {
		slog.Warn("failed to read session cookies after login", "error", err)
		cookies = map[string]string{}
	}
	return driver, cookies, nil
}

// WaitReady blocks until the session is Ready, it fails, timeout elapses
// or ctx ends. Anything but Ready yields a NOT_READY PipelineError. A
// non-positive timeout uses the Manager's configured readiness timeout.
func (m *Manager) WaitReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = m.readyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		state, ch, lastErr := m.state, m.changed, m.lastErr
		m.mu.Unlock()

		switch state {
		case StateReady:
			return nil
		case StateFailed:
			return models.NewPipelineError(models.ErrCodeNotReady,
				"browser session failed to initialise", lastErr)
		}

		select {
		case <-ch:
		case <-timer.C:
			return models.NewPipelineError(models.ErrCodeNotReady,
				fmt.Sprintf("browser session not ready after %s", timeout), nil)
		case <-ctx.Done():
			return models.NewPipelineError(models.ErrCodeNotReady,
				"gave up waiting for browser session", ctx.Err())
		}
	}
}

// Cookies returns a copy of the session's cookie set. It is empty when no
// session exists, which callers treat as unauthenticated.
func (m *Manager) Cookies() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.cookies))
	for k, v := range m.cookies {
		out[k] = v
	}
	return out
}

// Acquire takes exclusive use of the session page. The caller must
// Release the lease. It fails with NOT_READY when the session is not Ready
// or ctx ends while another lease is held.
func (m *Manager) Acquire(ctx context.Context) (*Lease, error) {
	select {
	case m.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, models.NewPipelineError(models.ErrCodeNotReady,
			"browser session busy", ctx.Err())
	}

	m.mu.Lock()
	state, driver, gen := m.state, m.driver, m.gen
	m.mu.Unlock()

	if state != StateReady || driver == nil {
		<-m.slot
		return nil, models.NewPipelineError(models.ErrCodeNotReady,
			"browser session is "+state.String(), nil)
	}
	return &Lease{m: m, driver: driver, gen: gen}, nil
}

// Teardown closes the browser and clears the session. It is safe to call
// any number of times, with or without a session, and never panics.
func (m *Manager) Teardown() {
	m.mu.Lock()
	driver := m.driver
	m.driver = nil
	m.cookies = nil
	m.lastErr = nil
	m.gen++
	if m.state != StateUninitialized {
		m.setStateLocked(StateUninitialized)
	}
	m.mu.Unlock()

	if driver != nil {
		closeDriver(driver)
		slog.Info("browser session torn down")
	}
}

func closeDriver(d Driver) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while closing browser", "panic", r)
		}
	}()
	if err := d.Close(); err != nil {
		slog.Warn("error while closing browser", "error", err)
	}
}

// Lease is exclusive use of the session page, obtained from Acquire.
type Lease struct {
	m       *Manager
	driver  Driver
	gen     uint64
	release sync.Once
}

// Load navigates to url and returns the rendered HTML. The session's
// cookie set is refreshed after every successful load.
func (l *Lease) Load(ctx context.Context, url string) (string, error) {
	html, err := l.driver.Load(ctx, url)
	if err != nil {
		return "", err
	}
	if cookies, cerr := l.driver.Cookies(ctx); cerr == nil {
		l.m.mu.Lock()
		if l.m.gen == l.gen {
			l.m.cookies = cookies
		}
		l.m.mu.Unlock()
	} else {
		slog.Debug("failed to refresh session cookies", "error", cerr)
	}
	return html, nil
}

// Release returns the lease. Extra calls are no-ops.
func (l *Lease) Release() {
	l.release.Do(func() { <-l.m.slot })
}
