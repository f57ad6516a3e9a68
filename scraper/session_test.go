package scraper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/posterbridge/models"
)

type fakeDriver struct {
	loginErr  error
	loginGate chan struct{} // when set, Login waits for it

	mu      sync.Mutex
	pages   map[string]string
	cookies map[string]string
	loads   []string
	closed  int
}

func (d *fakeDriver) Login(ctx context.Context, creds Credentials) error {
	if d.loginGate != nil {
		select {
		case <-d.loginGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return d.loginErr
}

func (d *fakeDriver) Load(ctx context.Context, url string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loads = append(d.loads, url)
	html, ok := d.pages[url]
	if !ok {
		return "", errors.New("not found")
	}
	d.cookies["visited"] = url
	return html, nil
}

func (d *fakeDriver) Cookies(ctx context.Context) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.cookies))
	for k, v := range d.cookies {
		out[k] = v
	}
	return out, nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *fakeDriver) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		pages:   map[string]string{"https://site/page": "<html>ok</html>"},
		cookies: map[string]string{"session": "abc"},
	}
}

// factoryFor returns a factory that hands out d and counts launches.
func factoryFor(d *fakeDriver, launches *int32) DriverFactory {
	return func(ctx context.Context) (Driver, error) {
		atomic.AddInt32(launches, 1)
		return d, nil
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	d := newFakeDriver()
	var launches int32
	m := NewManager(factoryFor(d, &launches), Credentials{}, time.Second)

	if got := m.State(); got != StateUninitialized {
		t.Fatalf("initial state = %v", got)
	}
	for i := 0; i < 3; i++ {
		if err := m.Ensure(context.Background()); err != nil {
			t.Fatalf("Ensure #%d: %v", i, err)
		}
	}
	if atomic.LoadInt32(&launches) != 1 {
		t.Errorf("launches = %d, want 1", launches)
	}
	if m.State() != StateReady || !m.BrowserActive() {
		t.Errorf("state = %v active = %v, want ready and active", m.State(), m.BrowserActive())
	}
	if got := m.Cookies()["session"]; got != "abc" {
		t.Errorf("session cookie = %q, want abc", got)
	}
}

func TestConcurrentEnsureLaunchesOnce(t *testing.T) {
	d := newFakeDriver()
	d.loginGate = make(chan struct{})
	var launches int32
	m := NewManager(factoryFor(d, &launches), Credentials{}, time.Second)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Ensure(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(d.loginGate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Ensure: %v", err)
		}
	}
	if atomic.LoadInt32(&launches) != 1 {
		t.Errorf("launches = %d, want 1", launches)
	}
}

func TestLoginFailureClosesDriver(t *testing.T) {
	d := newFakeDriver()
	d.loginErr = errors.New("form not found")
	var launches int32
	m := NewManager(factoryFor(d, &launches), Credentials{}, time.Second)

	err := m.Ensure(context.Background())
	if !models.HasCode(err, models.ErrCodeAuthFailed) {
		t.Fatalf("Ensure error = %v, want AUTH_FAILED", err)
	}
	if d.closeCount() != 1 {
		t.Errorf("driver closed %d times, want 1", d.closeCount())
	}
	if m.State() != StateFailed || m.BrowserActive() {
		t.Errorf("state = %v active = %v, want failed and inactive", m.State(), m.BrowserActive())
	}
	if len(m.Cookies()) != 0 {
		t.Errorf("cookies = %v, want empty", m.Cookies())
	}

	// The next Ensure retries.
	d.loginErr = nil
	if err := m.Ensure(context.Background()); err != nil {
		t.Fatalf("retry Ensure: %v", err)
	}
	if atomic.LoadInt32(&launches) != 2 {
		t.Errorf("launches = %d, want 2", launches)
	}
}

func TestLaunchFailureIsBrowserCrash(t *testing.T) {
	m := NewManager(func(ctx context.Context) (Driver, error) {
		return nil, errors.New("no chromium")
	}, Credentials{}, time.Second)

	if err := m.Ensure(context.Background()); !models.HasCode(err, models.ErrCodeBrowserCrash) {
		t.Fatalf("Ensure error = %v, want BROWSER_CRASH", err)
	}
}

func TestWaitReady(t *testing.T) {
	t.Run("times out while uninitialized", func(t *testing.T) {
		m := NewManager(factoryFor(newFakeDriver(), new(int32)), Credentials{}, time.Second)
		start := time.Now()
		err := m.WaitReady(context.Background(), 50*time.Millisecond)
		if !models.HasCode(err, models.ErrCodeNotReady) {
			t.Fatalf("WaitReady error = %v, want NOT_READY", err)
		}
		if time.Since(start) < 50*time.Millisecond {
			t.Errorf("WaitReady returned before the timeout")
		}
	})

	t.Run("returns once started session is ready", func(t *testing.T) {
		d := newFakeDriver()
		d.loginGate = make(chan struct{})
		m := NewManager(factoryFor(d, new(int32)), Credentials{}, time.Second)
		m.Start(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			close(d.loginGate)
		}()
		if err := m.WaitReady(context.Background(), 0); err != nil {
			t.Fatalf("WaitReady: %v", err)
		}
	})

	t.Run("fails fast when initialisation failed", func(t *testing.T) {
		d := newFakeDriver()
		d.loginErr = errors.New("bad password")
		m := NewManager(factoryFor(d, new(int32)), Credentials{}, time.Minute)
		_ = m.Ensure(context.Background())

		start := time.Now()
		err := m.WaitReady(context.Background(), time.Minute)
		if !models.HasCode(err, models.ErrCodeNotReady) {
			t.Fatalf("WaitReady error = %v, want NOT_READY", err)
		}
		if time.Since(start) > time.Second {
			t.Errorf("WaitReady blocked on a failed session")
		}
	})
}

func TestLeaseIsExclusive(t *testing.T) {
	d := newFakeDriver()
	m := NewManager(factoryFor(d, new(int32)), Credentials{}, time.Second)
	if err := m.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}

	lease, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx); !models.HasCode(err, models.ErrCodeNotReady) {
		t.Fatalf("second Acquire error = %v, want NOT_READY", err)
	}

	html, err := lease.Load(context.Background(), "https://site/page")
	if err != nil || html != "<html>ok</html>" {
		t.Fatalf("Load = %q, %v", html, err)
	}
	if got := m.Cookies()["visited"]; got != "https://site/page" {
		t.Errorf("cookies not refreshed after load: %v", m.Cookies())
	}

	lease.Release()
	lease.Release()

	again, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again.Release()
}

func TestAcquireRequiresReady(t *testing.T) {
	m := NewManager(factoryFor(newFakeDriver(), new(int32)), Credentials{}, time.Second)
	if _, err := m.Acquire(context.Background()); !models.HasCode(err, models.ErrCodeNotReady) {
		t.Fatalf("Acquire error = %v, want NOT_READY", err)
	}
	// The failed Acquire must not keep the slot.
	if err := m.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	lease, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	lease.Release()
}

func TestTeardown(t *testing.T) {
	t.Run("no session is a no-op", func(t *testing.T) {
		m := NewManager(factoryFor(newFakeDriver(), new(int32)), Credentials{}, time.Second)
		m.Teardown()
		m.Teardown()
		if m.State() != StateUninitialized {
			t.Errorf("state = %v", m.State())
		}
	})

	t.Run("closes exactly once", func(t *testing.T) {
		d := newFakeDriver()
		m := NewManager(factoryFor(d, new(int32)), Credentials{}, time.Second)
		if err := m.Ensure(context.Background()); err != nil {
			t.Fatal(err)
		}
		m.Teardown()
		m.Teardown()
		if d.closeCount() != 1 {
			t.Errorf("driver closed %d times, want 1", d.closeCount())
		}
		if m.BrowserActive() || len(m.Cookies()) != 0 {
			t.Errorf("session not cleared after teardown")
		}
	})

	t.Run("during initialisation closes the new driver", func(t *testing.T) {
		d := newFakeDriver()
		d.loginGate = make(chan struct{})
		m := NewManager(factoryFor(d, new(int32)), Credentials{}, time.Second)

		done := make(chan error, 1)
		go func() { done <- m.Ensure(context.Background()) }()
		time.Sleep(20 * time.Millisecond)
		m.Teardown()
		close(d.loginGate)

		if err := <-done; !models.HasCode(err, models.ErrCodeNotReady) {
			t.Fatalf("Ensure error = %v, want NOT_READY", err)
		}
		if d.closeCount() != 1 {
			t.Errorf("driver closed %d times, want 1", d.closeCount())
		}
		if m.BrowserActive() {
			t.Errorf("browser still attached after teardown")
		}
	})
}

type panickyDriver struct{ *fakeDriver }

func (p *panickyDriver) Close() error { panic("boom") }

func TestTeardownSurvivesPanickingClose(t *testing.T) {
	p := &panickyDriver{fakeDriver: newFakeDriver()}
	m := NewManager(func(ctx context.Context) (Driver, error) { return p, nil }, Credentials{}, time.Second)
	if err := m.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Teardown()
	if m.BrowserActive() {
		t.Errorf("browser still attached")
	}
}
