package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/use-agent/posterbridge/models"
)

const (
	loginFieldSelector    = `input[name="login"]`
	passwordFieldSelector = `input[name="password"]`

	// authPollInterval is how often the page is checked for the
	// post-login state.
	authPollInterval = 250 * time.Millisecond
)

// Login fills the poster site's login form, submits it with Enter, and
// waits until the password field is gone. The whole sequence shares one
// deadline (loginTimeout).
func (d *rodDriver) Login(ctx context.Context, creds Credentials) error {
	if d.loginTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.loginTimeout)
		defer cancel()
	}
	p := d.page.Context(ctx)

	if err := p.Navigate(creds.LoginURL); err != nil {
		return authError("failed to open login page", err)
	}
	if err := p.WaitLoad(); err != nil {
		slog.Debug("login page did not finish loading, trying the form anyway", "error", err)
	}

	loginEl, err := p.Element(loginFieldSelector)
	if err != nil {
		return authError(fmt.Sprintf("login field %q not found", loginFieldSelector), err)
	}
	passwordEl, err := p.Element(passwordFieldSelector)
	if err != nil {
		return authError(fmt.Sprintf("password field %q not found", passwordFieldSelector), err)
	}

	if err := loginEl.Input(creds.Email); err != nil {
		return authError("failed to type login", err)
	}
	if err := passwordEl.Input(creds.Password); err != nil {
		return authError("failed to type password", err)
	}
	if err := passwordEl.Type(input.Enter); err != nil {
		return authError("failed to submit login form", err)
	}

	if err := waitAuthenticated(ctx, p); err != nil {
		return authError("login did not reach an authenticated state", err)
	}

	slog.Info("logged into poster site", "loginURL", creds.LoginURL)
	return nil
}

// waitAuthenticated polls until the password field has left the DOM.
// Errors from Has during the post-submit navigation are expected and
// simply retried.
func waitAuthenticated(ctx context.Context, p *rod.Page) error {
	ticker := time.NewTicker(authPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			has, _, err := p.Has(passwordFieldSelector)
			if err == nil && !has {
				return nil
			}
		}
	}
}

func authError(msg string, err error) *models.PipelineError {
	return models.NewPipelineError(models.ErrCodeAuthFailed, msg, err)
}
