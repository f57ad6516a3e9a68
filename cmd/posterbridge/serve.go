package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/posterbridge/api"
	"github.com/use-agent/posterbridge/api/handler"
	"github.com/use-agent/posterbridge/cache"
	"github.com/use-agent/posterbridge/jellyfin"
	"github.com/use-agent/posterbridge/models"
	"github.com/use-agent/posterbridge/pipeline"
	"github.com/use-agent/posterbridge/transfer"
	"github.com/use-agent/posterbridge/webhook"
)

// browseSessionTTL is how long an idle browsing session is kept.
const browseSessionTTL = 12 * time.Hour

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("posterbridge starting",
				"host", cfg.Server.Host,
				"port", cfg.Server.Port,
				"mode", cfg.Server.Mode,
				"tpdb", cfg.TPDB.BaseURL,
				"jellyfin", cfg.Jellyfin.URL,
			)

			// ── 1. Media server ─────────────────────────────────────
			media, err := jellyfin.New(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey, cfg.Jellyfin.Timeout.Duration)
			if err != nil {
				return err
			}

			// ── 2. Browser session (logs in in the background) ──────
			session := newSession(cfg)
			defer session.Teardown()
			session.Start(runCtx)

			// ── 3. Title resolution and poster site ─────────────────
			resolver, err := newResolver(cfg)
			if err != nil {
				return err
			}
			images, err := transfer.NewFetcher(cfg.TPDB.BaseURL, session,
				transfer.WithCookieHosts(cfg.TPDB.ImageHosts...))
			if err != nil {
				return err
			}

			postersCache := cache.New[[]models.PosterCandidate](cfg.Cache.MaxEntries, cfg.Cache.TTL.Duration)
			defer postersCache.Close()

			p := pipeline.New(pipeline.Deps{
				Session:      session,
				Resolver:     resolver,
				Posters:      newPosterSite(cfg, images),
				Images:       images,
				Media:        media,
				Cache:        postersCache,
				Notifier:     webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret),
				ReadyTimeout: cfg.Browser.ReadyTimeout.Duration,
				MaxPerItem:   cfg.Posters.MaxPerItem,
			})

			if info, err := media.ServerInfo(runCtx); err != nil {
				slog.Warn("could not connect to jellyfin", "error", err)
			} else {
				slog.Info("connected to jellyfin", "name", info.Name, "version", info.Version)
			}

			// ── 4. HTTP server ──────────────────────────────────────
			store := handler.NewStore(browseSessionTTL)
			defer store.Close()

			router := api.NewRouter(runCtx, p, media, store, cfg, time.Now())
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("HTTP server listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// ── 5. Graceful shutdown ────────────────────────────────
			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-runCtx.Done():
				slog.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP server forced shutdown", "error", err)
			} else {
				slog.Info("HTTP server drained gracefully")
			}

			// session.Teardown runs via defer and kills Chrome.
			slog.Info("posterbridge stopped")
			return nil
		},
	}
}
