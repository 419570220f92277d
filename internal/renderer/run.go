package renderer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/LuxRender/LuxFire/internal/config"
	"github.com/LuxRender/LuxFire/internal/directory"
	"github.com/LuxRender/LuxFire/internal/render"
)

const (
	registerAttempts = 3
	registerRetry    = 5 * time.Second
	keepaliveEvery   = 60 * time.Second
)

// Run starts a rendering node: serves the render RPC surface, registers with
// the directory and keeps the registration fresh until shutdown.
func Run(ctx context.Context, cfg *config.Config) error {
	newContext := func() render.Context {
		return render.NewProcessContext(cfg.Renderer.Binary, cfg.Storage.NetworkDir)
	}
	srv := NewServer(cfg.Renderer.Name, cfg.Storage.NetworkDir, cfg.Renderer.MaxThreads, newContext)

	e := echo.New()
	e.HideBanner = true
	e.Any("/rpc", echo.WrapHandler(srv.Handler()))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: e,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("renderer server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("renderer server failed")
		}
	}()

	dir := directory.NewClient(cfg.Directory.URL)
	name := cfg.Dispatcher.RendererGroup + "." + cfg.Renderer.Name
	endpoint := cfg.Server.URL
	if endpoint == "" {
		endpoint = fmt.Sprintf("http://%s:%d/rpc", cfg.Server.Host, cfg.Server.Port)
	}

	// Retry registration in case the dispatcher is briefly unavailable.
	var err error
	for attempt := 1; attempt <= registerAttempts; attempt++ {
		if err = dir.Register(ctx, name, endpoint); err == nil {
			break
		}
		if attempt < registerAttempts {
			log.Warn().Err(err).Int("attempt", attempt).Int("max", registerAttempts).Msg("registration failed, retrying in 5s")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(registerRetry):
			}
		}
	}
	if err != nil {
		return fmt.Errorf("register with directory after %d attempts: %w", registerAttempts, err)
	}
	log.Info().Str("name", name).Str("endpoint", endpoint).Msg("registered with directory")

	// Keep the registration fresh. A restarted directory loses its table; the
	// periodic re-register repopulates it without operator involvement.
	keepaliveCtx, keepaliveCancel := context.WithCancel(ctx)
	defer keepaliveCancel()
	go func() {
		ticker := time.NewTicker(keepaliveEvery)
		defer ticker.Stop()
		for {
			select {
			case <-keepaliveCtx.Done():
				return
			case <-ticker.C:
				if err := dir.Register(keepaliveCtx, name, endpoint); err != nil {
					log.Warn().Err(err).Msg("directory keepalive failed")
				}
			}
		}
	}()

	fmt.Println()
	fmt.Println("=======================================================")
	fmt.Println("  LuxFire Renderer started")
	fmt.Printf("  Name: %s\n", name)
	fmt.Printf("  Binary: %s\n", cfg.Renderer.Binary)
	fmt.Printf("  Server: http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("=======================================================")
	fmt.Println()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("renderer shutting down (signal)...")
	case <-ctx.Done():
		log.Info().Msg("renderer shutting down...")
	}
	keepaliveCancel()

	// Best-effort deregister with a short timeout. If the dispatcher is
	// already gone this fails and that's fine.
	deregCtx, deregCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := dir.Deregister(deregCtx, name); err != nil {
		log.Info().Err(err).Msg("deregister failed (directory may already be down)")
	} else {
		log.Info().Msg("deregistered from directory")
	}
	deregCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("renderer server shutdown error")
	}
	return nil
}
