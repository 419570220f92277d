// Package app assembles the long-running processes from the packages below
// it: persistence, session auth, the directory service, the scheduling loop
// and the HTTP surface.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/LuxRender/LuxFire/internal/api"
	"github.com/LuxRender/LuxFire/internal/config"
	"github.com/LuxRender/LuxFire/internal/database"
	"github.com/LuxRender/LuxFire/internal/directory"
	"github.com/LuxRender/LuxFire/internal/dispatcher"
	"github.com/LuxRender/LuxFire/internal/renderer"
	"github.com/LuxRender/LuxFire/internal/session"
	"github.com/LuxRender/LuxFire/internal/store"
)

const purgeInterval = 15 * time.Minute

// poolAdapter bridges the renderer pool to the scheduling loop's interface.
type poolAdapter struct {
	pool *renderer.Pool
}

func (a poolAdapter) Discover(ctx context.Context) (map[string]dispatcher.WorkerHandle, error) {
	handles, err := a.pool.Discover(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]dispatcher.WorkerHandle, len(handles))
	for name, h := range handles {
		out[name] = h
	}
	return out, nil
}

// registryResolver serves pool lookups straight from the embedded registry,
// skipping the HTTP hop when the dispatcher hosts the directory itself.
type registryResolver struct {
	registry *directory.Registry
}

func (r registryResolver) ResolveGroup(_ context.Context, group string) ([]string, error) {
	return r.registry.ResolveGroup(group), nil
}

func (r registryResolver) Lookup(_ context.Context, name string) (string, error) {
	endpoint, ok := r.registry.Lookup(name)
	if !ok {
		return "", fmt.Errorf("name not registered: %s", name)
	}
	return endpoint, nil
}

// RunDispatcher starts the dispatcher: database, directory service,
// scheduling timer and HTTP API, then blocks until shutdown.
func RunDispatcher(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	st := store.New(pool)

	adminPassword, err := ensureAdmin(ctx, st, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin setup: %w", err)
	}

	jwtExpiry, err := time.ParseDuration(cfg.Auth.JWTExpiry)
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}
	sessionExpiry, err := time.ParseDuration(cfg.Auth.SessionExpiry)
	if err != nil {
		sessionExpiry = 7 * 24 * time.Hour
	}
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate jwt secret: %w", err)
		}
		jwtSecret = hex.EncodeToString(b)
		log.Warn().Msg("no jwt secret configured, generated one; tokens will not survive a restart")
	}
	sessions := session.NewManager(pool, st, jwtSecret, jwtExpiry, sessionExpiry)

	// Embedded directory service. Render nodes register here; the pool reads
	// the same registry without going through HTTP.
	registry := directory.NewRegistry()
	dirServer := directory.NewServer(registry)

	var resolver renderer.Resolver = registryResolver{registry: registry}
	if cfg.Directory.URL != "" {
		resolver = directory.NewClient(cfg.Directory.URL)
	}
	nodePool := renderer.NewPool(resolver, cfg.Dispatcher.RendererGroup)

	facade := dispatcher.NewFacade(st, sessions, cfg.Storage.LocalDir)
	distributor := dispatcher.NewDistributor(st, cfg.Storage.LocalDir, cfg.Storage.NetworkDir)
	worker := dispatcher.NewWorker(st, poolAdapter{pool: nodePool}, distributor, cfg.Dispatcher.BatchSize)

	interval, err := time.ParseDuration(cfg.Dispatcher.Interval)
	if err != nil || interval <= 0 {
		interval = 10 * time.Second
	}
	timer := dispatcher.NewTimer(worker, interval, cfg.Dispatcher.MaxConcurrentTicks)

	e := echo.New()
	e.HideBanner = true
	api.SetupRouter(e, api.RouterConfig{
		Facade:    facade,
		Sessions:  sessions,
		JWTExpiry: jwtExpiry,
	})
	e.Any("/directory", echo.WrapHandler(dirServer.Handler()))

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	workCtx, workCancel := context.WithCancel(ctx)
	defer workCancel()

	timerDone := make(chan struct{})
	go func() {
		timer.Run(workCtx)
		close(timerDone)
	}()

	go purgeLoop(workCtx, sessions)

	printBanner(cfg, adminPassword)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	workCancel()
	<-timerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}

func purgeLoop(ctx context.Context, sessions *session.Manager) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("session purge failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("expired sessions removed")
			}
		}
	}
}

// ensureAdmin creates the first account on an empty users table. Returns the
// generated password so the banner can show it once, or "" if nothing was
// created.
func ensureAdmin(ctx context.Context, st *store.Store, username, password string) (string, error) {
	count, err := st.UserCount(ctx)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}

	if password == "" {
		b := make([]byte, 8)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		password = hex.EncodeToString(b)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	if _, err := st.CreateUser(ctx, username, "", string(hash), "admin"); err != nil {
		return "", err
	}
	return password, nil
}

func printBanner(cfg *config.Config, adminPassword string) {
	fmt.Println()
	fmt.Println("=======================================================")
	fmt.Println("  LuxFire Dispatcher started")
	fmt.Printf("  Server: http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Directory: http://%s:%d/directory\n", cfg.Server.Host, cfg.Server.Port)
	if adminPassword != "" {
		fmt.Printf("  Admin user: %s\n", cfg.Auth.AdminUsername)
		fmt.Printf("  Admin password: %s (save this, shown once)\n", adminPassword)
	}
	fmt.Println("=======================================================")
	fmt.Println()
}
