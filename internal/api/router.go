// Package api wires the dispatcher's HTTP surface: auth, queue lifecycle and
// listing endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/LuxRender/LuxFire/internal/dispatcher"
	"github.com/LuxRender/LuxFire/internal/session"
)

type RouterConfig struct {
	Facade    *dispatcher.Facade
	Sessions  *session.Manager
	JWTExpiry time.Duration
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	InitErrors()

	v1 := e.Group("/api/v1")
	humaCfg := huma.DefaultConfig("LuxFire API", "1.0.0")
	humaCfg.Servers = []*huma.Server{{URL: "/api/v1"}}
	humaCfg.Info.Description = "Distributed rendering queue"
	humaCfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"BearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "JWT Bearer token",
		},
	}

	hapi := humaecho.NewWithGroup(e, v1, humaCfg)
	authMw := Auth(cfg.Sessions)

	authHandler := NewAuthHandler(cfg.Sessions, cfg.JWTExpiry)
	huma.Register(hapi, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login and get JWT token",
		Tags:        []string{"Auth"},
	}, authHandler.Login)

	jobs := NewJobsHandler(cfg.Facade, cfg.Sessions)

	huma.Register(hapi, huma.Operation{
		OperationID:   "add-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Create a render job",
		Tags:          []string{"Jobs"},
		Security:      []map[string][]string{{"BearerAuth": {}}},
		Middlewares:   huma.Middlewares{authMw},
		DefaultStatus: http.StatusCreated,
	}, jobs.AddJob)

	huma.Register(hapi, huma.Operation{
		OperationID: "upload-file",
		Method:      http.MethodPut,
		Path:        "/jobs/{jobname}/files/{filename}",
		Summary:     "Upload a scene file into the job's intake directory",
		Tags:        []string{"Jobs"},
		Security:    []map[string][]string{{"BearerAuth": {}}},
		Middlewares: huma.Middlewares{authMw},
	}, jobs.UploadFile)

	huma.Register(hapi, huma.Operation{
		OperationID: "finalize-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{jobname}/finalize",
		Summary:     "Finalize a job so it enters the render queue",
		Tags:        []string{"Jobs"},
		Security:    []map[string][]string{{"BearerAuth": {}}},
		Middlewares: huma.Middlewares{authMw},
	}, jobs.FinalizeJob)

	huma.Register(hapi, huma.Operation{
		OperationID: "abort-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{jobname}/abort",
		Summary:     "Abort a job waiting for a render node",
		Tags:        []string{"Jobs"},
		Security:    []map[string][]string{{"BearerAuth": {}}},
		Middlewares: huma.Middlewares{authMw},
	}, jobs.AbortJob)

	huma.Register(hapi, huma.Operation{
		OperationID: "reset-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{jobname}/reset",
		Summary:     "Return a failed job to NEW",
		Tags:        []string{"Jobs"},
		Security:    []map[string][]string{{"BearerAuth": {}}},
		Middlewares: huma.Middlewares{authMw},
	}, jobs.ResetJob)

	huma.Register(hapi, huma.Operation{
		OperationID: "list-queue",
		Method:      http.MethodGet,
		Path:        "/queue",
		Summary:     "List queued jobs, newest first",
		Tags:        []string{"Queue"},
	}, jobs.ListQueue)

	huma.Register(hapi, huma.Operation{
		OperationID: "list-results",
		Method:      http.MethodGet,
		Path:        "/results",
		Summary:     "List finished jobs, newest first",
		Tags:        []string{"Queue"},
	}, jobs.ListResults)
}
