package api

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/LuxRender/LuxFire/internal/dispatcher"
	"github.com/LuxRender/LuxFire/internal/session"
	"github.com/LuxRender/LuxFire/internal/store"
)

type AuthHandler struct {
	sessions  *session.Manager
	jwtExpiry time.Duration
}

func NewAuthHandler(sessions *session.Manager, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{sessions: sessions, jwtExpiry: jwtExpiry}
}

type LoginInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"1" doc:"Password"`
	}
}

type LoginDTO struct {
	Token     string `json:"token" doc:"JWT token"`
	ExpiresIn int    `json:"expires_in" doc:"Token lifetime in seconds"`
	Username  string `json:"username" doc:"Username"`
	Role      string `json:"role" doc:"User role"`
}

func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*DataOutput[LoginDTO], error) {
	token, user, err := h.sessions.Login(ctx, input.Body.Username, input.Body.Password)
	if err != nil {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}
	return OK(LoginDTO{
		Token:     token,
		ExpiresIn: int(h.jwtExpiry.Seconds()),
		Username:  user.Username,
		Role:      user.Role,
	}), nil
}

// JobsHandler exposes the queue lifecycle. Each mutating handler mints a
// fresh one-time key for the caller's session and hands it to the facade,
// which burns it before acting.
type JobsHandler struct {
	facade   *dispatcher.Facade
	sessions *session.Manager
}

func NewJobsHandler(facade *dispatcher.Facade, sessions *session.Manager) *JobsHandler {
	return &JobsHandler{facade: facade, sessions: sessions}
}

type AddJobInput struct {
	Body struct {
		JobName  string `json:"jobname" minLength:"1" doc:"Job name, unique per user"`
		HaltSPP  int    `json:"haltspp,omitempty" default:"-1" doc:"Stop after this many samples per pixel"`
		HaltTime int    `json:"halttime,omitempty" default:"-1" doc:"Stop after this many seconds"`
	}
}

type JobDTO struct {
	JobName    string    `json:"jobname" doc:"Job name"`
	UserID     int64     `json:"user_id" doc:"Owning user"`
	HaltSPP    int       `json:"haltspp" doc:"Halt samples per pixel"`
	HaltTime   int       `json:"halttime" doc:"Halt seconds"`
	Submitted  time.Time `json:"submitted" doc:"Submission time"`
	Status     string    `json:"status" doc:"Lifecycle status"`
	StatusData string    `json:"status_data,omitempty" doc:"Status detail"`
}

func jobDTO(j store.Job) JobDTO {
	return JobDTO{
		JobName:    j.JobName,
		UserID:     j.UserID,
		HaltSPP:    j.HaltSPP,
		HaltTime:   j.HaltTime,
		Submitted:  j.Submitted,
		Status:     string(j.Status),
		StatusData: j.StatusData,
	}
}

type ResultDTO struct {
	JobName   string    `json:"jobname" doc:"Job name"`
	UserID    int64     `json:"user_id" doc:"Owning user"`
	Completed time.Time `json:"completed" doc:"Completion time"`
	Status    string    `json:"status" doc:"Terminal status"`
}

type JobNameInput struct {
	JobName string `path:"jobname" doc:"Job name"`
}

type UploadInput struct {
	JobName     string `path:"jobname" doc:"Job name"`
	Filename    string `path:"filename" doc:"Destination filename"`
	ContentType string `header:"Content-Type"`
	RawBody     []byte
}

func (h *JobsHandler) mintKey(ctx context.Context) (string, error) {
	claims := GetClaims(ctx)
	key, err := h.sessions.MintKey(ctx, claims.UserID)
	if err != nil {
		return "", huma.Error401Unauthorized("session expired")
	}
	return key, nil
}

func mapFacadeError(err error) error {
	switch {
	case errors.Is(err, dispatcher.ErrUnauthorized):
		return huma.Error401Unauthorized("invalid credentials")
	case errors.Is(err, dispatcher.ErrDuplicateJob):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, dispatcher.ErrWrongStatus):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, dispatcher.ErrMissingHalt):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, store.ErrNotFound):
		return huma.Error404NotFound("no such job")
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}

func (h *JobsHandler) AddJob(ctx context.Context, input *AddJobInput) (*DataOutput[JobDTO], error) {
	key, err := h.mintKey(ctx)
	if err != nil {
		return nil, err
	}
	job, err := h.facade.AddJob(ctx, GetClaims(ctx).UserID, key,
		input.Body.JobName, input.Body.HaltSPP, input.Body.HaltTime)
	if err != nil {
		return nil, mapFacadeError(err)
	}
	return OK(jobDTO(job)), nil
}

func (h *JobsHandler) FinalizeJob(ctx context.Context, input *JobNameInput) (*MsgOutput, error) {
	key, err := h.mintKey(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.facade.FinalizeJob(ctx, GetClaims(ctx).UserID, key, input.JobName); err != nil {
		return nil, mapFacadeError(err)
	}
	return Msg("job finalized"), nil
}

func (h *JobsHandler) AbortJob(ctx context.Context, input *JobNameInput) (*MsgOutput, error) {
	key, err := h.mintKey(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.facade.AbortJob(ctx, GetClaims(ctx).UserID, key, input.JobName); err != nil {
		return nil, mapFacadeError(err)
	}
	return Msg("job aborted"), nil
}

func (h *JobsHandler) ResetJob(ctx context.Context, input *JobNameInput) (*MsgOutput, error) {
	key, err := h.mintKey(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.facade.ResetJob(ctx, GetClaims(ctx).UserID, key, input.JobName); err != nil {
		return nil, mapFacadeError(err)
	}
	return Msg("job reset"), nil
}

func (h *JobsHandler) UploadFile(ctx context.Context, input *UploadInput) (*MsgOutput, error) {
	key, err := h.mintKey(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.facade.AddFile(ctx, GetClaims(ctx).UserID, key,
		input.JobName, input.Filename, input.RawBody); err != nil {
		return nil, mapFacadeError(err)
	}
	return Msg("file stored"), nil
}

type EmptyInput struct{}

func (h *JobsHandler) ListQueue(ctx context.Context, _ *EmptyInput) (*DataOutput[[]JobDTO], error) {
	jobs, err := h.facade.ListQueue(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("list queue", err)
	}
	dtos := make([]JobDTO, 0, len(jobs))
	for _, j := range jobs {
		dtos = append(dtos, jobDTO(j))
	}
	return OK(dtos), nil
}

func (h *JobsHandler) ListResults(ctx context.Context, _ *EmptyInput) (*DataOutput[[]ResultDTO], error) {
	results, err := h.facade.ListResults(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("list results", err)
	}
	dtos := make([]ResultDTO, 0, len(results))
	for _, r := range results {
		dtos = append(dtos, ResultDTO{
			JobName:   r.JobName,
			UserID:    r.UserID,
			Completed: r.Completed,
			Status:    string(r.Status),
		})
	}
	return OK(dtos), nil
}
