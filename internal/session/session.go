// Package session manages login sessions and the one-time dispatcher keys
// that authenticate privileged queue operations.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/LuxRender/LuxFire/internal/store"
)

// ErrUnauthorized is the uniform failure for every credential problem. The
// message never distinguishes a missing user from a bad password or a stale
// key, so callers cannot probe which accounts exist.
var ErrUnauthorized = errors.New("invalid credentials")

// Manager owns the sessions table and JWT issuance.
type Manager struct {
	pool          *pgxpool.Pool
	store         *store.Store
	jwtSecret     string
	jwtExpiry     time.Duration
	sessionExpiry time.Duration
}

func NewManager(pool *pgxpool.Pool, st *store.Store, jwtSecret string, jwtExpiry, sessionExpiry time.Duration) *Manager {
	return &Manager{
		pool:          pool,
		store:         st,
		jwtSecret:     jwtSecret,
		jwtExpiry:     jwtExpiry,
		sessionExpiry: sessionExpiry,
	}
}

// Login verifies credentials, opens a session row and mints a JWT bound to
// it. Every failure path returns ErrUnauthorized.
func (m *Manager) Login(ctx context.Context, username, password string) (string, store.User, error) {
	user, err := m.store.UserByUsername(ctx, username)
	if err != nil {
		return "", store.User{}, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", store.User{}, ErrUnauthorized
	}
	if !user.IsActive {
		return "", store.User{}, ErrUnauthorized
	}

	sessionID := uuid.New()
	_, err = m.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, logged_in, expiry)
		VALUES ($1, $2, TRUE, $3)`,
		sessionID, user.ID, time.Now().Add(m.sessionExpiry))
	if err != nil {
		return "", store.User{}, fmt.Errorf("open session: %w", err)
	}

	token, err := m.generateJWT(user, sessionID.String())
	if err != nil {
		return "", store.User{}, fmt.Errorf("mint token: %w", err)
	}
	return token, user, nil
}

func (m *Manager) generateJWT(user store.User, sessionID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"sid":  sessionID,
		"role": user.Role,
		"exp":  time.Now().Add(m.jwtExpiry).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.jwtSecret))
}

// Claims is the decoded identity carried by a valid JWT.
type Claims struct {
	UserID    int64
	SessionID string
	Role      string
}

// ParseToken validates a JWT and extracts its claims.
func (m *Manager) ParseToken(tokenStr string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrUnauthorized
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrUnauthorized
	}

	sub, _ := mapClaims["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return Claims{}, ErrUnauthorized
	}
	sid, _ := mapClaims["sid"].(string)
	role, _ := mapClaims["role"].(string)
	return Claims{UserID: userID, SessionID: sid, Role: role}, nil
}

// MintKey writes a fresh one-time dispatcher key into the user's live
// session. The key authorizes exactly one privileged queue call.
func (m *Manager) MintKey(ctx context.Context, userID int64) (string, error) {
	key := uuid.New().String()
	tag, err := m.pool.Exec(ctx, `
		UPDATE sessions SET dispatcher_key = $1
		WHERE id = (
			SELECT id FROM sessions
			WHERE user_id = $2 AND logged_in AND expiry > now()
			ORDER BY created_at DESC LIMIT 1
		)`,
		key, userID)
	if err != nil {
		return "", fmt.Errorf("mint key: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return "", ErrUnauthorized
	}
	return key, nil
}

// ConsumeKey burns a one-time key. The clear happens in the same statement as
// the match, so a replayed key loses the race and fails cleanly.
func (m *Manager) ConsumeKey(ctx context.Context, userID int64, key string) error {
	if key == "" {
		return ErrUnauthorized
	}
	tag, err := m.pool.Exec(ctx, `
		UPDATE sessions SET dispatcher_key = NULL
		WHERE user_id = $1 AND dispatcher_key = $2 AND logged_in AND expiry > now()`,
		userID, key)
	if err != nil {
		return fmt.Errorf("consume key: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Logout closes a session. The row stays until the purge sweep removes it.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	_, err := m.pool.Exec(ctx,
		"UPDATE sessions SET logged_in = FALSE, dispatcher_key = NULL WHERE id = $1", sessionID)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions past their expiry and reports how many went.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := m.pool.Exec(ctx, "DELETE FROM sessions WHERE expiry < now()")
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
