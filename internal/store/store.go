package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert collides with a unique constraint.
var ErrDuplicate = errors.New("record already exists")

// Store provides access to the queue, results and users tables.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const jobColumns = "id, user_id, jobname, path, haltspp, halttime, submitted, status, status_data"

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.UserID, &j.JobName, &j.Path, &j.HaltSPP, &j.HaltTime,
		&j.Submitted, &j.Status, &j.StatusData)
	return j, err
}

// InsertJob creates a new queue row in status NEW. The (user_id, jobname)
// unique constraint rejects duplicates among live jobs.
func (s *Store) InsertJob(ctx context.Context, userID int64, jobname string, haltSPP, haltTime int) (Job, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO queue (user_id, jobname, path, haltspp, halttime, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobColumns,
		userID, jobname, JobPath(userID, jobname), haltSPP, haltTime, StatusNew)
	j, err := scanJob(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Job{}, ErrDuplicate
		}
		return Job{}, fmt.Errorf("insert job: %w", err)
	}
	return j, nil
}

// JobByName fetches a live job by its (owner, name) pair.
func (s *Store) JobByName(ctx context.Context, userID int64, jobname string) (Job, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+jobColumns+" FROM queue WHERE user_id = $1 AND jobname = $2",
		userID, jobname)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ClaimBatch returns up to limit jobs in dispatchable statuses, oldest
// submission first. The batch is read-then-processed within one tick; the
// status column is the write lock, so no row locking is taken here.
func (s *Store) ClaimBatch(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM queue
		WHERE status = ANY($1)
		ORDER BY submitted ASC
		LIMIT $2`,
		[]string{string(StatusPending), string(StatusDistributing), string(StatusReady), string(StatusRendering)},
		limit)
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Transition moves a job from one status to another, atomically. It reports
// false when the job was no longer in the expected status — the caller lost
// the race and must treat the job as someone else's.
func (s *Store) Transition(ctx context.Context, id int64, from, to Status, statusData string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue SET status = $1, status_data = $2
		WHERE id = $3 AND status = $4`,
		to, statusData, id, from)
	if err != nil {
		return false, fmt.Errorf("transition job %d %s->%s: %w", id, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteJob removes a finished RENDERING row and records its Result in one
// transaction, so a crash can never lose the job between the two writes. The
// guarded delete doubles as the race arbiter: losing it means another actor
// already finalized the job, and no Result is inserted.
func (s *Store) CompleteJob(ctx context.Context, job Job, status ResultStatus) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("complete job %d: %w", job.ID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		"DELETE FROM queue WHERE id = $1 AND status = $2", job.ID, StatusRendering)
	if err != nil {
		return false, fmt.Errorf("complete job %d: delete: %w", job.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO results (user_id, jobname, path, status)
		VALUES ($1, $2, $3, $4)`,
		job.UserID, job.JobName, job.Path, status)
	if err != nil {
		return false, fmt.Errorf("complete job %d: insert result: %w", job.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("complete job %d: commit: %w", job.ID, err)
	}
	return true, nil
}

// ListQueue returns all queue entries, newest first.
func (s *Store) ListQueue(ctx context.Context) ([]Job, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+jobColumns+" FROM queue ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListResults returns all results, newest first.
func (s *Store) ListResults(ctx context.Context) ([]Result, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, jobname, path, completed, status
		FROM results ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.UserID, &r.JobName, &r.Path, &r.Completed, &r.Status); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash, role string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, password, role, is_active`,
		username, email, passwordHash, role).
		Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Role, &u.IsActive)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, password, role, is_active
		FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Role, &u.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) UserCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// JobPath derives the storage path for a job, relative to both the intake
// and network storage roots. Deterministic so the distributor and the upload
// path agree without coordination.
func JobPath(userID int64, jobname string) string {
	return fmt.Sprintf("users/%d/%s", userID, SanitizeName(jobname))
}

// SanitizeName reduces a job name to a filesystem-safe token. Anything
// outside [a-zA-Z0-9._-] becomes an underscore; leading dots are stripped so
// a name can never become a hidden file or a traversal component.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
