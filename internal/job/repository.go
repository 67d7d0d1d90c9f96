package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for job persistence. The SQLite
// implementation is the production one; tests may substitute mocks.
type Repository interface {
	Create(ctx context.Context, j *Job) error
	Update(ctx context.Context, j *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, limit int) ([]Job, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Job, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// jobColumns is the SELECT column list for job queries.
const jobColumns = `id, kind, action, status, payload, result, error,
			created_at, started_at, finished_at, duration_ms`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new job.
func (r *SQLiteRepository) Create(ctx context.Context, j *Job) error {
	if j.Kind == "" {
		return ErrMissingKind
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(orEmpty(j.Payload))
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, kind, action, status, payload, result, error,
			created_at, started_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		j.ID,
		j.Kind,
		j.Action,
		string(j.Status),
		string(payload),
		nullableJSON(j.Result),
		nullableString(j.Error),
		j.CreatedAt.Format(time.RFC3339Nano),
		nullableTime(j.StartedAt),
		nullableTime(j.FinishedAt),
		j.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// Update persists the mutable fields of a job.
func (r *SQLiteRepository) Update(ctx context.Context, j *Job) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET
			status = ?, result = ?, error = ?,
			started_at = ?, finished_at = ?, duration_ms = ?
		WHERE id = ?`,
		string(j.Status),
		nullableJSON(j.Result),
		nullableString(j.Error),
		nullableTime(j.StartedAt),
		nullableTime(j.FinishedAt),
		j.DurationMS,
		j.ID,
	)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a job by its identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying job by id: %w", err)
	}
	return j, nil
}

// List retrieves the most recent jobs, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Job, error) {
	return r.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`,
		clampLimit(limit))
}

// ListByStatus retrieves jobs in one status, newest first.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, status Status, limit int) ([]Job, error) {
	return r.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at DESC LIMIT ?`,
		string(status), clampLimit(limit))
}

// DeleteOlderThan removes finished jobs created before the cutoff and
// returns how many rows were deleted. Queued and running jobs are
// never removed.
func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE created_at < ? AND status IN (?, ?)`,
		cutoff.UTC().Format(time.RFC3339Nano),
		string(StatusDone),
		string(StatusFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old jobs: %w", err)
	}
	return result.RowsAffected()
}

func (r *SQLiteRepository) queryJobs(ctx context.Context, query string, args ...interface{}) ([]Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// rowScanner abstracts sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		j                   Job
		status              string
		payloadJSON         string
		resultJSON, errMsg  sql.NullString
		createdAt           string
		startedAt, finished sql.NullString
	)

	err := scanner.Scan(
		&j.ID,
		&j.Kind,
		&j.Action,
		&status,
		&payloadJSON,
		&resultJSON,
		&errMsg,
		&createdAt,
		&startedAt,
		&finished,
		&j.DurationMS,
	)
	if err != nil {
		return nil, err
	}

	j.Status = Status(status)
	if err := json.Unmarshal([]byte(payloadJSON), &j.Payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if len(j.Payload) == 0 {
		j.Payload = nil
	}
	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &j.Result); err != nil {
			return nil, fmt.Errorf("decoding result: %w", err)
		}
	}
	if errMsg.Valid {
		j.Error = errMsg.String
	}

	if t, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		j.CreatedAt = t
	}
	j.StartedAt = parseNullableTime(startedAt)
	j.FinishedAt = parseNullableTime(finished)

	return &j, nil
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableJSON(m map[string]interface{}) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func orEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}
