package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobColumns = `execution_id, source_location, destination_location, callback_url, status,
	folder_name, errors_json, results_json, processed_output_location,
	created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) Create(ctx context.Context, job Job) (string, error) {
	ctx = ensureContext(ctx)
	if err := validateNew(job); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	args, err := jobArgs(job)
	if err != nil {
		return "", err
	}
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		return execErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicate, job.ExecutionID)
		}
		return "", fmt.Errorf("insert job: %w", err)
	}
	return job.ExecutionID, nil
}

func (s *Store) Get(ctx context.Context, id string) (Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE execution_id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

func (s *Store) Update(ctx context.Context, id string, mutate Mutator) (Job, error) {
	ctx = ensureContext(ctx)
	var committed Job
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		before, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE execution_id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		after := before.Clone()
		if err := mutate(&after); err != nil {
			return err
		}
		if err := validateCommit(before, after); err != nil {
			return err
		}
		after.UpdatedAt = time.Now().UTC()

		errorsJSON, resultsJSON, err := encodeHistory(after)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE jobs SET
			source_location = ?, destination_location = ?, callback_url = ?, status = ?,
			folder_name = ?, errors_json = ?, results_json = ?, processed_output_location = ?,
			updated_at = ?, completed_at = ?
			WHERE execution_id = ?`,
			after.SourceLocation, after.DestinationLocation, after.CallbackURL, string(after.Status),
			after.FolderName, errorsJSON, resultsJSON, after.ProcessedOutputLocation,
			formatTime(after.UpdatedAt), nullableTime(after.CompletedAt),
			id,
		)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = after
		return nil
	})
	if err != nil {
		return Job{}, err
	}
	return committed, nil
}

func (s *Store) List(ctx context.Context, statuses ...Status) ([]Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at, execution_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func jobArgs(job Job) ([]any, error) {
	errorsJSON, resultsJSON, err := encodeHistory(job)
	if err != nil {
		return nil, err
	}
	return []any{
		job.ExecutionID, job.SourceLocation, job.DestinationLocation, job.CallbackURL, string(job.Status),
		job.FolderName, errorsJSON, resultsJSON, job.ProcessedOutputLocation,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt), nullableTime(job.CompletedAt),
	}, nil
}

func encodeHistory(job Job) (string, string, error) {
	errs := job.Errors
	if errs == nil {
		errs = []ErrorEntry{}
	}
	results := job.Results
	if results == nil {
		results = []Result{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return "", "", fmt.Errorf("encode errors: %w", err)
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return "", "", fmt.Errorf("encode results: %w", err)
	}
	return string(errorsJSON), string(resultsJSON), nil
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job                             Job
		status, errorsJSON, resultsJSON string
		createdAt, updatedAt            string
		completedAt                     sql.NullString
	)
	if err := row.Scan(
		&job.ExecutionID, &job.SourceLocation, &job.DestinationLocation, &job.CallbackURL, &status,
		&job.FolderName, &errorsJSON, &resultsJSON, &job.ProcessedOutputLocation,
		&createdAt, &updatedAt, &completedAt,
	); err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	if err := json.Unmarshal([]byte(errorsJSON), &job.Errors); err != nil {
		return Job{}, fmt.Errorf("decode errors: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &job.Results); err != nil {
		return Job{}, fmt.Errorf("decode results: %w", err)
	}
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid && completedAt.String != "" {
		ts := parseTime(completedAt.String)
		job.CompletedAt = &ts
	}
	return job, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
