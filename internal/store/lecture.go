package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var lectureColumns = []string{
	"id", "filename", "file_path", "status", "chunk_count", "error", "uploaded_at", "updated_at",
}

type lectureRepo struct {
	db *sql.DB
}

func (r *lectureRepo) Upsert(ctx context.Context, l *Lecture) error {
	now := time.Now().UTC()
	if l.UploadedAt.IsZero() {
		l.UploadedAt = now
	}
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = StatusPending
	}

	query, args := sqlite().Insert(lecturesTable.Name).
		Columns(lectureColumns...).
		Values(l.ID, l.Filename, l.FilePath, string(l.Status), l.ChunkCount, l.Error, l.UploadedAt, l.UpdatedAt).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, c := range []string{"filename", "file_path", "status", "chunk_count", "error", "updated_at"} {
					u.SetExcluded(c)
				}
			}),
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert lecture %q: %w", l.ID, err)
	}
	return nil
}

func (r *lectureRepo) SetStatus(ctx context.Context, id string, status LectureStatus, chunkCount int, errMsg string) error {
	query, args := sqlite().Update(lecturesTable.Name).
		Set("status", string(status)).
		Set("chunk_count", chunkCount).
		Set("error", errMsg).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set lecture status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("lecture %q not found", id)
	}
	return nil
}

func (r *lectureRepo) Get(ctx context.Context, id string) (*Lecture, error) {
	query, args := sqlite().Select(lectureColumns...).
		From(entsql.Table(lecturesTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	l, err := scanLecture(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lecture %q: %w", id, err)
	}
	return l, nil
}

func (r *lectureRepo) List(ctx context.Context) ([]Lecture, error) {
	query, args := sqlite().Select(lectureColumns...).
		From(entsql.Table(lecturesTable.Name)).
		OrderBy(entsql.Desc("updated_at"), entsql.Asc("id")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	defer rows.Close()

	var out []Lecture
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lecture: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLecture(s rowScanner) (*Lecture, error) {
	var l Lecture
	var status string
	if err := s.Scan(&l.ID, &l.Filename, &l.FilePath, &status, &l.ChunkCount, &l.Error, &l.UploadedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Status = LectureStatus(status)
	return &l, nil
}
