package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var qaColumns = []string{
	"id", "lecture_id", "question", "answer", "question_type", "difficulty", "fallback", "generated_at",
}

type qaRepo struct {
	db *sql.DB
}

func (r *qaRepo) SaveItems(ctx context.Context, lectureID string, items []QA) ([]QA, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	out := make([]QA, len(items))
	for i, it := range items {
		it.LectureID = lectureID
		if it.GeneratedAt.IsZero() {
			it.GeneratedAt = now
		}
		query, args := sqlite().Insert(qasTable.Name).
			Columns(qaColumns[1:]...).
			Values(it.LectureID, it.Question, it.Answer, it.QuestionType, it.Difficulty, it.Fallback, it.GeneratedAt).
			Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("insert qa %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("qa id: %w", err)
		}
		it.ID = int(id)
		out[i] = it
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (r *qaRepo) ListByLecture(ctx context.Context, lectureID string) ([]QA, error) {
	query, args := sqlite().Select(qaColumns...).
		From(entsql.Table(qasTable.Name)).
		Where(entsql.EQ("lecture_id", lectureID)).
		OrderBy(entsql.Asc("id")).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list qas: %w", err)
	}
	defer rows.Close()

	var out []QA
	for rows.Next() {
		q, err := scanQA(rows)
		if err != nil {
			return nil, fmt.Errorf("scan qa: %w", err)
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *qaRepo) Get(ctx context.Context, id int) (*QA, error) {
	query, args := sqlite().Select(qaColumns...).
		From(entsql.Table(qasTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	q, err := scanQA(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get qa %d: %w", id, err)
	}
	return q, nil
}

func scanQA(s rowScanner) (*QA, error) {
	var q QA
	if err := s.Scan(&q.ID, &q.LectureID, &q.Question, &q.Answer, &q.QuestionType, &q.Difficulty, &q.Fallback, &q.GeneratedAt); err != nil {
		return nil, err
	}
	return &q, nil
}
