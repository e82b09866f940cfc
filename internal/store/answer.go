package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

type answerRepo struct {
	db *sql.DB
}

func (r *answerRepo) Record(ctx context.Context, a *StudentAnswer) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now().UTC()
	}
	query, args := sqlite().Insert(studentAnswersTable.Name).
		Columns("qa_id", "user_id", "answer_text", "is_correct", "answered_at").
		Values(a.QAID, a.UserID, a.AnswerText, a.IsCorrect, a.AnsweredAt).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("record answer for qa %d: %w", a.QAID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("answer id: %w", err)
	}
	a.ID = int(id)
	return nil
}

func (r *answerRepo) LectureStats(ctx context.Context, lectureID string) (*LectureStats, error) {
	stats := &LectureStats{
		LectureID:    lectureID,
		ByDifficulty: make(map[string]DifficultyStats),
	}

	b := sqlite()
	qas := b.Table(qasTable.Name)
	query, args := b.Select(qas.C("difficulty"), entsql.Count("*")).
		From(qas).
		Where(entsql.EQ(qas.C("lecture_id"), lectureID)).
		GroupBy(qas.C("difficulty")).
		Query()
	err := r.each(ctx, query, args, func(rows *sql.Rows) error {
		var difficulty string
		var n int
		if err := rows.Scan(&difficulty, &n); err != nil {
			return err
		}
		d := stats.ByDifficulty[difficulty]
		d.Questions = n
		stats.ByDifficulty[difficulty] = d
		stats.TotalQuestions += n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	answers := b.Table(studentAnswersTable.Name)
	query, args = b.Select(qas.C("difficulty"), entsql.Count(answers.C("id")), entsql.Sum(answers.C("is_correct"))).
		From(answers).
		Join(qas).On(answers.C("qa_id"), qas.C("id")).
		Where(entsql.EQ(qas.C("lecture_id"), lectureID)).
		GroupBy(qas.C("difficulty")).
		Query()
	err = r.each(ctx, query, args, func(rows *sql.Rows) error {
		var difficulty string
		var n int
		var correct sql.NullInt64
		if err := rows.Scan(&difficulty, &n, &correct); err != nil {
			return err
		}
		d := stats.ByDifficulty[difficulty]
		d.Answers = n
		d.Correct = int(correct.Int64)
		d.AccuracyRate = rate(d.Correct, d.Answers)
		stats.ByDifficulty[difficulty] = d
		stats.TotalAnswers += n
		stats.CorrectAnswers += d.Correct
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}

	stats.AccuracyRate = rate(stats.CorrectAnswers, stats.TotalAnswers)
	return stats, nil
}

func (r *answerRepo) StudentProgress(ctx context.Context, userID string) (*StudentProgress, error) {
	progress := &StudentProgress{UserID: userID}

	b := sqlite()
	qas := b.Table(qasTable.Name)
	answers := b.Table(studentAnswersTable.Name)
	query, args := b.Select(qas.C("lecture_id"), entsql.Count(answers.C("id")), entsql.Sum(answers.C("is_correct"))).
		From(answers).
		Join(qas).On(answers.C("qa_id"), qas.C("id")).
		Where(entsql.EQ(answers.C("user_id"), userID)).
		GroupBy(qas.C("lecture_id")).
		OrderBy(qas.C("lecture_id")).
		Query()
	err := r.each(ctx, query, args, func(rows *sql.Rows) error {
		var lp LectureProgress
		var correct sql.NullInt64
		if err := rows.Scan(&lp.LectureID, &lp.Answered, &correct); err != nil {
			return err
		}
		lp.Correct = int(correct.Int64)
		progress.ByLecture = append(progress.ByLecture, lp)
		progress.Answered += lp.Answered
		progress.Correct += lp.Correct
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("student progress: %w", err)
	}

	progress.AccuracyRate = rate(progress.Correct, progress.Answered)
	return progress, nil
}

func (r *answerRepo) each(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func rate(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
