package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		var got string
		if err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if strings.ToLower(got) != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []string{"lectures", "qas", "student_answers", "llm_request_events", "global_sequence"} {
		var got string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&got)
		if err != nil {
			t.Errorf("table %s: %v", name, err)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.LectureRepo().Upsert(ctx, &Lecture{ID: "1", Filename: "a.txt"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	l, err := s.LectureRepo().Get(ctx, "1")
	if err != nil || l == nil {
		t.Fatalf("get after reopen: %v %v", l, err)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := newSequenceCounter(s.DB())
	if err != nil {
		t.Fatalf("new sequence counter: %v", err)
	}
	for i := 1; i <= 5; i++ {
		seq, err := sc.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if seq != int64(i) {
			t.Errorf("seq = %d, want %d", seq, i)
		}
	}
}

func TestLectureRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.LectureRepo()
	ctx := context.Background()

	missing, err := repo.Get(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing lecture")
	}

	lec := &Lecture{ID: "42", Filename: "os.pdf", FilePath: "/tmp/os.pdf"}
	if err := repo.Upsert(ctx, lec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := repo.Get(ctx, "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	uploaded := got.UploadedAt

	time.Sleep(5 * time.Millisecond)
	if err := repo.Upsert(ctx, &Lecture{ID: "42", Filename: "os-v2.pdf", FilePath: "/tmp/os-v2.pdf", Status: StatusProcessing}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _ = repo.Get(ctx, "42")
	if got.Filename != "os-v2.pdf" || got.Status != StatusProcessing {
		t.Errorf("upsert did not replace fields: %+v", got)
	}
	if !got.UploadedAt.Equal(uploaded) {
		t.Errorf("uploaded_at changed from %v to %v", uploaded, got.UploadedAt)
	}

	if err := repo.SetStatus(ctx, "42", StatusReady, 12, ""); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ = repo.Get(ctx, "42")
	if got.Status != StatusReady || got.ChunkCount != 12 {
		t.Errorf("after SetStatus: %+v", got)
	}

	if err := repo.SetStatus(ctx, "missing", StatusFailed, 0, "x"); err == nil {
		t.Error("expected error for unknown lecture")
	}

	if err := repo.Upsert(ctx, &Lecture{ID: "7", Filename: "net.txt"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list len = %d, want 2", len(all))
	}
}

func seedLecture(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.LectureRepo().Upsert(context.Background(), &Lecture{ID: id, Filename: id + ".txt"}); err != nil {
		t.Fatalf("seed lecture: %v", err)
	}
}

func TestQARepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.QARepo()
	ctx := context.Background()
	seedLecture(t, s, "1")

	saved, err := repo.SaveItems(ctx, "1", []QA{
		{Question: "What is a process?", Answer: "A running program.", QuestionType: "short_answer", Difficulty: "easy"},
		{Question: "Which is a scheduler?", Answer: "A) FIFO\nB) RAM\n\nCorrect: A", QuestionType: "multiple_choice", Difficulty: "medium", Fallback: true},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved) != 2 || saved[0].ID == 0 || saved[1].ID <= saved[0].ID {
		t.Fatalf("unexpected ids: %+v", saved)
	}

	list, err := repo.ListByLecture(ctx, "1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list len = %d", len(list))
	}
	if list[1].Answer != "A) FIFO\nB) RAM\n\nCorrect: A" || !list[1].Fallback {
		t.Errorf("round trip mismatch: %+v", list[1])
	}

	one, err := repo.Get(ctx, saved[0].ID)
	if err != nil || one == nil {
		t.Fatalf("get: %v %v", one, err)
	}
	if one.LectureID != "1" {
		t.Errorf("lecture id = %q", one.LectureID)
	}

	none, err := repo.Get(ctx, 9999)
	if err != nil || none != nil {
		t.Fatalf("expected nil, nil for missing qa, got %v %v", none, err)
	}

	if _, err := repo.SaveItems(ctx, "no-such-lecture", []QA{{Question: "q"}}); err == nil {
		t.Error("expected foreign key failure for unknown lecture")
	}
}

func TestAnswerRepoStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedLecture(t, s, "1")
	seedLecture(t, s, "2")

	items, err := s.QARepo().SaveItems(ctx, "1", []QA{
		{Question: "q1", Answer: "a", QuestionType: "short_answer", Difficulty: "easy"},
		{Question: "q2", Answer: "a", QuestionType: "short_answer", Difficulty: "easy"},
		{Question: "q3", Answer: "a", QuestionType: "essay", Difficulty: "hard"},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	other, err := s.QARepo().SaveItems(ctx, "2", []QA{{Question: "q4", Answer: "a", QuestionType: "short_answer", Difficulty: "medium"}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	answers := s.AnswerRepo()
	record := func(qaID int, user string, ok bool) {
		t.Helper()
		a := &StudentAnswer{QAID: qaID, UserID: user, AnswerText: "x", IsCorrect: ok}
		if err := answers.Record(ctx, a); err != nil {
			t.Fatalf("record: %v", err)
		}
		if a.ID == 0 {
			t.Fatal("expected answer id")
		}
	}
	record(items[0].ID, "alice", true)
	record(items[1].ID, "alice", false)
	record(items[2].ID, "alice", true)
	record(items[0].ID, "bob", true)
	record(other[0].ID, "alice", false)

	stats, err := answers.LectureStats(ctx, "1")
	if err != nil {
		t.Fatalf("lecture stats: %v", err)
	}
	if stats.TotalQuestions != 3 || stats.TotalAnswers != 4 || stats.CorrectAnswers != 3 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.AccuracyRate != 0.75 {
		t.Errorf("accuracy = %v, want 0.75", stats.AccuracyRate)
	}
	easy := stats.ByDifficulty["easy"]
	if easy.Questions != 2 || easy.Answers != 3 || easy.Correct != 2 {
		t.Errorf("easy breakdown = %+v", easy)
	}
	if hard := stats.ByDifficulty["hard"]; hard.AccuracyRate != 1 {
		t.Errorf("hard breakdown = %+v", hard)
	}

	empty, err := answers.LectureStats(ctx, "nothing")
	if err != nil {
		t.Fatalf("empty stats: %v", err)
	}
	if empty.TotalQuestions != 0 || empty.AccuracyRate != 0 {
		t.Errorf("expected zero stats, got %+v", empty)
	}

	progress, err := answers.StudentProgress(ctx, "alice")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Answered != 4 || progress.Correct != 2 || progress.AccuracyRate != 0.5 {
		t.Errorf("progress = %+v", progress)
	}
	if len(progress.ByLecture) != 2 || progress.ByLecture[0].LectureID != "1" || progress.ByLecture[0].Answered != 3 {
		t.Errorf("per lecture = %+v", progress.ByLecture)
	}
}

func TestEventRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "openai", Model: "gpt-4o", Purpose: "qa-gen", InputTokens: 100, OutputTokens: 50, LatencyMs: 200, Success: true, RequestBody: "[user]\nhi", ResponseBody: "Question: q"},
		{Provider: "openai", Model: "gpt-4o", Purpose: "qa-gen", InputTokens: 300, OutputTokens: 70, LatencyMs: 400, Success: false, ErrorMessage: "boom"},
		{Provider: "openai", Model: "text-embedding-3-small", Purpose: "embed", InputTokens: 40, LatencyMs: 30, Success: true},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events", len(all))
	}
	if all[0].Purpose != "embed" || all[0].Sequence <= all[1].Sequence {
		t.Errorf("expected newest first, got %+v", all[0])
	}

	limited, _ := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d", len(limited))
	}
	gen, _ := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "qa-gen"})
	if len(gen) != 2 {
		t.Errorf("purpose filter: %d", len(gen))
	}

	first, err := repo.GetLLMEvent(ctx, all[2].ID)
	if err != nil || first == nil {
		t.Fatalf("get: %v %v", first, err)
	}
	if first.RequestBody != "[user]\nhi" || first.ResponseBody != "Question: q" {
		t.Errorf("bodies not stored: %+v", first)
	}
	if missing, err := repo.GetLLMEvent(ctx, 12345); err != nil || missing != nil {
		t.Errorf("expected nil for missing event")
	}

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage by purpose: %v", err)
	}
	if len(byPurpose) != 2 {
		t.Fatalf("purposes = %+v", byPurpose)
	}
	qa := byPurpose[1]
	if qa.Purpose != "qa-gen" || qa.Calls != 2 || qa.InputTokens != 400 || qa.OutputTokens != 120 || qa.AvgLatencyMs != 300 {
		t.Errorf("qa-gen usage = %+v", qa)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 || byModel[0].Model != "gpt-4o" {
		t.Errorf("models = %+v", byModel)
	}
}
