package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/database"
	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/joincode"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := sqlite.NewStore(ctx, db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func newGenerator(t *testing.T, checker joincode.Checker) *joincode.Generator {
	t.Helper()
	gen, err := joincode.NewGenerator(joincode.DefaultConfig(), checker, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	return gen
}

// stubProvider returns a fixed score or error.
type stubProvider struct {
	name  string
	score float64
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Score(_ context.Context, _ grading.EssayRequest) (float64, error) {
	p.calls++
	return p.score, p.err
}

// fakeQueue records jobs instead of pushing them to redis.
type fakeQueue struct {
	jobs []EssayJob
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job EssayJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type world struct {
	store       *sqlite.Store
	test        *model.Test
	choice      *model.Question
	multi       *model.Question
	exact       *model.Question
	subjective  *model.Question
	correct     *model.Option
	wrong       *model.Option
	multiA      *model.Option
	multiB      *model.Option
	multiC      *model.Option
	participant *model.Participant
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	w := &world{store: newStore(t)}
	s := w.store

	w.test = &model.Test{Title: "Kimia", JoinCode: "KMA234"}
	must(t, s.CreateTest(ctx, w.test))

	w.choice = &model.Question{TestID: w.test.ID, QuestionText: "c", QuestionType: model.QuestionTypeChoice, MaxScore: 4, OrderNum: 1}
	w.multi = &model.Question{TestID: w.test.ID, QuestionText: "m", QuestionType: model.QuestionTypeMultipleSelect, MaxScore: 6, OrderNum: 2}
	w.exact = &model.Question{TestID: w.test.ID, QuestionText: "e", QuestionType: model.QuestionTypeEssay, MaxScore: 10,
		EssayMode: model.EssayModeExact, AnswerKey: "the quick brown fox jumps", OrderNum: 3}
	w.subjective = &model.Question{TestID: w.test.ID, QuestionText: "s", QuestionType: model.QuestionTypeEssay, MinScore: 1, MaxScore: 10,
		EssayMode: model.EssayModeSubjective, AnswerKey: "photosynthesis", OrderNum: 4}
	for _, q := range []*model.Question{w.choice, w.multi, w.exact, w.subjective} {
		must(t, s.CreateQuestion(ctx, q))
	}

	w.correct = &model.Option{QuestionID: w.choice.ID, OptionText: "a", IsCorrect: true}
	w.wrong = &model.Option{QuestionID: w.choice.ID, OptionText: "b"}
	w.multiA = &model.Option{QuestionID: w.multi.ID, OptionText: "x", IsCorrect: true}
	w.multiB = &model.Option{QuestionID: w.multi.ID, OptionText: "y", IsCorrect: true}
	w.multiC = &model.Option{QuestionID: w.multi.ID, OptionText: "z"}
	for _, o := range []*model.Option{w.correct, w.wrong, w.multiA, w.multiB, w.multiC} {
		must(t, s.CreateOption(ctx, o))
	}

	w.participant = &model.Participant{TestID: w.test.ID, Name: "Sari"}
	must(t, s.CreateParticipant(ctx, w.participant))
	return w
}

func scoreOf(t *testing.T, a *model.Answer) float64 {
	t.Helper()
	if a.Score == nil {
		t.Fatalf("answer %s has no score", a.ID)
	}
	return *a.Score
}

func (w *world) submissions(queue EssayQueue, providers ...grading.ScoreProvider) *SubmissionService {
	essay := grading.NewEssayGrader(zerolog.Nop(), grading.WithProviders(providers...))
	return NewSubmissionService(w.store, essay, queue, zerolog.Nop())
}

func TestSubmissionRejectsMismatches(t *testing.T) {
	w := newWorld(t)
	svc := w.submissions(nil)
	ctx := context.Background()
	pid := w.participant.ID

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{
			name: "choice option of another question",
			call: func() error {
				_, err := svc.SelectChoice(ctx, pid, w.choice.ID, w.multiA.ID)
				return err
			},
			wantErr: grading.ErrCrossQuestionMismatch,
		},
		{
			name: "choice unknown option",
			call: func() error {
				_, err := svc.SelectChoice(ctx, pid, w.choice.ID, uuid.New())
				return err
			},
			wantErr: grading.ErrUnknownOption,
		},
		{
			name: "choice on multiple select question",
			call: func() error {
				_, err := svc.SelectChoice(ctx, pid, w.multi.ID, w.multiA.ID)
				return err
			},
			wantErr: ErrQuestionTypeMismatch,
		},
		{
			name: "unknown question",
			call: func() error {
				_, err := svc.SelectChoice(ctx, pid, uuid.New(), w.correct.ID)
				return err
			},
			wantErr: model.ErrNotFound,
		},
		{
			name: "multiple select empty",
			call: func() error {
				_, err := svc.SetMultipleSelect(ctx, pid, w.multi.ID, nil)
				return err
			},
			wantErr: grading.ErrNoSelection,
		},
		{
			name: "multiple select unknown ids",
			call: func() error {
				_, err := svc.SetMultipleSelect(ctx, pid, w.multi.ID, []uuid.UUID{w.multiA.ID, uuid.New()})
				return err
			},
			wantErr: grading.ErrUnknownOptions,
		},
		{
			name: "multiple select across questions",
			call: func() error {
				_, err := svc.SetMultipleSelect(ctx, pid, w.multi.ID, []uuid.UUID{w.multiA.ID, w.correct.ID})
				return err
			},
			wantErr: grading.ErrCrossQuestionMismatch,
		},
		{
			name: "toggle option of another question",
			call: func() error {
				_, err := svc.ToggleMultipleSelect(ctx, pid, w.multi.ID, w.correct.ID)
				return err
			},
			wantErr: grading.ErrCrossQuestionMismatch,
		},
		{
			name: "essay on choice question",
			call: func() error {
				_, err := svc.SetEssayText(ctx, pid, w.choice.ID, "a")
				return err
			},
			wantErr: ErrQuestionTypeMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	answers, err := w.store.ListAnswers(ctx, pid)
	if err != nil {
		t.Fatalf("ListAnswers() error = %v", err)
	}
	if len(answers) != 0 {
		t.Errorf("rejected submissions stored %d answers", len(answers))
	}
}

func TestSelectChoiceScores(t *testing.T) {
	w := newWorld(t)
	svc := w.submissions(nil)
	ctx := context.Background()

	a, err := svc.SelectChoice(ctx, w.participant.ID, w.choice.ID, w.wrong.ID)
	if err != nil {
		t.Fatalf("SelectChoice() error = %v", err)
	}
	if got := scoreOf(t, a); got != 0 {
		t.Errorf("wrong option score = %v, want 0", got)
	}

	a, err = svc.SelectChoice(ctx, w.participant.ID, w.choice.ID, w.correct.ID)
	if err != nil {
		t.Fatalf("SelectChoice() error = %v", err)
	}
	if got := scoreOf(t, a); got != 4 {
		t.Errorf("correct option score = %v, want 4", got)
	}

	stored, err := w.store.GetAnswer(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAnswer() error = %v", err)
	}
	if stored.Score == nil || *stored.Score != 4 {
		t.Errorf("stored score = %v, want 4", stored.Score)
	}
}

func TestMultipleSelectScores(t *testing.T) {
	w := newWorld(t)
	svc := w.submissions(nil)
	ctx := context.Background()
	pid := w.participant.ID

	tests := []struct {
		name string
		ids  []uuid.UUID
		want float64
	}{
		{name: "exact set", ids: []uuid.UUID{w.multiB.ID, w.multiA.ID}, want: 6},
		{name: "subset", ids: []uuid.UUID{w.multiA.ID}, want: 0},
		{name: "superset", ids: []uuid.UUID{w.multiA.ID, w.multiB.ID, w.multiC.ID}, want: 0},
		{name: "substitution", ids: []uuid.UUID{w.multiA.ID, w.multiC.ID}, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, err := svc.SetMultipleSelect(ctx, pid, w.multi.ID, tc.ids)
			if err != nil {
				t.Fatalf("SetMultipleSelect() error = %v", err)
			}
			if got := scoreOf(t, a); got != tc.want {
				t.Errorf("score = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestToggleMultipleSelectRegrades(t *testing.T) {
	w := newWorld(t)
	svc := w.submissions(nil)
	ctx := context.Background()
	pid := w.participant.ID

	steps := []struct {
		option uuid.UUID
		want   float64
	}{
		{w.multiA.ID, 0},
		{w.multiB.ID, 6},
		{w.multiC.ID, 0},
		{w.multiC.ID, 6},
		{w.multiA.ID, 0},
		{w.multiB.ID, 0},
	}

	for i, st := range steps {
		a, err := svc.ToggleMultipleSelect(ctx, pid, w.multi.ID, st.option)
		if err != nil {
			t.Fatalf("step %d: ToggleMultipleSelect() error = %v", i, err)
		}
		if got := scoreOf(t, a); got != st.want {
			t.Errorf("step %d: score = %v, want %v", i, got, st.want)
		}
	}
}

func TestSetEssayTextExact(t *testing.T) {
	w := newWorld(t)
	svc := w.submissions(nil)
	ctx := context.Background()

	a, err := svc.SetEssayText(ctx, w.participant.ID, w.exact.ID, "the quick fox")
	if err != nil {
		t.Fatalf("SetEssayText() error = %v", err)
	}
	if got := scoreOf(t, a); got != 6 {
		t.Errorf("score = %v, want 6", got)
	}

	blank := &model.Question{TestID: w.test.ID, QuestionText: "b", QuestionType: model.QuestionTypeEssay, MaxScore: 5, EssayMode: model.EssayModeExact, AnswerKey: "   "}
	must(t, w.store.CreateQuestion(ctx, blank))

	if _, err := svc.SetEssayText(ctx, w.participant.ID, blank.ID, "anything"); !errors.Is(err, grading.ErrInvalidAnswerKey) {
		t.Fatalf("SetEssayText() error = %v, want ErrInvalidAnswerKey", err)
	}
	answers, err := w.store.ListAnswers(ctx, w.participant.ID)
	if err != nil {
		t.Fatalf("ListAnswers() error = %v", err)
	}
	if len(answers) != 1 {
		t.Errorf("stored %d answers, want only the graded essay", len(answers))
	}
}

func TestSetEssayTextSubjectiveInline(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	primary := &stubProvider{name: "primary", err: grading.ErrTransport}
	secondary := &stubProvider{name: "secondary", score: 8}
	svc := w.submissions(nil, primary, secondary)

	a, err := svc.SetEssayText(ctx, w.participant.ID, w.subjective.ID, "light to sugar")
	if err != nil {
		t.Fatalf("SetEssayText() error = %v", err)
	}
	if got := scoreOf(t, a); got != 8 {
		t.Errorf("score = %v, want 8 from secondary", got)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls primary=%d secondary=%d, want 1 and 1", primary.calls, secondary.calls)
	}

	failing := w.submissions(nil, &stubProvider{name: "p", err: grading.ErrInvalidResponse}, &stubProvider{name: "s", err: grading.ErrTransport})
	a, err = failing.SetEssayText(ctx, w.participant.ID, w.subjective.ID, "light to sugar")
	if err != nil {
		t.Fatalf("SetEssayText() with failing providers error = %v", err)
	}
	if got := scoreOf(t, a); got != w.subjective.MinScore {
		t.Errorf("floored score = %v, want %v", got, w.subjective.MinScore)
	}
}

func TestSetEssayTextSubjectiveQueued(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	queue := &fakeQueue{}
	provider := &stubProvider{name: "primary", score: 7}
	svc := w.submissions(queue, provider)

	first, err := svc.SetEssayText(ctx, w.participant.ID, w.subjective.ID, "draft")
	if err != nil {
		t.Fatalf("SetEssayText() error = %v", err)
	}
	if first.Score != nil {
		t.Errorf("queued essay scored inline: %v", *first.Score)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times before the job ran", provider.calls)
	}

	second, err := svc.SetEssayText(ctx, w.participant.ID, w.subjective.ID, "final")
	if err != nil {
		t.Fatalf("SetEssayText() error = %v", err)
	}
	if len(queue.jobs) != 2 {
		t.Fatalf("queued %d jobs, want 2", len(queue.jobs))
	}

	if _, err := svc.GradeEssay(ctx, queue.jobs[0]); !errors.Is(err, model.ErrStaleAnswer) {
		t.Errorf("GradeEssay(stale job) error = %v, want ErrStaleAnswer", err)
	}

	outcome, err := svc.GradeEssay(ctx, queue.jobs[1])
	if err != nil {
		t.Fatalf("GradeEssay() error = %v", err)
	}
	if outcome.Kind != grading.OutcomeScored || outcome.Score != 7 {
		t.Errorf("outcome = %+v, want SCORED 7", outcome)
	}

	stored, err := w.store.GetAnswer(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetAnswer() error = %v", err)
	}
	if stored.Score == nil || *stored.Score != 7 {
		t.Errorf("stored score = %v, want 7", stored.Score)
	}
}

func TestSetEssayTextEnqueueFailureGradesInline(t *testing.T) {
	w := newWorld(t)
	svc := w.submissions(&fakeQueue{err: errors.New("redis down")}, &stubProvider{name: "primary", score: 5})

	a, err := svc.SetEssayText(context.Background(), w.participant.ID, w.subjective.ID, "text")
	if err != nil {
		t.Fatalf("SetEssayText() error = %v", err)
	}
	if got := scoreOf(t, a); got != 5 {
		t.Errorf("score = %v, want 5", got)
	}
}

func TestScoreSummary(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	queue := &fakeQueue{}
	svc := w.submissions(queue)
	pid := w.participant.ID

	_, err := svc.SelectChoice(ctx, pid, w.choice.ID, w.correct.ID)
	must(t, err)
	_, err = svc.SetEssayText(ctx, pid, w.exact.ID, "the quick fox")
	must(t, err)
	_, err = svc.SetEssayText(ctx, pid, w.subjective.ID, "pending")
	must(t, err)

	sum, err := svc.ScoreSummary(ctx, pid)
	if err != nil {
		t.Fatalf("ScoreSummary() error = %v", err)
	}
	if sum.Total != 10 || sum.MaxTotal != 30 || sum.Graded != 2 || sum.Pending != 1 {
		t.Errorf("ScoreSummary() = %+v, want total 10 of 30, 2 graded, 1 pending", sum)
	}

	if _, err := svc.ScoreSummary(ctx, uuid.New()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ScoreSummary(unknown) error = %v, want ErrNotFound", err)
	}
}
