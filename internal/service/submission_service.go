package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/model"
)

// ErrQuestionTypeMismatch is returned when an answer shape does not match
// the question it targets.
var ErrQuestionTypeMismatch = errors.New("answer does not match question type")

// EssayJob identifies one essay revision awaiting subjective grading.
type EssayJob struct {
	AnswerID uuid.UUID `json:"answer_id"`
	Revision int       `json:"revision"`
}

// EssayQueue hands subjective essays to the background grader.
type EssayQueue interface {
	Enqueue(ctx context.Context, job EssayJob) error
}

// SubmissionService is the single write path for answers: the store gates
// every write on the participant being in progress, then the matching grader
// scores the stored revision.
type SubmissionService struct {
	store  Store
	choice *grading.ChoiceGrader
	multi  *grading.MultipleSelectGrader
	essay  *grading.EssayGrader
	queue  EssayQueue
	log    zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService. A nil queue grades
// subjective essays inline.
func NewSubmissionService(store Store, essay *grading.EssayGrader, queue EssayQueue, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		store:  store,
		choice: grading.NewChoiceGrader(store),
		multi:  grading.NewMultipleSelectGrader(store),
		essay:  essay,
		queue:  queue,
		log:    log.With().Str("component", "submission_service").Logger(),
	}
}

func (s *SubmissionService) question(ctx context.Context, id uuid.UUID, want model.QuestionType) (*model.Question, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	if q.QuestionType != want {
		return nil, fmt.Errorf("%w: question %s is %s, not %s", ErrQuestionTypeMismatch, id, q.QuestionType, want)
	}
	return q, nil
}

// SelectChoice records and grades a single-choice answer.
func (s *SubmissionService) SelectChoice(ctx context.Context, participantID, questionID, optionID uuid.UUID) (*model.Answer, error) {
	if _, err := s.question(ctx, questionID, model.QuestionTypeChoice); err != nil {
		return nil, err
	}

	grade, err := s.choice.Grade(ctx, optionID)
	if err != nil {
		return nil, err
	}
	if grade.QuestionID != questionID {
		return nil, fmt.Errorf("%w: option %s", grading.ErrCrossQuestionMismatch, optionID)
	}

	a, err := s.store.SaveChoiceAnswer(ctx, participantID, questionID, optionID)
	if err != nil {
		return nil, fmt.Errorf("save choice answer: %w", err)
	}
	return s.score(ctx, a, grade.Score)
}

// SetMultipleSelect replaces the selected set and grades it. An empty
// selection fails with grading.ErrNoSelection and is not stored.
func (s *SubmissionService) SetMultipleSelect(ctx context.Context, participantID, questionID uuid.UUID, optionIDs []uuid.UUID) (*model.Answer, error) {
	if _, err := s.question(ctx, questionID, model.QuestionTypeMultipleSelect); err != nil {
		return nil, err
	}

	grade, err := s.multi.Grade(ctx, optionIDs)
	if err != nil {
		return nil, err
	}
	if grade.QuestionID != questionID {
		return nil, fmt.Errorf("%w: options belong to question %s", grading.ErrCrossQuestionMismatch, grade.QuestionID)
	}

	a, err := s.store.SaveMultipleSelectAnswer(ctx, participantID, questionID, optionIDs)
	if err != nil {
		return nil, fmt.Errorf("save multiple select answer: %w", err)
	}
	return s.score(ctx, a, grade.Score)
}

// ToggleMultipleSelect flips one option in the selected set and regrades the
// resulting set. Toggling the last option off leaves an empty set scored 0.
func (s *SubmissionService) ToggleMultipleSelect(ctx context.Context, participantID, questionID, optionID uuid.UUID) (*model.Answer, error) {
	if _, err := s.question(ctx, questionID, model.QuestionTypeMultipleSelect); err != nil {
		return nil, err
	}

	opt, err := s.store.GetOption(ctx, optionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", grading.ErrUnknownOption, optionID)
		}
		return nil, fmt.Errorf("get option: %w", err)
	}
	if opt.QuestionID != questionID {
		return nil, fmt.Errorf("%w: option %s", grading.ErrCrossQuestionMismatch, optionID)
	}

	a, err := s.store.ToggleMultipleSelectOption(ctx, participantID, questionID, optionID)
	if err != nil {
		return nil, fmt.Errorf("toggle option: %w", err)
	}

	if len(a.OptionIDs) == 0 {
		return s.score(ctx, a, 0)
	}
	grade, err := s.multi.Grade(ctx, a.OptionIDs)
	if err != nil {
		return nil, fmt.Errorf("grade toggled selection: %w", err)
	}
	return s.score(ctx, a, grade.Score)
}

// SetEssayText records an essay. EXACT questions are scored before the write
// so a broken answer key rejects the submission instead of leaving it
// ungraded. SUBJECTIVE questions are queued, or graded inline without a
// queue.
func (s *SubmissionService) SetEssayText(ctx context.Context, participantID, questionID uuid.UUID, text string) (*model.Answer, error) {
	q, err := s.question(ctx, questionID, model.QuestionTypeEssay)
	if err != nil {
		return nil, err
	}
	req := essayRequest(q, text)

	if q.EssayMode != model.EssayModeSubjective {
		score, err := s.essay.GradeExact(req)
		if err != nil {
			return nil, err
		}
		a, err := s.store.SaveEssayAnswer(ctx, participantID, questionID, text)
		if err != nil {
			return nil, fmt.Errorf("save essay answer: %w", err)
		}
		return s.score(ctx, a, score)
	}

	a, err := s.store.SaveEssayAnswer(ctx, participantID, questionID, text)
	if err != nil {
		return nil, fmt.Errorf("save essay answer: %w", err)
	}

	if s.queue != nil {
		err := s.queue.Enqueue(ctx, EssayJob{AnswerID: a.ID, Revision: a.Revision})
		if err == nil {
			return a, nil
		}
		s.log.Warn().Err(err).Str("answer_id", a.ID.String()).Msg("Essay enqueue failed, grading inline")
	}

	outcome, err := s.gradeSubjective(ctx, a, q)
	switch {
	case err == nil:
		a.Score = &outcome.Score
	case errors.Is(err, model.ErrStaleAnswer):
	default:
		return nil, err
	}
	return a, nil
}

// GradeEssay scores a queued essay revision with the subjective grader. It
// returns model.ErrStaleAnswer when the essay has been rewritten since the
// job was queued; the newer revision has its own job.
func (s *SubmissionService) GradeEssay(ctx context.Context, job EssayJob) (grading.Outcome, error) {
	a, err := s.store.GetAnswer(ctx, job.AnswerID)
	if err != nil {
		return grading.Outcome{}, fmt.Errorf("get answer: %w", err)
	}
	if a.Revision != job.Revision {
		return grading.Outcome{}, model.ErrStaleAnswer
	}

	q, err := s.question(ctx, a.QuestionID, model.QuestionTypeEssay)
	if err != nil {
		return grading.Outcome{}, err
	}
	return s.gradeSubjective(ctx, a, q)
}

func (s *SubmissionService) gradeSubjective(ctx context.Context, a *model.Answer, q *model.Question) (grading.Outcome, error) {
	outcome := s.essay.GradeSubjective(ctx, essayRequest(q, a.EssayText))
	if err := s.store.SetAnswerScore(ctx, a.ID, a.Revision, outcome.Score); err != nil {
		return outcome, fmt.Errorf("set essay score: %w", err)
	}

	s.log.Debug().
		Str("answer_id", a.ID.String()).
		Str("outcome", string(outcome.Kind)).
		Str("provider", outcome.Provider).
		Float64("score", outcome.Score).
		Msg("Essay graded")
	return outcome, nil
}

func essayRequest(q *model.Question, text string) grading.EssayRequest {
	return grading.EssayRequest{
		Answer:    text,
		AnswerKey: q.AnswerKey,
		MinScore:  q.MinScore,
		MaxScore:  q.MaxScore,
	}
}

// score persists the grade for the revision just written. If a newer write
// landed in between, that write owns the score and this one is dropped.
func (s *SubmissionService) score(ctx context.Context, a *model.Answer, score float64) (*model.Answer, error) {
	err := s.store.SetAnswerScore(ctx, a.ID, a.Revision, score)
	switch {
	case err == nil:
		a.Score = &score
	case errors.Is(err, model.ErrStaleAnswer):
		s.log.Debug().
			Str("answer_id", a.ID.String()).
			Int("revision", a.Revision).
			Msg("Answer rewritten before scoring, score dropped")
	default:
		return nil, fmt.Errorf("set answer score: %w", err)
	}
	return a, nil
}

// ScoreSummary totals a participant's graded answers against the test's
// maximum attainable score.
func (s *SubmissionService) ScoreSummary(ctx context.Context, participantID uuid.UUID) (*model.ScoreSummary, error) {
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}

	questions, err := s.store.ListQuestionsByTest(ctx, p.TestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.store.ListAnswers(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	sum := &model.ScoreSummary{ParticipantID: participantID}
	for _, q := range questions {
		sum.MaxTotal += q.MaxScore
	}
	for _, a := range answers {
		if a.Score == nil {
			sum.Pending++
			continue
		}
		sum.Graded++
		sum.Total += *a.Score
	}
	return sum, nil
}
