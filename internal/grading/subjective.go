package grading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Provider failure kinds. Both lead to the same fallback; they are kept
// apart so logs can tell an unreachable provider from a garbled answer.
var (
	ErrInvalidResponse = errors.New("invalid AI response")
	ErrTransport       = errors.New("score provider unreachable")
)

// ScoreProvider is an external judge returning a score for an essay.
type ScoreProvider interface {
	Name() string
	Score(ctx context.Context, req EssayRequest) (float64, error)
}

// OutcomeKind tags how a subjective score was produced.
type OutcomeKind string

const (
	OutcomeScored  OutcomeKind = "SCORED"
	OutcomeFloored OutcomeKind = "FLOORED"
)

// ProviderFailure records one failed provider attempt.
type ProviderFailure struct {
	Provider string
	Err      error
}

// Outcome is the result of subjective grading. Floored outcomes carry
// MinScore and the failures that led there.
type Outcome struct {
	Kind     OutcomeKind
	Score    float64
	Provider string
	Failures []ProviderFailure
}

const (
	DefaultAttemptTimeout = 20 * time.Second
	DefaultTotalBudget    = 45 * time.Second
)

// EssayGrader runs both essay modes. Subjective grading walks the provider
// list in order and floors to MinScore when every provider fails.
type EssayGrader struct {
	providers      []ScoreProvider
	attemptTimeout time.Duration
	totalBudget    time.Duration
	log            zerolog.Logger
}

// EssayOption customises an EssayGrader.
type EssayOption func(*EssayGrader)

// WithProviders sets the fallback order: primary first.
func WithProviders(providers ...ScoreProvider) EssayOption {
	return func(g *EssayGrader) {
		g.providers = g.providers[:0]
		for _, p := range providers {
			if p != nil {
				g.providers = append(g.providers, p)
			}
		}
	}
}

// WithTimeouts bounds each provider call and the whole sequence.
func WithTimeouts(attempt, total time.Duration) EssayOption {
	return func(g *EssayGrader) {
		if attempt > 0 {
			g.attemptTimeout = attempt
		}
		if total > 0 {
			g.totalBudget = total
		}
	}
}

// NewEssayGrader creates a new EssayGrader.
func NewEssayGrader(log zerolog.Logger, opts ...EssayOption) *EssayGrader {
	g := &EssayGrader{
		attemptTimeout: DefaultAttemptTimeout,
		totalBudget:    DefaultTotalBudget,
		log:            log.With().Str("component", "essay_grader").Logger(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GradeExact scores by token overlap; see the package-level GradeExact.
func (g *EssayGrader) GradeExact(req EssayRequest) (float64, error) {
	return GradeExact(req)
}

// GradeSubjective asks each provider in turn. It never returns an error:
// total failure yields MinScore so grading cannot block test completion.
func (g *EssayGrader) GradeSubjective(ctx context.Context, req EssayRequest) Outcome {
	out := Outcome{Kind: OutcomeFloored, Score: req.MinScore}

	if err := req.validate(); err != nil {
		g.log.Error().Err(err).Msg("Subjective grading request rejected, flooring score")
		out.Failures = append(out.Failures, ProviderFailure{Err: err})
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, g.totalBudget)
	defer cancel()

	for i, p := range g.providers {
		if err := ctx.Err(); err != nil {
			out.Failures = append(out.Failures, ProviderFailure{
				Provider: p.Name(),
				Err:      fmt.Errorf("%w: grading budget spent: %v", ErrTransport, err),
			})
			break
		}

		score, err := g.attempt(ctx, p, req)
		if err == nil {
			return Outcome{
				Kind:     OutcomeScored,
				Score:    score,
				Provider: p.Name(),
				Failures: out.Failures,
			}
		}

		out.Failures = append(out.Failures, ProviderFailure{Provider: p.Name(), Err: err})
		g.log.Warn().
			Err(err).
			Str("provider", p.Name()).
			Str("failure", failureKind(err)).
			Int("attempt", i+1).
			Msg("Score provider failed")
	}

	g.log.Error().
		Int("providers", len(g.providers)).
		Float64("floor", req.MinScore).
		Msg("All score providers failed, flooring score")
	return out
}

func (g *EssayGrader) attempt(ctx context.Context, p ScoreProvider, req EssayRequest) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	score, err := p.Score(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrTransport) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) || score < req.MinScore || score > req.MaxScore {
		return 0, fmt.Errorf("%w: score %v outside [%v, %v]", ErrInvalidResponse, score, req.MinScore, req.MaxScore)
	}
	return score, nil
}

func failureKind(err error) string {
	if errors.Is(err, ErrInvalidResponse) {
		return "invalid_response"
	}
	return "unreachable"
}
