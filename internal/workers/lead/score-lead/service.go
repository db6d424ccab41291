package scorelead

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/llm"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
)

// Scorer applies the lead rubric to a transcript.
type Scorer struct {
	completer llm.Completer
	cache     ScoreCache
	logger    logger.Logger
	timeout   time.Duration
}

// NewScorer builds a Scorer. cache may be nil.
func NewScorer(completer llm.Completer, cache ScoreCache, log logger.Logger, timeout time.Duration) *Scorer {
	return &Scorer{completer: completer, cache: cache, logger: log, timeout: timeout}
}

// Score returns score_total, or nil when the completion failed or its output
// could not be read. Failures are logged, never returned.
func (s *Scorer) Score(ctx context.Context, transcript string) *int {
	if score, ok := s.cached(ctx, transcript); ok {
		metrics.LeadScores.WithLabelValues("cached").Inc()
		return &score
	}

	score, err := s.score(ctx, transcript)
	if err != nil {
		stdErr := errors.Normalize(err)
		s.logger.Error("lead scoring failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		metrics.LeadScores.WithLabelValues("failed").Inc()
		return nil
	}

	metrics.LeadScores.WithLabelValues("scored").Inc()
	metrics.LeadScoreValue.Observe(float64(score))

	if s.cache != nil {
		if err := s.cache.Set(ctx, transcript, score); err != nil {
			s.logger.Warn("score cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return &score
}

func (s *Scorer) cached(ctx context.Context, transcript string) (int, bool) {
	if s.cache == nil {
		return 0, false
	}
	score, found, err := s.cache.Get(ctx, transcript)
	if err != nil {
		s.logger.Warn("score cache read failed", map[string]interface{}{"error": err.Error()})
		return 0, false
	}
	return score, found
}

func (s *Scorer) score(ctx context.Context, transcript string) (int, error) {
	start := time.Now()
	raw, err := s.completer.Complete(ctx, []llm.Message{
		llm.System(systemPrompt),
		llm.Human(buildHumanPrompt(transcript)),
	})
	metrics.LLMRequestDuration.WithLabelValues("score").Observe(time.Since(start).Seconds())
	if err != nil {
		if stderrors.Is(err, llm.ErrTimeout) || stderrors.Is(err, context.DeadlineExceeded) {
			return 0, errors.NewLLMTimeoutError("score", s.timeout)
		}
		return 0, errors.NewScoringFailedError(err)
	}

	return parseScore(raw)
}

// parseScore reads {"score_total": N} out of a completion. N must be a whole
// number; it is not clamped.
func parseScore(raw string) (int, error) {
	dec := json.NewDecoder(strings.NewReader(llm.Sanitize(raw)))
	dec.UseNumber()

	var decoded map[string]interface{}
	if err := dec.Decode(&decoded); err != nil {
		return 0, errors.NewScoringFailedError(fmt.Errorf("response is not a JSON object: %w", err))
	}

	v, ok := decoded["score_total"]
	if !ok {
		return 0, errors.NewScoringFailedError(fmt.Errorf("score_total is missing"))
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, errors.NewScoringFailedError(fmt.Errorf("score_total is %T, not a number", v))
	}

	i, err := num.Int64()
	if err != nil {
		f, ferr := num.Float64()
		if ferr != nil || f != math.Trunc(f) {
			return 0, errors.NewScoringFailedError(fmt.Errorf("score_total %s is not an integer", num))
		}
		// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, errors.NewScoringFailedError(fmt.Errorf("score_total %s is out of range", num))
		}
		i = int64(f)
	}
	if i < math.MinInt || i > math.MaxInt {
		return 0, errors.NewScoringFailedError(fmt.Errorf("score_total %s is out of range", num))
	}
	return int(i), nil
}
