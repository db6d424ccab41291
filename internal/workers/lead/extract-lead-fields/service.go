package extractleadfields

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/llm"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/common/metrics"
	"lead-intake-workers/internal/models"
)

// Extractor pulls the lead attributes the human party stated in a transcript.
type Extractor struct {
	completer llm.Completer
	logger    logger.Logger
	timeout   time.Duration
}

func NewExtractor(completer llm.Completer, log logger.Logger, timeout time.Duration) *Extractor {
	return &Extractor{completer: completer, logger: log, timeout: timeout}
}

// Extract returns the populated fields, or nil when the completion failed or
// its output could not be used. Failures are logged, never returned.
func (e *Extractor) Extract(ctx context.Context, transcript string) models.LeadFields {
	fields, err := e.extract(ctx, transcript)
	if err != nil {
		stdErr := errors.Normalize(err)
		e.logger.Error("lead field extraction failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		metrics.LeadExtractions.WithLabelValues("failed").Inc()
		return nil
	}

	if len(fields) == 0 {
		metrics.LeadExtractions.WithLabelValues("absent").Inc()
	} else {
		metrics.LeadExtractions.WithLabelValues("extracted").Inc()
	}
	return fields
}

func (e *Extractor) extract(ctx context.Context, transcript string) (models.LeadFields, error) {
	start := time.Now()
	raw, err := e.completer.Complete(ctx, []llm.Message{
		llm.System(buildSystemPrompt()),
		llm.Human(buildHumanPrompt(transcript)),
	})
	metrics.LLMRequestDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		if stderrors.Is(err, llm.ErrTimeout) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewLLMTimeoutError("extract", e.timeout)
		}
		return nil, errors.NewExtractionFailedError(err)
	}

	return parseExtraction(raw)
}

// parseExtraction decodes a completion into normalized lead fields.
func parseExtraction(raw string) (models.LeadFields, error) {
	dec := json.NewDecoder(strings.NewReader(llm.Sanitize(raw)))
	dec.UseNumber()

	var decoded map[string]interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, errors.NewExtractionFailedError(fmt.Errorf("response is not a JSON object: %w", err))
	}
	if decoded == nil {
		return nil, errors.NewExtractionFailedError(fmt.Errorf("response is null"))
	}

	fields, err := models.NormalizeLeadFields(decoded)
	if err != nil {
		return nil, errors.NewExtractionFailedError(err)
	}
	return fields, nil
}
