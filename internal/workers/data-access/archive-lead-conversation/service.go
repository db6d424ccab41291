package archiveleadconversation

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/models"
)

// Re-archiving the same transcript keeps the original id and refreshes the
// lead data. A later run without a CRM id does not erase an earlier one.
const upsertConversationSQL = `
INSERT INTO lead_conversations (
    id, transcript_sha256, transcript, lead_fields, score_total, priority, crm_lead_id, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
ON CONFLICT (transcript_sha256) DO UPDATE SET
    lead_fields = EXCLUDED.lead_fields,
    score_total = EXCLUDED.score_total,
    priority    = EXCLUDED.priority,
    crm_lead_id = COALESCE(EXCLUDED.crm_lead_id, lead_conversations.crm_lead_id),
    updated_at  = NOW()
RETURNING id`

type ServiceDependencies struct {
	DB     *sql.DB
	ES     *elasticsearch.Client
	Logger logger.Logger
}

type Service struct {
	config *Config
	db     *sql.DB
	es     *elasticsearch.Client
	logger logger.Logger
	now    func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		db:     deps.DB,
		es:     deps.ES,
		logger: deps.Logger,
		now:    time.Now,
	}
}

// Execute writes the conversation to Postgres and then, best effort, to the
// search index. Only the database write can fail the job.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	digest := models.TranscriptDigest(input.Transcript)

	archiveID, err := s.upsert(ctx, digest, input)
	if err != nil {
		return nil, errors.NewArchiveWriteFailedError(err).WithMetadata("transcriptSha256", digest)
	}

	output := &Output{ArchiveID: archiveID, TranscriptSHA256: digest}

	if s.es != nil && s.config.LeadIndex != "" {
		if err := s.index(ctx, archiveID, digest, input); err != nil {
			s.logger.Warn("Search indexing failed, archive kept", map[string]interface{}{
				"archiveId": archiveID,
				"index":     s.config.LeadIndex,
				"error":     errors.NewSearchIndexFailedError(s.config.LeadIndex, err).Details,
			})
		} else {
			output.Indexed = true
		}
	}

	s.logger.Info("Lead conversation archived", map[string]interface{}{
		"archiveId":        archiveID,
		"transcriptSha256": digest,
		"indexed":          output.Indexed,
		"crmLeadId":        input.CRMLeadID,
	})

	return output, nil
}

func (s *Service) upsert(ctx context.Context, digest string, input *Input) (string, error) {
	fields := input.LeadFields
	if fields == nil {
		fields = models.LeadFields{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal lead fields: %w", err)
	}

	var score sql.NullInt64
	if input.ScoreTotal != nil {
		score = sql.NullInt64{Int64: int64(*input.ScoreTotal), Valid: true}
	}
	priority := sql.NullString{String: string(input.Priority), Valid: input.Priority != ""}
	crmLeadID := sql.NullInt64{Int64: input.CRMLeadID, Valid: input.CRMLeadID > 0}

	var id string
	err = s.db.QueryRowContext(ctx, upsertConversationSQL,
		uuid.NewString(),
		digest,
		input.Transcript,
		string(fieldsJSON),
		score,
		priority,
		crmLeadID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert lead_conversations: %w", err)
	}
	return id, nil
}

func (s *Service) index(ctx context.Context, archiveID, digest string, input *Input) error {
	body, err := json.Marshal(searchDocument{
		ArchiveID:        archiveID,
		TranscriptSHA256: digest,
		Transcript:       input.Transcript,
		LeadFields:       input.LeadFields,
		ScoreTotal:       input.ScoreTotal,
		Priority:         string(input.Priority),
		CRMLeadID:        input.CRMLeadID,
		ArchivedAt:       s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal search document: %w", err)
	}

	res, err := s.es.Index(s.config.LeadIndex, bytes.NewReader(body),
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(digest),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index response: %s", res.Status())
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
