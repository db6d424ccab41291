package archiveleadconversation

import (
	"lead-intake-workers/internal/common/validation"
	"lead-intake-workers/internal/models"
)

type Input struct {
	Transcript string            `json:"transcript"`
	LeadFields models.LeadFields `json:"leadFields"`
	ScoreTotal *int              `json:"scoreTotal,omitempty"`
	Priority   models.Priority   `json:"priority"`
	CRMLeadID  int64             `json:"crmLeadId"`
}

type Output struct {
	ArchiveID        string `json:"archiveId"`
	TranscriptSHA256 string `json:"transcriptSha256"`
	Indexed          bool   `json:"indexed"`
}

// searchDocument is the Elasticsearch body; field names follow the index mapping.
type searchDocument struct {
	ArchiveID        string            `json:"archive_id"`
	TranscriptSHA256 string            `json:"transcript_sha256"`
	Transcript       string            `json:"transcript"`
	LeadFields       models.LeadFields `json:"lead_fields"`
	ScoreTotal       *int              `json:"score_total,omitempty"`
	Priority         string            `json:"priority,omitempty"`
	CRMLeadID        int64             `json:"crm_lead_id,omitempty"`
	ArchivedAt       string            `json:"archived_at"`
}

const inputSchema = `{
	"type": "object",
	"required": ["transcript"],
	"properties": {
		"transcript": {"type": "string", "minLength": 1},
		"leadFields": {"type": ["object", "null"]},
		"scoreTotal": {"type": ["integer", "null"]},
		"priority": {"type": "string", "enum": ["", "1", "2", "3"]},
		"crmLeadId": {"type": "integer", "minimum": 0}
	}
}`

var inputValidator = validation.MustCompile(inputSchema)
