package checkleadpriority

import "lead-intake-workers/internal/models"

type Input struct {
	ScoreTotal int               `json:"scoreTotal"`
	Scored     bool              `json:"scored"`
	LeadFields models.LeadFields `json:"leadFields,omitempty"`
}

type Output struct {
	Priority models.Priority `json:"priority"`
	Urgent   bool            `json:"urgent"`
}

const inputSchema = `{
  "type": "object",
  "required": ["scoreTotal"],
  "properties": {
    "scoreTotal": {"type": "integer"},
    "scored":     {"type": "boolean"},
    "leadFields": {"type": ["object", "null"]}
  }
}`
