package crmleadcreate

import (
	"lead-intake-workers/internal/common/validation"
)

const inputSchema = `{
  "type": "object",
  "required": ["leadFields"],
  "properties": {
    "leadFields": {"type": "object"},
    "scoreTotal": {"type": "integer"},
    "priority":   {"type": "string", "enum": ["", "1", "2", "3"]},
    "edits": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "stageId": {"type": "integer", "minimum": 0},
    "leadId":  {"type": "integer", "minimum": 0}
  }
}`

var inputValidator = validation.MustCompile(inputSchema)
