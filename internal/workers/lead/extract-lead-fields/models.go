package extractleadfields

import "lead-intake-workers/internal/models"

type Input struct {
	Transcript string `json:"transcript"`
}

// Output is what the process sees. An absent extraction completes the job
// with Extracted=false and no fields.
type Output struct {
	LeadFields models.LeadFields `json:"leadFields"`
	Extracted  bool              `json:"extracted"`
}

// inputSchema guards the job variables before any completion is attempted.
const inputSchema = `{
  "type": "object",
  "required": ["transcript"],
  "properties": {
    "transcript": {"type": "string", "minLength": 1, "pattern": "\\S"}
  }
}`
