package scorelead

type Input struct {
	Transcript string `json:"transcript"`
}

// Output mirrors the intake form: an absent score is reported as 0 with
// Scored=false.
type Output struct {
	ScoreTotal int  `json:"scoreTotal"`
	Scored     bool `json:"scored"`
}

const inputSchema = `{
  "type": "object",
  "required": ["transcript"],
  "properties": {
    "transcript": {"type": "string", "minLength": 1, "pattern": "\\S"}
  }
}`
