// internal/models/draft.go
package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"lead-intake-workers/internal/common/validation"
)

// LeadDraft is the editable state of one intake: extracted fields, score and
// tier. It lives as long as the request that created it.
type LeadDraft struct {
	Fields     LeadFields `json:"fields"`
	ScoreTotal int        `json:"score_total"`
	Scored     bool       `json:"scored"`
	Priority   Priority   `json:"priority"`
	StageID    int64      `json:"stage_id,omitempty"`
	Submitted  bool       `json:"submitted"`
	CRMLeadID  int64      `json:"crm_lead_id,omitempty"`

	bands PriorityBands
}

// NewLeadDraft merges an extraction and a score. Either may be absent: a nil
// score counts as 0.
func NewLeadDraft(fields LeadFields, score *int, bands PriorityBands) *LeadDraft {
	d := &LeadDraft{}
	d.Merge(fields, score, bands)
	return d
}

func (d *LeadDraft) Merge(fields LeadFields, score *int, bands PriorityBands) {
	d.bands = bands
	d.Fields = fields.Clone()
	d.ScoreTotal, d.Scored = 0, false
	if score != nil {
		d.ScoreTotal, d.Scored = *score, true
	}
	d.Priority = PriorityForScore(d.ScoreTotal, bands)
	d.Submitted, d.CRMLeadID = false, 0
}

// SetBands re-derives the tier, e.g. after a draft was decoded from JSON.
func (d *LeadDraft) SetBands(bands PriorityBands) {
	d.bands = bands
	d.Priority = PriorityForScore(d.ScoreTotal, bands)
}

// ApplyEdits applies form input keyed by lead field. An empty value clears the
// field; tag_ids is comma-separated text. Unknown keys are rejected and nothing
// is applied when any value is invalid.
func (d *LeadDraft) ApplyEdits(form map[string]string) error {
	next := d.Fields.Clone()

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(form[key])
		if !isLeadKey(key) {
			return fmt.Errorf("unknown field %q", key)
		}

		if value == "" {
			delete(next, key)
			continue
		}

		if key == KeyTagIDs {
			ids, err := ParseTagIDs(value)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				delete(next, key)
			} else {
				next[key] = ids
			}
			continue
		}
		next[key] = value
	}

	d.Fields = next
	return nil
}

// FormValues renders the draft as form text, the inverse of ApplyEdits.
func (d *LeadDraft) FormValues() map[string]string {
	out := make(map[string]string, len(LeadFieldKeys))
	for _, key := range LeadFieldKeys {
		if key == KeyTagIDs {
			out[key] = FormatTagIDs(d.Fields.TagIDs())
			continue
		}
		out[key] = d.Fields.String(key)
	}
	return out
}

// CRMValues maps the draft onto crm.lead fields. Unset values are left out.
func (d *LeadDraft) CRMValues() map[string]interface{} {
	values := map[string]interface{}{
		"priority": string(d.Priority),
	}

	copyString := func(from, to string) {
		if s := d.Fields.String(from); s != "" {
			values[to] = s
		}
	}
	copyString(KeyConversationName, "name")
	copyString(KeyPhone, "phone")
	copyString(KeyContactName, "contact_name")
	copyString(KeyEmailFrom, "email_from")
	copyString(KeyPartnerName, "partner_name")
	copyString(KeyDescription, "description")
	copyString(KeyStreet, "street")

	if ids := d.Fields.TagIDs(); len(ids) > 0 {
		values["tag_ids"] = ids
	}
	if d.StageID > 0 {
		values["stage_id"] = d.StageID
	}
	return values
}

// Validate checks what Odoo needs before a write: a lead name and, when given,
// a well-formed email.
func (d *LeadDraft) Validate() error {
	if strings.TrimSpace(d.Fields.String(KeyConversationName)) == "" {
		return fmt.Errorf("conversation_name is required: it becomes the lead name")
	}
	if email := d.Fields.String(KeyEmailFrom); email != "" && !validation.ValidateEmail(email) {
		return fmt.Errorf("email_from %q is not a valid address", email)
	}
	return nil
}

// MarkSubmitted records the crm.lead the draft was written to.
func (d *LeadDraft) MarkSubmitted(leadID int64) {
	d.Submitted = true
	d.CRMLeadID = leadID
}

// Reset clears the draft after it was submitted.
func (d *LeadDraft) Reset() {
	*d = LeadDraft{bands: d.bands, Fields: LeadFields{}}
	d.Priority = PriorityForScore(0, d.bands)
}

// ParseTagIDs reads "1, 4" into [1 4]. Blank segments are ignored.
func ParseTagIDs(text string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid tag id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func FormatTagIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

func isLeadKey(key string) bool {
	for _, k := range LeadFieldKeys {
		if k == key {
			return true
		}
	}
	return false
}
