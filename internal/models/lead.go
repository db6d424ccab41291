// internal/models/lead.go
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lead-intake-workers/internal/common/validation"
)

// Lead field keys. They match Odoo crm.lead field names except conversation_name, which becomes "name".
const (
	KeyContactName      = "contact_name"
	KeyEmailFrom        = "email_from"
	KeyPartnerName      = "partner_name"
	KeyPhone            = "phone"
	KeyDescription      = "description"
	KeyStreet           = "street"
	KeyConversationName = "conversation_name"
	KeyTagIDs           = "tag_ids"
)

// LeadFieldKeys is the complete set of keys an extraction may carry.
var LeadFieldKeys = []string{
	KeyContactName,
	KeyEmailFrom,
	KeyPartnerName,
	KeyPhone,
	KeyDescription,
	KeyStreet,
	KeyConversationName,
	KeyTagIDs,
}

// UrgentPrefix marks urgent conversations at the start of conversation_name.
const UrgentPrefix = "URGENTE:"

type TagID int

const (
	TagUrgent       TagID = 1
	TagMaintenance  TagID = 2
	TagInquiry      TagID = 3
	TagInstallation TagID = 4
	TagOther        TagID = 5
)

var tagLabels = map[TagID]string{
	TagUrgent:       "URGENTE",
	TagMaintenance:  "Mantenimiento",
	TagInquiry:      "Consulta",
	TagInstallation: "Instalación",
	TagOther:        "Otro",
}

func (t TagID) Label() string {
	if l, ok := tagLabels[t]; ok {
		return l
	}
	return fmt.Sprintf("tag-%d", int(t))
}

// LeadFieldsSchema describes a normalized extraction. Every key is optional.
const LeadFieldsSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "contact_name":      {"type": "string", "minLength": 1},
    "email_from":        {"type": "string", "minLength": 1},
    "partner_name":      {"type": "string", "minLength": 1},
    "phone":             {"type": "string", "minLength": 1},
    "description":       {"type": "string", "minLength": 1},
    "street":            {"type": "string", "minLength": 1},
    "conversation_name": {"type": "string", "minLength": 1},
    "tag_ids": {
      "type": "array",
      "minItems": 1,
      "uniqueItems": true,
      "items": {"type": "integer", "minimum": 1, "maximum": 5}
    }
  }
}`

var leadFieldsSchema = validation.MustCompile(LeadFieldsSchema)

// LeadFields holds only the populated lead attributes.
type LeadFields map[string]interface{}

// NormalizeLeadFields turns a decoded extraction into LeadFields. Unknown keys,
// nulls, empty strings and empty lists are dropped; numbers in text fields
// (a phone given as 8112345678) become strings. The rest must match
// LeadFieldsSchema. A title tagged URGENTE always starts with UrgentPrefix.
func NormalizeLeadFields(raw map[string]interface{}) (LeadFields, error) {
	out := make(LeadFields, len(raw))
	for _, key := range LeadFieldKeys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}

		if key == KeyTagIDs {
			ids, err := toIntSlice(v)
			if err != nil {
				return nil, fmt.Errorf("tag_ids: %w", err)
			}
			if len(ids) > 0 {
				out[key] = ids
			}
			continue
		}

		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				out[key] = s
			}
		case float64:
			out[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case json.Number:
			out[key] = val.String()
		default:
			out[key] = v // left for the schema to reject
		}
	}

	if res := leadFieldsSchema.Validate(map[string]interface{}(out)); !res.Valid {
		return nil, fmt.Errorf("lead fields do not match schema: %s", res.Error())
	}

	if name := out.String(KeyConversationName); name != "" && out.HasTag(TagUrgent) {
		out[KeyConversationName] = withUrgentPrefix(name)
	}
	return out, nil
}

func withUrgentPrefix(name string) string {
	n := len(UrgentPrefix)
	if len(name) >= n && strings.EqualFold(name[:n], UrgentPrefix) {
		return UrgentPrefix + name[n:]
	}
	return UrgentPrefix + " " + name
}

// String returns a text field or "".
func (f LeadFields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// TagIDs returns tag_ids whatever shape it arrived in ([]int in process, a
// JSON list after a round trip), or nil when it is malformed.
func (f LeadFields) TagIDs() []int {
	ids, _ := toIntSlice(f[KeyTagIDs])
	return ids
}

func (f LeadFields) HasTag(tag TagID) bool {
	for _, id := range f.TagIDs() {
		if id == int(tag) {
			return true
		}
	}
	return false
}

// IsUrgent reports the URGENTE tag or the URGENTE: name prefix.
func (f LeadFields) IsUrgent() bool {
	return f.HasTag(TagUrgent) || strings.HasPrefix(strings.TrimSpace(f.String(KeyConversationName)), UrgentPrefix)
}

// Clone returns a shallow copy; tag_ids is copied too.
func (f LeadFields) Clone() LeadFields {
	out := make(LeadFields, len(f))
	for k, v := range f {
		out[k] = v
	}
	if ids := f.TagIDs(); ids != nil {
		out[KeyTagIDs] = append([]int(nil), ids...)
	}
	return out
}

func toIntSlice(v interface{}) ([]int, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []int:
		return val, nil
	case []interface{}:
		out := make([]int, 0, len(val))
		for _, item := range val {
			n, err := toInt(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

// TranscriptDigest is the hex SHA-256 of a transcript. It keys both the score
// cache and the conversation archive.
func TranscriptDigest(transcript string) string {
	sum := sha256.Sum256([]byte(transcript))
	return hex.EncodeToString(sum[:])
}
