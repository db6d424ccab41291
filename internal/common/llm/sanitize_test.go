package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fenced block with prose",
			in:   "Aquí está el resultado:\n```json\n{\n  \"score_total\": 75\n}\n```\nSaludos.",
			want: "{\n  \"score_total\": 75\n}",
		},
		{
			name: "first fenced block wins",
			in:   "```json {\"a\": 1} ``` and ```json {\"b\": 2} ```",
			want: `{"a": 1}`,
		},
		{
			name: "bare object with prose",
			in:   `El puntaje es {"score_total": 40} según la tabla.`,
			want: `{"score_total": 40}`,
		},
		{
			name: "fence without json tag falls back to braces",
			in:   "```\n{\"score_total\": 10}\n```",
			want: `{"score_total": 10}`,
		},
		{
			name: "span covers nested objects",
			in:   `x {"a": {"b": 1}} y`,
			want: `{"a": {"b": 1}}`,
		},
		{
			name: "no braces returns input unchanged",
			in:   "  no puedo calificar esta conversación \n",
			want: "  no puedo calificar esta conversación \n",
		},
		{
			name: "closing brace before opening brace",
			in:   "} nada {",
			want: "} nada {",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_RoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"contact_name": "Laura Pérez",
		"tag_ids":      []interface{}{float64(1), float64(4)},
		"description":  "Instalación urgente en nave industrial",
	}
	body, err := json.MarshalIndent(original, "", "  ")
	require.NoError(t, err)

	wrapped := "Claro, estos son los datos:\n```json\n" + string(body) + "\n```\n¿Algo más?"

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(Sanitize(wrapped)), &got))
	assert.Equal(t, original, got)
}

func TestSanitize_DegradationFailsParseCleanly(t *testing.T) {
	var out map[string]interface{}
	err := json.Unmarshal([]byte(Sanitize("sin datos")), &out)
	assert.Error(t, err)
}
