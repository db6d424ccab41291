package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestNormalizeLeadFields(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    LeadFields
		wantErr bool
	}{
		{
			name: "drops nulls and empties",
			raw:  `{"contact_name": "Fernanda", "phone": null, "street": "", "tag_ids": [], "description": "  "}`,
			want: LeadFields{"contact_name": "Fernanda"},
		},
		{
			name: "tags become ints",
			raw:  `{"conversation_name": "URGENTE: fuga en azotea", "tag_ids": [1, 2]}`,
			want: LeadFields{"conversation_name": "URGENTE: fuga en azotea", "tag_ids": []int{1, 2}},
		},
		{
			name: "urgent tag adds the title prefix",
			raw:  `{"conversation_name": "Fuga en azotea", "tag_ids": [2, 1]}`,
			want: LeadFields{"conversation_name": "URGENTE: Fuga en azotea", "tag_ids": []int{2, 1}},
		},
		{
			name: "lowercase prefix is normalized",
			raw:  `{"conversation_name": "Urgente: fuga en azotea", "tag_ids": [1]}`,
			want: LeadFields{"conversation_name": "URGENTE: fuga en azotea", "tag_ids": []int{1}},
		},
		{
			name: "urgent tag without a title",
			raw:  `{"tag_ids": [1]}`,
			want: LeadFields{"tag_ids": []int{1}},
		},
		{
			name: "prefix is not added without the tag",
			raw:  `{"conversation_name": "Cotización terraza", "tag_ids": [3]}`,
			want: LeadFields{"conversation_name": "Cotización terraza", "tag_ids": []int{3}},
		},
		{
			name: "numeric phone becomes text",
			raw:  `{"phone": 8112345678}`,
			want: LeadFields{"phone": "8112345678"},
		},
		{
			name: "unknown keys are dropped",
			raw:  `{"email_from": "a@b.mx", "score_total": 80}`,
			want: LeadFields{"email_from": "a@b.mx"},
		},
		{
			name:    "tag outside taxonomy",
			raw:     `{"tag_ids": [7]}`,
			wantErr: true,
		},
		{
			name:    "tag_ids not a list",
			raw:     `{"tag_ids": "1,2"}`,
			wantErr: true,
		},
		{
			name:    "object where text expected",
			raw:     `{"street": {"line1": "Av. Las Torres"}}`,
			wantErr: true,
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: LeadFields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLeadFields(decode(t, tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLeadFields_TagsAfterRoundTrip(t *testing.T) {
	fields := LeadFields{"tag_ids": []int{1, 4}}
	body, err := json.Marshal(fields)
	require.NoError(t, err)

	var back LeadFields
	require.NoError(t, json.Unmarshal(body, &back))

	assert.Equal(t, []int{1, 4}, back.TagIDs())
	assert.True(t, back.HasTag(TagInstallation))
	assert.False(t, back.HasTag(TagInquiry))
}

func TestLeadFields_IsUrgent(t *testing.T) {
	assert.True(t, LeadFields{"tag_ids": []int{1}}.IsUrgent())
	assert.True(t, LeadFields{"conversation_name": "URGENTE: goteras en bodega"}.IsUrgent())
	assert.False(t, LeadFields{"conversation_name": "Consulta de precios", "tag_ids": []int{3}}.IsUrgent())
	assert.False(t, LeadFields{}.IsUrgent())
}

func TestTagID_Label(t *testing.T) {
	assert.Equal(t, "Instalación", TagInstallation.Label())
	assert.Equal(t, "tag-9", TagID(9).Label())
}

func TestPriorityForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Priority
	}{
		{-5, PriorityLow},
		{0, PriorityLow},
		{33, PriorityLow},
		{34, PriorityMedium},
		{66, PriorityMedium},
		{67, PriorityHigh},
		{100, PriorityHigh},
		{130, PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityForScore(tt.score, DefaultPriorityBands), "score %d", tt.score)
		})
	}
}
