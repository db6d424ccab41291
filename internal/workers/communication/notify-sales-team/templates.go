package notifysalesteam

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"lead-intake-workers/internal/models"
)

var (
	subjectTmpl = template.Must(template.New("subject").Parse(
		`{{if .Urgent}}[URGENTE] {{end}}Nuevo lead: {{.Title}}`))

	emailTmpl = template.Must(template.New("email").Parse(`Se registró un nuevo lead desde el chat.

Conversación: {{.Title}}
Contacto:     {{or .Contact "-"}}
Empresa:      {{or .Company "-"}}
Correo:       {{or .Email "-"}}
Teléfono:     {{or .Phone "-"}}
Dirección:    {{or .Street "-"}}
Etiquetas:    {{or .Tags "-"}}
Puntaje:      {{.Score}}
Prioridad:    {{.PriorityLabel}}
{{if .URL}}
Ver en CRM: {{.URL}}
{{end}}
{{if .Description}}Resumen:
{{.Description}}
{{end}}`))

	smsTmpl = template.Must(template.New("sms").Parse(
		`Lead urgente: {{.Title}}{{if .Contact}} ({{.Contact}}){{end}}{{if .Phone}} tel {{.Phone}}{{end}}. Puntaje {{.Score}}.{{if .URL}} {{.URL}}{{end}}`))
)

type messageData struct {
	Title         string
	Contact       string
	Company       string
	Email         string
	Phone         string
	Street        string
	Description   string
	Tags          string
	Score         string
	PriorityLabel string
	URL           string
	Urgent        bool
}

var priorityLabels = map[models.Priority]string{
	models.PriorityLow:    "Baja",
	models.PriorityMedium: "Media",
	models.PriorityHigh:   "Alta",
}

func newMessageData(input *Input) messageData {
	f := input.LeadFields
	data := messageData{
		Title:       f.String(models.KeyConversationName),
		Contact:     f.String(models.KeyContactName),
		Company:     f.String(models.KeyPartnerName),
		Email:       f.String(models.KeyEmailFrom),
		Phone:       f.String(models.KeyPhone),
		Street:      f.String(models.KeyStreet),
		Description: f.String(models.KeyDescription),
		Score:       "sin puntaje",
		URL:         input.CRMLeadURL,
		Urgent:      input.Urgent,
	}
	if data.Title == "" {
		data.Title = "Sin título"
	}
	if input.ScoreTotal != nil {
		data.Score = fmt.Sprintf("%d/100", *input.ScoreTotal)
	}
	data.PriorityLabel = priorityLabels[input.Priority]
	if data.PriorityLabel == "" {
		data.PriorityLabel = "-"
	}

	var tags []string
	for _, id := range f.TagIDs() {
		tags = append(tags, models.TagID(id).Label())
	}
	data.Tags = strings.Join(tags, ", ")
	return data
}

func render(t *template.Template, data messageData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
