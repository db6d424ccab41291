package archiveleadconversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intake-workers/internal/common/errors"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/models"
)

const transcript = "Hola, soy Fernanda de Plataformas Industriales del Norte. Se atoró el elevador de carga."

var upsertPattern = regexp.QuoteMeta("INSERT INTO lead_conversations")

type indexedRequest struct {
	Path string
	Body map[string]interface{}
}

// fakeES accepts document writes with status and records them.
func fakeES(t *testing.T, status int, requests *[]indexedRequest) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		*requests = append(*requests, indexedRequest{Path: r.URL.Path, Body: body})

		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return es
}

func newTestHandler(t *testing.T, db *sql.DB, es *elasticsearch.Client) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		DB:           db,
		ES:           es,
		CustomConfig: DefaultConfig(),
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func testInput() *Input {
	score := 85
	return &Input{
		Transcript: transcript,
		LeadFields: models.LeadFields{
			models.KeyContactName:      "Fernanda",
			models.KeyConversationName: "URGENTE: Elevador de carga",
		},
		ScoreTotal: &score,
		Priority:   models.PriorityHigh,
		CRMLeadID:  42,
	}
}

func TestExecute_ArchivesAndIndexes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	digest := models.TranscriptDigest(transcript)
	mock.ExpectQuery(upsertPattern).
		WithArgs(sqlmock.AnyArg(), digest, transcript, sqlmock.AnyArg(), int64(85), "3", int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("7a1c0b9e-0000-4000-8000-000000000001"))

	var requests []indexedRequest
	h := newTestHandler(t, db, fakeES(t, http.StatusCreated, &requests))

	out, err := h.Execute(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, "7a1c0b9e-0000-4000-8000-000000000001", out.ArchiveID)
	assert.Equal(t, digest, out.TranscriptSHA256)
	assert.True(t, out.Indexed)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, requests, 1)
	assert.Equal(t, "/lead-conversations/_doc/"+digest, requests[0].Path)
	assert.Equal(t, transcript, requests[0].Body["transcript"])
	assert.Equal(t, float64(85), requests[0].Body["score_total"])
	assert.Equal(t, "7a1c0b9e-0000-4000-8000-000000000001", requests[0].Body["archive_id"])
}

func TestExecute_NullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(upsertPattern).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), transcript, "{}", nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-1"))

	h := newTestHandler(t, db, nil)
	out, err := h.Execute(context.Background(), &Input{Transcript: transcript})
	require.NoError(t, err)

	assert.Equal(t, "id-1", out.ArchiveID)
	assert.False(t, out.Indexed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_IndexFailureIsNotFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(upsertPattern).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-2"))

	var requests []indexedRequest
	h := newTestHandler(t, db, fakeES(t, http.StatusBadRequest, &requests))

	out, err := h.Execute(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "id-2", out.ArchiveID)
	assert.False(t, out.Indexed)
	assert.Len(t, requests, 1)
}

func TestExecute_DatabaseFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(upsertPattern).WillReturnError(fmt.Errorf("connection refused"))

	var requests []indexedRequest
	h := newTestHandler(t, db, fakeES(t, http.StatusCreated, &requests))

	out, err := h.Execute(context.Background(), testInput())
	require.Error(t, err)
	assert.Nil(t, out)

	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeArchiveWriteFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Equal(t, models.TranscriptDigest(transcript), stdErr.Metadata["transcriptSha256"])
	assert.Empty(t, requests, "nothing is indexed when the archive write fails")
}

func TestParseInput(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := newTestHandler(t, db, nil)

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
	}{
		{"transcript only", map[string]interface{}{"transcript": transcript}, false},
		{"full", map[string]interface{}{"transcript": transcript, "leadFields": map[string]interface{}{"phone": "81"}, "scoreTotal": 40, "priority": "2", "crmLeadId": 9}, false},
		{"null lead fields", map[string]interface{}{"transcript": transcript, "leadFields": nil}, false},
		{"missing transcript", map[string]interface{}{"scoreTotal": 40}, true},
		{"negative crm id", map[string]interface{}{"transcript": transcript, "crmLeadId": -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars, _ := json.Marshal(tt.variables)
			job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Type: TaskType, Variables: string(vars)}}

			input, err := h.parseInput(job)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInputValidationFailed, errors.Normalize(err).Code)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, input.LeadFields)
		})
	}
}

func TestNewHandler_RequiresDatabase(t *testing.T) {
	_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig(), Logger: logger.NewNoOpLogger()})
	assert.ErrorContains(t, err, "requires a database")
}
