package database

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-intake-workers/internal/common/config"
)

// fakeES answers HEAD /<index> with existsStatus and records PUT /<index>.
func fakeES(t *testing.T, existsStatus int, creates *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(existsStatus)
		case http.MethodPut:
			atomic.AddInt32(creates, 1)
			_, _ = w.Write([]byte(`{"acknowledged":true,"index":"lead-conversations"}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnsureIndex(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantCreates int32
	}{
		{"creates missing index", http.StatusNotFound, 1},
		{"keeps existing index", http.StatusOK, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var creates int32
			srv := fakeES(t, tt.status, &creates)

			es, err := NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
			require.NoError(t, err)

			require.NoError(t, es.EnsureIndex(context.Background(), "lead-conversations"))
			assert.Equal(t, tt.wantCreates, atomic.LoadInt32(&creates))
		})
	}
}
