package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kimuntu-rag-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string, maxRetries int) *openAICompatibleClient {
	t.Helper()
	client, ok := NewClient(config.EmbeddingConfig{
		BaseURL:        baseURL,
		Model:          "test-model",
		MaxRetries:     maxRetries,
		RetryBaseDelay: 1,
	}).(*openAICompatibleClient)
	require.True(t, ok)
	// Skip real backoff waits in tests.
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return client
}

func embeddingBody(n int) string {
	body := `{"data":[`
	for i := 0; i < n; i++ {
		if i > 0 {
			body += ","
		}
		body += `{"embedding":[0.1,0.2]}`
	}
	return body + `]}`
}

func TestEmbedBatch_RetriesUpToMaxThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)
	_, err := client.EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)

	// One initial call plus three retries.
	assert.Equal(t, 4, calls)
}

func TestEmbedBatch_RecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, embeddingBody(2))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 3)
	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
}
