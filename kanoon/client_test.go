package kanoon

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RatePerSec: 1000,
		Burst:      1000,
	}, zap.NewNop())
}

func TestClient_SearchCases(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/search/", r.URL.Path)
		assert.Equal(t, "anticipatory bail", r.URL.Query().Get("formInput"))
		assert.Equal(t, "0", r.URL.Query().Get("pagenum"))
		assert.Equal(t, "1", r.URL.Query().Get("maxpages"))

		fmt.Fprint(w, `{"docs":[
			{"tid":12345,"title":"State v. Sharma","docsource":"Supreme Court of India","publishdate":"1994-03-12","headline":"<b>bail</b> granted under section   438"},
			{"tid":67890,"title":"Untitled Order","publishdate":""}
		]}`)
	})

	cases, err := client.SearchCases(context.Background(), "anticipatory bail", 1)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, 12345, cases[0].DocID)
	assert.Equal(t, "State v. Sharma", cases[0].Title)
	assert.Equal(t, "Supreme Court of India", cases[0].Court)
	assert.Equal(t, "1994", cases[0].Year)
	assert.Equal(t, "bail granted under section 438", cases[0].Snippet)

	// Missing fields degrade to Unknown.
	assert.Equal(t, "Unknown", cases[1].Court)
	assert.Equal(t, "Unknown", cases[1].Year)
}

func TestClient_SearchCases_NoResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"docs":[]}`)
	})

	cases, err := client.SearchCases(context.Background(), "nonexistent query", 1)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestClient_FetchDocument(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/doc/12345/", r.URL.Path)
		fmt.Fprint(w, `{"title":"State v. Sharma","text":"<p>The court finds</p><p>the appeal allowed.</p>","docsource":"Supreme Court of India","publishdate":"1994-03-12"}`)
	})

	doc, err := client.FetchDocument(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, "State v. Sharma", doc.Title)
	assert.Equal(t, "The court finds the appeal allowed.", doc.PlainText())
}

func TestClient_FetchOriginalDocument(t *testing.T) {
	payload := []byte("%PDF-1.4 fake content")
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/origdoc/42/", r.URL.Path)
		fmt.Fprintf(w, `{"doc":%q,"Content-Type":"application/pdf"}`,
			base64.StdEncoding.EncodeToString(payload))
	})

	orig, err := client.FetchOriginalDocument(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, orig.DocID)
	assert.Equal(t, payload, orig.Data)
	assert.Equal(t, "application/pdf", orig.ContentType)
}

func TestClient_FetchOriginalDocument_Missing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	_, err := client.FetchOriginalDocument(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoOriginal))
}

func TestClient_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"docs":[]}`)
	})

	_, err := client.SearchCases(context.Background(), "retry me", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NoRetryOnAuthError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "invalid token")
	})

	_, err := client.SearchCases(context.Background(), "unauthorized", 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable)
}
