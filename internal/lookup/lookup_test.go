package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"biblioteca/internal/models"
)

const effectiveJava = `{
  "totalItems": 1,
  "items": [{
    "volumeInfo": {
      "title": "Effective Java",
      "authors": ["Joshua Bloch"],
      "publisher": "Addison-Wesley Professional",
      "publishedDate": "2018-01-06"
    }
  }]
}`

func newTestClient(url string, timeout time.Duration, retries int) *Client {
	c := NewClient(url, timeout, retries, zap.NewNop())
	c.interval = 10 * time.Millisecond
	return c
}

func TestLookup_Success(t *testing.T) {
	var query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, effectiveJava)
	}))
	defer server.Close()

	book, err := newTestClient(server.URL, time.Second, 0).Lookup(context.Background(), "0-13-468599-7")
	require.NoError(t, err)

	assert.Equal(t, "isbn:0134685997", query)
	assert.Equal(t, models.Book{
		ISBN:      "0-13-468599-7",
		Title:     "Effective Java",
		Author:    "Joshua Bloch",
		Publisher: "Addison-Wesley Professional",
		Year:      2018,
	}, book)
}

func TestLookup_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"totalItems": 0}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, time.Second, 0).Lookup(context.Background(), "0000000000")
	assert.ErrorIs(t, err, models.ErrExternalLookupUnavailable)
}

func TestLookup_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, effectiveJava)
	}))
	defer server.Close()

	book, err := newTestClient(server.URL, 5*time.Second, 3).Lookup(context.Background(), "0134685997")
	require.NoError(t, err)
	assert.Equal(t, "Effective Java", book.Title)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLookup_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, time.Second, 3).Lookup(context.Background(), "1")
	assert.ErrorIs(t, err, models.ErrExternalLookupUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookup_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestClient(server.URL, 100*time.Millisecond, 5).Lookup(context.Background(), "1")
	assert.ErrorIs(t, err, models.ErrExternalLookupUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second, "lookup must not block past its timeout")
}

func TestLookup_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url, 200*time.Millisecond, 1).Lookup(context.Background(), "1")
	assert.ErrorIs(t, err, models.ErrExternalLookupUnavailable)
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 2018, parseYear("2018-01-06"))
	assert.Equal(t, 1999, parseYear("1999"))
	assert.Equal(t, 0, parseYear("19"))
	assert.Equal(t, 0, parseYear("circa 1900"))
}
