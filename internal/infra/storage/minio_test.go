package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Method == http.MethodPut && strings.Count(strings.Trim(r.URL.Path, "/"), "/") >= 1 {
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	}
	w.WriteHeader(http.StatusOK)
}

func TestStorePut(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	endpoint := strings.TrimPrefix(srv.URL, "http://")

	store, err := New(context.Background(), endpoint, "us-east-1", "scanner-logs", "ak", "sk", false)
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "project_k/1700000000-scanner.log", []byte("INFO: EXECUTION SUCCESS"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/scanner-logs/project_k/1700000000-scanner.log", url)
	// plain-HTTP uploads may be aws-chunked, so only the payload's presence is checked
	assert.Contains(t, fake.objects["/scanner-logs/project_k/1700000000-scanner.log"], "INFO: EXECUTION SUCCESS")
	assert.Equal(t, "text/plain", fake.types["/scanner-logs/project_k/1700000000-scanner.log"])
}
