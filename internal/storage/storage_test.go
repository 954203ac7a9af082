package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf2emails/internal/domain"
	"github.com/spherical/pdf2emails/internal/gcloud"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   []byte
}

func newGCSServer(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: body})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"error":{"code":%d,"message":"injected"}}`, status)
			return
		}
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = io.WriteString(w, `{"bucket":"scans","name":"pdf2emails-current-image.png"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newTestUploader(t *testing.T, srv *httptest.Server) *GCSUploader {
	t.Helper()
	u, err := NewGCSUploader(context.Background(), gcloud.Credentials{
		Endpoint:   srv.URL + "/storage/v1/",
		HTTPClient: srv.Client(),
	}, nil)
	require.NoError(t, err)
	return u
}

func TestGCSUploader_Upload(t *testing.T) {
	srv, reqs := newGCSServer(t, http.StatusOK)
	u := newTestUploader(t, srv)

	payload := []byte("\x89PNG fake image bytes")
	loc, err := u.Upload(context.Background(), "scans", "pdf2emails-current-image.png", payload, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "gs://scans/pdf2emails-current-image.png", loc)

	require.Len(t, *reqs, 1)
	req := (*reqs)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Contains(t, req.path, "/b/scans/o")
	assert.Contains(t, req.query, "uploadType=")
	assert.Contains(t, string(req.body), string(payload))
	assert.Contains(t, string(req.body), "image/png")
}

func TestGCSUploader_UploadErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTemporary bool
	}{
		{name: "unavailable is temporary", status: http.StatusServiceUnavailable, wantTemporary: true},
		{name: "rate limit is temporary", status: http.StatusTooManyRequests, wantTemporary: true},
		{name: "forbidden is fatal", status: http.StatusForbidden, wantTemporary: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newGCSServer(t, tt.status)
			u := newTestUploader(t, srv)

			_, err := u.Upload(context.Background(), "scans", "obj.png", []byte("x"), "image/png")
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeTransport))
			assert.Equal(t, tt.wantTemporary, domain.IsTemporary(err))
			assert.Equal(t, tt.status, gcloud.StatusCode(err))
		})
	}
}

func TestGCSUploader_Delete(t *testing.T) {
	srv, reqs := newGCSServer(t, http.StatusOK)
	u := newTestUploader(t, srv)

	require.NoError(t, u.Delete(context.Background(), "scans", "obj.png"))
	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodDelete, (*reqs)[0].method)
	assert.True(t, strings.HasSuffix((*reqs)[0].path, "/b/scans/o/obj.png"))
}

func TestGCSUploader_DeleteMissingObject(t *testing.T) {
	srv, _ := newGCSServer(t, http.StatusNotFound)
	u := newTestUploader(t, srv)

	assert.NoError(t, u.Delete(context.Background(), "scans", "gone.png"))
}

func TestMemoryUploader(t *testing.T) {
	m := NewMemoryUploader()
	data := []byte{1, 2, 3}

	loc, err := m.Upload(context.Background(), "b", "o.png", data, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "mem://b/o.png", loc)

	data[0] = 9 // stored bytes are a copy
	got, ok := m.Get(loc)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got)

	// same object name overwrites
	_, err = m.Upload(context.Background(), "b", "o.png", []byte{4}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, m.Uploads())

	require.NoError(t, m.Delete(context.Background(), "b", "o.png"))
	assert.Equal(t, 0, m.Len())
}

func TestMemoryUploader_Errors(t *testing.T) {
	m := NewMemoryUploader()

	_, err := m.Upload(context.Background(), "", "o", nil, "image/png")
	assert.True(t, domain.IsType(err, domain.ErrorTypeTransport))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Upload(ctx, "b", "o", nil, "image/png")
	assert.ErrorIs(t, err, context.Canceled)
}
