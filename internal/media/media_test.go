package media

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bilgisen/kova/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var pngPixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestLocalStorePutGet(t *testing.T) {
	st, err := NewLocalStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	id, err := st.Put(context.Background(), "image/png", pngPixel)
	require.NoError(t, err)
	assert.True(t, validID(id))

	img, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, img.ID)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, pngPixel, img.Data)
}

func TestLocalStoreRejectsUploads(t *testing.T) {
	st, err := NewLocalStore(t.TempDir(), 32)
	require.NoError(t, err)

	_, err = st.Put(context.Background(), "", []byte("just some text, not a picture"))
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = st.Put(context.Background(), "application/pdf", pngPixel)
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = st.Put(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = st.Put(context.Background(), "image/png", pngPixel)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLocalStoreNotFound(t *testing.T) {
	st, err := NewLocalStore(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = st.Get(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.Get(context.Background(), "6f1c6a0e-8a43-4c1e-9d55-0a4a3f1c2b7d")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolver(t *testing.T) {
	st, err := NewLocalStore(t.TempDir(), 0)
	require.NoError(t, err)
	id, err := st.Put(context.Background(), "", pngPixel)
	require.NoError(t, err)

	r := NewResolver(st, "https://kova.example.com/")
	ref := r.URL("http://ignored", id)
	assert.Equal(t, "https://kova.example.com/api/image/"+id, ref)

	data, ct, ok := r.Lookup(context.Background(), ref)
	require.True(t, ok)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, pngPixel, data)

	_, _, ok = r.Lookup(context.Background(), "https://elsewhere.example.com/api/image/"+id)
	assert.False(t, ok)
	_, _, ok = r.Lookup(context.Background(), "https://kova.example.com/api/image/not-an-id")
	assert.False(t, ok)

	open := NewResolver(st, "")
	assert.Equal(t, "http://localhost:3000/api/image/"+id, open.URL("http://localhost:3000/", id))
	_, _, ok = open.Lookup(context.Background(), "http://localhost:3000/api/image/"+id)
	assert.True(t, ok)
}

func TestNewPicksLocalWithoutR2(t *testing.T) {
	cfg := &config.Config{StoragePath: t.TempDir(), MaxFileSize: 1 << 20}
	st, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, st)
}

// fakeS3 answers path-style PutObject and GetObject requests
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestR2Store(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	st, err := NewR2Store(context.Background(), R2Options{
		Endpoint:    server.URL,
		AccessKey:   "access",
		SecretKey:   "secret",
		Bucket:      "kova-images",
		MaxFileSize: 1 << 20,
	})
	require.NoError(t, err)

	id, err := st.Put(context.Background(), "image/png", pngPixel)
	require.NoError(t, err)
	assert.Contains(t, fake.objects, "kova-images/images/"+id)

	img, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, pngPixel, img.Data)

	_, err = st.Get(context.Background(), "6f1c6a0e-8a43-4c1e-9d55-0a4a3f1c2b7d")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.Put(context.Background(), "", []byte("plain text"))
	assert.ErrorIs(t, err, ErrNotImage)
}
