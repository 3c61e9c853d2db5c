package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bilgisen/kova/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestGeminiClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)
		assert.Equal(t, 256, req.GenerationConfig.MaxOutputTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"title\":\"ok\"}"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGeminiClient(GeminiOptions{APIKey: "secret", Model: "test-model", MaxTokens: 256, BaseURL: srv.URL})
	out, err := g.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"ok"}`, out)
}

func TestGeminiClientSendsInlineImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vision-model:generateContent", r.URL.Path)

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		parts := req.Contents[0].Parts
		require.Len(t, parts, 2)
		require.NotNil(t, parts[1].InlineData)
		assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
		assert.Equal(t, "AQID", parts[1].InlineData.Data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"seen"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGeminiClient(GeminiOptions{APIKey: "k", Model: "text-model", VisionModel: "vision-model", BaseURL: srv.URL})
	out, err := g.GenerateWithImage(context.Background(), "describe", &Image{MIMEType: "image/png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "seen", out)
}

func TestGeminiClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/bad:generateContent":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
		case "/down:generateContent":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{}`))
		default:
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}
	}))
	defer srv.Close()

	_, err := NewGeminiClient(GeminiOptions{Model: "bad", BaseURL: srv.URL}).Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")

	_, err = NewGeminiClient(GeminiOptions{Model: "down", BaseURL: srv.URL}).Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = NewGeminiClient(GeminiOptions{Model: "empty", BaseURL: srv.URL}).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicClientPrefillsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		msgs, _ := body["messages"].([]any)
		assert.Len(t, msgs, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "\"title\": \"Tacos\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(AnthropicOptions{APIKey: "k", Model: "claude-test", BaseURL: srv.URL})
	out, err := c.Generate(context.Background(), "analyze")
	require.NoError(t, err)
	assert.Equal(t, `{"title": "Tacos"}`, out)
}

type countingModel struct {
	calls atomic.Int32
}

func (c *countingModel) Name() string { return "counting" }

func (c *countingModel) Generate(context.Context, string) (string, error) {
	c.calls.Add(1)
	return "{}", nil
}

func (c *countingModel) GenerateWithImage(context.Context, string, *Image) (string, error) {
	c.calls.Add(1)
	return "{}", nil
}

func TestRateLimitedModel(t *testing.T) {
	inner := &countingModel{}
	m := WithRateLimit(inner, rate.NewLimiter(rate.Every(time.Hour), 1))

	_, err := m.Generate(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Generate(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestMetadataFetcherCachesHits(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "https://www.tiktok.com/@a/video/1", r.URL.Query().Get("url"))
		assert.Contains(t, r.UserAgent(), "KovaBot")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"Pasta night","author_name":"a","author_url":"https://www.tiktok.com/@a","thumbnail_url":"https://cdn/p.jpg"}`))
	}))
	defer srv.Close()

	f := NewMetadataFetcher(srv.URL, time.Second, cache.NewMockClient(), time.Hour)

	for i := 0; i < 2; i++ {
		meta, err := f.Fetch(context.Background(), "https://www.tiktok.com/@a/video/1")
		require.NoError(t, err)
		require.NotNil(t, meta)
		assert.Equal(t, "Pasta night", meta.Title)
		assert.Equal(t, "a", meta.Author)
		assert.Equal(t, "https://cdn/p.jpg", meta.Thumbnail)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestMetadataFetcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := NewMetadataFetcher(srv.URL, time.Second, nil, time.Hour)

	_, err := f.Fetch(context.Background(), "missing")
	assert.Error(t, err)

	meta, err := f.Fetch(context.Background(), "empty")
	assert.NoError(t, err)
	assert.Nil(t, meta)
}

func TestTranscriptClientPollsUntilCompleted(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/transcript":
			assert.Equal(t, "key", r.Header.Get("Authorization"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://www.tiktok.com/@a/video/1", body["audio_url"])
			_, _ = w.Write([]byte(`{"id":"job1","status":"queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/transcript/job1":
			if polls.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"id":"job1","status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"job1","status":"completed","text":" hello world "}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewTranscriptClient(srv.URL, "key", time.Second, 5*time.Millisecond)
	text, err := c.Transcribe(context.Background(), "https://www.tiktok.com/@a/video/1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, int32(3), polls.Load())
}

func TestTranscriptClientTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"job1","status":"processing"}`))
	}))
	defer srv.Close()

	c := NewTranscriptClient(srv.URL, "key", 50*time.Millisecond, 10*time.Millisecond)
	_, err := c.Transcribe(context.Background(), "https://www.tiktok.com/@a/video/1")
	assert.ErrorIs(t, err, ErrTranscriptTimeout)
}

func TestTranscriptClientReportsJobError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"job1","status":"error","error":"no audio"}`))
	}))
	defer srv.Close()

	_, err := NewTranscriptClient(srv.URL, "key", time.Second, time.Millisecond).
		Transcribe(context.Background(), "https://www.tiktok.com/@a/video/1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio")
}

type fakeLocalImages map[string][]byte

func (f fakeLocalImages) Lookup(_ context.Context, ref string) ([]byte, string, bool) {
	data, ok := f[ref]
	return data, "image/png", ok
}

func TestImageLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			_, _ = w.Write(pngHeader)
		case "/page.html":
			_, _ = w.Write([]byte("<html><body>hi</body></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	local := fakeLocalImages{"https://api.example.com/api/image/abc": pngHeader}
	l := NewImageLoader(1024, time.Second, local)
	ctx := context.Background()

	img, err := l.Load(ctx, srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	img, err = l.Load(ctx, "https://api.example.com/api/image/abc")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, img.Data)

	_, err = l.Load(ctx, srv.URL+"/page.html")
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = l.Load(ctx, srv.URL+"/missing.png")
	assert.Error(t, err)

	_, err = l.Load(ctx, "ftp://example.com/a.png")
	assert.Error(t, err)

	small := NewImageLoader(4, time.Second, nil)
	_, err = small.Load(ctx, srv.URL+"/ok.png")
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestImageLoaderStopsReadingPastLimit(t *testing.T) {
	const total = 64 << 20
	var written atomic.Int64
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		w.Header().Set("Content-Type", "image/png")
		chunk := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32<<10-8)...)
		flusher := w.(http.Flusher)
		for written.Load() < total {
			n, err := w.Write(chunk)
			written.Add(int64(n))
			if err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer srv.Close()

	l := NewImageLoader(1024, 5*time.Second, nil)
	_, err := l.Load(context.Background(), srv.URL+"/huge.png")
	assert.ErrorIs(t, err, ErrImageTooLarge)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server kept streaming after the client gave up")
	}
	assert.Less(t, written.Load(), int64(total))
}

func TestImageLoaderRejectsDeclaredLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	l := NewImageLoader(1024, time.Second, nil)
	_, err := l.Load(context.Background(), srv.URL+"/big.png")
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
