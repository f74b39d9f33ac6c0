package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/model"
	"github.com/LeonardoBeccarini/plantcare/pkg/upstream"
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

type fakeModel struct {
	mu    sync.Mutex
	calls int
	last  Image
	text  string
	err   error
}

func (m *fakeModel) Generate(_ context.Context, prompt string, img Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = img
	if prompt != Prompt {
		return "", errors.New("unexpected prompt")
	}
	return m.text, m.err
}

func newPipeline(t *testing.T, m Model, fetchTimeout time.Duration) *Pipeline {
	t.Helper()
	p, err := New(Config{
		Fetch:        upstream.New("image", time.Minute, nil),
		Model:        m,
		FetchTimeout: fetchTimeout,
		Logger:       quiet(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestStripDataPrefix(t *testing.T) {
	mt, payload, ok := StripDataPrefix("data:image/png;base64,XXXX")
	if !ok || mt != "image/png" || payload != "XXXX" {
		t.Fatalf("got %q %q %v", mt, payload, ok)
	}
	mt, payload, ok = StripDataPrefix("data:image/svg+xml;base64,PHN2Zz4=")
	if !ok || mt != "image/svg+xml" || payload != "PHN2Zz4=" {
		t.Fatalf("got %q %q %v", mt, payload, ok)
	}
	if _, payload, ok := StripDataPrefix("XXXX"); ok || payload != "XXXX" {
		t.Fatal("plain payload must be returned untouched")
	}
	if _, _, ok := StripDataPrefix("data:text/plain;base64,XXXX"); ok {
		t.Fatal("non-image data url must not match")
	}
}

func TestNormalizeRawBytes(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	img, err := Normalize(png, "")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if img.MIME != "image/png" || img.Data != base64.StdEncoding.EncodeToString(png) {
		t.Fatalf("unexpected image %+v", img)
	}

	img, _ = Normalize([]byte("opaque"), "application/octet-stream")
	if img.MIME != "image/jpeg" {
		t.Fatalf("default mime = %q", img.MIME)
	}
	if _, err := Normalize(nil, "image/jpeg"); err == nil {
		t.Fatal("expected error on empty body")
	}
}

func TestAnalyzeEmbeddedSendsStrippedPayload(t *testing.T) {
	m := &fakeModel{text: "Healthy cactus. Water in a week."}
	p := newPipeline(t, m, 0)

	ref := model.ImageReference{Kind: model.ImageEmbedded, URL: "data:image/png;base64,XXXX"}
	text, err := p.Analyze(context.Background(), ref)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if text != m.text {
		t.Fatalf("text = %q", text)
	}
	if m.last.Data != "XXXX" || m.last.MIME != "image/png" {
		t.Fatalf("model got %+v", m.last)
	}
}

func TestAnalyzeDirectFetchesAndEncodes(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xDB, 1, 2, 3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpeg)
	}))
	defer srv.Close()

	m := &fakeModel{text: "ok"}
	p := newPipeline(t, m, time.Second)
	if _, err := p.Analyze(context.Background(), model.ImageReference{Kind: model.ImageDirect, URL: srv.URL}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.last.Data != base64.StdEncoding.EncodeToString(jpeg) || m.last.MIME != "image/jpeg" {
		t.Fatalf("model got %+v", m.last)
	}
}

func TestAnalyzeFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	m := &fakeModel{text: "unused"}
	p := newPipeline(t, m, 50*time.Millisecond)
	_, err := p.Analyze(context.Background(), model.ResolveIndirect(srv.URL+"/thumb?id=", "abc"))
	if KindOf(err) != FetchFailed {
		t.Fatalf("expected FetchFailed, got %v", err)
	}
	if m.calls != 0 {
		t.Fatal("model must not be called when the fetch fails")
	}
}

func TestAnalyzeInvalidInputs(t *testing.T) {
	m := &fakeModel{text: "unused"}
	p := newPipeline(t, m, 0)

	cases := []model.ImageReference{
		model.Placeholder(""),
		{Kind: model.ImageDirect},
		{Kind: model.ImageEmbedded, URL: "data:image/jpeg;base64,!!!not-base64"},
		{Kind: model.ImageEmbedded, URL: "data:image/jpeg;base64,"},
	}
	for i, ref := range cases {
		_, err := p.Analyze(context.Background(), ref)
		if KindOf(err) != InvalidInput {
			t.Errorf("case %d: expected InvalidInput, got %v", i, err)
		}
	}
	if m.calls != 0 {
		t.Fatalf("model called %d times on invalid input", m.calls)
	}
}

func TestAnalyzeInferenceFailure(t *testing.T) {
	cause := errors.New("quota exceeded")
	p := newPipeline(t, &fakeModel{err: cause}, 0)
	_, err := p.Analyze(context.Background(), model.ImageReference{Kind: model.ImageEmbedded, URL: "data:image/jpeg;base64,AAAA"})
	if KindOf(err) != InferenceFailed || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped InferenceFailed, got %v", err)
	}

	p = newPipeline(t, &fakeModel{text: ""}, 0)
	_, err = p.Analyze(context.Background(), model.ImageReference{Kind: model.ImageEmbedded, URL: "data:image/jpeg;base64,AAAA"})
	if KindOf(err) != InferenceFailed {
		t.Fatalf("empty text should be InferenceFailed, got %v", err)
	}
}

func TestGeminiClientRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" || r.URL.Query().Get("key") != "k-123" {
			http.Error(w, `{"error":{"code":404,"message":"bad route"}}`, http.StatusNotFound)
			return
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			http.Error(w, `{"error":{"code":400,"message":"bad body"}}`, http.StatusBadRequest)
			return
		}
		parts := req.Contents[0].Parts
		if parts[0].Text != Prompt || parts[1].InlineData == nil || parts[1].InlineData.Data != "XXXX" || parts[1].InlineData.MimeType != "image/png" {
			http.Error(w, `{"error":{"code":400,"message":"bad parts"}}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Looks "},{"text":"healthy."}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g := NewGeminiClient(GeminiConfig{APIKey: "k-123", BaseURL: srv.URL, Timeout: time.Second})
	text, err := g.Generate(context.Background(), Prompt, Image{MIME: "image/png", Data: "XXXX"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Looks healthy." {
		t.Fatalf("text = %q", text)
	}
}

func TestGeminiClientErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"status":        {http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota"}}`, "quota"},
		"no candidates": {http.StatusOK, `{"candidates":[]}`, "no candidates"},
		"blocked":       {http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "SAFETY"},
		"empty text":    {http.StatusOK, `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`, "no text"},
	}
	for name, c := range cases {
		c := c
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(c.status)
			_, _ = w.Write([]byte(c.body))
		}))
		g := NewGeminiClient(GeminiConfig{BaseURL: srv.URL, Timeout: time.Second})
		_, err := g.Generate(context.Background(), Prompt, Image{MIME: "image/jpeg", Data: "AAAA"})
		srv.Close()
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: err = %v, want mention of %q", name, err, c.want)
		}
	}
}

func TestGeminiClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g := NewGeminiClient(GeminiConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if _, err := g.Generate(context.Background(), Prompt, Image{MIME: "image/jpeg", Data: "AAAA"}); err == nil {
		t.Fatal("expected timeout")
	}
}
