package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeResponse struct {
	embed    *genai.EmbedContentResponse
	generate *genai.GenerateContentResponse
	err      error
}

type callRecord struct {
	model    string
	contents []*genai.Content
	embedCfg *genai.EmbedContentConfig
}

type fakeModels struct {
	mu    sync.Mutex
	calls []callRecord
	queue []fakeResponse
}

func (f *fakeModels) enqueue(res fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, res)
}

func (f *fakeModels) next(rec callRecord) (fakeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rec)
	if len(f.queue) == 0 {
		return fakeResponse{}, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res, nil
}

func (f *fakeModels) EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	res, err := f.next(callRecord{model: model, contents: contents, embedCfg: config})
	if err != nil {
		return nil, err
	}
	return res.embed, res.err
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	res, err := f.next(callRecord{model: model, contents: contents})
	if err != nil {
		return nil, err
	}
	return res.generate, res.err
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	original := sleep
	sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = original })
	return &delays
}

func embedding(values ...float32) *genai.EmbedContentResponse {
	return &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: values}}}
}

func TestEmbedderRetriesOnTemporaryError(t *testing.T) {
	delays := noSleep(t)

	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}})
	models.enqueue(fakeResponse{err: genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}})
	models.enqueue(fakeResponse{embed: embedding(0.1, 0.2)})

	client := newClient(models, Config{MaxRetries: 3, Backoff: time.Second}, zap.NewNop())
	embedder := client.Embedder()

	values, err := embedder.Embed(context.Background(), "  scholarship for students  ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(values) != 2 || values[1] != 0.2 {
		t.Fatalf("unexpected embedding: %v", values)
	}

	if len(models.calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(models.calls))
	}
	for _, call := range models.calls {
		if call.model != DefaultEmbeddingModel {
			t.Fatalf("unexpected model: %q", call.model)
		}
		if call.embedCfg == nil || call.embedCfg.TaskType != embeddingTaskType {
			t.Fatalf("expected task type %s, got %+v", embeddingTaskType, call.embedCfg)
		}
		if got := call.contents[0].Parts[0].Text; got != "scholarship for students" {
			t.Fatalf("unexpected text: %q", got)
		}
	}

	if len(*delays) != 2 || (*delays)[0] != time.Second || (*delays)[1] != 2*time.Second {
		t.Fatalf("expected exponential backoff, got %v", *delays)
	}
}

func TestEmbedderStopsAfterRetriesExhausted(t *testing.T) {
	noSleep(t)

	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	models.enqueue(fakeResponse{err: tempErr})
	models.enqueue(fakeResponse{err: tempErr})

	embedder := newClient(models, Config{MaxRetries: 2}, zap.NewNop()).Embedder()

	_, err := embedder.Embed(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestEmbedderDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	noSleep(t)

	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}})

	embedder := newClient(models, Config{MaxRetries: 3, MaxQuotaDelay: 10 * time.Second}, zap.NewNop()).Embedder()

	if _, err := embedder.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error when quota delay too long")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestEmbedderWaitsForShortQuotaDelay(t *testing.T) {
	delays := noSleep(t)

	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{
		Code:    http.StatusTooManyRequests,
		Message: "Please retry in 4.5s.",
	}})
	models.enqueue(fakeResponse{embed: embedding(1)})

	embedder := newClient(models, Config{}, zap.NewNop()).Embedder()

	if _, err := embedder.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*delays) != 1 || (*delays)[0] != 4500*time.Millisecond {
		t.Fatalf("expected quota delay to be honoured, got %v", *delays)
	}
}

func TestEmbedderDoesNotRetryClientErrors(t *testing.T) {
	noSleep(t)

	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}})

	embedder := newClient(models, Config{}, zap.NewNop()).Embedder()
	if _, err := embedder.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestEmbedderRejectsEmptyInputAndOutput(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(fakeResponse{embed: &genai.EmbedContentResponse{}})

	embedder := newClient(models, Config{EmbeddingModel: "custom-embed"}, zap.NewNop()).Embedder()
	if embedder.Model() != "custom-embed" {
		t.Fatalf("unexpected model: %q", embedder.Model())
	}

	if _, err := embedder.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
	if _, err := embedder.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{Code: http.StatusInternalServerError}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	embedder := newClient(models, Config{MaxRetries: 3, Backoff: time.Hour}, zap.NewNop()).Embedder()
	_, err := embedder.Embed(ctx, "text")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestTextExtractorSendsImage(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(fakeResponse{generate: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "GOVERNMENT OF INDIA"}, {Text: " Asha Devi "}}},
		}},
	}})

	extractor := newClient(models, Config{}, zap.NewNop()).TextExtractor()

	text, err := extractor.ExtractText(context.Background(), []byte{0xff, 0xd8}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "GOVERNMENT OF INDIA\nAsha Devi" {
		t.Fatalf("unexpected text: %q", text)
	}

	call := models.calls[0]
	if call.model != DefaultOCRModel {
		t.Fatalf("unexpected model: %q", call.model)
	}
	parts := call.contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil {
		t.Fatalf("expected prompt and inline image, got %+v", parts)
	}
	if parts[1].InlineData.MIMEType != "image/jpeg" {
		t.Fatalf("expected default mime type, got %q", parts[1].InlineData.MIMEType)
	}

	if _, err := extractor.ExtractText(context.Background(), nil, "image/png"); err == nil {
		t.Fatal("expected error for empty image")
	}
}
