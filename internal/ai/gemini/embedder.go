package gemini

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

const embeddingTaskType = "SEMANTIC_SIMILARITY"

type Embedder struct {
	client *Client
	model  string
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.client == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text to embed must not be empty")
	}

	var values []float32
	err := e.client.call(ctx, e.model, "embed content", func(ctx context.Context) error {
		resp, err := e.client.models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
			TaskType: embeddingTaskType,
		})
		if err != nil {
			return err
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
			return errors.New("gemini api returned empty embedding")
		}
		values = resp.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, err
	}

	return values, nil
}

func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}
