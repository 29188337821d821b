package gemini

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/scheme-matcher/internal/utils"
)

const transcribePrompt = `Transcribe all printed text on this identity document image.
Keep the original line breaks. Output only the transcribed text, without commentary or formatting.`

// TextExtractor performs OCR by asking a multimodal model to transcribe the
// document image.
type TextExtractor struct {
	client *Client
	model  string
}

func (x *TextExtractor) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	if x == nil || x.client == nil {
		return "", errors.New("gemini text extractor is not initialized")
	}
	if len(image) == 0 {
		return "", errors.New("image must not be empty")
	}

	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: transcribePrompt},
			{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}},
		},
	}}

	var text string
	err := x.client.call(ctx, x.model, "extract text", func(ctx context.Context) error {
		resp, err := x.client.models.GenerateContent(ctx, x.model, contents, nil)
		if err != nil {
			return err
		}
		text = responseText(resp)
		return nil
	})
	if err != nil {
		return "", err
	}

	x.client.logger.Debug("extracted document text",
		zap.String("text", utils.TruncateForLog(text, 200)),
		zap.Int("bytes", len(image)),
	)

	return text, nil
}

func (x *TextExtractor) Model() string {
	if x == nil {
		return ""
	}
	return x.model
}
