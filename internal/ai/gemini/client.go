package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/utils"
)

const (
	Provider = "gemini"

	DefaultEmbeddingModel = "text-embedding-004"
	DefaultOCRModel       = "gemini-2.5-flash"

	defaultMaxRetries    = 3
	defaultBackoff       = time.Second
	defaultMaxQuotaDelay = 30 * time.Second
)

var sleep = utils.WaitFor

var retryDelayPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*s`)

// modelsAPI is the subset of genai.Models used by this package.
type modelsAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey         string        `mapstructure:"api-key"`
	EmbeddingModel string        `mapstructure:"embedding-model"`
	OCRModel       string        `mapstructure:"ocr-model"`
	MaxRetries     int           `mapstructure:"max-retries"`
	Backoff        time.Duration `mapstructure:"backoff"`
	MaxQuotaDelay  time.Duration `mapstructure:"max-quota-delay"`
}

// Client wraps the Google GenAI client and applies a shared retry policy to
// every model call.
type Client struct {
	models        modelsAPI
	maxRetries    int
	backoff       time.Duration
	maxQuotaDelay time.Duration
	logger        *zap.Logger

	embeddingModel string
	ocrModel       string
}

// NewClient creates a Client configured for the Gemini API backend.
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newClient(client.Models, cfg, log), nil
}

func newClient(models modelsAPI, cfg Config, log *zap.Logger) *Client {
	c := &Client{
		models:         models,
		maxRetries:     cfg.MaxRetries,
		backoff:        cfg.Backoff,
		maxQuotaDelay:  cfg.MaxQuotaDelay,
		embeddingModel: strings.TrimSpace(cfg.EmbeddingModel),
		ocrModel:       strings.TrimSpace(cfg.OCRModel),
		logger:         logger.WithFields(log, zap.String(logger.FieldProvider, Provider)),
	}

	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.maxQuotaDelay <= 0 {
		c.maxQuotaDelay = defaultMaxQuotaDelay
	}
	if c.embeddingModel == "" {
		c.embeddingModel = DefaultEmbeddingModel
	}
	if c.ocrModel == "" {
		c.ocrModel = DefaultOCRModel
	}

	return c
}

// Embedder returns an ai.Embedder backed by the configured embedding model.
func (c *Client) Embedder() *Embedder {
	return &Embedder{client: c, model: c.embeddingModel}
}

// TextExtractor returns an ai.TextExtractor backed by the configured OCR model.
func (c *Client) TextExtractor() *TextExtractor {
	return &TextExtractor{client: c, model: c.ocrModel}
}

// call runs fn until it succeeds, the error is permanent or maxRetries
// attempts were made.
func (c *Client) call(ctx context.Context, model, op string, fn func(context.Context) error) error {
	log := logger.WithFields(c.logger, zap.String(logger.FieldModel, model), zap.String("operation", op))

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		delay, retryable := c.retryDelay(lastErr, attempt)
		if !retryable || attempt == c.maxRetries {
			break
		}

		log.Warn("gemini call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return fmt.Errorf("%s: %w", op, lastErr)
}

// retryDelay decides whether err is worth another attempt and how long to
// wait before it. Quota errors are retried only when the server asks for a
// delay shorter than maxQuotaDelay.
func (c *Client) retryDelay(err error, attempt int) (time.Duration, bool) {
	apiErr, ok := asAPIError(err)
	if !ok {
		return 0, false
	}

	backoff := c.backoff << (attempt - 1)

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		delay, found := quotaDelay(apiErr.Message)
		if !found {
			return backoff, true
		}
		if delay > c.maxQuotaDelay {
			return 0, false
		}
		return delay, true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	default:
		return 0, false
	}
}

func asAPIError(err error) (genai.APIError, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func quotaDelay(message string) (time.Duration, bool) {
	match := retryDelayPattern.FindStringSubmatch(message)
	if match == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
