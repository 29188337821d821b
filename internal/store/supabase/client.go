package supabase

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/store"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

const (
	restPath        = "/rest/v1/"
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "spigell/scheme-matcher"

	defaultPageSize = 500
)

type Config struct {
	URL      string `mapstructure:"url"`
	Key      string `mapstructure:"key"`
	KeyFile  string `mapstructure:"key-file"`
	PageSize int    `mapstructure:"page-size"`
}

// Client reads the user_profiles and schemes tables through the PostgREST
// endpoint of a Supabase project.
type Client struct {
	baseURL    string
	key        string
	pageSize   int
	logger     *zap.Logger
	HTTPClient *http.Client
}

func New(cfg Config, key string, log *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("supabase url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse supabase url: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{
		baseURL:    base,
		key:        key,
		pageSize:   pageSize,
		logger:     logger.WithFields(log, zap.String("store", store.BackendSupabase)),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) GetUser(ctx context.Context, email string) (*welfare.Profile, error) {
	email = strings.TrimSpace(email)

	q := url.Values{}
	q.Set("select", "*")
	q.Set("email", "eq."+email)
	q.Set("limit", "1")

	var rows []map[string]any
	if err := c.getJSON(ctx, store.UsersTable, q, &rows); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, email)
	}

	return welfare.DecodeProfile(rows[0])
}

// ListSchemes reads all pages of the schemes table.
func (c *Client) ListSchemes(ctx context.Context) (*welfare.Schemes, error) {
	var all []map[string]any

	for offset := 0; ; offset += c.pageSize {
		q := url.Values{}
		q.Set("select", "*")
		q.Set("order", "id.asc")
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page []map[string]any
		if err := c.getJSON(ctx, store.SchemesTable, q, &page); err != nil {
			return nil, fmt.Errorf("list schemes: %w", err)
		}
		all = append(all, page...)

		if len(page) < c.pageSize {
			break
		}
		c.logger.Debug("additional request needed", zap.Int("offset", offset+c.pageSize))
	}

	return store.DecodeSchemes(all, c.logger), nil
}

// Ping checks that the REST endpoint answers with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	return c.getJSON(ctx, store.SchemesTable, q, nil)
}

func (c *Client) getJSON(ctx context.Context, table string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+restPath+table, nil)
	if err != nil {
		return err
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)
	req.URL.RawQuery = q.Encode()

	resp, err := c.request(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.key))
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Accept", contentType)

	return req
}
