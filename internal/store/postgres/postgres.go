package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/store"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

// Rows are fetched as JSON so that columns of any type (text, bool, numeric,
// text[] or jsonb) reach the decoder in one shape.
const (
	userQuery    = `SELECT row_to_json(u)::text FROM ` + store.UsersTable + ` u WHERE u.email = $1 LIMIT 1`
	schemesQuery = `SELECT row_to_json(s)::text FROM ` + store.SchemesTable + ` s ORDER BY s.id`
)

type Config struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	Database       string `mapstructure:"database"`
	SSLMode        string `mapstructure:"sslmode"`
	MaxConnections int    `mapstructure:"max-connections"`
	MaxIdle        int    `mapstructure:"max-idle"`
}

// DSN builds a lib/pq connection URL.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func Open(cfg Config, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return New(db, log), nil
}

func New(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, logger: logger.WithFields(log, zap.String("store", store.BackendPostgres))}
}

func (s *Store) GetUser(ctx context.Context, email string) (*welfare.Profile, error) {
	email = strings.TrimSpace(email)

	var raw string
	err := s.db.QueryRowContext(ctx, userQuery, email).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	row, err := decodeRow(raw)
	if err != nil {
		return nil, fmt.Errorf("decode user row: %w", err)
	}

	return welfare.DecodeProfile(row)
}

func (s *Store) ListSchemes(ctx context.Context) (*welfare.Schemes, error) {
	rows, err := s.db.QueryContext(ctx, schemesQuery)
	if err != nil {
		return nil, fmt.Errorf("query schemes: %w", err)
	}
	defer rows.Close()

	var raws []map[string]any
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan scheme: %w", err)
		}
		row, err := decodeRow(raw)
		if err != nil {
			return nil, fmt.Errorf("decode scheme row: %w", err)
		}
		raws = append(raws, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemes: %w", err)
	}

	s.logger.Debug("loaded schemes", zap.Int("rows", len(raws)))

	return store.DecodeSchemes(raws, s.logger), nil
}

// Ping tests the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func decodeRow(raw string) (map[string]any, error) {
	var row map[string]any
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return nil, err
	}
	return row, nil
}
