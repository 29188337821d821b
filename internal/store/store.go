// Package store loads citizen profiles and the scheme catalog from the
// configured backend.
package store

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

const (
	UsersTable   = "user_profiles"
	SchemesTable = "schemes"

	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

var ErrUserNotFound = errors.New("user not found")

type Store interface {
	// GetUser returns the profile stored for email. It returns ErrUserNotFound
	// when no row matches and welfare.ErrInvalidProfile for incomplete rows.
	GetUser(ctx context.Context, email string) (*welfare.Profile, error)
	// ListSchemes returns the whole catalog in storage order.
	ListSchemes(ctx context.Context) (*welfare.Schemes, error)
}

// Pinger is implemented by backends that can report their readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DecodeSchemes converts raw catalog rows. Rows that can not be decoded are
// logged and skipped.
func DecodeSchemes(rows []map[string]any, log *zap.Logger) *welfare.Schemes {
	log = logger.WithFields(log)

	schemes := &welfare.Schemes{Items: make([]*welfare.Scheme, 0, len(rows))}
	for i, row := range rows {
		scheme, err := welfare.DecodeScheme(row)
		if err != nil {
			log.Warn("skipping scheme row", zap.Int("row", i), zap.Error(err))
			continue
		}
		schemes.Items = append(schemes.Items, scheme)
	}
	return schemes
}
