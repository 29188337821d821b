package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/store"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

func setupMockDB(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, zap.NewNop()), mock
}

func TestGetUser(t *testing.T) {
	s, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"row_to_json"}).AddRow(`{
		"email": "asha@example.com", "name": "Asha Devi", "gender": "Female", "age": 34,
		"location": "Rural", "caste": "OBC", "disability": "No", "minority": "No",
		"student": false, "bpl": true, "income": 45000.5, "aadhar_verified": false
	}`)
	mock.ExpectQuery(regexp.QuoteMeta(userQuery)).WithArgs("asha@example.com").WillReturnRows(rows)

	profile, err := s.GetUser(context.Background(), " asha@example.com ")
	require.NoError(t, err)
	assert.Equal(t, 34, profile.Age)
	assert.Equal(t, welfare.FlagYes, profile.BPL)
	assert.Equal(t, welfare.FlagNo, profile.Student)
	assert.InDelta(t, 45000.5, profile.Income, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(userQuery)).WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}))

	_, err := s.GetUser(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, store.ErrUserNotFound), "got %v", err)
}

func TestGetUserIncompleteRow(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(userQuery)).WithArgs("a@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).AddRow(`{"email": "a@b.c", "gender": "Male"}`))

	_, err := s.GetUser(context.Background(), "a@b.c")
	assert.ErrorIs(t, err, welfare.ErrInvalidProfile)
}

func TestListSchemes(t *testing.T) {
	s, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"row_to_json"}).
		AddRow(`{"id": 1, "scheme_name": "Scholarship", "eligible_castes": ["SC", "ST"], "age_range": "18-25", "student": "Yes"}`).
		AddRow(`{"id": 2, "scheme_name": "Pension", "eligible_castes": "['Anyone']", "age_range": ">=60"}`).
		AddRow(`{"scheme_name": "Broken"}`)
	mock.ExpectQuery(regexp.QuoteMeta(schemesQuery)).WillReturnRows(rows)

	schemes, err := s.ListSchemes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, schemes.IDs())
	assert.Equal(t, []string{"SC", "ST"}, schemes.Items[0].EligibleCastes)
	assert.Equal(t, []string{"['Anyone']"}, schemes.Items[1].EligibleCastes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSchemesQueryError(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(schemesQuery)).WillReturnError(errors.New("connection reset"))

	_, err := s.ListSchemes(context.Background())
	assert.ErrorContains(t, err, "query schemes")
}

func TestDSN(t *testing.T) {
	cfg := Config{Host: "db", User: "app", Password: "p@ss", Database: "welfare"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/welfare?sslmode=disable", cfg.DSN())
}
