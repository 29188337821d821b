package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDecodeSchemesSkipsBrokenRows(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)

	schemes := DecodeSchemes([]map[string]any{
		{"id": "10", "scheme_name": "Housing", "eligible_castes": []any{"SC"}},
		{"scheme_name": "No id"},
		{"id": float64(11), "eligible_castes": "Anyone"},
	}, zap.New(core))

	require.Equal(t, 2, schemes.Len())
	assert.Equal(t, []string{"10", "11"}, schemes.IDs())
	assert.Equal(t, "Housing", schemes.Items[0].Name)
	assert.Equal(t, 1, observed.FilterMessage("skipping scheme row").Len())
}
