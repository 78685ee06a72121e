package db

import (
	"testing"

	"github.com/payitonchain/paygate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	d, err := Dialect(config.Config{DBType: "sqlite", DBName: "file::memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = Dialect(config.Config{DBType: "postgres", DBName: "paygate"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}

func TestDialectRejectsUnsupportedTypes(t *testing.T) {
	// MySQL has no partial indexes, so the pending-tuple uniqueness the
	// intent store depends on cannot hold there.
	for _, dbType := range []string{"mysql", "oracle", ""} {
		_, err := Dialect(config.Config{DBType: dbType})
		assert.Error(t, err, dbType)
	}
}
