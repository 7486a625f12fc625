package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_OrderedAndEmbedded(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)

	for i := 1; i < len(ms); i++ {
		assert.Less(t, ms[i-1].Version, ms[i].Version)
	}
	assert.Equal(t, "0001_tenancy", ms[0].Version)
}

func TestMigrations_EveryTenantTableHasPolicy(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)

	var rls string
	for _, m := range ms {
		if strings.HasSuffix(m.Version, "row_level_security") {
			rls = m.SQL
		}
	}
	require.NotEmpty(t, rls)

	for _, table := range []string{"projects", "bids", "contracts", "change_orders", "employees", "time_entries", "payroll_batches", "rfis"} {
		assert.Contains(t, rls, "'"+table+"'")
	}
}
