package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStoreMemory(t *testing.T) {
	t.Parallel()

	store, closeFn, err := openStore(context.Background(), AppConfig{StoreDriver: DriverMemory}, discard())
	require.NoError(t, err)
	defer closeFn()
	assert.NoError(t, store.Healthcheck(context.Background()))
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	t.Parallel()

	_, _, err := openStore(context.Background(), AppConfig{StoreDriver: "sqlite"}, discard())
	assert.ErrorIs(t, err, ErrUnknownStoreDriver)
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, err := loadCatalog(ctx, AppConfig{})
	require.NoError(t, err)
	_, ok := c.ByPriceID("price_pro_monthly")
	assert.True(t, ok)

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`plans:
  - id: starter
    name: Starter
    price_id: price_starter
    price:
      amount: 500
      currency: EUR
    interval: month
`), 0o600))
	c, err = loadCatalog(ctx, AppConfig{PlansFile: path})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	_, ok = c.ByPriceID("price_starter")
	assert.True(t, ok)
}

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	cmd := rootCmd()
	for _, name := range []string{"serve", "migrate", "replay"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
}
