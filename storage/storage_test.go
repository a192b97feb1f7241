package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/account"
	"github.com/trezcool/playmate/storage"
	"github.com/trezcool/playmate/testutil"
)

func TestOpen(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		conf := testutil.NewConfig(t)

		repos, err := storage.Open(context.Background(), conf, core.NewNopLogger())
		require.NoError(t, err)
		t.Cleanup(func() { _ = repos.Close() })

		acc := testutil.CreateAccount(t, repos.Account, "sensei", "Sensei", account.RoleAdmin, "s3cure-Pass", true)
		got, err := repos.Account.GetAccount(context.Background(), acc.ID)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)
	})
	t.Run("unknown backend", func(t *testing.T) {
		conf := testutil.NewConfig(t)
		conf.Storage = "mongo"

		_, err := storage.Open(context.Background(), conf, core.NewNopLogger())
		assert.EqualError(t, err, `unknown storage "mongo": expected sql or firestore`)
	})
}

func TestRepositories_Close(t *testing.T) {
	var repos storage.Repositories
	assert.NoError(t, repos.Close())

	sqlRepos := storage.NewSQL(testutil.PrepareDB(t))
	assert.NoError(t, sqlRepos.Close())
}
