package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
)

func TestMemoryTokenRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()

	_, err := repo.Get(ctx, "s1", "token")
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "s1", "token", "abc", 0))
	require.NoError(t, repo.Set(ctx, "s2", "token", "other", 0))

	val, err := repo.Get(ctx, "s1", "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", val)

	require.NoError(t, repo.DeleteSession(ctx, "s1"))
	_, err = repo.Get(ctx, "s1", "token")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	val, err = repo.Get(ctx, "s2", "token")
	require.NoError(t, err)
	assert.Equal(t, "other", val)
}

func TestMemoryTokenRepositoryExpiry(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Set(ctx, "s1", "token", "abc", time.Minute))
	_, err := repo.Get(ctx, "s1", "token")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = repo.Get(ctx, "s1", "token")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}
