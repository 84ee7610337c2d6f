package users

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiliyo/wiliyo/internal/common"
)

func TestFileRepository_MissingFileStartsEmpty(t *testing.T) {
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFileRepository_CreateAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	ctx := context.Background()

	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	created := time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC)
	_, err = repo.Create(ctx, &User{
		Username:     "alice",
		PasswordHash: "$2a$10$fakehash",
		CreatedAt:    created,
		LastIP:       "10.0.0.5",
	})
	require.NoError(t, err)

	// A fresh repository reading the same artifact sees the record.
	reloaded, err := NewFileRepository(path)
	require.NoError(t, err)

	user, err := reloaded.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "$2a$10$fakehash", user.PasswordHash)
	assert.Equal(t, "10.0.0.5", user.LastIP)
	assert.Equal(t, created.Format(createdAtLayout), user.CreatedAt.Format(createdAtLayout))
}

func TestFileRepository_ArtifactShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	ctx := context.Background()

	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	_, err = repo.Create(ctx, &User{Username: "alice", PasswordHash: "h", LastIP: "1.2.3.4"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records map[string]map[string]string
	require.NoError(t, json.Unmarshal(data, &records))
	require.Contains(t, records, "alice")
	assert.Equal(t, "h", records["alice"]["password"])
	assert.Equal(t, "1.2.3.4", records["alice"]["last_ip"])
	assert.NotEmpty(t, records["alice"]["created"])
}

func TestFileRepository_GetMiss(t *testing.T) {
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	_, err = repo.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFileRepository_DuplicateCreate(t *testing.T) {
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Create(ctx, &User{Username: "alice", PasswordHash: "h1"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &User{Username: "alice", PasswordHash: "h2"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	user, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h1", user.PasswordHash, "losing create must not overwrite")
}

func TestFileRepository_UsernamesAreCaseSensitive(t *testing.T) {
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Create(ctx, &User{Username: "Alice", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = repo.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrNotFound)

	exists, err := repo.Exists(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileRepository_BrokenArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileRepository(path)
	assert.Error(t, err)
}
