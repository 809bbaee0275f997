package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

func TestUserRepo_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "hash"})
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, "Alice", created.Name)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, "hash", created.PasswordHash)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, model.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "hash"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, model.User{Name: "Other", Email: "alice@example.com", PasswordHash: "hash2"})
	assert.ErrorIs(t, err, driven.ErrUserAlreadyExists)
}

func TestUserRepo_GetByEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	created := createTestUser(t, db, "bob@example.com")

	got, err := repo.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.PasswordHash, got.PasswordHash)
}

func TestUserRepo_GetByEmail_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db)

	got, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserRepo_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	created := createTestUser(t, db, "carol@example.com")

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "carol@example.com", got.Email)

	missing, err := repo.GetByID(ctx, created.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
