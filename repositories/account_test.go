package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "talk-lab/errors"
)

func TestAccountRepository_CreateUser_And_Resolve(t *testing.T) {
	req := require.New(t)
	repo := NewAccountRepository(openTestDB(t))

	id, err := repo.CreateUser("alice@example.com", "Alice A.", "hash")
	req.NoError(err)
	req.NotEmpty(id)

	user, err := repo.ResolveUser(id)
	req.NoError(err)
	req.Equal("Alice A.", user.DisplayName)
	req.Equal("alice@example.com", user.Email)

	account, err := repo.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(id, account.ID)
	req.Equal("hash", account.PasswordHash)
}

func TestAccountRepository_CreateUser_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repo := NewAccountRepository(openTestDB(t))

	_, err := repo.CreateUser("alice@example.com", "Alice A.", "hash")
	req.NoError(err)

	_, err = repo.CreateUser("alice@example.com", "Impostor", "hash2")
	req.ErrorIs(err, apperrors.ErrUserAlreadyExists)
}

func TestAccountRepository_ResolveUser_Miss(t *testing.T) {
	repo := NewAccountRepository(openTestDB(t))

	_, err := repo.ResolveUser("missing")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestAccountRepository_ResolveGroup_Drops_Missing_Members(t *testing.T) {
	req := require.New(t)
	repo := NewAccountRepository(openTestDB(t))

	aliceID, err := repo.CreateUser("alice@example.com", "Alice A.", "hash")
	req.NoError(err)
	bobID, err := repo.CreateUser("bob@example.com", "Bob B.", "hash")
	req.NoError(err)

	// Given a group with one dangling member id
	req.NoError(repo.CreateGroup("engineering", []string{aliceID, bobID, "ghost"}))

	group, members, err := repo.ResolveGroup("engineering")
	req.NoError(err)
	req.Equal("engineering", group.Name)
	req.Len(members, 2)
}

func TestAccountRepository_ResolveGroup_Miss(t *testing.T) {
	repo := NewAccountRepository(openTestDB(t))

	_, _, err := repo.ResolveGroup("nope")
	require.ErrorIs(t, err, apperrors.ErrGroupNotFound)
}
