package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"talk-lab/domain"
	apperrors "talk-lab/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRoomRepository_Create_And_FindByToken(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	// Given a group room with one user
	room, err := repo.Create(domain.GroupCall)
	req.NoError(err)
	req.NoError(repo.AddUser(room.ID, "alice", now))

	// When looking it up by token as that user
	fetched, err := repo.FindByToken(room.Token, "alice")

	req.NoError(err)
	req.Equal(room.ID, fetched.ID)
	req.Equal(domain.GroupCall, fetched.Type)
	req.Len(fetched.Users, 1)
	req.Contains(fetched.Users, "alice")
}

func TestRoomRepository_FindByToken_Hides_Private_Rooms_From_Strangers(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	room, err := repo.Create(domain.GroupCall)
	req.NoError(err)
	req.NoError(repo.AddUser(room.ID, "alice", now))

	// A non-member and a guest both see nothing
	_, err = repo.FindByToken(room.Token, "mallory")
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
	_, err = repo.FindByToken(room.Token, "")
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestRoomRepository_FindByToken_Public_Room_Is_Open(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())

	room, err := repo.Create(domain.PublicCall)
	req.NoError(err)

	// Even a guest resolves a public room
	fetched, err := repo.FindByToken(room.Token, "")
	req.NoError(err)
	req.Equal(room.Token, fetched.Token)
}

func TestRoomRepository_FindOneToOne_Pair_Index(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	room, err := repo.Create(domain.OneToOneCall)
	req.NoError(err)
	req.NoError(repo.AddUser(room.ID, "alice", now))
	req.NoError(repo.AddUser(room.ID, "bob", now))

	// The pair resolves in both orders
	found, err := repo.FindOneToOne("alice", "bob")
	req.NoError(err)
	req.Equal(room.ID, found.ID)
	found, err = repo.FindOneToOne("bob", "alice")
	req.NoError(err)
	req.Equal(room.ID, found.ID)

	// A different pair does not
	_, err = repo.FindOneToOne("alice", "clara")
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestRoomRepository_SetType_Promotion_Drops_Pair_Index(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	room, err := repo.Create(domain.OneToOneCall)
	req.NoError(err)
	req.NoError(repo.AddUser(room.ID, "alice", now))
	req.NoError(repo.AddUser(room.ID, "bob", now))

	// When promoting to a group room
	req.NoError(repo.SetType(room.ID, domain.GroupCall))

	// Then the pair no longer resolves, so a fresh one-to-one can be created
	_, err = repo.FindOneToOne("alice", "bob")
	req.ErrorIs(err, apperrors.ErrRoomNotFound)

	fetched, err := repo.FindByToken(room.Token, "alice")
	req.NoError(err)
	req.Equal(domain.GroupCall, fetched.Type)
}

func TestRoomRepository_SetName_Refused_For_OneToOne(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())

	room, err := repo.Create(domain.OneToOneCall)
	req.NoError(err)

	err = repo.SetName(room.ID, "nope")
	req.ErrorIs(err, apperrors.ErrRenameRefused)
}

func TestRoomRepository_FindForParticipant(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	room1, err := repo.Create(domain.GroupCall)
	req.NoError(err)
	room2, err := repo.Create(domain.PublicCall)
	req.NoError(err)
	req.NoError(repo.AddUser(room1.ID, "alice", now))
	req.NoError(repo.AddUser(room2.ID, "alice", now))
	req.NoError(repo.AddUser(room2.ID, "bob", now))

	rooms, err := repo.FindForParticipant("alice")
	req.NoError(err)
	req.Len(rooms, 2)

	rooms, err = repo.FindForParticipant("bob")
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal(room2.ID, rooms[0].ID)
}

func TestRoomRepository_Guests_And_Touch(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	room, err := repo.Create(domain.PublicCall)
	req.NoError(err)

	// A guest joins through its first heartbeat
	req.NoError(repo.Touch(room.ID, "", "session-1", now))

	fetched, err := repo.FindByToken(room.Token, "")
	req.NoError(err)
	req.Len(fetched.Guests, 1)
	req.Equal(now, fetched.Guests["session-1"].LastPing)

	// A later heartbeat refreshes the ping
	later := now.Add(10 * time.Second)
	req.NoError(repo.Touch(room.ID, "", "session-1", later))
	fetched, err = repo.FindByToken(room.Token, "")
	req.NoError(err)
	req.Equal(later, fetched.Guests["session-1"].LastPing)

	// Removal purges the entry
	req.NoError(repo.RemoveGuests(room.ID, []string{"session-1"}))
	fetched, err = repo.FindByToken(room.Token, "")
	req.NoError(err)
	req.Empty(fetched.Guests)
}

func TestRoomRepository_Touch_Unknown_User_Fails(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())

	room, err := repo.Create(domain.GroupCall)
	req.NoError(err)

	err = repo.Touch(room.ID, "alice", "session-1", time.Now().UTC())
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestRoomRepository_Delete_Is_Complete_And_Idempotent(t *testing.T) {
	req := require.New(t)
	repo := NewRoomRepository(openTestDB(t), slog.Default())
	now := time.Now().UTC()

	room, err := repo.Create(domain.OneToOneCall)
	req.NoError(err)
	req.NoError(repo.AddUser(room.ID, "alice", now))
	req.NoError(repo.AddUser(room.ID, "bob", now))

	req.NoError(repo.Delete(room.ID))

	// Token, pair index and membership are all gone
	_, err = repo.FindByToken(room.Token, "alice")
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
	_, err = repo.FindOneToOne("alice", "bob")
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
	rooms, err := repo.FindForParticipant("alice")
	req.NoError(err)
	req.Empty(rooms)

	// Deleting again is a no-op
	req.NoError(repo.Delete(room.ID))
}
