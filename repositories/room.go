//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"talk-lab/domain"
	apperrors "talk-lab/errors"
)

// IRoomRepository is the persistence collaborator for rooms. It is the
// source of truth across restarts; the in-memory Room is a view materialized
// per operation. Writes to one room are serialized by Badger transactions.
type IRoomRepository interface {
	Create(roomType domain.RoomType) (*domain.Room, error)
	FindByToken(token, callerID string) (*domain.Room, error)
	FindForParticipant(userID string) ([]*domain.Room, error)
	FindOneToOne(userA, userB string) (*domain.Room, error)
	SetName(id domain.RoomID, name string) error
	SetType(id domain.RoomID, roomType domain.RoomType) error
	AddUser(id domain.RoomID, userID string, now time.Time) error
	AddGuest(id domain.RoomID, sessionID string, now time.Time) error
	RemoveUser(id domain.RoomID, userID string) error
	RemoveGuests(id domain.RoomID, sessionIDs []string) error
	Touch(id domain.RoomID, userID, sessionID string, now time.Time) error
	Delete(id domain.RoomID) error
	CountRooms() (int, error)
}

// RoomRepository stores rooms in BadgerDB. Key layout:
//
//	room:{id}                the room record
//	token:{token}            public token -> room id
//	pair:{a}/{b}             one-to-one pair index (sorted user ids) -> room id
//	part:{roomID}:u:{userID} user participant record
//	part:{roomID}:g:{sid}    guest participant record
//	member:{userID}:{roomID} membership index for per-user listing
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

type roomRecord struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Type  int    `json:"type"`
	Name  string `json:"name"`
}

type participantRecord struct {
	Identity  string `json:"identity"`
	Kind      int    `json:"kind"`
	LastPing  int64  `json:"last_ping"`
	SessionID string `json:"session_id,omitempty"`
}

func (r *RoomRepository) Create(roomType domain.RoomType) (*domain.Room, error) {
	room := domain.NewRoom(roomType)
	rec := roomRecord{
		ID:    string(room.ID),
		Token: room.Token,
		Type:  int(room.Type),
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, roomKey(room.ID), rec); err != nil {
			return err
		}
		return txn.Set([]byte(tokenKey(room.Token)), []byte(room.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	r.log.Debug("room created", "room", room.ID, "type", room.Type.String())
	return room, nil
}

// FindByToken resolves a room through its public token and enforces the
// access rule: public rooms are visible to anyone, every other type only to
// its user participants. A miss and a refusal are indistinguishable.
func (r *RoomRepository) FindByToken(token, callerID string) (*domain.Room, error) {
	var room *domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tokenKey(token)))
		if err != nil {
			return err
		}
		var id domain.RoomID
		if err := item.Value(func(val []byte) error {
			id = domain.RoomID(val)
			return nil
		}); err != nil {
			return err
		}
		room, err = loadRoom(txn, id)
		return err
	})
	if err != nil {
		return nil, notFound(err)
	}
	if room.Type != domain.PublicCall {
		if callerID == "" || !room.HasUser(callerID) {
			return nil, apperrors.ErrRoomNotFound
		}
	}
	return room, nil
}

func (r *RoomRepository) FindForParticipant(userID string) ([]*domain.Room, error) {
	var rooms []*domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("member:" + userID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := domain.RoomID(strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
			room, err := loadRoom(txn, id)
			if err != nil {
				// Dangling index entries are skipped, not fatal.
				r.log.Warn("membership index points to missing room", "user", userID, "room", id)
				continue
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rooms for %s: %w", userID, err)
	}
	return rooms, nil
}

func (r *RoomRepository) FindOneToOne(userA, userB string) (*domain.Room, error) {
	var room *domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(pairKey(userA, userB)))
		if err != nil {
			return err
		}
		var id domain.RoomID
		if err := item.Value(func(val []byte) error {
			id = domain.RoomID(val)
			return nil
		}); err != nil {
			return err
		}
		room, err = loadRoom(txn, id)
		return err
	})
	if err != nil {
		return nil, notFound(err)
	}
	return room, nil
}

// SetName persists a rename. One-to-one rooms always derive their name, so
// the write is refused for them and the caller sees a pass-through error.
func (r *RoomRepository) SetName(id domain.RoomID, name string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		rec, err := getRoomRecord(txn, id)
		if err != nil {
			return notFound(err)
		}
		if domain.RoomType(rec.Type) == domain.OneToOneCall {
			return apperrors.ErrRenameRefused
		}
		rec.Name = name
		return setJSON(txn, roomKey(id), rec)
	})
}

func (r *RoomRepository) SetType(id domain.RoomID, roomType domain.RoomType) error {
	return r.db.Update(func(txn *badger.Txn) error {
		rec, err := getRoomRecord(txn, id)
		if err != nil {
			return notFound(err)
		}
		if domain.RoomType(rec.Type) == domain.OneToOneCall && roomType != domain.OneToOneCall {
			// The pair index only tracks rooms that still are one-to-one.
			if err := dropPairIndex(txn, id); err != nil {
				return err
			}
		}
		rec.Type = int(roomType)
		return setJSON(txn, roomKey(id), rec)
	})
}

func (r *RoomRepository) AddUser(id domain.RoomID, userID string, now time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		rec, err := getRoomRecord(txn, id)
		if err != nil {
			return notFound(err)
		}
		part := participantRecord{
			Identity: userID,
			Kind:     int(domain.KindUser),
			LastPing: now.UnixNano(),
		}
		if err := setJSON(txn, userPartKey(id, userID), part); err != nil {
			return err
		}
		if err := txn.Set([]byte(memberKey(userID, id)), nil); err != nil {
			return err
		}
		if domain.RoomType(rec.Type) == domain.OneToOneCall {
			users, err := userIDs(txn, id)
			if err != nil {
				return err
			}
			if len(users) == 2 {
				return txn.Set([]byte(pairKey(users[0], users[1])), []byte(id))
			}
		}
		return nil
	})
}

func (r *RoomRepository) AddGuest(id domain.RoomID, sessionID string, now time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := getRoomRecord(txn, id); err != nil {
			return notFound(err)
		}
		part := participantRecord{
			Identity:  sessionID,
			Kind:      int(domain.KindGuest),
			LastPing:  now.UnixNano(),
			SessionID: sessionID,
		}
		return setJSON(txn, guestPartKey(id, sessionID), part)
	})
}

func (r *RoomRepository) RemoveUser(id domain.RoomID, userID string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		rec, err := getRoomRecord(txn, id)
		if err != nil {
			return notFound(err)
		}
		if domain.RoomType(rec.Type) == domain.OneToOneCall {
			if err := dropPairIndex(txn, id); err != nil {
				return err
			}
		}
		if err := txn.Delete([]byte(userPartKey(id, userID))); err != nil {
			return err
		}
		return txn.Delete([]byte(memberKey(userID, id)))
	})
}

func (r *RoomRepository) RemoveGuests(id domain.RoomID, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	return r.db.Update(func(txn *badger.Txn) error {
		for _, sid := range sessionIDs {
			if err := txn.Delete([]byte(guestPartKey(id, sid))); err != nil {
				return err
			}
		}
		return nil
	})
}

// Touch is the heartbeat mutator: it refreshes lastPing and the session of
// one participant. An unknown guest session joins the room on first touch;
// an unknown user does not.
func (r *RoomRepository) Touch(id domain.RoomID, userID, sessionID string, now time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if userID == "" {
			part := participantRecord{
				Identity:  sessionID,
				Kind:      int(domain.KindGuest),
				LastPing:  now.UnixNano(),
				SessionID: sessionID,
			}
			return setJSON(txn, guestPartKey(id, sessionID), part)
		}
		var part participantRecord
		if err := getJSON(txn, userPartKey(id, userID), &part); err != nil {
			return notFound(err)
		}
		part.LastPing = now.UnixNano()
		part.SessionID = sessionID
		return setJSON(txn, userPartKey(id, userID), part)
	})
}

// Delete removes the room and every participant entry irrevocably. Deleting
// a room that is already gone is a no-op.
func (r *RoomRepository) Delete(id domain.RoomID) error {
	return r.db.Update(func(txn *badger.Txn) error {
		rec, err := getRoomRecord(txn, id)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		if domain.RoomType(rec.Type) == domain.OneToOneCall {
			if err := dropPairIndex(txn, id); err != nil {
				return err
			}
		}

		prefix := []byte(partPrefix(id))
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			sub := strings.TrimPrefix(string(key), string(prefix))
			if uid, ok := strings.CutPrefix(sub, "u:"); ok {
				if err := txn.Delete([]byte(memberKey(uid, id))); err != nil {
					return err
				}
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		if err := txn.Delete([]byte(tokenKey(rec.Token))); err != nil {
			return err
		}
		return txn.Delete([]byte(roomKey(id)))
	})
}

// CountRooms is used by monitoring only.
func (r *RoomRepository) CountRooms() (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func loadRoom(txn *badger.Txn, id domain.RoomID) (*domain.Room, error) {
	rec, err := getRoomRecord(txn, id)
	if err != nil {
		return nil, err
	}
	room := &domain.Room{
		ID:     domain.RoomID(rec.ID),
		Token:  rec.Token,
		Type:   domain.RoomType(rec.Type),
		Name:   rec.Name,
		Users:  make(map[string]domain.Participant),
		Guests: make(map[string]domain.Participant),
	}

	prefix := []byte(partPrefix(id))
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var part participantRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &part)
		}); err != nil {
			return nil, err
		}
		p := domain.Participant{
			Identity:  part.Identity,
			Kind:      domain.ParticipantKind(part.Kind),
			LastPing:  time.Unix(0, part.LastPing).UTC(),
			SessionID: part.SessionID,
		}
		switch p.Kind {
		case domain.KindGuest:
			room.Guests[p.Identity] = p
		default:
			room.Users[p.Identity] = p
		}
	}
	return room, nil
}

func getRoomRecord(txn *badger.Txn, id domain.RoomID) (roomRecord, error) {
	var rec roomRecord
	err := getJSON(txn, roomKey(id), &rec)
	return rec, err
}

func userIDs(txn *badger.Txn, id domain.RoomID) ([]string, error) {
	prefix := []byte(partPrefix(id) + "u:")
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
	defer it.Close()
	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
	}
	sort.Strings(ids)
	return ids, nil
}

// dropPairIndex removes the one-to-one index entry of a room that is being
// promoted, shrunk or deleted. A room that never reached two users has no
// entry, which is fine.
func dropPairIndex(txn *badger.Txn, id domain.RoomID) error {
	users, err := userIDs(txn, id)
	if err != nil {
		return err
	}
	if len(users) != 2 {
		return nil
	}
	err = txn.Delete([]byte(pairKey(users[0], users[1])))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func roomKey(id domain.RoomID) string { return "room:" + string(id) }

func tokenKey(token string) string { return "token:" + token }

func partPrefix(id domain.RoomID) string { return "part:" + string(id) + ":" }

func memberKey(u string, id domain.RoomID) string { return "member:" + u + ":" + string(id) }

func userPartKey(id domain.RoomID, userID string) string {
	return partPrefix(id) + "u:" + userID
}

func guestPartKey(id domain.RoomID, sessionID string) string {
	return partPrefix(id) + "g:" + sessionID
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "pair:" + a + "/" + b
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// notFound maps a storage miss onto the domain taxonomy; everything else
// passes through untouched.
func notFound(err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrRoomNotFound
	}
	return err
}
