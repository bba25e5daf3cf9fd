//go:generate go run go.uber.org/mock/mockgen -source=activity.go -destination=../mocks/mock_activity_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// IActivityRepository records invitation activities per target user.
type IActivityRepository interface {
	Store(activity Activity) error
	ForUser(userID string, limit int) ([]Activity, error)
}

// Activity is one room-invitation event as seen by its target.
type Activity struct {
	ID       uuid.UUID `json:"id"`
	Actor    string    `json:"actor"`
	Target   string    `json:"target"`
	RoomID   string    `json:"room_id"`
	RoomName string    `json:"room_name"`
	At       time.Time `json:"at"`
}

type ActivityRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewActivityRepository(db *badger.DB, log *slog.Logger) *ActivityRepository {
	return &ActivityRepository{db: db, log: log}
}

// Store persists an activity under "activity:{target}:{timestamp}:{uuid}".
// The 19-digit zero padding keeps keys chronologically sorted under Badger's
// lexicographic ordering; the UUID disambiguates same-nanosecond events.
func (a *ActivityRepository) Store(activity Activity) error {
	key := fmt.Sprintf("activity:%s:%019d:%s",
		activity.Target,
		activity.At.UnixNano(),
		activity.ID,
	)
	data, err := json.Marshal(activity)
	if err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// ForUser returns the newest activities for a user, most recent first.
func (a *ActivityRepository) ForUser(userID string, limit int) ([]Activity, error) {
	var activities []Activity
	err := a.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("activity:%s:", userID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible timestamp, then walk backwards.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(activities) == limit {
				break
			}
			var activity Activity
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &activity)
			}); err != nil {
				return err
			}
			activities = append(activities, activity)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("activities for %s: %w", userID, err)
	}
	return activities, nil
}
