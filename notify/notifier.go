//go:generate go run go.uber.org/mock/mockgen -source=notifier.go -destination=../mocks/mock_notifier.go -package=mocks

// Package notify defines the notification dispatcher contract the room
// service calls on membership-adding events. Dispatch is best effort by
// contract: the membership change has already committed when a notifier
// runs, so failures are logged by the caller and never rolled back.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"talk-lab/domain"
	"talk-lab/repositories"
)

// INotifier is invoked once per invited user.
type INotifier interface {
	Invite(ctx context.Context, actor, target domain.User, room *domain.Room) error
}

// ActivityNotifier records each invitation in the per-user activity feed.
type ActivityNotifier struct {
	activities repositories.IActivityRepository
}

func NewActivityNotifier(activities repositories.IActivityRepository) *ActivityNotifier {
	return &ActivityNotifier{activities: activities}
}

func (n *ActivityNotifier) Invite(_ context.Context, actor, target domain.User, room *domain.Room) error {
	return n.activities.Store(repositories.Activity{
		ID:       uuid.New(),
		Actor:    actor.ID,
		Target:   target.ID,
		RoomID:   string(room.ID),
		RoomName: room.Name,
		At:       time.Now().UTC(),
	})
}
