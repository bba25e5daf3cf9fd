// Package domain contains core concepts of the call-room system.
// This file defines Room entities, room types and structural rules.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoomType discriminates the three call flavours. The numeric values are
// part of the public API (they travel in requests and stored records).
type RoomType int

const (
	OneToOneCall RoomType = iota + 1
	GroupCall
	PublicCall
)

func (t RoomType) Valid() bool {
	return t == OneToOneCall || t == GroupCall || t == PublicCall
}

func (t RoomType) String() string {
	switch t {
	case OneToOneCall:
		return "one2one"
	case GroupCall:
		return "group"
	case PublicCall:
		return "public"
	default:
		return "unknown"
	}
}

const (
	// MaxRoomNameLength bounds user-settable room names, in bytes.
	MaxRoomNameLength = 200

	// PresenceWindow is the span after which an unrefreshed ping is stale.
	PresenceWindow = 30 * time.Second
)

type RoomID string

// Room is the in-memory view of a call room, materialized per operation
// from the repository. The Room owns its participant maps; nothing outside
// the repository and the room service mutates them.
type Room struct {
	ID    RoomID
	Token string
	Type  RoomType
	Name  string

	// Users is keyed by user ID, Guests by session ID.
	Users  map[string]Participant
	Guests map[string]Participant
}

func NewRoom(roomType RoomType) *Room {
	return &Room{
		ID:     RoomID(uuid.NewString()),
		Token:  uuid.NewString(),
		Type:   roomType,
		Users:  make(map[string]Participant),
		Guests: make(map[string]Participant),
	}
}

// Count returns the total number of participant entries, users and guests.
func (r *Room) Count() int {
	return len(r.Users) + len(r.Guests)
}

func (r *Room) HasUser(userID string) bool {
	_, ok := r.Users[userID]
	return ok
}

func (r *Room) AddUser(userID string, now time.Time) {
	r.Users[userID] = Participant{
		Identity: userID,
		Kind:     KindUser,
		LastPing: now,
	}
}

func (r *Room) AddGuest(sessionID string, now time.Time) {
	r.Guests[sessionID] = Participant{
		Identity:  sessionID,
		Kind:      KindGuest,
		LastPing:  now,
		SessionID: sessionID,
	}
}

func (r *Room) RemoveUser(userID string) {
	delete(r.Users, userID)
}

func (r *Room) RemoveGuests(sessionIDs []string) {
	for _, sid := range sessionIDs {
		delete(r.Guests, sid)
	}
}

// IsNameEditable reports whether the explicit name may be changed.
// One-to-one rooms always derive their name from the other participant.
func (r *Room) IsNameEditable() bool {
	return r.Type != OneToOneCall
}
