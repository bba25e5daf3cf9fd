// Package domain contains core concepts of the call-room system.
// This file defines Participant entries and identity metadata.
package domain

import "time"

// ParticipantKind tells an authenticated user apart from an anonymous guest.
type ParticipantKind int

const (
	KindUser ParticipantKind = iota + 1
	KindGuest
)

// Participant is the per-room state of one user or guest.
// LastPing and SessionID are refreshed by the heartbeat path; everything
// else is fixed at join time.
type Participant struct {
	// Identity is the user ID for users, the session ID for guests.
	Identity string
	Kind     ParticipantKind

	// LastPing is the last observed liveness signal.
	LastPing time.Time

	// SessionID is empty for a user who registered but never opened a session.
	SessionID string
}

// User is a resolved authenticated identity, as returned by the
// identity resolver. Rooms only store the ID.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

// Group is a named directory group whose members can seed a group room.
type Group struct {
	Name string
}
