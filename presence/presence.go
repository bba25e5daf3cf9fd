// Package presence classifies room participants as active or stale against
// a liveness window. Classification is pure: "now" is always an argument,
// and the guest cleanup it recommends is applied by an explicit Reconcile
// step so read paths stay side-effect free until the caller decides.
package presence

import (
	"sort"
	"time"

	"talk-lab/domain"
)

// Ranked is one classified participant. Slices of Ranked are always ordered
// by LastPing descending (most recently active first); callers rely on this
// for ranked participant lists.
type Ranked struct {
	Identity  string
	LastPing  time.Time
	SessionID string
	Active    bool
}

// Classification is the outcome of evaluating a room's registry at a given
// instant.
type Classification struct {
	// Users holds every user entry, active or not. Authenticated membership
	// persists regardless of liveness; staleness is only reported.
	Users []Ranked

	// ActiveGuests holds guests inside the window.
	ActiveGuests []Ranked

	// StaleGuests holds session IDs due for cleanup.
	StaleGuests []string
}

// Classify evaluates the room's participants at instant now. A participant
// is active iff now-lastPing < window, strictly: an age of exactly the
// window is inactive.
func Classify(room *domain.Room, now time.Time, window time.Duration) Classification {
	var c Classification

	for _, p := range room.Users {
		c.Users = append(c.Users, Ranked{
			Identity:  p.Identity,
			LastPing:  p.LastPing,
			SessionID: p.SessionID,
			Active:    active(p, now, window),
		})
	}
	for sid, p := range room.Guests {
		if !active(p, now, window) {
			c.StaleGuests = append(c.StaleGuests, sid)
			continue
		}
		c.ActiveGuests = append(c.ActiveGuests, Ranked{
			Identity:  p.Identity,
			LastPing:  p.LastPing,
			SessionID: p.SessionID,
			Active:    true,
		})
	}

	sortByLastPing(c.Users)
	sortByLastPing(c.ActiveGuests)
	sort.Strings(c.StaleGuests)
	return c
}

// Reconcile applies the cleanup decision to the in-memory room: stale guest
// entries are purged. The caller is responsible for mirroring the purge in
// the persistence collaborator; this step counts as a write for concurrency
// purposes even when reached from a read path.
func Reconcile(room *domain.Room, c Classification) {
	room.RemoveGuests(c.StaleGuests)
}

// CleanupDue reports whether any guest entry fell out of the window.
func (c Classification) CleanupDue() bool {
	return len(c.StaleGuests) > 0
}

// ActiveCount counts every active participant, users and guests alike.
func (c Classification) ActiveCount() int {
	n := len(c.ActiveGuests)
	for _, u := range c.Users {
		if u.Active {
			n++
		}
	}
	return n
}

// GuestCount returns the active-guest count a caller should display. An
// anonymous caller does not count itself; the subtraction is approximate
// (the caller may not be in the active set yet) so the result clamps at 0.
func (c Classification) GuestCount(callerIsGuest bool) int {
	n := len(c.ActiveGuests)
	if callerIsGuest {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

func active(p domain.Participant, now time.Time, window time.Duration) bool {
	return now.Sub(p.LastPing) < window
}

func sortByLastPing(rs []Ranked) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].LastPing.Equal(rs[j].LastPing) {
			return rs[i].Identity < rs[j].Identity
		}
		return rs[i].LastPing.After(rs[j].LastPing)
	})
}
