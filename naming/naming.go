// Package naming derives a room's display name from its type, explicit name
// and the classified participant set. It is pure: structural problems are
// reported as an InvariantError and the caller decides what to do with the
// room (in practice: delete it and answer "not found").
package naming

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"talk-lab/domain"
)

// Participant pairs a registry identity with its resolvable display label,
// ordered most recently active first.
type Participant struct {
	Identity string
	Label    string
}

// Localizer supplies the phrase templates naming needs. locale.Catalog is
// the default implementation.
type Localizer interface {
	You() string
	ListSeparator() string
	Guests(n int) string
	OtherGuests(n int) string
}

// Result carries the derived naming of a room for one specific caller.
// Name may differ from the stored name only for one-to-one rooms, where it
// is rewritten to the other participant's identity.
type Result struct {
	Name         string
	DisplayName  string
	GuestSummary string
}

// InvariantError signals a structural inconsistency between the room's type
// and its participant set. The room must not be shown to anyone afterwards.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("room invariant violated: %s", e.Reason)
}

// ComputeDisplayName applies the per-type naming rules. users is the ranked
// label list for every resolvable user in the room, callerID is empty for an
// anonymous guest, and activeGuests is the guest count already adjusted for
// the caller (never negative).
func ComputeDisplayName(room *domain.Room, users []Participant, activeGuests int, callerID string, loc Localizer) (Result, error) {
	res := Result{
		Name:        room.Name,
		DisplayName: room.Name,
	}

	others := lo.Filter(users, func(p Participant, _ int) bool {
		return p.Identity != callerID
	})
	isGuest := callerID == ""

	switch room.Type {
	case domain.OneToOneCall:
		// The room is named after the one other person in it. Any other
		// count means the structure is corrupt beyond repair.
		if len(others) != 1 {
			return Result{}, &InvariantError{
				Reason: fmt.Sprintf("one-to-one room with %d other participants", len(others)),
			}
		}
		res.Name = others[0].Identity
		res.DisplayName = others[0].Label
		return res, nil

	case domain.PublicCall, domain.GroupCall:
		if room.Type == domain.PublicCall && activeGuests > 0 {
			if isGuest {
				res.GuestSummary = loc.OtherGuests(activeGuests)
			} else {
				res.GuestSummary = loc.Guests(activeGuests)
			}
		}

		if room.Name != "" {
			// Explicit names win verbatim; the guest summary is still
			// reported alongside.
			return res, nil
		}

		labels := lo.Map(others, func(p Participant, _ int) string {
			return p.Label
		})
		if isGuest {
			labels = append(labels, loc.You())
		} else if len(others) == 0 {
			labels = []string{loc.You()}
		}
		if res.GuestSummary != "" {
			labels = append(labels, res.GuestSummary)
		}
		res.DisplayName = strings.Join(labels, loc.ListSeparator())
		return res, nil

	default:
		return Result{}, &InvariantError{
			Reason: fmt.Sprintf("unknown room type %d", room.Type),
		}
	}
}
