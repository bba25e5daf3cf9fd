//go:generate go run go.uber.org/mock/mockgen -source=room_service.go -destination=../mocks/mock_room_service.go -package=mocks
package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"talk-lab/domain"
	apperrors "talk-lab/errors"
	"talk-lab/moderation"
	"talk-lab/naming"
	"talk-lab/notify"
	"talk-lab/presence"
	"talk-lab/repositories"
	"talk-lab/search"
)

// Caller identifies whoever is performing an operation. UserID is empty for
// anonymous guests, which are keyed by their session instead.
type Caller struct {
	UserID    string
	SessionID string
}

func (c Caller) IsGuest() bool { return c.UserID == "" }

// IIdentityResolver is the identity collaborator: opaque ids in, resolved
// users and groups out. repositories.AccountRepository implements it.
type IIdentityResolver interface {
	ResolveUser(id string) (domain.User, error)
	ResolveGroup(name string) (domain.Group, []domain.User, error)
}

// RoomView is the formatted, caller-specific view of a room.
type RoomView struct {
	ID             string               `json:"id"`
	Token          string               `json:"token"`
	Type           domain.RoomType      `json:"type"`
	Name           string               `json:"name"`
	DisplayName    string               `json:"displayName"`
	IsNameEditable bool                 `json:"isNameEditable"`
	ActiveCount    int                  `json:"count"`
	LastPing       int64                `json:"lastPing"`
	SessionID      string               `json:"sessionId"`
	Participants   []naming.Participant `json:"participants"`
	GuestSummary   string               `json:"guestList"`
}

// CreateResult reports where a creation request landed. Created is false
// when an existing one-to-one room was reused.
type CreateResult struct {
	Token   string `json:"token"`
	Created bool   `json:"-"`
}

// AddResult reports the room type after adding a participant, since adding
// to a one-to-one room promotes it to a group room.
type AddResult struct {
	Type     domain.RoomType `json:"type"`
	Promoted bool            `json:"-"`
}

type IRoomService interface {
	ListRooms(ctx context.Context, caller Caller) ([]RoomView, error)
	GetRoom(ctx context.Context, caller Caller, token string) (RoomView, error)
	CreateRoom(ctx context.Context, caller Caller, roomType domain.RoomType, invite string) (CreateResult, error)
	Rename(ctx context.Context, caller Caller, token, name string) error
	AddParticipant(ctx context.Context, caller Caller, token, userID string) (AddResult, error)
	RemoveSelf(ctx context.Context, caller Caller, token string) error
	MakePublic(ctx context.Context, caller Caller, token string) error
	MakePrivate(ctx context.Context, caller Caller, token string) error
	Heartbeat(ctx context.Context, caller Caller, token string) error
	SearchPublicRooms(ctx context.Context, query string) ([]search.Entry, error)
}

// RoomService owns the guarded room mutations: invariant checks, type
// transitions and the corrective deletions they may force. All persistence
// goes through the room repository; per-room locks serialize mutations
// (including guest cleanup, a write reached from the read path).
type RoomService struct {
	log       *slog.Logger
	rooms     repositories.IRoomRepository
	resolver  IIdentityResolver
	notifier  notify.INotifier
	directory *search.Directory
	censor    *moderation.Censor
	loc       naming.Localizer

	window time.Duration
	clock  func() time.Time

	mu    sync.Mutex
	locks map[domain.RoomID]*sync.Mutex
}

func NewRoomService(
	log *slog.Logger,
	rooms repositories.IRoomRepository,
	resolver IIdentityResolver,
	notifier notify.INotifier,
	directory *search.Directory,
	censor *moderation.Censor,
	loc naming.Localizer,
) *RoomService {
	return &RoomService{
		log:       log,
		rooms:     rooms,
		resolver:  resolver,
		notifier:  notifier,
		directory: directory,
		censor:    censor,
		loc:       loc,
		window:    domain.PresenceWindow,
		clock:     func() time.Time { return time.Now().UTC() },
		locks:     make(map[domain.RoomID]*sync.Mutex),
	}
}

// ListRooms returns the formatted view of every room the caller is in.
// Rooms that fail their invariant check while formatting are deleted by the
// formatting path and silently skipped here.
func (s *RoomService) ListRooms(ctx context.Context, caller Caller) ([]RoomView, error) {
	if caller.IsGuest() {
		return nil, nil
	}
	rooms, err := s.rooms.FindForParticipant(caller.UserID)
	if err != nil {
		return nil, err
	}
	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		view, err := s.formatRoom(ctx, room, caller)
		if err != nil {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *RoomService) GetRoom(ctx context.Context, caller Caller, token string) (RoomView, error) {
	room, err := s.rooms.FindByToken(token, caller.UserID)
	if err != nil {
		return RoomView{}, err
	}
	return s.formatRoom(ctx, room, caller)
}

func (s *RoomService) CreateRoom(ctx context.Context, caller Caller, roomType domain.RoomType, invite string) (CreateResult, error) {
	switch roomType {
	case domain.OneToOneCall:
		return s.createOneToOneRoom(ctx, caller, invite)
	case domain.GroupCall:
		return s.createGroupRoom(ctx, caller, invite)
	case domain.PublicCall:
		return s.createPublicRoom(ctx, caller)
	default:
		return CreateResult{}, apperrors.ErrUnknownRoomType
	}
}

// createOneToOneRoom reuses the existing room for the unordered pair when
// there is one; only a genuinely new room triggers an invitation.
func (s *RoomService) createOneToOneRoom(ctx context.Context, caller Caller, invite string) (CreateResult, error) {
	if caller.IsGuest() {
		return CreateResult{}, apperrors.ErrUserNotFound
	}
	current, err := s.resolver.ResolveUser(caller.UserID)
	if err != nil {
		return CreateResult{}, err
	}
	target, err := s.resolver.ResolveUser(invite)
	if err != nil {
		return CreateResult{}, err
	}

	if existing, err := s.rooms.FindOneToOne(current.ID, target.ID); err == nil {
		return CreateResult{Token: existing.Token}, nil
	} else if !errors.Is(err, apperrors.ErrRoomNotFound) {
		return CreateResult{}, err
	}

	room, err := s.rooms.Create(domain.OneToOneCall)
	if err != nil {
		return CreateResult{}, err
	}
	now := s.clock()
	if err := s.rooms.AddUser(room.ID, current.ID, now); err != nil {
		return CreateResult{}, err
	}
	if err := s.rooms.AddUser(room.ID, target.ID, now); err != nil {
		return CreateResult{}, err
	}
	s.dispatchInvite(ctx, current, target, room)
	return CreateResult{Token: room.Token, Created: true}, nil
}

// createGroupRoom seeds a room from a directory group, adding the creator
// when the group does not already contain them.
func (s *RoomService) createGroupRoom(ctx context.Context, caller Caller, groupName string) (CreateResult, error) {
	if caller.IsGuest() {
		return CreateResult{}, apperrors.ErrUserNotFound
	}
	current, err := s.resolver.ResolveUser(caller.UserID)
	if err != nil {
		return CreateResult{}, err
	}
	group, members, err := s.resolver.ResolveGroup(groupName)
	if err != nil {
		return CreateResult{}, err
	}
	if !lo.ContainsBy(members, func(u domain.User) bool { return u.ID == current.ID }) {
		members = append(members, current)
	}

	room, err := s.rooms.Create(domain.GroupCall)
	if err != nil {
		return CreateResult{}, err
	}
	if err := s.rooms.SetName(room.ID, group.Name); err != nil {
		return CreateResult{}, err
	}
	room.Name = group.Name

	now := s.clock()
	for _, member := range members {
		if err := s.rooms.AddUser(room.ID, member.ID, now); err != nil {
			return CreateResult{}, err
		}
		if member.ID != current.ID {
			s.dispatchInvite(ctx, current, member, room)
		}
	}
	return CreateResult{Token: room.Token, Created: true}, nil
}

func (s *RoomService) createPublicRoom(_ context.Context, caller Caller) (CreateResult, error) {
	if caller.IsGuest() {
		return CreateResult{}, apperrors.ErrUserNotFound
	}
	current, err := s.resolver.ResolveUser(caller.UserID)
	if err != nil {
		return CreateResult{}, err
	}
	room, err := s.rooms.Create(domain.PublicCall)
	if err != nil {
		return CreateResult{}, err
	}
	if err := s.rooms.AddUser(room.ID, current.ID, s.clock()); err != nil {
		return CreateResult{}, err
	}
	s.indexRoom(room.Token, room.Name)
	return CreateResult{Token: room.Token, Created: true}, nil
}

// Rename validates and persists an explicit room name. Censoring the name
// never fails the rename; a refused write surfaces as ErrRenameRefused.
func (s *RoomService) Rename(_ context.Context, caller Caller, token, name string) error {
	room, err := s.rooms.FindByToken(token, caller.UserID)
	if err != nil {
		return err
	}
	if len(name) > domain.MaxRoomNameLength {
		return apperrors.ErrRoomNameTooLong
	}
	if s.censor != nil {
		name = s.censor.Clean(name)
	}

	unlock := s.lockRoom(room.ID)
	defer unlock()

	if err := s.rooms.SetName(room.ID, name); err != nil {
		return err
	}
	if room.Type == domain.PublicCall {
		s.indexRoom(room.Token, name)
	}
	return nil
}

// AddParticipant inserts a user into the room. Adding to a one-to-one room
// is exactly the mechanism that promotes it to a group room: the type
// changes first, then the add, then the notification.
func (s *RoomService) AddParticipant(ctx context.Context, caller Caller, token, userID string) (AddResult, error) {
	room, err := s.rooms.FindByToken(token, caller.UserID)
	if err != nil {
		return AddResult{}, err
	}
	if room.HasUser(userID) {
		return AddResult{Type: room.Type}, nil
	}

	current, err := s.resolver.ResolveUser(caller.UserID)
	if err != nil {
		return AddResult{}, err
	}
	newUser, err := s.resolver.ResolveUser(userID)
	if err != nil {
		return AddResult{}, err
	}

	unlock := s.lockRoom(room.ID)
	defer unlock()

	promoted := false
	if room.Type == domain.OneToOneCall {
		if err := s.rooms.SetType(room.ID, domain.GroupCall); err != nil {
			return AddResult{}, err
		}
		room.Type = domain.GroupCall
		promoted = true
	}
	if err := s.rooms.AddUser(room.ID, newUser.ID, s.clock()); err != nil {
		return AddResult{}, err
	}
	s.dispatchInvite(ctx, current, newUser, room)
	return AddResult{Type: room.Type, Promoted: promoted}, nil
}

// RemoveSelf takes the caller out of the room. A one-to-one room, or a room
// the caller is the last participant of, is deleted outright.
func (s *RoomService) RemoveSelf(_ context.Context, caller Caller, token string) error {
	room, err := s.rooms.FindByToken(token, caller.UserID)
	if err != nil {
		return err
	}

	unlock := s.lockRoom(room.ID)
	defer unlock()

	if room.Type == domain.OneToOneCall || room.Count() == 1 {
		return s.deleteRoom(room)
	}
	if caller.IsGuest() {
		return s.rooms.RemoveGuests(room.ID, []string{caller.SessionID})
	}
	return s.rooms.RemoveUser(room.ID, caller.UserID)
}

func (s *RoomService) MakePublic(_ context.Context, caller Caller, token string) error {
	room, err := s.rooms.FindByToken(token, caller.UserID)
	if err != nil {
		return err
	}
	if room.Type == domain.PublicCall {
		return nil
	}

	unlock := s.lockRoom(room.ID)
	defer unlock()

	if err := s.rooms.SetType(room.ID, domain.PublicCall); err != nil {
		return err
	}
	s.indexRoom(room.Token, room.Name)
	return nil
}

// MakePrivate demotes a public room to a group room. It never demotes to
// one-to-one; that shape is only reachable through participant removal.
func (s *RoomService) MakePrivate(_ context.Context, caller Caller, token string) error {
	room, err := s.rooms.FindByToken(token, caller.UserID)
	if err != nil {
		return err
	}
	if room.Type != domain.PublicCall {
		return nil
	}

	unlock := s.lockRoom(room.ID)
	defer unlock()

	if err := s.rooms.SetType(room.ID, domain.GroupCall); err != nil {
		return err
	}
	s.deindexRoom(room.Token)
	return nil
}

// Heartbeat refreshes the caller's liveness signal in the room.
func (s *RoomService) Heartbeat(_ context.Context, caller Caller, token string) error {
	room, err := s.rooms.FindByToken(token, caller.UserID)
	if err != nil {
		return err
	}
	return s.rooms.Touch(room.ID, caller.UserID, caller.SessionID, s.clock())
}

func (s *RoomService) SearchPublicRooms(ctx context.Context, query string) ([]search.Entry, error) {
	if s.directory == nil {
		return nil, nil
	}
	return s.directory.Search(ctx, query, 20)
}

// formatRoom classifies presence, reconciles stale guests, resolves labels
// and derives the display name. An invariant violation here deletes the
// room and reports it as not found; the caller never sees a partial view.
func (s *RoomService) formatRoom(_ context.Context, room *domain.Room, caller Caller) (RoomView, error) {
	now := s.clock()
	c := presence.Classify(room, now, s.window)
	if c.CleanupDue() {
		unlock := s.lockRoom(room.ID)
		if err := s.rooms.RemoveGuests(room.ID, c.StaleGuests); err != nil {
			s.log.Warn("stale guest cleanup failed", "room", room.ID, "error", err)
		}
		unlock()
		presence.Reconcile(room, c)
	}

	// Ranked labels; identities that no longer resolve contribute none.
	participants := make([]naming.Participant, 0, len(c.Users))
	for _, u := range c.Users {
		user, err := s.resolver.ResolveUser(u.Identity)
		if err != nil {
			continue
		}
		participants = append(participants, naming.Participant{
			Identity: u.Identity,
			Label:    user.DisplayName,
		})
	}

	res, err := naming.ComputeDisplayName(room, participants, c.GuestCount(caller.IsGuest()), caller.UserID, s.loc)
	if err != nil {
		var inv *naming.InvariantError
		if errors.As(err, &inv) {
			s.log.Warn("room failed invariant check, leaving room for everyone",
				"room", room.ID, "type", room.Type.String(), "reason", inv.Reason)
			unlock := s.lockRoom(room.ID)
			if derr := s.deleteRoom(room); derr != nil {
				s.log.Error("corrective deletion failed", "room", room.ID, "error", derr)
			}
			unlock()
			return RoomView{}, apperrors.ErrRoomNotFound
		}
		return RoomView{}, err
	}

	me := room.Users[caller.UserID]
	if caller.IsGuest() {
		me = room.Guests[caller.SessionID]
	}
	view := RoomView{
		ID:             string(room.ID),
		Token:          room.Token,
		Type:           room.Type,
		Name:           res.Name,
		DisplayName:    res.DisplayName,
		IsNameEditable: room.IsNameEditable(),
		ActiveCount:    c.ActiveCount(),
		SessionID:      me.SessionID,
		Participants:   participants,
		GuestSummary:   res.GuestSummary,
	}
	if !me.LastPing.IsZero() {
		view.LastPing = me.LastPing.Unix()
	}
	return view, nil
}

// deleteRoom removes the room and its directory entry. Callers hold the
// room lock.
func (s *RoomService) deleteRoom(room *domain.Room) error {
	if err := s.rooms.Delete(room.ID); err != nil {
		return err
	}
	s.deindexRoom(room.Token)
	return nil
}

// dispatchInvite is best effort: the membership change has committed and is
// never undone because a notification failed.
func (s *RoomService) dispatchInvite(ctx context.Context, actor, target domain.User, room *domain.Room) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Invite(ctx, actor, target, room); err != nil {
		s.log.Warn("invitation dispatch failed",
			"actor", actor.ID, "target", target.ID, "room", room.ID, "error", err)
	}
}

func (s *RoomService) indexRoom(token, name string) {
	if s.directory == nil {
		return
	}
	if err := s.directory.Index(token, name); err != nil {
		s.log.Warn("directory index failed", "token", token, "error", err)
	}
}

func (s *RoomService) deindexRoom(token string) {
	if s.directory == nil {
		return
	}
	if err := s.directory.Remove(token); err != nil {
		s.log.Warn("directory removal failed", "token", token, "error", err)
	}
}

// lockRoom serializes mutations of one room within this process. The
// repository serializes individual writes; this lock keeps multi-step
// guarded mutations (check-then-act on invariants) from interleaving.
func (s *RoomService) lockRoom(id domain.RoomID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
