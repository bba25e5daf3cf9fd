package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"talk-lab/api/middleware"
	"talk-lab/domain"
	"talk-lab/errors"
)

type CreateRoomRequest struct {
	// RoomType follows the wire encoding: 1 one-to-one, 2 group, 3 public.
	RoomType int `json:"roomType"`
	// Invite is the target user for one-to-one rooms and the directory
	// group name for group rooms. Unused for public rooms.
	Invite string `json:"invite,omitempty"`
}

type RenameRequest struct {
	Name string `json:"roomName"`
}

type AddParticipantRequest struct {
	UserID string `json:"newParticipant"`
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	views, err := h.rooms.ListRooms(r.Context(), caller(r))
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, views)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	view, err := h.rooms.GetRoom(r.Context(), caller(r), chi.URLParam(r, "token"))
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, view)
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decode(r, &req); err != nil {
		h.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	res, err := h.rooms.CreateRoom(r.Context(), caller(r), domain.RoomType(req.RoomType), req.Invite)
	if err != nil {
		h.Error(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	h.JSON(w, status, res)
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := decode(r, &req); err != nil {
		h.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if err := h.rooms.Rename(r.Context(), caller(r), chi.URLParam(r, "token"), req.Name); err != nil {
		h.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var req AddParticipantRequest
	if err := decode(r, &req); err != nil {
		h.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	res, err := h.rooms.AddParticipant(r.Context(), caller(r), chi.URLParam(r, "token"), req.UserID)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, res)
}

func (h *Handler) RemoveSelf(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.RemoveSelf(r.Context(), caller(r), chi.URLParam(r, "token")); err != nil {
		h.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MakePublic(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.MakePublic(r.Context(), caller(r), chi.URLParam(r, "token")); err != nil {
		h.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MakePrivate(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.MakePrivate(r.Context(), caller(r), chi.URLParam(r, "token")); err != nil {
		h.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	if c.UserID == "" && c.SessionID == "" {
		h.JSON(w, http.StatusBadRequest, map[string]string{"error": "guest session header required"})
		return
	}

	if err := h.rooms.Heartbeat(r.Context(), c, chi.URLParam(r, "token")); err != nil {
		h.Error(w, err)
		return
	}
	h.monitoring.IncrHeartbeatsReceived()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SearchRooms(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.JSON(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter q"})
		return
	}

	entries, err := h.rooms.SearchPublicRooms(r.Context(), query)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, entries)
}

func (h *Handler) Activities(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		h.Error(w, errors.ErrUserNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	activities, err := h.activities.ForUser(userID, limit)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, activities)
}
