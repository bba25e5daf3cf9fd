package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"talk-lab/api/middleware"
	"talk-lab/errors"
	"talk-lab/observability"
	"talk-lab/repositories"
	"talk-lab/services"
)

// guestSessionHeader carries the anonymous caller's session id. A missing
// header means a guest with no presence at all.
const guestSessionHeader = "X-Guest-Session"

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	log        *slog.Logger
	rooms      services.IRoomService
	auth       services.IAuthService
	activities repositories.IActivityRepository
	monitoring *observability.MonitoringManager
}

func NewHandler(
	log *slog.Logger,
	rooms services.IRoomService,
	auth services.IAuthService,
	activities repositories.IActivityRepository,
	monitoring *observability.MonitoringManager,
) *Handler {
	return &Handler{
		log:        log,
		rooms:      rooms,
		auth:       auth,
		activities: activities,
		monitoring: monitoring,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("response encoding failed", "error", err)
	}
}

// Error maps a domain error onto its HTTP status and sends a JSON body.
func (h *Handler) Error(w http.ResponseWriter, err error) {
	h.JSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrRoomNotFound),
		stderrors.Is(err, errors.ErrUserNotFound),
		stderrors.Is(err, errors.ErrGroupNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrRoomNameTooLong),
		stderrors.Is(err, errors.ErrUnknownRoomType),
		stderrors.Is(err, errors.ErrInvalidPassword):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrRenameRefused):
		return http.StatusMethodNotAllowed
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// caller builds the service-layer identity from the request: the user id
// injected by the auth middleware, or the guest session header.
func caller(r *http.Request) services.Caller {
	return services.Caller{
		UserID:    middleware.UserID(r.Context()),
		SessionID: r.Header.Get(guestSessionHeader),
	}
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
