package api_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"talk-lab/api"
	"talk-lab/api/handlers"
	"talk-lab/auth"
	"talk-lab/domain"
	"talk-lab/locale"
	"talk-lab/moderation"
	"talk-lab/notify"
	"talk-lab/observability"
	"talk-lab/repositories"
	"talk-lab/services"
)

type testServer struct {
	srv        *httptest.Server
	monitoring *observability.MonitoringManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	roomRepository := repositories.NewRoomRepository(db, log)
	accountRepository := repositories.NewAccountRepository(db)
	activityRepository := repositories.NewActivityRepository(db, log)
	notifier := notify.NewActivityNotifier(activityRepository)
	censor, err := moderation.NewCensor([]string{"badword"}, '*')
	require.NoError(t, err)

	roomService := services.NewRoomService(
		log, roomRepository, accountRepository, notifier, nil, censor, locale.NewEnglish(),
	)
	authService := services.NewAuthService(accountRepository, time.Hour)

	monitoring := observability.NewMonitoringManager(log)
	handler := handlers.NewHandler(log, roomService, authService, activityRepository, monitoring)
	router := api.NewRouter(log, handler, monitoring, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, monitoring: monitoring}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// register creates an account and returns its token and user id.
func (ts *testServer) register(t *testing.T, email, displayName string) (string, string) {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/register", "", handlers.RegisterRequest{
		Email:       email,
		DisplayName: displayName,
		Password:    "ComplexPass123!",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	token := decodeBody[handlers.TokenResponse](t, resp).Token
	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	return token, claims.UserID
}

func TestAPI_RegisterAndLogin(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)

	ts.register(t, "alice@example.com", "Alice A.")

	// Duplicate email
	resp := ts.do(t, http.MethodPost, "/register", "", handlers.RegisterRequest{
		Email:       "alice@example.com",
		DisplayName: "Alice A.",
		Password:    "ComplexPass123!",
	}, nil)
	req.Equal(http.StatusConflict, resp.StatusCode)

	// Wrong password
	resp = ts.do(t, http.MethodPost, "/login", "", handlers.LoginRequest{
		Email:    "alice@example.com",
		Password: "WrongPassword123!",
	}, nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Correct password
	resp = ts.do(t, http.MethodPost, "/login", "", handlers.LoginRequest{
		Email:    "alice@example.com",
		Password: "ComplexPass123!",
	}, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.NotEmpty(decodeBody[handlers.TokenResponse](t, resp).Token)
}

func TestAPI_OneToOneFlow(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	aliceToken, _ := ts.register(t, "alice@example.com", "Alice A.")
	bobToken, bobID := ts.register(t, "bob@example.com", "Bob B.")

	resp := ts.do(t, http.MethodPost, "/rooms", aliceToken, handlers.CreateRoomRequest{
		RoomType: int(domain.OneToOneCall),
		Invite:   bobID,
	}, nil)
	req.Equal(http.StatusCreated, resp.StatusCode)
	token := decodeBody[services.CreateResult](t, resp).Token

	// Alice sees the room named after Bob
	resp = ts.do(t, http.MethodGet, "/rooms/"+token, aliceToken, nil, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	view := decodeBody[services.RoomView](t, resp)
	req.Equal("Bob B.", view.DisplayName)
	req.False(view.IsNameEditable)

	// Renaming a one-to-one room is refused
	resp = ts.do(t, http.MethodPut, "/rooms/"+token, aliceToken, handlers.RenameRequest{Name: "Secret"}, nil)
	req.Equal(http.StatusMethodNotAllowed, resp.StatusCode)

	// Creating again reuses the room
	resp = ts.do(t, http.MethodPost, "/rooms", bobToken, handlers.CreateRoomRequest{
		RoomType: int(domain.OneToOneCall),
		Invite:   func() string { claims, _ := auth.ValidateToken(aliceToken); return claims.UserID }(),
	}, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal(token, decodeBody[services.CreateResult](t, resp).Token)

	// Bob has one invitation in his activity feed
	resp = ts.do(t, http.MethodGet, "/activities", bobToken, nil, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Len(decodeBody[[]repositories.Activity](t, resp), 1)

	// Both sides list the room
	resp = ts.do(t, http.MethodGet, "/rooms", aliceToken, nil, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Len(decodeBody[[]services.RoomView](t, resp), 1)
}

func TestAPI_AccessControl(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	aliceToken, _ := ts.register(t, "alice@example.com", "Alice A.")
	bobToken, bobID := ts.register(t, "bob@example.com", "Bob B.")
	carolToken, _ := ts.register(t, "carol@example.com", "Carol C.")

	resp := ts.do(t, http.MethodPost, "/rooms", aliceToken, handlers.CreateRoomRequest{
		RoomType: int(domain.OneToOneCall),
		Invite:   bobID,
	}, nil)
	req.Equal(http.StatusCreated, resp.StatusCode)
	token := decodeBody[services.CreateResult](t, resp).Token

	// A non-member cannot tell the room exists
	resp = ts.do(t, http.MethodGet, "/rooms/"+token, carolToken, nil, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)

	// Nor can an anonymous guest
	resp = ts.do(t, http.MethodGet, "/rooms/"+token, "", nil, nil)
	req.Equal(http.StatusNotFound, resp.StatusCode)

	// Members can
	resp = ts.do(t, http.MethodGet, "/rooms/"+token, bobToken, nil, nil)
	req.Equal(http.StatusOK, resp.StatusCode)

	// Authenticated routes reject missing tokens
	resp = ts.do(t, http.MethodGet, "/rooms", "", nil, nil)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_PublicRoomGuests(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	aliceToken, _ := ts.register(t, "alice@example.com", "Alice A.")

	resp := ts.do(t, http.MethodPost, "/rooms", aliceToken, handlers.CreateRoomRequest{
		RoomType: int(domain.PublicCall),
	}, nil)
	req.Equal(http.StatusCreated, resp.StatusCode)
	token := decodeBody[services.CreateResult](t, resp).Token

	// A guest pings in with a session header
	guestHeaders := map[string]string{"X-Guest-Session": "guest-session-1"}
	resp = ts.do(t, http.MethodPost, "/rooms/"+token+"/ping", "", nil, guestHeaders)
	req.Equal(http.StatusNoContent, resp.StatusCode)

	// Without the header a guest ping is rejected
	resp = ts.do(t, http.MethodPost, "/rooms/"+token+"/ping", "", nil, nil)
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	// Alice now sees two active participants and a guest summary
	resp = ts.do(t, http.MethodGet, "/rooms/"+token, aliceToken, nil, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	view := decodeBody[services.RoomView](t, resp)
	req.Equal(2, view.ActiveCount)
	req.Equal("1 guest", view.GuestSummary)

	// Making the room private shuts the guest out
	resp = ts.do(t, http.MethodDelete, "/rooms/"+token+"/public", aliceToken, nil, nil)
	req.Equal(http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/rooms/"+token, "", nil, guestHeaders)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestAPI_RenameValidation(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	aliceToken, _ := ts.register(t, "alice@example.com", "Alice A.")

	resp := ts.do(t, http.MethodPost, "/rooms", aliceToken, handlers.CreateRoomRequest{
		RoomType: int(domain.PublicCall),
	}, nil)
	req.Equal(http.StatusCreated, resp.StatusCode)
	token := decodeBody[services.CreateResult](t, resp).Token

	// Over the byte bound
	resp = ts.do(t, http.MethodPut, "/rooms/"+token, aliceToken, handlers.RenameRequest{
		Name: strings.Repeat("a", domain.MaxRoomNameLength+1),
	}, nil)
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	// A censored name goes through cleaned
	resp = ts.do(t, http.MethodPut, "/rooms/"+token, aliceToken, handlers.RenameRequest{Name: "badword lounge"}, nil)
	req.Equal(http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/rooms/"+token, aliceToken, nil, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Equal("******* lounge", decodeBody[services.RoomView](t, resp).Name)
}

func TestAPI_UnknownRoomType(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	aliceToken, _ := ts.register(t, "alice@example.com", "Alice A.")

	resp := ts.do(t, http.MethodPost, "/rooms", aliceToken, handlers.CreateRoomRequest{RoomType: 9}, nil)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}
