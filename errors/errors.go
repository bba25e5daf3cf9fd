package errors

import "fmt"

// Room and lookup failures. ErrRoomNotFound is also surfaced after a
// corrective deletion: once an invariant violation is handled the room no
// longer exists, so callers observe it as missing.
var (
	ErrRoomNotFound    = fmt.Errorf("room not found")
	ErrUserNotFound    = fmt.Errorf("user not found")
	ErrGroupNotFound   = fmt.Errorf("group not found")
	ErrRoomNameTooLong = fmt.Errorf("room name too long")
	ErrRenameRefused   = fmt.Errorf("room name is not editable")
	ErrUnknownRoomType = fmt.Errorf("unknown room type")
)

// Account and token failures, shared by the auth service and middleware.
var (
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// ErrWorkerPanic is reported by the supervisor when a worker panics.
var ErrWorkerPanic = fmt.Errorf("worker panic")
