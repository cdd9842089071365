package library

import (
	"log"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing message about the outcome of an operation.
type Notice struct {
	Level    Level     `json:"level"`
	Message  string    `json:"message"`
	BookHash string    `json:"bookHash,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier delivers notices to the user.
type Notifier interface {
	Notify(Notice)
}

// Session is the sign-in surface of the identity provider.
type Session interface {
	// RequestLogin asks the user to sign in again.
	RequestLogin()
}

const defaultBoardSize = 50

// Board keeps the most recent notices and the pending re-login request for
// clients that poll rather than subscribe.
type Board struct {
	mu             sync.Mutex
	limit          int
	notices        []Notice
	loginRequested bool
}

func NewBoard(limit int) *Board {
	if limit <= 0 {
		limit = defaultBoardSize
	}
	return &Board{limit: limit}
}

func (b *Board) Notify(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	log.Printf("Library: [%s] %s", n.Level, n.Message)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, n)
	if len(b.notices) > b.limit {
		b.notices = b.notices[len(b.notices)-b.limit:]
	}
}

func (b *Board) RequestLogin() {
	b.mu.Lock()
	b.loginRequested = true
	b.mu.Unlock()

	b.Notify(Notice{Level: LevelWarning, Message: "Your session has expired. Please sign in again."})
}

// Notices returns the retained notices, oldest first.
func (b *Board) Notices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notice(nil), b.notices...)
}

func (b *Board) LoginRequested() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginRequested
}

// ClearLoginRequest is called once the user has signed in again.
func (b *Board) ClearLoginRequest() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginRequested = false
}
