package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxLoginFailures = 5
	lockoutDuration  = 15 * time.Minute
	sessionTTL       = 24 * time.Hour
)

// LoginResult is the outcome of a login attempt. Invalid credentials and a
// locked account are states, not errors.
type LoginResult interface{ loginResult() }

// LoginOK carries the issued session token.
type LoginOK struct{ Token string }

// LoginInvalid means the username/password pair did not match.
type LoginInvalid struct{}

// LoginLocked means too many failures; retry after Until.
type LoginLocked struct{ Until time.Time }

// LoginNotConfigured means no admin credentials are set.
type LoginNotConfigured struct{}

func (LoginOK) loginResult()            {}
func (LoginInvalid) loginResult()       {}
func (LoginLocked) loginResult()        {}
func (LoginNotConfigured) loginResult() {}

// Authenticator verifies admin credentials and issues session tokens.
// Failed attempts are counted per username; the counter resets on success
// or when the lockout window passes.
type Authenticator struct {
	username     string
	passwordHash string

	mu       sync.Mutex
	failures map[string]int
	lockedAt map[string]time.Time
	sessions map[string]time.Time
}

// NewAuthenticator builds an authenticator from configured credentials.
func NewAuthenticator(username, passwordHash string) *Authenticator {
	return &Authenticator{
		username:     username,
		passwordHash: passwordHash,
		failures:     make(map[string]int),
		lockedAt:     make(map[string]time.Time),
		sessions:     make(map[string]time.Time),
	}
}

// Login checks the pair and returns one of the four outcomes.
func (a *Authenticator) Login(username, password string) LoginResult {
	if a.username == "" || a.passwordHash == "" {
		return LoginNotConfigured{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if lockedAt, ok := a.lockedAt[username]; ok {
		until := lockedAt.Add(lockoutDuration)
		if time.Now().Before(until) {
			return LoginLocked{Until: until}
		}
		delete(a.lockedAt, username)
		delete(a.failures, username)
	}

	if username != a.username ||
		bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) != nil {
		a.failures[username]++
		if a.failures[username] >= maxLoginFailures {
			a.lockedAt[username] = time.Now()
			return LoginLocked{Until: time.Now().Add(lockoutDuration)}
		}
		return LoginInvalid{}
	}

	delete(a.failures, username)
	token := uuid.NewString()
	a.sessions[token] = time.Now().Add(sessionTTL)
	return LoginOK{Token: token}
}

// ValidSession reports whether the token names a live session.
func (a *Authenticator) ValidSession(token string) bool {
	if token == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	expiry, ok := a.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(a.sessions, token)
		return false
	}
	return true
}

// Logout revokes a session token.
func (a *Authenticator) Logout(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, token)
}
