// Package session implements the vault's single in-memory session state
// machine: Locked, Unlocked, and LockedOut, with idle expiry and
// failed-attempt lockout.
package session

import (
	"sync"
	"time"

	"github.com/ZiyanaliSaiyed/GraphiVault/randstring"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaultcrypto"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaultlayout"
)

// Status is one of the three states in spec §4.4's transition diagram.
type Status int

const (
	Locked Status = iota
	Unlocked
	LockedOut
)

func (s Status) String() string {
	switch s {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	case LockedOut:
		return "locked_out"
	default:
		return "unknown"
	}
}

const sessionIDAlphabet = "0123456789abcdef"

// sessionIDReissueInterval bounds how long a single session identifier
// is handed out before being rotated, independent of the crypto keys, so
// a leaked session id from one hour is useless in the next.
const sessionIDReissueInterval = time.Hour

// Manager holds the single session for a vault process. It is safe for
// concurrent use.
type Manager struct {
	mu sync.Mutex

	policy vaultlayout.Policy

	status         Status
	failedAttempts int
	lockedUntil    time.Time
	idleDeadline   time.Time

	sessionID         string
	sessionIDIssuedAt time.Time

	controller *vaultcrypto.Controller
}

// NewManager returns a Locked session governed by policy.
func NewManager(policy vaultlayout.Policy) *Manager {
	return &Manager{policy: policy, status: Locked}
}

// expireLocked applies idle-expiry and lockout-expiry transitions. Must
// be called with mu held.
func (m *Manager) expireLocked(now time.Time) {
	switch m.status {
	case LockedOut:
		if !now.Before(m.lockedUntil) {
			m.status = Locked
			m.failedAttempts = 0
		}
	case Unlocked:
		if now.After(m.idleDeadline) {
			m.zeroLocked()
		}
	case Locked:
	}
}

// zeroLocked transitions to Locked and zeroizes key material. Must be
// called with mu held.
func (m *Manager) zeroLocked() {
	m.controller.Zero()
	m.controller = nil
	m.status = Locked
	m.sessionID = ""
}

// Status reports the current state, applying any pending idle/lockout
// expiry first.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked(time.Now())

	return m.status
}

// Unlock verifies password against kf and, on success, transitions to
// Unlocked and starts the idle timer. On failure it increments the
// failed-attempt counter and transitions to LockedOut once the policy's
// max is reached.
func (m *Manager) Unlock(kf vaultlayout.KeyFile, password []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.expireLocked(now)

	if m.status == LockedOut {
		return ErrLockedOut
	}

	fileKey, tagKey, ok, err := kf.Verify(password)
	if err != nil {
		return err
	}

	if !ok {
		m.failedAttempts++

		if m.failedAttempts >= m.policy.MaxFailedAttempts {
			m.status = LockedOut
			m.lockedUntil = now.Add(time.Duration(m.policy.LockoutDuration))
		}

		return ErrBadPassword
	}

	controller, err := vaultcrypto.NewController(fileKey, tagKey)
	if err != nil {
		return err
	}

	sessionID, err := randstring.NewWithAlphabet(32, sessionIDAlphabet)
	if err != nil {
		return err
	}

	m.controller = controller
	m.status = Unlocked
	m.failedAttempts = 0
	m.idleDeadline = now.Add(time.Duration(m.policy.IdleTimeout))
	m.sessionID = sessionID
	m.sessionIDIssuedAt = now

	return nil
}

// Lock zeroizes key material and moves an Unlocked session to Locked. A
// LockedOut session stays LockedOut until its lockout window ends.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == Unlocked {
		m.zeroLocked()
	}
}

// Touch records activity: it resets the idle timer and, if the current
// session id has outlived sessionIDReissueInterval, reissues it. It
// fails with [ErrNotUnlocked] if the session is not Unlocked.
func (m *Manager) Touch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.expireLocked(now)

	if m.status != Unlocked {
		return ErrNotUnlocked
	}

	m.idleDeadline = now.Add(time.Duration(m.policy.IdleTimeout))

	if now.Sub(m.sessionIDIssuedAt) >= sessionIDReissueInterval {
		sessionID, err := randstring.NewWithAlphabet(32, sessionIDAlphabet)
		if err != nil {
			return err
		}

		m.sessionID = sessionID
		m.sessionIDIssuedAt = now
	}

	return nil
}

// Controller returns the crypto controller for the active session, or
// [ErrNotUnlocked] if locked.
func (m *Manager) Controller() (*vaultcrypto.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked(time.Now())

	if m.status != Unlocked {
		return nil, ErrNotUnlocked
	}

	return m.controller, nil
}

// SessionID returns the current session token, or [ErrNotUnlocked] if
// locked.
func (m *Manager) SessionID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked(time.Now())

	if m.status != Unlocked {
		return "", ErrNotUnlocked
	}

	return m.sessionID, nil
}

// FailedAttempts reports the number of consecutive failed unlock
// attempts recorded since the last successful unlock or lockout expiry.
func (m *Manager) FailedAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.failedAttempts
}

// LockedUntil reports the end of the current lockout window. The zero
// value means no lockout is in effect.
func (m *Manager) LockedUntil() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lockedUntil
}
