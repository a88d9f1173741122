package session_test

import (
	"testing"
	"time"

	"github.com/ZiyanaliSaiyed/GraphiVault/session"
	"github.com/ZiyanaliSaiyed/GraphiVault/vaultlayout"
)

func testPolicy() vaultlayout.Policy {
	p := vaultlayout.DefaultPolicy()
	p.MaxFailedAttempts = 3
	p.LockoutDuration = vaultlayout.Duration(50 * time.Millisecond)
	p.IdleTimeout = vaultlayout.Duration(50 * time.Millisecond)

	return p
}

func newKeyFile(t *testing.T, password string) vaultlayout.KeyFile {
	t.Helper()

	kf, _, _, err := vaultlayout.NewKeyFile([]byte(password))
	if err != nil {
		t.Fatalf("new key file: %v", err)
	}

	return kf
}

func TestUnlockWithCorrectPassword(t *testing.T) {
	m := session.NewManager(testPolicy())
	kf := newKeyFile(t, "correct horse")

	if m.Status() != session.Locked {
		t.Fatalf("expected initial status Locked")
	}

	if err := m.Unlock(kf, []byte("correct horse")); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	if m.Status() != session.Unlocked {
		t.Fatalf("expected Unlocked after correct password")
	}

	if _, err := m.Controller(); err != nil {
		t.Fatalf("expected a controller once unlocked: %v", err)
	}

	if id, err := m.SessionID(); err != nil || id == "" {
		t.Fatalf("expected a non-empty session id, got %q, err %v", id, err)
	}
}

func TestUnlockWithWrongPasswordIncrementsAttempts(t *testing.T) {
	m := session.NewManager(testPolicy())
	kf := newKeyFile(t, "correct horse")

	if err := m.Unlock(kf, []byte("wrong")); err != session.ErrBadPassword {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}

	if m.FailedAttempts() != 1 {
		t.Fatalf("expected 1 failed attempt, got %d", m.FailedAttempts())
	}

	if m.Status() != session.Locked {
		t.Fatalf("expected still Locked after one failure")
	}
}

func TestLockoutAfterMaxFailedAttempts(t *testing.T) {
	m := session.NewManager(testPolicy())
	kf := newKeyFile(t, "correct horse")

	for i := 0; i < 3; i++ {
		if err := m.Unlock(kf, []byte("wrong")); err != session.ErrBadPassword {
			t.Fatalf("attempt %d: expected ErrBadPassword, got %v", i, err)
		}
	}

	if m.Status() != session.LockedOut {
		t.Fatalf("expected LockedOut after max failures")
	}

	if err := m.Unlock(kf, []byte("correct horse")); err != session.ErrLockedOut {
		t.Fatalf("expected ErrLockedOut even with correct password during lockout, got %v", err)
	}

	time.Sleep(75 * time.Millisecond)

	if m.Status() != session.Locked {
		t.Fatalf("expected lockout to expire back to Locked")
	}

	if err := m.Unlock(kf, []byte("correct horse")); err != nil {
		t.Fatalf("expected unlock to succeed after lockout expiry: %v", err)
	}
}

func TestIdleExpiryZeroizesAndLocks(t *testing.T) {
	m := session.NewManager(testPolicy())
	kf := newKeyFile(t, "correct horse")

	if err := m.Unlock(kf, []byte("correct horse")); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	time.Sleep(75 * time.Millisecond)

	if m.Status() != session.Locked {
		t.Fatalf("expected idle timeout to lock the session")
	}

	if _, err := m.Controller(); err != session.ErrNotUnlocked {
		t.Fatalf("expected ErrNotUnlocked after idle expiry, got %v", err)
	}
}

func TestTouchResetsIdleTimer(t *testing.T) {
	m := session.NewManager(testPolicy())
	kf := newKeyFile(t, "correct horse")

	if err := m.Unlock(kf, []byte("correct horse")); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if err := m.Touch(); err != nil {
		t.Fatalf("touch: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if m.Status() != session.Unlocked {
		t.Fatalf("expected activity to keep the session unlocked")
	}
}

func TestExplicitLockZeroizes(t *testing.T) {
	m := session.NewManager(testPolicy())
	kf := newKeyFile(t, "correct horse")

	if err := m.Unlock(kf, []byte("correct horse")); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	m.Lock()

	if m.Status() != session.Locked {
		t.Fatalf("expected Locked after explicit lock")
	}

	if _, err := m.Controller(); err != session.ErrNotUnlocked {
		t.Fatalf("expected ErrNotUnlocked after explicit lock, got %v", err)
	}
}
