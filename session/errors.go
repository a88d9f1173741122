package session

import "errors"

var (
	// ErrNotUnlocked is returned by any operation requiring an unlocked
	// session when the session is Locked or LockedOut.
	ErrNotUnlocked = errors.New("session: vault is not unlocked")

	// ErrBadPassword is returned by Unlock on a wrong password, while
	// the session remains (or becomes) lockable.
	ErrBadPassword = errors.New("session: incorrect password")

	// ErrLockedOut is returned by Unlock while a lockout is in effect.
	ErrLockedOut = errors.New("session: too many failed attempts, locked out")
)
