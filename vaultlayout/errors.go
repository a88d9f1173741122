package vaultlayout

import "errors"

var (
	// ErrAlreadyExists is returned by [Create] when the root already
	// looks like a vault.
	ErrAlreadyExists = errors.New("vaultlayout: vault already exists")

	// ErrNotAVault is returned when a root is missing mandatory entries
	// or its config does not parse.
	ErrNotAVault = errors.New("vaultlayout: not a vault directory")
)
