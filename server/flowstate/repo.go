// Package flowstate stores short-lived, single-use state for browser auth
// flows: the state/nonce pair of a federated sign-in, and the recovery
// token captured from a password-reset link before the URL is cleaned.
package flowstate

import "time"

type State struct {
	Nonce         string
	RecoveryToken string
	ReturnURL     string
	CreatedAt     time.Time
}

type Repo interface {
	Upsert(id string, state *State) error
	// Consume returns the state and removes it. Every id is single use.
	Consume(id string) (*State, error)
}
