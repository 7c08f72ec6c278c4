package domain

import (
	"errors"
	"sync"
)

// ErrIdentityAlreadySet is returned when the bot identity is assigned twice
var ErrIdentityAlreadySet = errors.New("bot identity already set")

// Identity holds the bot's display name on the chat platform.
// It starts empty and is set exactly once, after login.
type Identity struct {
	mu   sync.RWMutex
	name string
	set  bool
}

// NewIdentity creates an unset identity
func NewIdentity() *Identity {
	return &Identity{}
}

// Set assigns the display name. Only the first call succeeds.
func (i *Identity) Set(name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.set {
		return ErrIdentityAlreadySet
	}
	i.name = name
	i.set = true
	return nil
}

// Name returns the display name and whether it has been set
func (i *Identity) Name() (string, bool) {
	if i == nil {
		return "", false
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.name, i.set
}
