package youtube

import (
	"math/rand"
	"sync"

	"github.com/samber/lo"
)

// CredentialPool hands out API keys. The current key stays in use until it
// fails; a failure moves every caller on to the next key.
type CredentialPool struct {
	mu      sync.Mutex
	keys    []string
	current int
}

// NewCredentialPool creates a pool starting at a random key.
func NewCredentialPool(keys ...string) *CredentialPool {
	p := &CredentialPool{keys: lo.Compact(keys)}
	if len(p.keys) > 1 {
		p.current = rand.Intn(len(p.keys))
	}
	return p
}

// NewCredentialPoolAt creates a pool starting at keys[start].
func NewCredentialPoolAt(start int, keys ...string) *CredentialPool {
	p := &CredentialPool{keys: lo.Compact(keys)}
	if len(p.keys) > 0 && start > 0 {
		p.current = start % len(p.keys)
	}
	return p
}

// Next returns the key currently in use.
func (p *CredentialPool) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", ErrNoCredentials
	}
	return p.keys[p.current], nil
}

// Fail rotates away from key. It is a no-op when another caller already rotated.
func (p *CredentialPool) Fail(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 || p.keys[p.current] != key {
		return
	}
	p.current = (p.current + 1) % len(p.keys)
}

// Len returns the number of keys in the pool.
func (p *CredentialPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
