// Package user implements the credential registry: NT-hashed accounts
// loaded from the password database at startup and replaced atomically
// on reload.
package user

import (
	"strings"
	"sync"

	"golang.org/x/crypto/md4"
	"golang.org/x/text/encoding/unicode"
)

// Flag is a bitset of account attributes (spec.md §3).
type Flag uint32

const (
	FlagGuest Flag = 1 << iota
	FlagAdmin
	FlagDisabled
)

// NTHash is a 16-byte NT-style password hash: MD4 over the UTF-16LE
// encoding of the password, exactly the transform Windows/SMB NTLM auth
// expects. Computed here via golang.org/x/crypto/md4 rather than a
// hand-rolled MD4 state machine (see DESIGN.md's Open Question
// resolution for the source's md4_update aliasing bug).
type NTHash [16]byte

// ComputeNTHash derives the NT hash of a cleartext password.
func ComputeNTHash(password string) (NTHash, error) {
	utf16le := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	encoded, err := utf16le.NewEncoder().Bytes([]byte(password))
	if err != nil {
		return NTHash{}, err
	}
	h := md4.New()
	h.Write(encoded)
	var out NTHash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// User is one account entry. Immutable after construction; the Registry
// replaces the whole entry on reload rather than mutating fields in
// place, so handlers holding a *User never see a half-updated account.
type User struct {
	name   string
	nthash NTHash
	flags  Flag
}

// New constructs a User.
func New(name string, hash NTHash, flags Flag) *User {
	return &User{name: name, nthash: hash, flags: flags}
}

func (u *User) Name() string   { return u.name }
func (u *User) NTHash() NTHash { return u.nthash }
func (u *User) Is(f Flag) bool { return u.flags&f != 0 }

// CheckNTHash reports whether candidate matches this account's stored
// NT hash. Disabled accounts never match.
func (u *User) CheckNTHash(candidate NTHash) bool {
	if u.Is(FlagDisabled) {
		return false
	}
	return u.nthash == candidate
}

// Registry is the process-wide set of known accounts, keyed by
// case-insensitive name, swapped atomically on reload.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*User)}
}

// Lookup finds a user by name (case-insensitive).
func (r *Registry) Lookup(name string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[strings.ToLower(name)]
	return u, ok
}

// Replace atomically swaps the registry contents with users.
func (r *Registry) Replace(users []*User) {
	m := make(map[string]*User, len(users))
	for _, u := range users {
		m[strings.ToLower(u.name)] = u
	}
	r.mu.Lock()
	r.users = m
	r.mu.Unlock()
}

// Len reports the number of registered accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
