package ids

import (
	"strconv"

	"github.com/google/uuid"
)

// Minter produces identity tokens. Tokens are opaque and compared only for
// equality.
type Minter func() string

// NewToken mints a random UUIDv4 token.
func NewToken() string {
	return uuid.NewString()
}

// Registry hands out tokens that are unique within one operation.
type Registry struct {
	mint Minter
	seen map[string]struct{}

	Reminted int
}

func NewRegistry(mint Minter) *Registry {
	if mint == nil {
		mint = NewToken
	}
	return &Registry{mint: mint, seen: map[string]struct{}{}}
}

// Claim registers token. When it was already claimed in this registry a new
// unclaimed token is minted and returned with reminted set.
func (r *Registry) Claim(token string) (claimed string, reminted bool) {
	if _, dup := r.seen[token]; !dup {
		r.seen[token] = struct{}{}
		return token, false
	}
	for {
		t := r.mint()
		if _, dup := r.seen[t]; dup {
			continue
		}
		r.seen[t] = struct{}{}
		r.Reminted++
		return t, true
	}
}

func (r *Registry) Len() int { return len(r.seen) }

// SlotKey formats a slot or waypoint index as a group key.
func SlotKey(i int) string { return strconv.Itoa(i) }

// ParseSlotKey is the inverse of SlotKey; negative values are rejected.
func ParseSlotKey(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
