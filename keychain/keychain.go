// Package keychain holds named chains of authentication keys with separate
// send and accept lifetimes, modelled on the key chains of classic routing
// daemons. Chains are loaded from configuration and looked up by name when
// security associations are derived.
package keychain

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Lifetime is a validity window. A zero Start or End leaves that side of the
// window open.
type Lifetime struct {
	Start time.Time `yaml:"start,omitempty"`
	End   time.Time `yaml:"end,omitempty"`
}

func (l Lifetime) Contains(now time.Time) bool {
	if !l.Start.IsZero() && now.Before(l.Start) {
		return false
	}
	if !l.End.IsZero() && now.After(l.End) {
		return false
	}
	return true
}

type Key struct {
	// Index is unique within a chain; the wire KeyID is Index mod 2^16.
	Index  uint32   `yaml:"index"`
	Secret string   `yaml:"secret"`
	Send   Lifetime `yaml:"send,omitempty"`
	Accept Lifetime `yaml:"accept,omitempty"`
}

type Chain struct {
	Name string `yaml:"name"`
	Keys []Key  `yaml:"keys"`
}

// ValidForSend returns the keys usable for signing at now, in index order.
func (c *Chain) ValidForSend(now time.Time) []Key {
	return c.filter(now, func(k Key) Lifetime { return k.Send })
}

// ValidForAccept returns the keys usable for verification at now, in index
// order.
func (c *Chain) ValidForAccept(now time.Time) []Key {
	return c.filter(now, func(k Key) Lifetime { return k.Accept })
}

func (c *Chain) filter(now time.Time, lifetime func(Key) Lifetime) []Key {
	keys := make([]Key, 0, len(c.Keys))
	for _, k := range c.Keys {
		if lifetime(k).Contains(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Store is the set of configured key chains, addressable by name.
type Store struct {
	chains map[string]*Chain
}

// NewStore validates the chains (unique names, unique key indices, non-empty
// secrets), sorts each chain by key index and indexes them by name.
func NewStore(chains []Chain) (*Store, error) {
	s := &Store{chains: make(map[string]*Chain, len(chains))}
	for _, c := range chains {
		if c.Name == "" {
			return nil, fmt.Errorf("key chain with empty name")
		}
		if _, ok := s.chains[c.Name]; ok {
			return nil, fmt.Errorf("duplicate key chain %q", c.Name)
		}
		chain := &Chain{Name: c.Name, Keys: slices.Clone(c.Keys)}
		slices.SortFunc(chain.Keys, func(a, b Key) int {
			return cmp.Compare(a.Index, b.Index)
		})
		for i, k := range chain.Keys {
			if k.Secret == "" {
				return nil, fmt.Errorf("key chain %q: key %d has an empty secret", c.Name, k.Index)
			}
			if i > 0 && chain.Keys[i-1].Index == k.Index {
				return nil, fmt.Errorf("key chain %q: duplicate key index %d", c.Name, k.Index)
			}
		}
		s.chains[c.Name] = chain
	}
	return s, nil
}

// Lookup returns the chain with the given name, or nil.
func (s *Store) Lookup(name string) *Chain {
	return s.chains[name]
}
