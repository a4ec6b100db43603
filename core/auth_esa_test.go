package core

import (
	"testing"
	"time"

	"github.com/encodeous/kevlar/digest"
	"github.com/encodeous/kevlar/keychain"
	"github.com/encodeous/kevlar/state"
	"github.com/stretchr/testify/assert"
)

func chainOf(name string, indices ...uint32) keychain.Chain {
	c := keychain.Chain{Name: name}
	for _, idx := range indices {
		c.Keys = append(c.Keys, keychain.Key{Index: idx, Secret: name + string(rune('0'+idx))})
	}
	return c
}

func esaState(t *testing.T, csas []state.CSACfg, chains ...keychain.Chain) (*state.State, []state.CSACfg) {
	cfg := authConfig()
	cfg.Interfaces[0].Auth = csas
	cfg.KeyChains = chains
	s, _ := newTestState(t, cfg)
	return s, csas
}

func keyIDs(esas []esa) []uint16 {
	ids := make([]uint16, 0, len(esas))
	for _, e := range esas {
		ids = append(ids, e.keyID)
	}
	return ids
}

// first keys of all CSAs in CSA order, then all second keys, and so on
func TestDeriveOrderInterleavesChains(t *testing.T) {
	s, csas := esaState(t,
		[]state.CSACfg{
			{Mode: digest.SHA256, KeyChain: "one"},
			{Mode: digest.SHA256, KeyChain: "two"},
		},
		chainOf("one", 1, 3),
		chainOf("two", 2, 4),
	)
	esas := deriveESAs(s, csas, time.Unix(1000, 0), (*keychain.Chain).ValidForAccept)
	assert.Equal(t, []uint16{1, 2, 3, 4}, keyIDs(esas))
}

func TestDeriveFirstKeysComeFirst(t *testing.T) {
	csas := make([]state.CSACfg, 0)
	chains := make([]keychain.Chain, 0)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		csas = append(csas, state.CSACfg{Mode: digest.SHA256, KeyChain: name})
		chains = append(chains, chainOf(name, uint32(i+1), uint32(i+10)))
	}
	s, _ := esaState(t, csas, chains...)
	esas := deriveESAs(s, csas, time.Unix(1000, 0), (*keychain.Chain).ValidForSend)

	// with MaxDigestsOut = 4, the cap lands after the first four chains'
	// first keys
	assert.Equal(t, []uint16{1, 2, 3, 4}, keyIDs(esas[:state.MaxDigestsOut]))
}

func TestDeriveSuppressesDuplicates(t *testing.T) {
	s, csas := esaState(t,
		[]state.CSACfg{
			{Mode: digest.SHA256, KeyChain: "one"},
			{Mode: digest.SHA256, KeyChain: "one"},
			{Mode: digest.SHA1, KeyChain: "one"},
		},
		chainOf("one", 1),
	)
	esas := deriveESAs(s, csas, time.Unix(1000, 0), (*keychain.Chain).ValidForAccept)
	// the second CSA is a full duplicate; the third differs in algorithm
	assert.Len(t, esas, 2)
	assert.Equal(t, digest.SHA256, esas[0].algo)
	assert.Equal(t, digest.SHA1, esas[1].algo)
}

func TestDeriveKeyIDWraps(t *testing.T) {
	s, csas := esaState(t,
		[]state.CSACfg{{Mode: digest.SHA256, KeyChain: "one"}},
		chainOf("one", 65536+7),
	)
	esas := deriveESAs(s, csas, time.Unix(1000, 0), (*keychain.Chain).ValidForAccept)
	assert.Equal(t, []uint16{7}, keyIDs(esas))
}

func TestDeriveSkipsUnknownChain(t *testing.T) {
	s, csas := esaState(t,
		[]state.CSACfg{
			{Mode: digest.SHA256, KeyChain: "ghost"},
			{Mode: digest.SHA256, KeyChain: "one"},
		},
		chainOf("one", 1),
	)
	esas := deriveESAs(s, csas, time.Unix(1000, 0), (*keychain.Chain).ValidForAccept)
	assert.Equal(t, []uint16{1}, keyIDs(esas))
}

func TestDeriveFiltersLifetimes(t *testing.T) {
	chain := keychain.Chain{
		Name: "one",
		Keys: []keychain.Key{
			{Index: 1, Secret: "old", Send: keychain.Lifetime{End: time.Unix(500, 0)}},
			{Index: 2, Secret: "new", Send: keychain.Lifetime{Start: time.Unix(900, 0)}},
		},
	}
	s, csas := esaState(t,
		[]state.CSACfg{{Mode: digest.SHA256, KeyChain: "one"}},
		chain,
	)
	esas := deriveESAs(s, csas, time.Unix(1000, 0), (*keychain.Chain).ValidForSend)
	assert.Equal(t, []uint16{2}, keyIDs(esas))

	esas = deriveESAs(s, csas, time.Unix(700, 0), (*keychain.Chain).ValidForSend)
	assert.Empty(t, esas)
}
