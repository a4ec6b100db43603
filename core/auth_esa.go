package core

import (
	"bytes"
	"cmp"
	"slices"
	"time"

	"github.com/encodeous/kevlar/digest"
	"github.com/encodeous/kevlar/keychain"
	"github.com/encodeous/kevlar/state"
)

// esa is an effective security association, derived from a CSA and one
// currently valid key of its chain. The sort order interleaves chains: first
// keys of all CSAs in CSA order, then all second keys, and so on, so that
// every CSA contributes its best key before any contributes a second.
type esa struct {
	sortMajor int
	sortMinor int
	algo      digest.Algo
	keyID     uint16
	secret    []byte
}

func esaExists(esas []esa, algo digest.Algo, keyID uint16, secret []byte) bool {
	return slices.ContainsFunc(esas, func(e esa) bool {
		return e.algo == algo && e.keyID == keyID && bytes.Equal(e.secret, secret)
	})
}

// deriveESAs walks the CSA list, filters each chain's keys through the given
// lifetime predicate and returns the resulting associations in total order.
// Full duplicates (same algorithm, key id and secret) are suppressed.
func deriveESAs(s *state.State, csas []state.CSACfg, now time.Time,
	filter func(*keychain.Chain, time.Time) []keychain.Key) []esa {
	esas := make([]esa, 0)
	for csaIdx, csa := range csas {
		chain := s.KeyChains.Lookup(csa.KeyChain)
		if chain == nil {
			if state.DBG_log_auth {
				s.Log.Debug("configured key chain does not exist",
					"chain", csa.KeyChain, "algo", csa.Mode)
			}
			continue
		}
		keyIdx := 0
		for _, key := range filter(chain, now) {
			keyID := uint16(key.Index % (1 << 16))
			secret := []byte(key.Secret)
			if esaExists(esas, csa.Mode, keyID, secret) {
				if state.DBG_log_auth {
					s.Log.Debug("key is a full duplicate of another key", "key_id", keyID)
				}
				continue
			}
			esas = append(esas, esa{
				sortMajor: keyIdx,
				sortMinor: csaIdx,
				algo:      csa.Mode,
				keyID:     keyID,
				secret:    secret,
			})
			if state.DBG_log_auth {
				s.Log.Debug("using key", "key_id", keyID, "algo", csa.Mode,
					"major", keyIdx, "minor", csaIdx)
			}
			keyIdx++
		}
	}
	slices.SortStableFunc(esas, func(a, b esa) int {
		if c := cmp.Compare(a.sortMajor, b.sortMajor); c != 0 {
			return c
		}
		return cmp.Compare(a.sortMinor, b.sortMinor)
	})
	return esas
}
