package state

import (
	"context"
	"log/slog"
	"net/netip"
	"slices"

	"github.com/encodeous/kevlar/keychain"
)

type KevModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on a single Goroutine
type State struct {
	*Env
	Modules    map[string]KevModule
	Interfaces []*Interface
	KeyChains  *keychain.Store
	// Stats is the speaker-wide counter pool; each interface carries its own.
	Stats AuthStats
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	LocalCfg
	Context context.Context
	Cancel  context.CancelCauseFunc
	Log     *slog.Logger
}

// Interface is the per-interface authentication state.
type Interface struct {
	Name           string
	RxAuthRequired bool
	CSAs           []CSACfg

	// last emitted TS/PC pair
	AuthTS uint32
	AuthPC uint16

	// LLAddr is the link-local address packets are signed with; the speaker
	// also emits from this address so padding always matches the datagram
	// source.
	LLAddr netip.Addr

	Stats AuthStats
}

func (s *State) GetInterface(name string) *Interface {
	idx := slices.IndexFunc(s.Interfaces, func(ifp *Interface) bool {
		return ifp.Name == name
	})
	if idx == -1 {
		return nil
	}
	return s.Interfaces[idx]
}
