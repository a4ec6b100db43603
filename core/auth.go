package core

import (
	"net/netip"
	"time"

	"github.com/encodeous/kevlar/state"
	"github.com/jellydator/ttlcache/v3"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// anmKey identifies an authentic neighbors memory record.
type anmKey struct {
	Addr      netip.Addr
	Interface string
}

type anmRecord struct {
	LastPC   uint16
	LastTS   uint32
	LastRecv time.Time
}

// Auth authenticates every packet crossing an interface with configured
// security associations, and signs every packet leaving one. It owns the
// authentic neighbors memory.
type Auth struct {
	anm *ttlcache.Cache[anmKey, anmRecord]
}

func (a *Auth) Init(s *state.State) error {
	s.Log.Debug("init auth")
	a.anm = ttlcache.New[anmKey, anmRecord](
		ttlcache.WithTTL[anmKey, anmRecord](time.Duration(s.AnmTimeout)*time.Second),
		ttlcache.WithDisableTouchOnHit[anmKey, anmRecord](),
	)
	s.RepeatTask(anmHousekeeping, state.AnmHousekeepingDelay)
	return nil
}

func (a *Auth) Cleanup(s *state.State) error {
	a.anm.DeleteAll()
	return nil
}

func anmHousekeeping(s *state.State) error {
	Get[*Auth](s).anm.DeleteExpired()
	return nil
}

// anmLookup returns the stored record for (addr, interface), if any.
func (a *Auth) anmLookup(addr netip.Addr, ifname string) (anmRecord, bool) {
	item := a.anm.Get(anmKey{Addr: addr, Interface: ifname})
	if item == nil {
		return anmRecord{}, false
	}
	return item.Value(), true
}

// anmUpsert records the TS/PC pair last accepted from (addr, interface) and
// refreshes the record's lifetime. Pairs not greater than the stored one are
// ignored, so the stored pair never decreases.
func (a *Auth) anmUpsert(addr netip.Addr, ifname string, pc uint16, ts uint32, now time.Time) {
	key := anmKey{Addr: addr, Interface: ifname}
	if item := a.anm.Get(key); item != nil {
		old := item.Value()
		if ts < old.LastTS || (ts == old.LastTS && pc <= old.LastPC) {
			return
		}
	}
	a.anm.Set(key, anmRecord{LastPC: pc, LastTS: ts, LastRecv: now}, ttlcache.DefaultTTL)
}

// anmClear drops the whole authentic neighbors memory.
func (a *Auth) anmClear() {
	a.anm.DeleteAll()
}

// anmEntry is one row of the memory as exposed to the control surface.
type anmEntry struct {
	Addr      netip.Addr
	Interface string
	LastPC    uint16
	LastTS    uint32
	Age       time.Duration
}

func (a *Auth) anmEntries(now time.Time) []anmEntry {
	entries := make([]anmEntry, 0, a.anm.Len())
	a.anm.Range(func(item *ttlcache.Item[anmKey, anmRecord]) bool {
		rec := item.Value()
		entries = append(entries, anmEntry{
			Addr:      item.Key().Addr,
			Interface: item.Key().Interface,
			LastPC:    rec.LastPC,
			LastTS:    rec.LastTS,
			Age:       now.Sub(rec.LastRecv),
		})
		return true
	})
	return entries
}
