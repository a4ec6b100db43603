package core

import (
	"encoding/binary"
	"net/netip"

	"github.com/encodeous/kevlar/digest"
	"github.com/encodeous/kevlar/keychain"
	"github.com/encodeous/kevlar/perf"
	"github.com/encodeous/kevlar/state"
	"github.com/encodeous/kevlar/wire"
)

// tryHMAC scans packet for HMAC TLVs whose KeyID and length fit e, and
// reports whether at least one of them carries the digest of the padded
// packet under e's key. The local digest is computed lazily, at most once per
// association, and never once done has reached MaxDigestsIn.
func tryHMAC(s *state.State, ifp *state.Interface, packet, padded []byte, e esa, done *int) bool {
	if *done == state.MaxDigestsIn {
		return false
	}
	var local []byte
	matched := false
	internalErr := false
	// the TLV stream was already walked by the padder, so no error here
	wire.Walk(packet, func(typ byte, off int, value []byte) bool {
		if typ != wire.TypeHMAC || len(value) != 2+e.algo.Length() {
			return true
		}
		if binary.BigEndian.Uint16(value) != e.keyID {
			return true
		}
		if local == nil {
			d, err := digest.HMAC(e.algo, padded, e.secret)
			if err != nil {
				s.Log.Error("hash function error", "error", err)
				s.Stats.InternalErr++
				ifp.Stats.InternalErr++
				internalErr = true
				return false
			}
			perf.HmacsPerSecond.Add(1)
			*done++
			local = d
		}
		if digest.Equal(value[2:], local) {
			matched = true
			return false
		}
		if state.DBG_log_auth {
			s.Log.Debug("HMAC TLV digest differs", "key_id", e.keyID, "algo", e.algo)
		}
		return true
	})
	return matched && !internalErr
}

// CheckPacket decides whether a received packet is authentic: it must carry a
// TS/PC TLV strictly newer than the last accepted one for its sender, and at
// least one HMAC TLV matching a currently valid accept key. On success the
// authentic neighbors memory advances to the received TS/PC pair. When the
// interface does not require authentication the verdict still feeds the
// statistics, but the packet is let through regardless.
func (a *Auth) CheckPacket(s *state.State, ifp *state.Interface, from netip.Addr, packet []byte) bool {
	if len(ifp.CSAs) == 0 {
		s.Stats.PlainRecv++
		ifp.Stats.PlainRecv++
		return true
	}

	// verify TS/PC before proceeding to expensive checks
	var storPC uint16
	var storTS uint32
	if rec, ok := a.anmLookup(from, ifp.Name); ok {
		storPC, storTS = rec.LastPC, rec.LastTS
	}
	pc, ts, ok := checkTSPC(s, ifp, packet, storPC, storTS)
	if !ok {
		return !ifp.RxAuthRequired
	}

	now := timeNow()
	result := false
	padded, err := wire.Pad(packet, from)
	if err != nil {
		s.Log.Warn("malformed packet", "interface", ifp.Name, "from", from, "error", err)
	} else {
		esas := deriveESAs(s, ifp.CSAs, now, (*keychain.Chain).ValidForAccept)
		if len(esas) == 0 {
			s.Stats.AuthRecvNgNokeys++
			ifp.Stats.AuthRecvNgNokeys++
			s.Log.Warn("interface has no valid keys", "interface", ifp.Name)
		}
		done := 0
		for _, e := range esas {
			if tryHMAC(s, ifp, packet, padded, e, &done) {
				result = true
				break
			}
		}
	}

	if result {
		a.anmUpsert(from, ifp.Name, pc, ts, now)
		s.Stats.AuthRecvOk++
		ifp.Stats.AuthRecvOk++
		if state.DBG_log_auth {
			s.Log.Debug("updated neighbor TS/PC", "from", from, "ts", ts, "pc", pc)
		}
	} else {
		s.Stats.AuthRecvNgHMAC++
		ifp.Stats.AuthRecvNgHMAC++
	}
	if !ifp.RxAuthRequired {
		return true
	}
	return result
}
