package core

import (
	"slices"

	"github.com/encodeous/kevlar/digest"
	"github.com/encodeous/kevlar/keychain"
	"github.com/encodeous/kevlar/perf"
	"github.com/encodeous/kevlar/state"
	"github.com/encodeous/kevlar/wire"
)

// MakePacket appends authentication TLVs to the given packet body and returns
// the new body: one freshly bumped TS/PC TLV, then one HMAC TLV per sending
// association, at most MaxDigestsOut of them. Digests are computed over the
// full packet with every digest field still in padded form. On any failure
// the original body is returned unchanged.
func (a *Auth) MakePacket(s *state.State, ifp *state.Interface, body []byte) []byte {
	if len(ifp.CSAs) == 0 {
		s.Stats.PlainSent++
		ifp.Stats.PlainSent++
		return body
	}
	src := ifp.LLAddr
	if !src.IsValid() {
		s.Log.Error("no link-local address on interface", "interface", ifp.Name)
		s.Stats.InternalErr++
		ifp.Stats.InternalErr++
		return body
	}

	now := timeNow()
	esas := deriveESAs(s, ifp.CSAs, now, (*keychain.Chain).ValidForSend)
	if len(esas) == 0 {
		s.Stats.AuthSentNgNokeys++
		ifp.Stats.AuthSentNgNokeys++
		s.Log.Warn("interface has no valid keys", "interface", ifp.Name)
	}
	if len(esas) > state.MaxDigestsOut {
		esas = esas[:state.MaxDigestsOut]
	}

	// packet header, original body, authentication TLVs
	pkt := make([]byte, 0, wire.HeaderLen+len(body)+state.MaxAuthSpace)
	pkt = wire.AppendHeader(pkt)
	pkt = append(pkt, body...)
	bumpTSPC(ifp, s.TsBase, now)
	pkt = wire.AppendTSPC(pkt, ifp.AuthPC, ifp.AuthTS)
	if state.DBG_log_auth {
		s.Log.Debug("appended TS/PC TLV", "interface", ifp.Name,
			"ts", ifp.AuthTS, "pc", ifp.AuthPC)
	}
	digestOff := make([]int, len(esas))
	for i, e := range esas {
		pkt, digestOff[i] = wire.AppendHMAC(pkt, e.keyID, e.algo.Length(), src)
	}
	wire.SetBodyLen(pkt)

	// every digest field is still in padded form, so the buffer as it stands
	// is the message to sign; keep a pristine copy while digests land in pkt
	padded := slices.Clone(pkt)
	for i, e := range esas {
		d, err := digest.HMAC(e.algo, padded, e.secret)
		if err != nil {
			s.Log.Error("hash function error", "error", err)
			s.Stats.InternalErr++
			ifp.Stats.InternalErr++
			return body
		}
		perf.HmacsPerSecond.Add(1)
		copy(pkt[digestOff[i]:], d)
	}

	s.Stats.AuthSent++
	ifp.Stats.AuthSent++
	return pkt[wire.HeaderLen:]
}
