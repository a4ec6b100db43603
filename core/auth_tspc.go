package core

import (
	"time"

	"github.com/encodeous/kevlar/state"
	"github.com/encodeous/kevlar/wire"
)

// checkTSPC extracts the first TS/PC TLV of packet and compares it to the
// pair last accepted from the sender. The packet passes only when its pair is
// strictly greater in lexicographic order, which rejects both replays and
// duplicates. A packet without a well-formed TS/PC TLV always fails.
func checkTSPC(s *state.State, ifp *state.Interface, packet []byte,
	storPC uint16, storTS uint32) (pc uint16, ts uint32, ok bool) {
	pc, ts, err := wire.FirstTSPC(packet)
	if err != nil {
		s.Stats.AuthRecvNgNoTSPC++
		ifp.Stats.AuthRecvNgNoTSPC++
		if state.DBG_log_auth {
			s.Log.Debug("no usable TS/PC TLV in the packet", "interface", ifp.Name, "error", err)
		}
		return 0, 0, false
	}
	ok = ts > storTS || (ts == storTS && pc > storPC)
	if !ok {
		s.Stats.AuthRecvNgTSPC++
		ifp.Stats.AuthRecvNgTSPC++
	}
	if state.DBG_log_auth {
		s.Log.Debug("TS/PC check", "interface", ifp.Name,
			"recv_ts", ts, "recv_pc", pc, "stored_ts", storTS, "stored_pc", storPC, "ok", ok)
	}
	return pc, ts, ok
}

// bumpTSPC advances the interface TS/PC pair so that every emitted pair is
// strictly greater than the previous one. In unixtime mode a fresh second
// resets the counter; when the clock has not advanced it falls back to plain
// counting, carrying counter wraps into the timestamp.
func bumpTSPC(ifp *state.Interface, base state.TsBase, now time.Time) {
	if base == state.TsBaseUnix {
		if ts := uint32(now.Unix()); ts > ifp.AuthTS {
			ifp.AuthTS = ts
			ifp.AuthPC = 0
			return
		}
	}
	ifp.AuthPC++
	if ifp.AuthPC == 0 {
		ifp.AuthTS++
	}
}
