package state

// AuthStats is a pool of monotonic packet authentication counters. One pool
// exists per speaker and one per interface; orchestrators increment both.
type AuthStats struct {
	PlainRecv        uint64
	PlainSent        uint64
	AuthSent         uint64
	AuthSentNgNokeys uint64
	AuthRecvOk       uint64
	AuthRecvNgNokeys uint64
	AuthRecvNgNoTSPC uint64
	AuthRecvNgTSPC   uint64
	AuthRecvNgHMAC   uint64
	InternalErr      uint64
}

func (st *AuthStats) Clear() {
	*st = AuthStats{}
}
