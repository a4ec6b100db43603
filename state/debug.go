package state

var (
	DBG_log_auth    = false
	DBG_log_speaker = false
)
