package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency     = metric.NewHistogram("1m1s")
	SentPacketPerSecond = metric.NewCounter("10s1s")
	RecvPacketPerSecond = metric.NewCounter("10s1s")
	HmacsPerSecond      = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("kevlar:SentPacket/s", SentPacketPerSecond)
	expvar.Publish("kevlar:RecvPacket/s", RecvPacketPerSecond)
	expvar.Publish("kevlar:Hmacs/s", HmacsPerSecond)
	expvar.Publish("kevlar:DispatchLatency (µs)", DispatchLatency)
}
