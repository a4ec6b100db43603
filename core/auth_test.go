package core

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"reflect"
	"testing"
	"time"

	"github.com/encodeous/kevlar/digest"
	"github.com/encodeous/kevlar/keychain"
	"github.com/encodeous/kevlar/state"
	"github.com/encodeous/kevlar/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	peerAddr  = netip.MustParseAddr("fe80::1")
	localAddr = netip.MustParseAddr("fe80::2")
	otherAddr = netip.MustParseAddr("fe80::3")
)

// secret 0x00..0x1f
func testSecret() string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = byte(i)
	}
	return string(b)
}

func authConfig() state.LocalCfg {
	return state.LocalCfg{
		Id: "router-1",
		Interfaces: []state.InterfaceCfg{{
			Name:           "eth0",
			RxAuthRequired: true,
			Auth:           []state.CSACfg{{Mode: digest.SHA256, KeyChain: "bb1"}},
		}},
		KeyChains: []keychain.Chain{{
			Name: "bb1",
			Keys: []keychain.Key{{Index: 1, Secret: testSecret()}},
		}},
	}
}

func newTestState(t *testing.T, cfg state.LocalCfg) (*state.State, *Auth) {
	t.Helper()
	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() { cancel(context.Canceled) })
	cfg.SetDefaults()
	chains, err := keychain.NewStore(cfg.KeyChains)
	require.NoError(t, err)

	dispatch := make(chan func(*state.State) error, 128)
	s := &state.State{
		Modules:   make(map[string]state.KevModule),
		KeyChains: chains,
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			LocalCfg:        cfg,
			Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
	for _, ifc := range cfg.Interfaces {
		s.Interfaces = append(s.Interfaces, &state.Interface{
			Name:           ifc.Name,
			RxAuthRequired: ifc.RxAuthRequired,
			CSAs:           ifc.Auth,
		})
	}
	a := &Auth{}
	s.Modules[reflect.TypeOf(a).String()] = a
	require.NoError(t, a.Init(s))
	return s, a
}

func fixClock(t *testing.T, sec int64) {
	t.Helper()
	old := timeNow
	timeNow = func() time.Time { return time.Unix(sec, 0) }
	t.Cleanup(func() { timeNow = old })
}

// sign a body on the sender and reassemble the datagram a receiver would see
func makeDatagram(s *state.State, a *Auth, ifp *state.Interface, body []byte) []byte {
	newBody := a.MakePacket(s, ifp, body)
	pkt := wire.AppendHeader(nil)
	pkt = append(pkt, newBody...)
	wire.SetBodyLen(pkt)
	return pkt
}

func TestPlainPassthrough(t *testing.T) {
	cfg := authConfig()
	cfg.Interfaces[0].Auth = nil
	s, a := newTestState(t, cfg)
	ifp := s.GetInterface("eth0")

	pkt := wire.AppendHeader(nil)
	pkt = wire.AppendTSPC(pkt, 1, 1)
	wire.SetBodyLen(pkt)
	assert.True(t, a.CheckPacket(s, ifp, peerAddr, pkt))
	assert.Equal(t, uint64(1), s.Stats.PlainRecv)
	assert.Equal(t, uint64(1), ifp.Stats.PlainRecv)

	body := a.MakePacket(s, ifp, []byte{wire.TypePad1})
	assert.Equal(t, []byte{wire.TypePad1}, body)
	assert.Equal(t, uint64(1), s.Stats.PlainSent)
}

func TestFreshAccept(t *testing.T) {
	fixClock(t, 1_000_000)
	sender, sa := newTestState(t, authConfig())
	receiver, ra := newTestState(t, authConfig())
	sifp := sender.GetInterface("eth0")
	rifp := receiver.GetInterface("eth0")
	sifp.LLAddr = peerAddr

	pkt := makeDatagram(sender, sa, sifp, nil)
	// header + TS/PC TLV + one SHA-256 HMAC TLV
	assert.Equal(t, 4+8+36, len(pkt))
	assert.Equal(t, uint64(1), sender.Stats.AuthSent)

	assert.True(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvOk)
	rec, ok := ra.anmLookup(peerAddr, "eth0")
	require.True(t, ok)
	assert.Equal(t, uint32(1_000_000), rec.LastTS)
	assert.Equal(t, sifp.AuthPC, rec.LastPC)
}

func TestReplay(t *testing.T) {
	fixClock(t, 1_000_000)
	sender, sa := newTestState(t, authConfig())
	receiver, ra := newTestState(t, authConfig())
	sifp := sender.GetInterface("eth0")
	rifp := receiver.GetInterface("eth0")
	sifp.LLAddr = peerAddr

	pkt := makeDatagram(sender, sa, sifp, nil)
	require.True(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))

	before, _ := ra.anmLookup(peerAddr, "eth0")
	assert.False(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgTSPC)
	after, _ := ra.anmLookup(peerAddr, "eth0")
	assert.Equal(t, before.LastTS, after.LastTS)
	assert.Equal(t, before.LastPC, after.LastPC)
}

func TestForgedDigest(t *testing.T) {
	fixClock(t, 1_000_000)
	sender, sa := newTestState(t, authConfig())
	receiver, ra := newTestState(t, authConfig())
	sifp := sender.GetInterface("eth0")
	rifp := receiver.GetInterface("eth0")
	sifp.LLAddr = peerAddr

	pkt := makeDatagram(sender, sa, sifp, nil)
	pkt[len(pkt)-1] ^= 0x01
	assert.False(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgHMAC)
	_, ok := ra.anmLookup(peerAddr, "eth0")
	assert.False(t, ok)
}

// the sender signed with its own address; claiming another source must fail
func TestWrongPaddingAddress(t *testing.T) {
	fixClock(t, 1_000_000)
	sender, sa := newTestState(t, authConfig())
	receiver, ra := newTestState(t, authConfig())
	sifp := sender.GetInterface("eth0")
	rifp := receiver.GetInterface("eth0")
	sifp.LLAddr = localAddr

	pkt := makeDatagram(sender, sa, sifp, nil)
	assert.False(t, ra.CheckPacket(receiver, rifp, otherAddr, pkt))
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgHMAC)
}

func TestRxAuthOptional(t *testing.T) {
	fixClock(t, 1_000_000)
	cfg := authConfig()
	cfg.Interfaces[0].RxAuthRequired = false
	receiver, ra := newTestState(t, cfg)
	rifp := receiver.GetInterface("eth0")

	// garbage body with a fresh TS/PC but no valid digest
	pkt := wire.AppendHeader(nil)
	pkt = wire.AppendTSPC(pkt, 1, 5)
	wire.SetBodyLen(pkt)
	assert.True(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))
	// the verdict is still recorded
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgHMAC)

	// a missing TS/PC is also let through, and also recorded
	plain := wire.AppendHeader(nil)
	wire.SetBodyLen(plain)
	assert.True(t, ra.CheckPacket(receiver, rifp, peerAddr, plain))
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgNoTSPC)
}

func TestMissingTSPC(t *testing.T) {
	receiver, ra := newTestState(t, authConfig())
	rifp := receiver.GetInterface("eth0")
	pkt := wire.AppendHeader(nil)
	wire.SetBodyLen(pkt)
	assert.False(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgNoTSPC)
}

func TestNoValidKeys(t *testing.T) {
	fixClock(t, 1_000_000)
	cfg := authConfig()
	past := keychain.Lifetime{End: time.Unix(100, 0)}
	cfg.KeyChains[0].Keys[0].Send = past
	cfg.KeyChains[0].Keys[0].Accept = past
	sender, sa := newTestState(t, cfg)
	sifp := sender.GetInterface("eth0")
	sifp.LLAddr = localAddr

	// the TS/PC TLV is still appended, with no digests after it
	body := sa.MakePacket(sender, sifp, nil)
	assert.Equal(t, 8, len(body))
	assert.Equal(t, uint64(1), sender.Stats.AuthSentNgNokeys)

	receiver, ra := newTestState(t, cfg)
	rifp := receiver.GetInterface("eth0")
	pkt := wire.AppendHeader(nil)
	pkt = append(pkt, body...)
	wire.SetBodyLen(pkt)
	assert.False(t, ra.CheckPacket(receiver, rifp, localAddr, pkt))
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgNokeys)
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgHMAC)
}

func TestMissingLinkLocal(t *testing.T) {
	sender, sa := newTestState(t, authConfig())
	sifp := sender.GetInterface("eth0")

	body := []byte{wire.TypePad1}
	assert.Equal(t, body, sa.MakePacket(sender, sifp, body))
	assert.Equal(t, uint64(1), sender.Stats.InternalErr)
}

func TestRoundTripAllAlgos(t *testing.T) {
	algos := []digest.Algo{
		digest.RIPEMD160, digest.SHA1, digest.SHA256,
		digest.SHA384, digest.SHA512, digest.Whirlpool,
	}
	for _, algo := range algos {
		t.Run(algo.String(), func(t *testing.T) {
			fixClock(t, 1_000_000)
			cfg := authConfig()
			cfg.Interfaces[0].Auth[0].Mode = algo
			sender, sa := newTestState(t, cfg)
			receiver, ra := newTestState(t, cfg)
			sifp := sender.GetInterface("eth0")
			rifp := receiver.GetInterface("eth0")
			sifp.LLAddr = peerAddr

			pkt := makeDatagram(sender, sa, sifp, []byte{wire.TypePad1})
			assert.True(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))
		})
	}
}

// five associations and five candidate TLVs: only four digests may be
// computed, so even a packet whose fifth TLV is genuine is rejected
func TestDigestCap(t *testing.T) {
	fixClock(t, 1_000_000)
	cfg := authConfig()
	cfg.Interfaces[0].Auth = nil
	cfg.KeyChains = nil
	secrets := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for i, sec := range secrets {
		name := string(rune('a' + i))
		cfg.Interfaces[0].Auth = append(cfg.Interfaces[0].Auth,
			state.CSACfg{Mode: digest.SHA256, KeyChain: name})
		cfg.KeyChains = append(cfg.KeyChains, keychain.Chain{
			Name: name,
			Keys: []keychain.Key{{Index: uint32(i + 1), Secret: sec}},
		})
	}
	receiver, ra := newTestState(t, cfg)
	rifp := receiver.GetInterface("eth0")

	pkt := wire.AppendHeader(nil)
	pkt = wire.AppendTSPC(pkt, 1, 500)
	offs := make([]int, len(secrets))
	for i := range secrets {
		pkt, offs[i] = wire.AppendHMAC(pkt, uint16(i+1), digest.SHA256.Length(), peerAddr)
	}
	wire.SetBodyLen(pkt)

	// the first four TLVs carry garbage, the fifth the genuine digest
	padded, err := wire.Pad(pkt, peerAddr)
	require.NoError(t, err)
	d, err := digest.HMAC(digest.SHA256, padded, []byte(secrets[4]))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		for j := 0; j < digest.SHA256.Length(); j++ {
			pkt[offs[i]+j] = 0xaa
		}
	}
	copy(pkt[offs[4]:], d)

	assert.False(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgHMAC)

	// with the genuine digest on the fourth association instead, it passes
	d4, err := digest.HMAC(digest.SHA256, padded, []byte(secrets[3]))
	require.NoError(t, err)
	copy(pkt[offs[3]:], d4)
	assert.True(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))
}

func TestMalformedPacket(t *testing.T) {
	receiver, ra := newTestState(t, authConfig())
	rifp := receiver.GetInterface("eth0")

	// a fresh TS/PC followed by a TLV overrunning the buffer
	pkt := wire.AppendHeader(nil)
	pkt = wire.AppendTSPC(pkt, 1, 500)
	pkt = append(pkt, wire.TypeHMAC, 200, 0, 1)
	wire.SetBodyLen(pkt)
	assert.False(t, ra.CheckPacket(receiver, rifp, peerAddr, pkt))
	assert.Equal(t, uint64(1), receiver.Stats.AuthRecvNgHMAC)
}
