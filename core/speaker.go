package core

import (
	"fmt"
	"net"
	"net/netip"
	"slices"

	"github.com/encodeous/kevlar/perf"
	"github.com/encodeous/kevlar/state"
	"github.com/encodeous/kevlar/wire"
	"golang.org/x/net/ipv6"
)

// PacketHandler consumes the body of a packet that passed authentication.
type PacketHandler func(s *state.State, ifp *state.Interface, from netip.Addr, body []byte) error

type ifaceSock struct {
	ifp *state.Interface
	ifi *net.Interface
}

// Speaker owns the Babel socket: it joins the Babel group on every configured
// interface, runs every received datagram through packet authentication and
// periodically emits an authenticated beacon per interface. Bodies of
// authentic packets are handed to Handler.
type Speaker struct {
	// Handler may be set before Init; by default bodies are only logged.
	Handler PacketHandler

	conn    *net.UDPConn
	p       *ipv6.PacketConn
	socks   []ifaceSock
	byIndex map[int]*state.Interface
	group   *net.UDPAddr
}

func (sp *Speaker) Init(s *state.State) error {
	s.Log.Debug("init speaker")
	if sp.Handler == nil {
		sp.Handler = logPacket
	}
	conn, err := net.ListenUDP("udp6", &net.UDPAddr{Port: int(s.Port)})
	if err != nil {
		return err
	}
	sp.conn = conn
	sp.p = ipv6.NewPacketConn(conn)
	sp.group = &net.UDPAddr{IP: net.ParseIP("ff02::1:6"), Port: int(s.Port)}
	if err := sp.p.SetControlMessage(ipv6.FlagInterface, true); err != nil {
		return err
	}
	sp.p.SetMulticastHopLimit(1)
	sp.p.SetMulticastLoopback(false)

	sp.byIndex = make(map[int]*state.Interface)
	for _, ifp := range s.Interfaces {
		ifi, err := net.InterfaceByName(ifp.Name)
		if err != nil {
			return fmt.Errorf("interface %s: %w", ifp.Name, err)
		}
		if err := sp.p.JoinGroup(ifi, sp.group); err != nil {
			return fmt.Errorf("interface %s: %w", ifp.Name, err)
		}
		ifp.LLAddr = linkLocalAddr(ifi)
		if !ifp.LLAddr.IsValid() {
			// sending will count an internal error until one appears
			s.Log.Warn("no link-local address on interface", "interface", ifp.Name)
		}
		sp.socks = append(sp.socks, ifaceSock{ifp: ifp, ifi: ifi})
		sp.byIndex[ifi.Index] = ifp
	}

	go sp.recvLoop(s.Env)
	s.RepeatTask(sendBeacons, state.BeaconDelay)
	return nil
}

func (sp *Speaker) Cleanup(s *state.State) error {
	return sp.conn.Close()
}

func linkLocalAddr(ifi *net.Interface) netip.Addr {
	addrs, err := ifi.Addrs()
	if err != nil {
		return netip.Addr{}
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipn.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is6() && addr.IsLinkLocalUnicast() {
			return addr
		}
	}
	return netip.Addr{}
}

func (sp *Speaker) recvLoop(e *state.Env) {
	buf := make([]byte, 65535)
	for {
		n, cm, src, err := sp.p.ReadFrom(buf)
		if err != nil {
			if e.Context.Err() != nil {
				return
			}
			e.Log.Warn("socket read failed", "error", err)
			return
		}
		udp, ok := src.(*net.UDPAddr)
		if !ok || cm == nil {
			continue
		}
		ifp := sp.byIndex[cm.IfIndex]
		if ifp == nil {
			// not one of ours
			continue
		}
		from := udp.AddrPort().Addr().Unmap().WithZone("")
		pkt := slices.Clone(buf[:n])
		e.Dispatch(func(s *state.State) error {
			return sp.handlePacket(s, ifp, from, pkt)
		})
	}
}

func (sp *Speaker) handlePacket(s *state.State, ifp *state.Interface, from netip.Addr, pkt []byte) error {
	perf.RecvPacketPerSecond.Add(1)
	if err := wire.CheckHeader(pkt); err != nil {
		if state.DBG_log_speaker {
			s.Log.Debug("dropping packet with bad header", "interface", ifp.Name,
				"from", from, "error", err)
		}
		return nil
	}
	a := Get[*Auth](s)
	if !a.CheckPacket(s, ifp, from, pkt) {
		if state.DBG_log_speaker {
			s.Log.Debug("dropping unauthenticated packet", "interface", ifp.Name, "from", from)
		}
		return nil
	}
	return sp.Handler(s, ifp, from, pkt[wire.HeaderLen:])
}

func sendBeacons(s *state.State) error {
	sp := Get[*Speaker](s)
	a := Get[*Auth](s)
	for _, sock := range sp.socks {
		body := a.MakePacket(s, sock.ifp, nil)
		dg := make([]byte, 0, wire.HeaderLen+len(body))
		dg = wire.AppendHeader(dg)
		dg = append(dg, body...)
		wire.SetBodyLen(dg)
		cm := &ipv6.ControlMessage{IfIndex: sock.ifi.Index}
		if sock.ifp.LLAddr.IsValid() {
			cm.Src = sock.ifp.LLAddr.AsSlice()
		}
		if _, err := sp.p.WriteTo(dg, cm, sp.group); err != nil {
			s.Log.Warn("send failed", "interface", sock.ifp.Name, "error", err)
			continue
		}
		perf.SentPacketPerSecond.Add(1)
	}
	return nil
}

func logPacket(s *state.State, ifp *state.Interface, from netip.Addr, body []byte) error {
	if state.DBG_log_speaker {
		s.Log.Debug("received packet", "interface", ifp.Name, "from", from, "body_len", len(body))
	}
	return nil
}
