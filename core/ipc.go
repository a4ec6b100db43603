package core

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"

	"github.com/encodeous/kevlar/state"
)

// Ctl exposes the authentication statistics and the authentic neighbors
// memory over a unix socket, and lets an operator clear either. One command
// per connection; the reply is terminated by a NUL byte.
type Ctl struct {
	ln net.Listener
}

func (c *Ctl) Init(s *state.State) error {
	s.Log.Debug("init ctl", "path", s.CtlPath)
	err := os.MkdirAll(path.Dir(s.CtlPath), 0700)
	if err != nil {
		return err
	}
	_ = os.Remove(s.CtlPath)
	c.ln, err = net.Listen("unix", s.CtlPath)
	if err != nil {
		return err
	}
	go c.acceptLoop(s.Env)
	return nil
}

func (c *Ctl) Cleanup(s *state.State) error {
	err := c.ln.Close()
	_ = os.Remove(s.CtlPath)
	return err
}

func (c *Ctl) acceptLoop(e *state.Env) {
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return
		}
		go c.serve(e, conn)
	}
}

func (c *Ctl) serve(e *state.Env, conn net.Conn) {
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	cmd, err := rw.ReadString('\n')
	if err != nil {
		return
	}
	// command errors travel in the reply; they must not tear down the loop
	res, err := e.DispatchWait(func(s *state.State) (any, error) {
		out, cerr := handleCtl(s, strings.TrimSpace(cmd))
		if cerr != nil {
			return fmt.Sprintf("error: %v\n", cerr), nil
		}
		return out, nil
	})
	if err != nil {
		res = fmt.Sprintf("error: %v", err)
	}
	rw.WriteString(res.(string))
	rw.WriteByte(0)
	rw.Flush()
}

// CtlRequest sends one command to a running speaker and returns its reply.
func CtlRequest(ctlPath, cmd string) (string, error) {
	conn, err := net.Dial("unix", ctlPath)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	if _, err = rw.WriteString(cmd + "\n"); err != nil {
		return "", err
	}
	if err = rw.Flush(); err != nil {
		return "", err
	}
	res, err := rw.ReadString(0)
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSuffix(res, "\x00"), nil
}

func handleCtl(s *state.State, cmd string) (string, error) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty command")
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case "stats":
		return renderStats(s, arg)
	case "memory":
		return renderMemory(s), nil
	case "clear-stats":
		if arg == "" {
			s.Stats.Clear()
			for _, ifp := range s.Interfaces {
				ifp.Stats.Clear()
			}
			return "cleared\n", nil
		}
		ifp := s.GetInterface(arg)
		if ifp == nil {
			return "", fmt.Errorf("interface %s not found", arg)
		}
		ifp.Stats.Clear()
		return "cleared\n", nil
	case "clear-memory":
		Get[*Auth](s).anmClear()
		return "cleared\n", nil
	}
	return "", fmt.Errorf("unknown command %s", fields[0])
}

func renderStatsPool(sb *strings.Builder, st *state.AuthStats) {
	rows := []struct {
		label string
		value uint64
	}{
		{"Plain Rx", st.PlainRecv},
		{"Plain Tx", st.PlainSent},
		{"Authenticated Tx OK", st.AuthSent},
		{"Authenticated Tx out of keys", st.AuthSentNgNokeys},
		{"Authenticated Rx OK", st.AuthRecvOk},
		{"Authenticated Rx out of keys", st.AuthRecvNgNokeys},
		{"Authenticated Rx missing TS/PC", st.AuthRecvNgNoTSPC},
		{"Authenticated Rx bad TS/PC", st.AuthRecvNgTSPC},
		{"Authenticated Rx bad HMAC", st.AuthRecvNgHMAC},
		{"Internal errors", st.InternalErr},
	}
	for _, r := range rows {
		fmt.Fprintf(sb, "%-32s: %d\n", r.label, r.value)
	}
}

func renderStats(s *state.State, ifname string) (string, error) {
	sb := strings.Builder{}
	if ifname == "" {
		fmt.Fprintf(&sb, "MaxDigestsIn   = %d\n", state.MaxDigestsIn)
		fmt.Fprintf(&sb, "MaxDigestsOut  = %d\n", state.MaxDigestsOut)
		fmt.Fprintf(&sb, "Timestamp base = %s\n", s.TsBase)
		fmt.Fprintf(&sb, "Memory timeout = %d\n\n", s.AnmTimeout)
		sb.WriteString("== Authentication statistics for this speaker ==\n")
		renderStatsPool(&sb, &s.Stats)
		for _, ifp := range s.Interfaces {
			fmt.Fprintf(&sb, "\n== Authentication statistics for interface %s ==\n", ifp.Name)
			renderStatsPool(&sb, &ifp.Stats)
		}
		return sb.String(), nil
	}
	ifp := s.GetInterface(ifname)
	if ifp == nil {
		return "", fmt.Errorf("interface %s not found", ifname)
	}
	fmt.Fprintf(&sb, "== Authentication statistics for interface %s ==\n", ifp.Name)
	renderStatsPool(&sb, &ifp.Stats)
	return sb.String(), nil
}

func renderMemory(s *state.State) string {
	a := Get[*Auth](s)
	entries := a.anmEntries(timeNow())
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "ANM timeout: %d seconds, ANM records: %d\n", s.AnmTimeout, len(entries))
	fmt.Fprintf(&sb, "%46s %10s %10s %5s %10s\n", "Source address", "Interface", "TS", "PC", "Age")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%46s %10s %10d %5d %10d\n",
			e.Addr, e.Interface, e.LastTS, e.LastPC, int64(e.Age.Seconds()))
	}
	return sb.String()
}
