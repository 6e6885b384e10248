// Package control implements the local control socket spec.md §6 names:
// "exit", "pause", "resume", "is-paused" with zero arguments, each
// returning a single textual reply line (spec.md SUPPLEMENTED FEATURES
// #2 fixes the exact grammar, since the distilled spec leaves it open).
// It listens on any net.Listener so tests can drive it over a loopback TCP
// listener instead of a real Unix domain socket, the same testability seam the
// teacher's ovsdb.Client uses for its JSON-RPC connection.
package control

import (
	"bufio"
	"net"
	"strings"

	"github.com/ovnxlate/ovnxlate/internal/election"
	"github.com/ovnxlate/ovnxlate/internal/xlog"
)

// Commands understood by the socket (spec.md §6).
const (
	CmdExit     = "exit"
	CmdPause    = "pause"
	CmdResume   = "resume"
	CmdIsPaused = "is-paused"
)

// Server accepts connections on a listener and serves the four commands
// against a pause controller, signaling exit requests on ExitRequested.
type Server struct {
	ln            net.Listener
	pauser        *election.Controller
	ExitRequested chan struct{}
	exitSignaled  bool
}

// NewServer wraps an already-bound listener (a Unix socket in production,
// a loopback TCP listener in tests).
func NewServer(ln net.Listener, pauser *election.Controller) *Server {
	return &Server{ln: ln, pauser: pauser, ExitRequested: make(chan struct{})}
}

// Serve accepts connections until the listener is closed. Each connection
// is handled to completion before the next is accepted. The daemon runs
// Serve on a goroutine of its own, beside the engine loop; the two meet
// only through the shared election.Controller and ExitRequested.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		reply := s.dispatch(line)
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(cmd string) string {
	switch cmd {
	case CmdExit:
		s.signalExit()
		return "ok"
	case CmdPause:
		s.pauser.Pause()
		return "ok: paused"
	case CmdResume:
		s.pauser.Resume()
		return "ok: resumed"
	case CmdIsPaused:
		if s.pauser.IsPaused() {
			return "true"
		}
		return "false"
	default:
		return "error: unknown command"
	}
}

func (s *Server) signalExit() {
	if s.exitSignaled {
		return
	}
	s.exitSignaled = true
	xlog.Logger.Info("exit requested over control socket")
	close(s.ExitRequested)
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.ln.Close()
}
