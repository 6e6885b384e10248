package control

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovnxlate/ovnxlate/internal/election"
)

type noopLocker struct{ held bool }

func (n *noopLocker) TryAcquire(name string) bool { return n.held }
func (n *noopLocker) Release(name string)         {}

func startTestServer(t *testing.T) (*Server, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	pauser := election.New(&noopLocker{held: true}, "test")
	pauser.Poll()

	srv := NewServer(ln, pauser)
	go srv.Serve()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		srv.Close()
	})
	return srv, conn
}

func sendAndRead(t *testing.T, conn net.Conn, cmd string) string {
	t.Helper()
	_, err := conn.Write([]byte(cmd + "\n"))
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	return reply[:len(reply)-1]
}

func TestPauseResumeIsPaused(t *testing.T) {
	_, conn := startTestServer(t)

	assert.Equal(t, "false", sendAndRead(t, conn, CmdIsPaused))
	assert.Equal(t, "ok: paused", sendAndRead(t, conn, CmdPause))
	assert.Equal(t, "true", sendAndRead(t, conn, CmdIsPaused))
	assert.Equal(t, "ok: resumed", sendAndRead(t, conn, CmdResume))
	assert.Equal(t, "false", sendAndRead(t, conn, CmdIsPaused))
}

func TestExitClosesExitRequested(t *testing.T) {
	srv, conn := startTestServer(t)

	assert.Equal(t, "ok", sendAndRead(t, conn, CmdExit))

	select {
	case <-srv.ExitRequested:
	case <-time.After(2 * time.Second):
		t.Fatal("ExitRequested was not closed after exit command")
	}
}

func TestUnknownCommandReturnsError(t *testing.T) {
	_, conn := startTestServer(t)
	assert.Equal(t, "error: unknown command", sendAndRead(t, conn, "bogus"))
}
