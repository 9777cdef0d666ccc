package telnet

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/diceroller/internal/config"
)

// echoHandler is a test SessionHandler that echoes lines back to the client.
type echoHandler struct {
	sessionCount atomic.Int32
}

func (h *echoHandler) HandleSession(_ context.Context, conn *Conn) error {
	h.sessionCount.Add(1)
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		if line == "quit" {
			return conn.WriteLine("bye")
		}
		_ = conn.WriteLine("echo: " + line)
	}
}

func testTelnetConfig() config.TelnetConfig {
	return config.TelnetConfig{
		Enabled:      true,
		Host:         "127.0.0.1",
		Port:         0, // random port
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// startAcceptor runs acc until the test ends and returns its cancel func and
// the channel receiving Run's result.
func startAcceptor(t *testing.T, acc *Acceptor) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- acc.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for !acc.IsRunning() || acc.Addr() == "" {
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	return cancel, errCh
}

func TestAcceptorStartAndStop(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testTelnetConfig(), handler, zaptest.NewLogger(t))
	assert.Equal(t, "telnet", acc.Name())

	cancel, errCh := startAcceptor(t, acc)

	conn, err := net.DialTimeout("tcp", acc.Addr(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	// Initial negotiation: IAC WILL SUPPRESS-GO-AHEAD.
	buf := make([]byte, 256)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{IAC, WILL, OptSuppressGoAhead}, buf[:n])

	_, err = conn.Write([]byte("hello\r\n"))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "echo: hello\r\n", string(buf[:n]))

	_, _ = conn.Write([]byte("quit\r\n"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _ = conn.Read(buf)
	assert.Contains(t, string(buf[:n]), "bye")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
	assert.False(t, acc.IsRunning())
	assert.Equal(t, int32(1), handler.sessionCount.Load())
}

func TestAcceptorMultipleClients(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testTelnetConfig(), handler, zaptest.NewLogger(t))
	cancel, errCh := startAcceptor(t, acc)

	const numClients = 3
	for i := 0; i < numClients; i++ {
		conn, err := net.DialTimeout("tcp", acc.Addr(), 2*time.Second)
		require.NoError(t, err)
		buf := make([]byte, 256)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _ = conn.Read(buf)

		_, _ = conn.Write([]byte("quit\r\n"))
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _ = conn.Read(buf)
		conn.Close()
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
	assert.Equal(t, int32(numClients), handler.sessionCount.Load())
}

func TestAcceptorShutdownInterruptsIdleSession(t *testing.T) {
	handler := &echoHandler{}
	cfg := testTelnetConfig()
	cfg.ReadTimeout = time.Minute
	acc := NewAcceptor(cfg, handler, zaptest.NewLogger(t))
	cancel, errCh := startAcceptor(t, acc)

	conn, err := net.DialTimeout("tcp", acc.Addr(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	buf := make([]byte, 16)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _ = conn.Read(buf)

	require.Eventually(t, func() bool { return handler.sessionCount.Load() == 1 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("idle session blocked shutdown")
	}
}

func TestAcceptorListenError(t *testing.T) {
	cfg := testTelnetConfig()
	cfg.Host = "256.0.0.1"
	acc := NewAcceptor(cfg, &echoHandler{}, zaptest.NewLogger(t))
	err := acc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}
