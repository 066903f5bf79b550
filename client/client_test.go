package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcoury/termwright/internal/daemon"
	"github.com/fcoury/termwright/internal/session"
)

func startTestDaemon(t *testing.T) (*Client, *daemon.Daemon) {
	t.Helper()
	sess, err := session.Spawn("cat", nil, session.Options{Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	t.Cleanup(func() { sess.Kill() })

	sockPath := filepath.Join(t.TempDir(), "test.sock")
	d, err := daemon.Listen(sockPath, sess, zerolog.Nop())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	go d.Serve(context.Background())

	cl, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { cl.CloseConn() })
	return cl, d
}

func TestHandshakeRoundTrip(t *testing.T) {
	cl, _ := startTestDaemon(t)
	res, err := cl.Handshake()
	if err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if res.ProtocolVersion != 1 {
		t.Fatalf("unexpected protocol version: %d", res.ProtocolVersion)
	}
}

func TestTypeAndScreenText(t *testing.T) {
	cl, _ := startTestDaemon(t)
	if err := cl.Type("hello\n"); err != nil {
		t.Fatalf("type: %v", err)
	}
	if err := cl.WaitForText("hello", time.Second); err != nil {
		t.Fatalf("wait_for_text: %v", err)
	}
	text, err := cl.ScreenText()
	if err != nil {
		t.Fatalf("screen: %v", err)
	}
	if text == "" {
		t.Fatalf("expected non-empty screen text")
	}
}

func TestStatusReportsRunningProcess(t *testing.T) {
	cl, _ := startTestDaemon(t)
	status, err := cl.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Exited {
		t.Fatalf("expected process still running")
	}
}
