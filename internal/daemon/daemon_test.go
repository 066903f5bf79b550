package daemon

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcoury/termwright/internal/protocol"
	"github.com/fcoury/termwright/internal/session"
)

func newTestDaemon(t *testing.T) (*Daemon, net.Conn) {
	t.Helper()
	sess, err := session.Spawn("cat", nil, session.Options{Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	t.Cleanup(func() { sess.Kill() })

	sockPath := t.TempDir() + "/test.sock"
	d, err := Listen(sockPath, sess, zerolog.Nop())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	go func() {
		conn, err := d.Listener.Accept()
		if err != nil {
			return
		}
		d.serveClient(conn)
	}()

	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return d, conn
}

func TestHandshakeReturnsProtocolVersion(t *testing.T) {
	_, conn := newTestDaemon(t)
	w := protocol.NewWriter(conn)
	r := protocol.NewReader(conn)

	if err := w.WriteRequest(protocol.Request{ID: 1, Method: "handshake"}); err != nil {
		t.Fatal(err)
	}
	resp, err := r.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result protocol.HandshakeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.ProtocolVersion != protocol.ProtocolVersion {
		t.Fatalf("unexpected protocol version: %d", result.ProtocolVersion)
	}
}

func TestUnknownMethodErrors(t *testing.T) {
	_, conn := newTestDaemon(t)
	w := protocol.NewWriter(conn)
	r := protocol.NewReader(conn)

	w.WriteRequest(protocol.Request{ID: 2, Method: "bogus"})
	resp, err := r.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != "unknown_method" {
		t.Fatalf("expected unknown_method error, got %+v", resp.Error)
	}
}

func TestCloseRepliesWithClosingCode(t *testing.T) {
	_, conn := newTestDaemon(t)
	w := protocol.NewWriter(conn)
	r := protocol.NewReader(conn)

	w.WriteRequest(protocol.Request{ID: 3, Method: "close"})
	resp, err := r.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != "closing" {
		t.Fatalf("expected closing error code, got %+v", resp.Error)
	}
}

func TestTypeRepliesWithoutError(t *testing.T) {
	_, conn := newTestDaemon(t)
	w := protocol.NewWriter(conn)
	r := protocol.NewReader(conn)

	params, _ := json.Marshal(protocol.TypeParams{Text: "hi"})
	w.WriteRequest(protocol.Request{ID: 4, Method: "type", Params: params})
	resp, err := r.ReadResponse()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}
