// Package e2e drives the termwrightd binary end-to-end through
// testscript fixtures. A custom "call" script command dials the
// daemon's Unix socket, sends one request, and prints the raw
// response line so the fixture can grep/cmp it.
package e2e

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/rogpeppe/go-internal/testscript"
	"github.com/rs/zerolog"

	"github.com/fcoury/termwright/client"
	"github.com/fcoury/termwright/internal/daemon"
	"github.com/fcoury/termwright/internal/session"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"termwrightd-fg": runDaemonForeground,
	}))
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"call": call,
		},
	})
}

// runDaemonForeground spawns argv[1:] under a session and serves the
// daemon protocol on argv[0]'s socket path, printing "LISTENING" once
// bound so the script can synchronize on it.
func runDaemonForeground() int {
	args := os.Args[1:]
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: termwrightd-fg <socket-path> <command> [args...]")
		return 2
	}
	sockPath, command, cmdArgs := args[0], args[1], args[2:]

	sess, err := session.Spawn(command, cmdArgs, session.Options{Cols: 80, Rows: 24})
	if err != nil {
		fmt.Fprintln(os.Stderr, "spawn:", err)
		return 1
	}
	defer sess.Kill()

	d, err := daemon.Listen(sockPath, sess, zerolog.Nop())
	if err != nil {
		fmt.Fprintln(os.Stderr, "listen:", err)
		return 1
	}
	defer d.Close()

	fmt.Println("LISTENING")

	if err := d.Serve(context.Background()); err != nil && err != daemon.ErrClosing {
		fmt.Fprintln(os.Stderr, "serve:", err)
		return 1
	}
	return 0
}

// call <socket-path> <method> [arg...]: connects, issues method,
// prints the JSON-encoded result. Extra args are method-specific:
//   type <text>
//   press <key>
//   raw <base64>
//   resize <cols> <rows>
//   wait_for_text <text> [timeout_ms]
func call(ts *testscript.TestScript, neg bool, args []string) {
	if len(args) < 2 {
		ts.Fatalf("usage: call <socket-path> <method> [arg...]")
	}
	sockPath, method, rest := args[0], args[1], args[2:]

	cl, err := connectWithRetry(sockPath)
	if err != nil {
		ts.Fatalf("connect: %v", err)
	}
	defer cl.CloseConn()

	var out any
	var callErr error
	switch method {
	case "detect_boxes":
		out, callErr = cl.DetectBoxes()
	case "handshake":
		out, callErr = cl.Handshake()
	case "screen_text":
		out, callErr = cl.ScreenText()
	case "status":
		out, callErr = cl.Status()
	case "type":
		callErr = cl.Type(rest[0])
	case "press":
		callErr = cl.Press(rest[0])
	case "raw":
		raw, decodeErr := base64.StdEncoding.DecodeString(rest[0])
		if decodeErr != nil {
			ts.Fatalf("decode base64: %v", decodeErr)
		}
		callErr = cl.Raw(raw)
	case "resize":
		cols := atoi(ts, rest[0])
		rows := atoi(ts, rest[1])
		callErr = cl.Resize(cols, rows)
	case "wait_for_text":
		timeout := time.Second
		if len(rest) > 1 {
			timeout = time.Duration(atoi(ts, rest[1])) * time.Millisecond
		}
		callErr = cl.WaitForText(rest[0], timeout)
	case "not_expect_text":
		callErr = cl.NotExpectText(rest[0])
	default:
		ts.Fatalf("unsupported method in fixture: %s", method)
	}
	if callErr != nil {
		ts.Fatalf("call %s: %v", method, callErr)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		ts.Fatalf("marshal result: %v", err)
	}
	fmt.Println(string(raw))
}

func atoi(ts *testscript.TestScript, s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		ts.Fatalf("invalid integer %q: %v", s, err)
	}
	return n
}

// connectWithRetry tolerates the background daemon still binding its
// socket when the fixture's "call" runs immediately after starting it.
func connectWithRetry(sockPath string) (*client.Client, error) {
	deadline := time.Now().Add(2 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		cl, err := client.Connect(sockPath)
		if err == nil {
			return cl, nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, lastErr
}
