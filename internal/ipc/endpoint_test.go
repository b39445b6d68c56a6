package ipc

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointName(t *testing.T) {
	env := "USER"
	if runtime.GOOS == "windows" {
		env = "USERNAME"
	}
	t.Setenv(env, "alice")

	assert.Equal(t, "srv_alice", EndpointName("srv"))
	assert.Equal(t, "clipd_server_alice", EndpointName(CommandServerBase))
}

func TestSocketPath(t *testing.T) {
	env := "USER"
	if runtime.GOOS == "windows" {
		env = "USERNAME"
	}
	t.Setenv(env, "bob")

	got := SocketPath("/run/user/1000", "srv")
	assert.Equal(t, filepath.Join("/run/user/1000", "srv_bob.sock"), got)
}

func TestBindOrDetectExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srv.sock")

	ln, bound := BindOrDetectExisting(path, time.Second)
	require.True(t, bound)
	require.NotNil(t, ln)
	defer ln.Close()

	// collect the wake ping the second caller sends
	pings := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if payload, ok := ReadFrame(conn, time.Second); ok {
			pings <- payload
		}
	}()

	second, bound := BindOrDetectExisting(path, time.Second)
	assert.False(t, bound)
	assert.Nil(t, second)

	select {
	case payload := <-pings:
		assert.Empty(t, payload, "wake ping must be body-less")
	case <-time.After(5 * time.Second):
		t.Fatal("running instance never received the wake ping")
	}
}

func TestBindOrDetectExistingRemovesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.sock")

	// leftover registration from a crashed instance: nothing listens here
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	ln, bound := BindOrDetectExisting(path, 200*time.Millisecond)
	require.True(t, bound)
	ln.Close()
}

func TestClientRequestResponse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		payload, ok := ReadFrame(conn, time.Second)
		if !ok {
			return
		}
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			return
		}
		var resp *Response
		if req.Command == "ping" {
			resp = Ok()
		} else {
			resp = Error("unknown command: " + req.Command)
		}
		out, _ := json.Marshal(resp)
		WriteMessage(conn, out) //nolint:errcheck
	}()

	client := NewClient(path)
	resp, err := client.Send(&Request{Command: "ping"})
	require.NoError(t, err)
	assert.True(t, resp.IsOK())
}
