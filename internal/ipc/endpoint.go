package ipc

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	// CommandServerBase names the command channel endpoint.
	CommandServerBase = "clipd_server"
	// MonitorServerBase names the clipboard-monitor channel endpoint.
	MonitorServerBase = "clipd_monitor_server"

	// DefaultConnectTimeout bounds the singleton-detection probe.
	DefaultConnectTimeout = 2 * time.Second
)

// EndpointName derives the concrete endpoint name by appending the
// current OS user identity to base, so multiple users on one host
// never collide on the same endpoint.
func EndpointName(base string) string {
	env := "USER"
	if runtime.GOOS == "windows" {
		env = "USERNAME"
	}
	return base + "_" + os.Getenv(env)
}

// SocketPath resolves base to a per-user socket file under dir.
func SocketPath(dir, base string) string {
	return filepath.Join(dir, EndpointName(base)+".sock")
}

// BindOrDetectExisting probes path for a live instance before binding.
// If a connect within connectTimeout succeeds another instance owns
// the endpoint: a zero-length wake frame is sent to it and (nil,
// false) is returned. Otherwise any stale socket left by a crashed
// prior instance is removed and a listener is created.
//
// The probe-then-bind sequence is racy under concurrent startup; a
// failed bind means another process won the race and is reported
// exactly like a clean detect, since both mean "do not become the
// server".
func BindOrDetectExisting(path string, connectTimeout time.Duration) (net.Listener, bool) {
	conn, err := net.DialTimeout("unix", path, connectTimeout)
	if err == nil {
		WriteMessage(conn, nil) //nolint:errcheck // wake ping, best effort
		conn.Close()
		return nil, false
	}

	os.Remove(path) //nolint:errcheck // stale socket from a crashed instance

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, false
	}
	return ln, true
}
