package hostport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// ErrSSHAuthFailed wraps a failed SSH handshake against the sidecar.
var ErrSSHAuthFailed = errors.New("hostport: ssh authentication to sidecar failed")

// ErrForwardMismatch is returned when the sidecar's sshd assigns a remote
// listener a different port than the one requested -- the daemon MUST bind
// exactly the requested port for a fixed-port reverse forward to be usable
// at all, so any other binding is treated as fatal rather than silently
// forwarding the wrong port.
var ErrForwardMismatch = errors.New("hostport: forwarded listener bound unexpected port")

// Tunnel is a live SSH connection to a Sidecar with one remote listener per
// exposed host port, relaying inbound forwarded-tcpip channels back out to
// 127.0.0.1:<port> on the host.
type Tunnel struct {
	sidecar *Sidecar
	client  *ssh.Client
	logger  *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// Open dials the sidecar's published SSH port (retrying with the package's
// exponential backoff schedule, since the sidecar's sshd takes a moment to
// start accepting connections after the container reports running) and
// opens a remote listener for every port in hostPorts.
func Open(ctx context.Context, sidecar *Sidecar, sidecarHostAddr string, hostPorts []int, logger *slog.Logger) (*Tunnel, error) {
	client, err := dialWithBackoff(ctx, sidecarHostAddr, sidecar.password)
	if err != nil {
		return nil, fmt.Errorf("hostport: dial sidecar: %w", err)
	}

	tunnelCtx, cancel := context.WithCancel(context.Background())
	t := &Tunnel{sidecar: sidecar, client: client, logger: logger, cancel: cancel, done: make(chan struct{})}

	go t.keepalive(tunnelCtx)

	for _, port := range hostPorts {
		if err := t.forward(tunnelCtx, port); err != nil {
			t.Close(ctx)
			return nil, fmt.Errorf("hostport: forward port %d: %w", port, err)
		}
	}

	return t, nil
}

func dialWithBackoff(ctx context.Context, addr, password string) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            "root",
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}

	var lastErr error
	for _, delay := range dialBackoff() {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err == nil {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetKeepAlive(true)
				_ = tcpConn.SetNoDelay(true)
			}
			sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
			if err != nil {
				conn.Close()
				lastErr = fmt.Errorf("%w: %v", ErrSSHAuthFailed, err)
			} else {
				return ssh.NewClient(sshConn, chans, reqs), nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// keepalive sends keepalive@openssh.com global requests every 10 seconds
// for as long as the tunnel is open, the lightweight equivalent of a TCP
// keepalive at the SSH protocol layer so a silently-dropped connection is
// noticed rather than hanging forwards forever.
func (t *Tunnel) keepalive(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _, err := t.client.SendRequest("keepalive@openssh.com", true, nil)
			if err != nil {
				t.logger.Warn("hostport: keepalive failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// forward asks the sidecar to listen on hostPort's namesake inside itself,
// then accepts connections on that listener and dials 127.0.0.1:hostPort on
// the actual host for each one, copying bytes both ways.
func (t *Tunnel) forward(ctx context.Context, hostPort int) error {
	listener, err := t.client.Listen("tcp", "0.0.0.0:"+strconv.Itoa(hostPort))
	if err != nil {
		return err
	}

	if err := checkForwardAddr(listener.Addr(), hostPort); err != nil {
		listener.Close()
		return err
	}

	go func() {
		defer listener.Close()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go t.relay(conn, hostPort)
		}
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	return nil
}

// checkForwardAddr verifies the sidecar's sshd bound the exact port asked
// for. A non-TCP address is left unchecked rather than rejected -- no code
// path in this package asks ssh.Client.Listen for anything but "tcp".
func checkForwardAddr(addr net.Addr, wantPort int) error {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil
	}
	if tcpAddr.Port != wantPort {
		return fmt.Errorf("%w: requested %d, sidecar bound %d", ErrForwardMismatch, wantPort, tcpAddr.Port)
	}
	return nil
}

func (t *Tunnel) relay(remote net.Conn, hostPort int) {
	defer remote.Close()

	local, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(hostPort))
	if err != nil {
		t.logger.Warn("hostport: dial host port failed", "port", hostPort, "error", err)
		return
	}
	defer local.Close()

	done := make(chan struct{}, 2)
	go func() { pipe(local, remote); done <- struct{}{} }()
	go func() { pipe(remote, local); done <- struct{}{} }()
	<-done
}

func pipe(dst net.Conn, src net.Conn) {
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// Close cancels every forward's accept loop, disconnects the SSH session
// (best-effort; errors are logged, not returned -- teardown never fails
// from the caller's perspective), and stops the sidecar container.
func (t *Tunnel) Close(ctx context.Context) {
	t.cancel()
	if err := t.client.Close(); err != nil {
		t.logger.Warn("hostport: ssh client close failed", "error", err)
	}
	if err := t.sidecar.Stop(ctx); err != nil {
		t.logger.Warn("hostport: sidecar stop failed", "error", err)
	}
}
