// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/provar-ci/provar-ci/internal/secret"
)

const defaultDialTimeout = 10 * time.Second

type (
	// SSHConfig configures a connection to a remote agent server.
	SSHConfig struct {
		Address string
		User    string
		Token   secret.Secret
		// HostKey pins the server key (authorized_keys format). When empty
		// any host key is accepted.
		HostKey     string
		DialTimeout time.Duration
	}

	// SSH is an Agent backed by a remote agent server.
	SSH struct {
		addr   string
		client *ssh.Client
	}
)

var _ Agent = (*SSH)(nil)

// DialSSH connects and authenticates to the agent server at cfg.Address.
func DialSSH(ctx context.Context, cfg SSHConfig) (*SSH, error) {
	if cfg.Address == "" {
		return nil, errors.New("agent address is required")
	}
	user := cfg.User
	if user == "" {
		user = DefaultUser
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // pinning is opt-in via HostKey
	if cfg.HostKey != "" {
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(cfg.HostKey))
		if err != nil {
			return nil, fmt.Errorf("parse agent host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(key)
	}

	clientCfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Token.PlainText())},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, &OfflineError{Agent: cfg.Address, Err: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, cfg.Address, clientCfg)
	if err != nil {
		_ = conn.Close()
		return nil, &OfflineError{Agent: cfg.Address, Err: err}
	}
	_ = conn.SetDeadline(time.Time{})

	return &SSH{addr: cfg.Address, client: ssh.NewClient(c, chans, reqs)}, nil
}

// Close closes the connection.
func (s *SSH) Close() error {
	return s.client.Close()
}

// Node asks the server to describe its host.
func (s *SSH) Node(ctx context.Context) (Node, error) {
	resp, err := s.call(ctx, VerbInfo, Request{})
	if err != nil {
		return Node{}, err
	}
	if resp.Node == nil {
		return Node{}, fmt.Errorf("agent %s returned no node description", s.addr)
	}
	return *resp.Node, nil
}

// LocateHome expands rawHome with the remote environment and checks marker.
func (s *SSH) LocateHome(ctx context.Context, rawHome, marker string) (string, error) {
	resp, err := s.call(ctx, VerbLocateHome, Request{Home: rawHome, Marker: marker})
	if err != nil {
		return "", err
	}
	return resp.Home, nil
}

// Exists checks path on the remote node.
func (s *SSH) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := s.call(ctx, VerbExists, Request{Path: path})
	if err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// Launch runs the process remotely, streaming its output to req.Stdout.
// Cancelling ctx closes the session, which kills the remote process.
func (s *SSH) Launch(ctx context.Context, req LaunchRequest) (int, error) {
	body, err := json.Marshal(Request{Launch: &req})
	if err != nil {
		return -1, fmt.Errorf("encode launch request: %w", err)
	}

	stdout := req.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	var stderr bytes.Buffer
	err = s.run(ctx, VerbExec, body, stdout, &stderr)
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	if errors.Is(err, ErrOffline) {
		return -1, err
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		var resp Response
		if stderr.Len() > 0 && json.Unmarshal(stderr.Bytes(), &resp) == nil && resp.Error != "" {
			return -1, fmt.Errorf("launch %s on %s: %s", firstArg(req.Args), s.addr, resp.Error)
		}
		return exitErr.ExitStatus(), nil
	}
	return -1, &OfflineError{Agent: s.addr, Err: err}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (s *SSH) call(ctx context.Context, verb string, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode %s request: %w", verb, err)
	}

	var stdout, stderr bytes.Buffer
	runErr := s.run(ctx, verb, body, &stdout, &stderr)
	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}

	var resp Response
	if stdout.Len() > 0 {
		if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
			return Response{}, fmt.Errorf("decode %s response from %s: %w", verb, s.addr, err)
		}
	}
	if resp.Error != "" {
		return Response{}, fmt.Errorf("agent %s: %s: %s", s.addr, verb, resp.Error)
	}
	if runErr != nil {
		if errors.Is(runErr, ErrOffline) {
			return Response{}, runErr
		}
		var exitErr *ssh.ExitError
		if errors.As(runErr, &exitErr) {
			return Response{}, fmt.Errorf("agent %s: %s exited with status %d", s.addr, verb, exitErr.ExitStatus())
		}
		return Response{}, &OfflineError{Agent: s.addr, Err: runErr}
	}
	return resp, nil
}

// run executes verb in a new session. On cancellation the session is closed
// and run waits for its I/O to drain before returning.
func (s *SSH) run(ctx context.Context, verb string, body []byte, stdout, stderr io.Writer) error {
	sess, err := s.client.NewSession()
	if err != nil {
		return &OfflineError{Agent: s.addr, Err: err}
	}
	defer sess.Close()

	sess.Stdin = bytes.NewReader(body)
	sess.Stdout = stdout
	sess.Stderr = stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(verb) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		_ = sess.Close()
		<-done
		return ctx.Err()
	}
}
