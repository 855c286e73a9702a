// Package remote runs build steps on another machine over SSH, for
// example a Windows box that produces .exe bundles while the operator
// drives from Linux.
package remote

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// Executor is a connected SSH builder. One command runs at a time, the
// pipeline's parallelism stays on the orchestrating side.
type Executor struct {
	client    *ssh.Client
	addr      string
	user      string
	mu        sync.Mutex
	connected bool
}

// NewExecutor dials the builder. Password and key auth can be combined,
// at least one must be given.
func NewExecutor(host, user, password, keyPath string) (*Executor, error) {
	var authMethods []ssh.AuthMethod

	if password != "" {
		authMethods = append(authMethods, ssh.Password(password))
	}

	if keyPath != "" {
		key, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read private key: %v", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %v", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication methods provided")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := host
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:22", addr)
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %v", err)
	}

	return &Executor{
		client:    client,
		addr:      addr,
		user:      user,
		connected: true,
	}, nil
}

func (e *Executor) Describe() string {
	return fmt.Sprintf("%s@%s", e.user, e.addr)
}

// Run executes the command on the builder and forwards its combined
// output to sink. Cancelling ctx tears the session down.
func (e *Executor) Run(ctx context.Context, dir, name string, args []string, sink func(string)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.connected {
		return fmt.Errorf("not connected to remote host")
	}
	if sink == nil {
		sink = func(string) {}
	}

	session, err := e.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}
	defer session.Close()

	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			sink(sc.Text())
		}
	}()

	command := buildCommandLine(dir, name, args)
	if err := session.Start(command); err != nil {
		pw.Close()
		<-scanDone
		return fmt.Errorf("failed to start command: %v", err)
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- session.Wait() }()

	select {
	case err := <-waitDone:
		pw.Close()
		<-scanDone
		if err != nil {
			return fmt.Errorf("remote command failed: %v", err)
		}
		return nil
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		pw.Close()
		<-scanDone
		return fmt.Errorf("command interrupted: %v", ctx.Err())
	}
}

func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connected {
		e.connected = false
		return e.client.Close()
	}
	return nil
}

// buildCommandLine renders the step as a shell command for the remote
// side, which is the one place where quoting matters.
func buildCommandLine(dir, name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, part := range append([]string{name}, args...) {
		parts = append(parts, shellQuote(part))
	}
	command := strings.Join(parts, " ")
	if dir != "" {
		command = fmt.Sprintf("cd %s && %s", shellQuote(dir), command)
	}
	return command
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>()*?[]{}~#`!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
