package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// stopGracePeriod is how long Close waits for the subprocess to exit
// after stdin is closed before killing it.
const stopGracePeriod = 5 * time.Second

// StdioConfig describes a tool server launched as a subprocess.
type StdioConfig struct {
	// Command is the executable to launch.
	Command string

	// Args are passed to the executable verbatim.
	Args []string

	// Env entries ("KEY=VALUE") are appended to the inherited
	// process environment. The AMap server reads its API key here.
	Env []string

	Logger *slog.Logger
}

// StdioTransport runs an MCP server as a child process and exchanges
// newline-delimited JSON-RPC messages over its stdin/stdout. Calls are
// serialized; the pipe carries one conversation.
type StdioTransport struct {
	logger *slog.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Reader
}

// NewStdioTransport launches the subprocess and returns a transport
// connected to it.
func NewStdioTransport(cfg StdioConfig) (*StdioTransport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start tool server %s: %w", cfg.Command, err)
	}

	t := &StdioTransport{
		logger: logger,
		cmd:    cmd,
		stdin:  stdin,
		out:    bufio.NewReaderSize(stdout, 1<<20),
	}
	go t.logStderr(stderr)

	logger.Info("tool server started", "command", cfg.Command, "pid", cmd.Process.Pid)
	return t, nil
}

// logStderr forwards subprocess stderr to the log. Stderr is not part
// of the protocol.
func (t *StdioTransport) logStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		t.logger.Debug("tool server stderr", "line", sc.Text())
	}
}

type lineResult struct {
	data []byte
	err  error
}

// Call writes the request and reads stdout until a response with the
// matching ID arrives. Server-initiated messages in between are
// skipped. Reads happen on a goroutine so context cancellation can
// interrupt them; cancellation tears the transport down since the
// pipe position is then unknown.
func (t *StdioTransport) Call(ctx context.Context, req *Request) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return nil, fmt.Errorf("mcp: transport closed")
	}

	if err := t.writeLocked(req); err != nil {
		return nil, err
	}

	for {
		ch := make(chan lineResult, 1)
		go func() {
			data, err := t.out.ReadBytes('\n')
			ch <- lineResult{data: data, err: err}
		}()

		select {
		case <-ctx.Done():
			t.teardownLocked()
			return nil, ctx.Err()
		case res := <-ch:
			if res.err != nil {
				t.teardownLocked()
				return nil, fmt.Errorf("read tool server stdout: %w", res.err)
			}

			var resp Response
			if err := json.Unmarshal(res.data, &resp); err != nil {
				t.logger.Debug("skipping non-JSON line from tool server", "line", string(res.data))
				continue
			}
			if resp.ID != req.ID {
				t.logger.Debug("skipping unmatched message from tool server", "id", resp.ID)
				continue
			}
			return &resp, nil
		}
	}
}

// Notify writes a notification. Nothing is read back.
func (t *StdioTransport) Notify(_ context.Context, notif *Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return fmt.Errorf("mcp: transport closed")
	}
	return t.writeLocked(notif)
}

// writeLocked marshals msg and writes it with a newline delimiter.
// Caller holds t.mu.
func (t *StdioTransport) writeLocked(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		t.teardownLocked()
		return fmt.Errorf("write to tool server stdin: %w", err)
	}
	return nil
}

// Close asks the subprocess to exit by closing stdin, then kills it if
// it lingers past the grace period.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return nil
	}

	t.logger.Info("stopping tool server", "pid", t.cmd.Process.Pid)
	t.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		t.cmd = nil
		return err
	case <-time.After(stopGracePeriod):
		t.logger.Warn("tool server did not exit, killing", "pid", t.cmd.Process.Pid)
		_ = t.cmd.Process.Kill()
		<-done
		t.cmd = nil
		return nil
	}
}

// teardownLocked kills the subprocess after a protocol failure. Caller
// holds t.mu.
func (t *StdioTransport) teardownLocked() {
	if t.cmd == nil {
		return
	}
	t.stdin.Close()
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		_ = t.cmd.Wait()
	}
	t.cmd = nil
	t.stdin = nil
	t.out = nil
}
