package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/logging"
	"github.com/tidwall/gjson"
)

// commandLogger is the subset of *logging.HarnessLogger this package can
// exercise: a plain logging.Logger has no notion of a protocol command, so
// this is satisfied only when the caller supplied the richer logger.
type commandLogger interface {
	LogWorkerCommand(cmd string, dur time.Duration, success bool, err error)
}

// ExecResult is the normalized outcome of exec (§3: REPL execution result).
type ExecResult struct {
	Stdout        string
	Stderr        string
	VariableNames []string
	ElapsedMs     int64
}

// MatchVars filters r.VariableNames against a shell-style glob pattern.
func (r ExecResult) MatchVars(pattern string) []string {
	return MatchVars(r.VariableNames, pattern)
}

// pending is one in-flight request awaiting its response line.
type pending struct {
	cmd    string
	respCh chan pendingResult
}

type pendingResult struct {
	resp response
	err  error
}

// Client owns a single child interpreter process and serializes access to
// its line-delimited JSON protocol. All exported methods are safe to call
// concurrently; responses are matched to requests strictly in the order
// requests were sent (§4.3, §5).
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger logging.Logger

	writeMu sync.Mutex // serializes "write a request line, enqueue its pending" as one step

	queueMu sync.Mutex
	queue   []*pending

	exitOnce sync.Once
	exitErr  error
	closed   chan struct{}
}

// Options configures Start.
type Options struct {
	Command string
	Args    []string
	Logger  logging.Logger
}

// Start launches the operator-configured interpreter command and begins
// reading its stdout and stderr in the background.
func Start(ctx context.Context, opts Options) (*Client, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("worker: command is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("worker: start: %w", err)
	}

	c := &Client{
		cmd:    cmd,
		stdin:  stdin,
		logger: logger,
		closed: make(chan struct{}),
	}

	go c.readStdout(stdout)
	go c.readStderr(stderr)
	go c.awaitExit()

	return c, nil
}

func (c *Client) awaitExit() {
	err := c.cmd.Wait()
	c.exitOnce.Do(func() {
		c.exitErr = classifyExit(err, c.cmd)
		close(c.closed)
		c.failQueue(c.exitErr)
	})
}

func classifyExit(err error, cmd *exec.Cmd) error {
	if err == nil {
		return &core.WorkerExited{Code: 0}
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		if exitErr.ProcessState != nil {
			if ws, ok := signalled(exitErr); ok {
				return &core.WorkerExited{Signal: ws}
			}
			return &core.WorkerExited{Code: exitErr.ExitCode()}
		}
	}
	return &core.WorkerExited{Code: -1}
}

func (c *Client) readStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		p := c.popPending()
		if p == nil {
			c.logger.Warn("worker: response with no pending request, discarding", "line", string(line))
			continue
		}

		resp, err := decodeResponse(line)
		if err != nil {
			p.respCh <- pendingResult{err: &core.WorkerProtocolError{Line: string(line), Err: err}}
			continue
		}
		p.respCh <- pendingResult{resp: resp}
	}
}

func (c *Client) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.logger.Warn("worker stderr", "line", scanner.Text())
	}
}

func (c *Client) popPending() *pending {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	p := c.queue[0]
	c.queue = c.queue[1:]
	return p
}

func (c *Client) failQueue(err error) {
	c.queueMu.Lock()
	pending := c.queue
	c.queue = nil
	c.queueMu.Unlock()
	for _, p := range pending {
		p.respCh <- pendingResult{err: err}
	}
}

// send times and records one round trip through doSend.
func (c *Client) send(req request) (response, error) {
	start := time.Now()
	resp, err := c.doSend(req)
	if cl, ok := c.logger.(commandLogger); ok {
		cl.LogWorkerCommand(req.Cmd, time.Since(start), err == nil, err)
	}
	return resp, err
}

// doSend writes req as a single JSON line and enqueues a pending slot for
// its response, atomically with respect to other senders so that request
// order on the wire matches queue order.
func (c *Client) doSend(req request) (response, error) {
	select {
	case <-c.closed:
		return response{}, c.exitErr
	default:
	}

	line, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("worker: encode request: %w", err)
	}
	line = append(line, '\n')

	p := &pending{cmd: req.Cmd, respCh: make(chan pendingResult, 1)}

	c.writeMu.Lock()
	c.queueMu.Lock()
	c.queue = append(c.queue, p)
	c.queueMu.Unlock()
	_, werr := c.stdin.Write(line)
	c.writeMu.Unlock()

	if werr != nil {
		return response{}, fmt.Errorf("worker: write request: %w", werr)
	}

	select {
	case r := <-p.respCh:
		if r.err != nil {
			return response{}, r.err
		}
		if !r.resp.OK {
			return response{}, &core.WorkerError{Cmd: req.Cmd, Message: r.resp.Error}
		}
		return r.resp, nil
	case <-c.closed:
		return response{}, c.exitErr
	}
}

// Init installs ctx into the interpreter namespace and injects the four
// harness callables (§4.3).
func (c *Client) Init(context any, contextFilePath, bridgeURL, question string) error {
	_, err := c.send(request{
		Cmd:             "init",
		Context:         context,
		ContextFilePath: contextFilePath,
		BridgeURL:       bridgeURL,
		Question:        question,
	})
	return err
}

// Exec runs code against the persistent interpreter namespace.
func (c *Client) Exec(code string) (ExecResult, error) {
	start := nowMillis()
	resp, err := c.send(request{Cmd: "exec", Code: code})
	if err != nil {
		return ExecResult{}, err
	}

	// gjson.ForEach walks the object in document order, unlike decoding
	// into a Go map, so the interpreter's namespace creation order survives.
	var names []string
	gjson.ParseBytes(resp.Locals).ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})

	elapsed := int64(resp.ExecutionTime * 1000)
	if elapsed == 0 {
		elapsed = nowMillis() - start
	}

	return ExecResult{
		Stdout:        resp.Stdout,
		Stderr:        resp.Stderr,
		VariableNames: names,
		ElapsedMs:     elapsed,
	}, nil
}

// FinalVar returns the string representation of a named variable.
func (c *Client) FinalVar(name string) (string, error) {
	resp, err := c.send(request{Cmd: "final_var", Name: name})
	if err != nil {
		return "", err
	}
	return resp.Value, nil
}

// ShowVars returns a rendering of the current namespace, as produced by the
// interpreter's own SHOW_VARS() callable. This extends the base protocol
// with a fifth command mirroring that callable, injected at init alongside
// the other three.
func (c *Client) ShowVars() (string, error) {
	resp, err := c.send(request{Cmd: "show_vars"})
	if err != nil {
		return "", err
	}
	return resp.Value, nil
}

// Close requests a graceful shutdown and then signals the child process.
// It is safe to call Close after the process has already exited.
func (c *Client) Close() error {
	select {
	case <-c.closed:
		return nil
	default:
	}

	_, _ = c.send(request{Cmd: "close"})

	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	_ = c.stdin.Close()

	<-c.closed
	if _, ok := c.exitErr.(*core.WorkerExited); ok {
		return nil
	}
	return c.exitErr
}
