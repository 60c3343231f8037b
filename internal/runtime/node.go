package runtime

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/validation"
)

//go:embed bridge.mjs
var bridgeSource string

// SocketEnv names the environment variable carrying the bridge socket path.
const SocketEnv = "ASTRAL_SOCKET"

// NodeOptions configures the node process page modules execute in.
type NodeOptions struct {
	// Command is the node executable. Defaults to "node".
	Command string
	// Dir is the working directory, usually the project root.
	Dir string
	// StartTimeout bounds the wait for the bridge socket. Defaults to 5s.
	StartTimeout time.Duration
	Logger       logging.Logger
}

// NodeRunner is a node child process serving page module calls over a unix
// socket.
type NodeRunner struct {
	cmd    *exec.Cmd
	dir    string
	socket string
	client *http.Client
	exited chan struct{}
	logger logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// StartNode launches the bridge and waits until it accepts connections.
func StartNode(ctx context.Context, opts NodeOptions) (*NodeRunner, error) {
	if opts.Command == "" {
		opts.Command = "node"
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if err := validation.ValidateCommandName(opts.Command); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error()).WithContext("command", opts.Command)
	}

	dir, err := os.MkdirTemp("", "astral-node-")
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeInternalError, "creating bridge directory", err)
	}
	script := filepath.Join(dir, "bridge.mjs")
	if err := os.WriteFile(script, []byte(bridgeSource), 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, errors.NewIOError(errors.ErrCodeInternalError, "writing bridge script", err)
	}
	socket := filepath.Join(dir, "bridge.sock")

	cmd := exec.Command(opts.Command, script)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), SocketEnv+"="+socket)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("failed to start %s: %v", opts.Command, err))
	}

	r := &NodeRunner{
		cmd:    cmd,
		dir:    dir,
		socket: socket,
		exited: make(chan struct{}),
		logger: opts.Logger.WithComponent("node"),
	}
	go func() {
		_ = cmd.Wait()
		close(r.exited)
	}()

	if err := r.waitForSocket(ctx, opts.StartTimeout); err != nil {
		r.Close()
		return nil, err
	}

	r.client = &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		},
	}
	r.logger.Info(ctx, "Node bridge started", "pid", cmd.Process.Pid)
	return r, nil
}

func (r *NodeRunner) waitForSocket(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		if _, err := os.Stat(r.socket); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.exited:
			return errors.NewInternalError(errors.ErrCodeInternalError, "node bridge exited during startup", nil)
		case <-deadline.C:
			return errors.NewInternalError(errors.ErrCodeInternalError,
				fmt.Sprintf("timeout waiting for node socket at %s", r.socket), nil)
		case <-tick.C:
		}
	}
}

// Close stops the process and removes its directory.
func (r *NodeRunner) Close() error {
	r.closeOnce.Do(func() {
		select {
		case <-r.exited:
		default:
			if err := r.cmd.Process.Signal(os.Interrupt); err != nil {
				r.closeErr = r.cmd.Process.Kill()
			}
			select {
			case <-r.exited:
			case <-time.After(2 * time.Second):
				r.closeErr = r.cmd.Process.Kill()
				<-r.exited
			}
		}
		if err := os.RemoveAll(r.dir); err != nil && r.closeErr == nil {
			r.closeErr = err
		}
	})
	return r.closeErr
}

// ScriptError is an exception thrown by page code.
type ScriptError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
	Code    string `json:"code"`
}

func (e *ScriptError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

// asError tags syntax errors and errors with code "parse-error" as parse
// errors.
func (e *ScriptError) asError() error {
	if e.Name == "SyntaxError" || e.Code == string(errors.ErrorTypeParse) {
		return errors.NewParseError("page module failed to parse", e).WithContext("stack", e.Stack)
	}
	return errors.NewInternalError(errors.ErrCodeInternalError, "page module threw", e).WithContext("stack", e.Stack)
}

type bridgeResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *ScriptError    `json:"error"`
}

// call posts body to the bridge operation op and decodes its result into
// out.
func (r *NodeRunner) call(ctx context.Context, op string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "encoding "+op+" request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://astral/"+op, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "node bridge unreachable", err)
	}
	defer resp.Body.Close()

	var result bridgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "decoding "+op+" response", err)
	}
	if result.Error != nil {
		return result.Error.asError()
	}
	if out == nil || len(result.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Result, out); err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "decoding "+op+" result", err)
	}
	return nil
}

// nodeModule is a page module loaded into a NodeRunner.
type nodeModule struct {
	runner        *NodeRunner
	id            string
	hasCollection bool
	css           []string
	stylesheets   []string
}

type collectionReply struct {
	Keys         []string       `json:"keys"`
	HasData      bool           `json:"hasData"`
	HasPermalink bool           `json:"hasPermalink"`
	HasRoutes    bool           `json:"hasRoutes"`
	Routes       []Params       `json:"routes"`
	PageSize     int            `json:"pageSize"`
	RSS          map[string]any `json:"rss"`
	HasRSSItem   bool           `json:"hasRSSItem"`
}

func (m *nodeModule) CreateCollection(ctx context.Context) (*Collection, error) {
	if !m.hasCollection {
		return nil, nil
	}
	var reply collectionReply
	if err := m.runner.call(ctx, "collection", map[string]any{"id": m.id}, &reply); err != nil {
		return nil, err
	}

	c := &Collection{
		Keys:      reply.Keys,
		Routes:    reply.Routes,
		HasRoutes: reply.HasRoutes,
		PageSize:  reply.PageSize,
		RSS:       reply.RSS,
	}
	if reply.HasData {
		c.Data = func(ctx context.Context, params Params) (any, error) {
			var v any
			err := m.runner.call(ctx, "data", map[string]any{"id": m.id, "params": params}, &v)
			return v, err
		}
	}
	if reply.HasPermalink {
		c.Permalink = func(ctx context.Context, params Params) (string, error) {
			var s string
			err := m.runner.call(ctx, "permalink", map[string]any{"id": m.id, "params": params}, &s)
			return s, err
		}
	}
	if reply.HasRSSItem {
		c.RSSItems = func(ctx context.Context, data []any) ([]RSSItem, error) {
			var items []RSSItem
			err := m.runner.call(ctx, "rssItems", map[string]any{"id": m.id, "data": data}, &items)
			return items, err
		}
	}
	return c, nil
}

func (m *nodeModule) RenderPage(ctx context.Context, in RenderInput) (string, error) {
	props := map[string]any{}
	if in.Collection != nil {
		props["collection"] = in.Collection
	}
	css := in.CSS
	if css == nil {
		css = []string{}
	}
	body := map[string]any{
		"id": m.id,
		"request": map[string]string{
			"url":          in.Request.URL.String(),
			"canonicalURL": in.Request.CanonicalURL.String(),
		},
		"props": props,
		"css":   css,
	}
	var html string
	if err := m.runner.call(ctx, "render", body, &html); err != nil {
		return "", err
	}
	return html, nil
}

func (m *nodeModule) Stylesheets() []string { return m.stylesheets }

func (m *nodeModule) CSS() []string { return m.css }

func (m *nodeModule) Close() error {
	return m.runner.call(context.Background(), "release", map[string]any{"id": m.id}, nil)
}
