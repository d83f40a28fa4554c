// -----------------------------------------------------------------------
// Administration Client
// -----------------------------------------------------------------------
//
// Package rac wraps the 1C:Enterprise administration client executable.
// Each query spawns the executable with a sub-command and the address of
// the administration server, waits for it under a fixed deadline, and
// parses its text output.
//
// Authentication:
// When credentials are configured, the known flag conventions are tried in
// a fixed order and the first invocation that exits with code 0 wins. If
// none succeeds, one final attempt is made without credentials.
//
// Failure Policy:
// Every failure is returned as an error wrapping one of the kinds declared
// in errors.go. Nothing in this package panics or exits, and aggregate
// queries keep going when a single cluster fails.
//
// -----------------------------------------------------------------------

package rac

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/afreidah/1c-zabbix-monitor/internal/metrics"
)

// -----------------------------------------------------------------------
// Timeouts
// -----------------------------------------------------------------------

const (
	// ListTimeout bounds cluster and process enumeration.
	ListTimeout = 5 * time.Second

	// SessionTimeout bounds session enumeration, which is slower on busy
	// clusters.
	SessionTimeout = 10 * time.Second
)

// -----------------------------------------------------------------------
// Endpoint and Credentials
// -----------------------------------------------------------------------

// Endpoint identifies an administration server instance.
type Endpoint struct {
	Host string
	Port uint16
}

// String formats the endpoint as the address argument, "host:port".
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", strings.TrimSpace(e.Host), e.Port)
}

// Credentials are the cluster administrator login and password.
type Credentials struct {
	User     string
	Password string
}

func (c *Credentials) usable() bool {
	return c != nil && c.User != "" && c.Password != ""
}

// authAttempts lists the flag conventions understood by different
// platform versions. Order matters.
var authAttempts = []func(Credentials) []string{
	func(c Credentials) []string { return []string{"--cluster-user", c.User, "--cluster-pwd", c.Password} },
	func(c Credentials) []string { return []string{"--user", c.User, "--password", c.Password} },
}

// -----------------------------------------------------------------------
// Process Runner
// -----------------------------------------------------------------------

// Runner starts a process and returns its standard output. The context
// carries the deadline of the attempt.
type Runner interface {
	Run(ctx context.Context, exe string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, exe string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.WaitDelay = time.Second
	return cmd.Output()
}

// -----------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------

// Client issues queries against one administration server.
type Client struct {
	exe      string
	endpoint Endpoint
	creds    *Credentials
	runner   Runner
	log      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(c *Client) { c.runner = r }
}

// WithLogger sets the logger used for per-attempt diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client for the given executable and endpoint. creds may be
// nil for unauthenticated access.
func New(exe string, endpoint Endpoint, creds *Credentials, opts ...Option) *Client {
	c := &Client{
		exe:      exe,
		endpoint: endpoint,
		creds:    creds,
		runner:   ExecRunner{},
		log:      logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Executable returns the path of the administration client in use.
func (c *Client) Executable() string { return c.exe }

// Endpoint returns the administration server address.
func (c *Client) Endpoint() Endpoint { return c.endpoint }

// -----------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------

// Clusters lists the ids of all clusters managed by the server.
func (c *Client) Clusters(ctx context.Context) ([]string, error) {
	out, err := c.invoke(ctx, ListTimeout, []string{"cluster", "list"}, nil)
	if err != nil {
		return nil, err
	}
	ids := ParseClusters(out)
	if len(ids) == 0 && len(bytes.TrimSpace(out)) > 0 {
		return nil, fmt.Errorf("cluster list: %w", ErrMalformed)
	}
	return ids, nil
}

// Reachable reports whether any cluster list invocation exits cleanly.
func (c *Client) Reachable(ctx context.Context) bool {
	_, err := c.invoke(ctx, ListTimeout, []string{"cluster", "list"}, nil)
	if err != nil {
		c.log.Debug("administration server unreachable", "endpoint", c.endpoint.String(), "reason", Reason(err), "err", err)
	}
	return err == nil
}

// WorkerProcesses lists the worker processes of one cluster.
func (c *Client) WorkerProcesses(ctx context.Context, clusterID string) ([]WorkerProcess, error) {
	out, err := c.invoke(ctx, ListTimeout, []string{"process", "list"}, []string{"--cluster=" + clusterID})
	if err != nil {
		return nil, err
	}
	procs := ParseWorkerProcesses(out)
	if len(procs) == 0 && len(bytes.TrimSpace(out)) > 0 {
		return nil, fmt.Errorf("process list for cluster %s: %w", clusterID, ErrMalformed)
	}
	return procs, nil
}

// Sessions counts the sessions of one cluster.
func (c *Client) Sessions(ctx context.Context, clusterID string) (int, error) {
	out, err := c.invoke(ctx, SessionTimeout, []string{"session", "list"}, []string{"--cluster=" + clusterID})
	if err != nil {
		return 0, err
	}
	return ParseSessionCount(out), nil
}

// TotalSessions sums sessions over every cluster. Clusters that fail
// contribute zero; their errors are joined into the returned error while
// the partial total is still returned.
func (c *Client) TotalSessions(ctx context.Context) (int, error) {
	clusters, err := c.Clusters(ctx)
	if err != nil {
		return 0, err
	}
	if len(clusters) == 0 {
		return 0, ErrNoClusters
	}

	total := 0
	var errs []error
	for _, id := range clusters {
		n, err := c.Sessions(ctx, id)
		if err != nil {
			c.log.Debug("session list failed", "cluster", id, "reason", Reason(err), "err", err)
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// AllWorkerProcesses collects worker processes over every cluster, in
// cluster order. Failing clusters are skipped as in TotalSessions.
func (c *Client) AllWorkerProcesses(ctx context.Context) ([]WorkerProcess, error) {
	clusters, err := c.Clusters(ctx)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, ErrNoClusters
	}

	var all []WorkerProcess
	var errs []error
	for _, id := range clusters {
		procs, err := c.WorkerProcesses(ctx, id)
		if err != nil {
			c.log.Debug("process list failed", "cluster", id, "reason", Reason(err), "err", err)
			errs = append(errs, err)
			continue
		}
		all = append(all, procs...)
	}
	return all, errors.Join(errs...)
}

// -----------------------------------------------------------------------
// Invocation
// -----------------------------------------------------------------------

// invoke runs one sub-command with the authentication fallback sequence
// and returns the output of the first attempt that exits cleanly.
func (c *Client) invoke(ctx context.Context, timeout time.Duration, verbs, extra []string) ([]byte, error) {
	if c.creds.usable() {
		for i, auth := range authAttempts {
			out, err := c.run(ctx, timeout, verbs, c.buildArgs(verbs, auth(*c.creds), extra))
			if err == nil {
				return out, nil
			}
			c.log.Debug("authenticated attempt failed",
				"command", strings.Join(verbs, " "),
				"attempt", i+1,
				"reason", Reason(err))
			if errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
	}
	return c.run(ctx, timeout, verbs, c.buildArgs(verbs, nil, extra))
}

func (c *Client) buildArgs(verbs, auth, extra []string) []string {
	args := make([]string, 0, len(verbs)+len(auth)+len(extra)+1)
	args = append(args, verbs...)
	args = append(args, auth...)
	args = append(args, extra...)
	return append(args, c.endpoint.String())
}

// run performs a single attempt under its own deadline.
func (c *Client) run(ctx context.Context, timeout time.Duration, verbs, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := c.runner.Run(ctx, c.exe, args...)
	if err != nil {
		err = classify(ctx, append([]string{c.exe}, args...), err)
	}
	metrics.RacInvocations.WithLabelValues(strings.Join(verbs, "_"), Reason(err)).Inc()
	return out, err
}

// classify turns a runner error into a CommandError with a failure kind.
func classify(ctx context.Context, args []string, err error) error {
	cmdErr := &CommandError{Args: args, Err: err}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		cmdErr.Kind = ErrTimeout
	case errors.Is(err, ErrNotFound), errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		cmdErr.Kind = ErrNotFound
	case errors.Is(err, ErrTimeout):
		cmdErr.Kind = ErrTimeout
	case errors.As(err, &exitErr):
		cmdErr.Kind = ErrExitStatus
		cmdErr.ExitCode = exitErr.ExitCode()
	default:
		cmdErr.Kind = ErrExitStatus
	}
	return cmdErr
}

func logger() *slog.Logger {
	return slog.Default().With("component", "rac")
}
