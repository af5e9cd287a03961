// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

// ReadyState is the outcome of bounded readiness polling. Not reaching
// readiness within the attempt budget is a reportable outcome, not an
// error: the process may still be loading models and the operator
// decides what to do with it.
type ReadyState string

const (
	Ready    ReadyState = "ready"
	TimedOut ReadyState = "timed_out"
)

// Handle refers to a launched service process.
type Handle struct {
	Host       string
	Port       int
	HealthPath string

	cmd *exec.Cmd
}

// URL returns the service base URL.
func (h *Handle) URL() string {
	return "http://" + net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// Controller launches and supervises the service process.
type Controller struct {
	MaxAttempts int
	Interval    time.Duration

	logger *log.Logger
	client *http.Client

	// startCommand is a seam for tests.
	startCommand func(ctx context.Context, scriptPath string) *exec.Cmd
}

// NewController builds a Controller with the given polling budget.
func NewController(maxAttempts int, interval time.Duration, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		MaxAttempts: maxAttempts,
		Interval:    interval,
		logger:      logger,
		client:      &http.Client{Timeout: 5 * time.Second},
		startCommand: func(ctx context.Context, scriptPath string) *exec.Cmd {
			return exec.CommandContext(ctx, scriptPath)
		},
	}
}

// Launch starts the service via its startup script. The returned Handle
// is live immediately; readiness is a separate, bounded concern.
func (c *Controller) Launch(ctx context.Context, scriptPath, host string, port int, healthPath string) (*Handle, error) {
	cmd := c.startCommand(ctx, scriptPath)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting service: %w", err)
	}
	c.logger.Info("service launched", "script", scriptPath, "pid", cmd.Process.Pid)
	return &Handle{Host: host, Port: port, HealthPath: healthPath, cmd: cmd}, nil
}

// AwaitReady polls the service health endpoint at most MaxAttempts
// times, Interval apart. It returns Ready on the first successful
// probe and TimedOut once the budget is spent. Context cancellation is
// the only error path.
func (c *Controller) AwaitReady(ctx context.Context, h *Handle) (ReadyState, error) {
	endpoint, err := url.JoinPath(h.URL(), h.HealthPath)
	if err != nil {
		return TimedOut, fmt.Errorf("building health endpoint: %w", err)
	}

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return TimedOut, err
		}

		if c.probe(ctx, endpoint) {
			c.logger.Info("service ready", "attempt", attempt, "endpoint", endpoint)
			return Ready, nil
		}
		c.logger.Debug("service not ready yet", "attempt", attempt, "of", c.MaxAttempts)

		if attempt < c.MaxAttempts {
			select {
			case <-ctx.Done():
				return TimedOut, ctx.Err()
			case <-time.After(c.Interval):
			}
		}
	}

	c.logger.Warn("service did not become ready within budget",
		"attempts", c.MaxAttempts, "interval", c.Interval)
	return TimedOut, nil
}

func (c *Controller) probe(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Stop asks the service to terminate and waits for it, escalating to a
// kill after the grace period.
func (c *Controller) Stop(h *Handle, grace time.Duration) error {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return nil
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling service: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		c.logger.Warn("service ignored SIGTERM, killing", "pid", h.cmd.Process.Pid)
		if err := h.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("killing service: %w", err)
		}
		<-done
		return nil
	}
}
