package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"frpanel/internal/config"
	"frpanel/internal/metrics"
	"frpanel/internal/models"
)

var (
	ErrNoProcessRunning   = errors.New("no process running")
	ErrExecutableNotFound = errors.New("client executable not found")
	ErrConfigNotFound     = errors.New("client config not found")
)

// SpawnError is returned when the client could not be launched.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Lines printed by frpc once it has logged in and registered its proxies.
var readyMarkers = []string{
	"login to server success",
	"start proxy success",
}

const (
	maxLineSize = 1 << 20
	// waitDelay bounds how long Wait keeps the output pipes open after the
	// client exits, in case a grandchild inherited them.
	waitDelay = 2 * time.Second
	// killWait bounds the wait for exit handling after SIGKILL.
	killWait = 5 * time.Second
)

// child is one launched client. done is closed once its output has been
// drained and its exit recorded.
type child struct {
	cmd       *exec.Cmd
	pid       int
	startTime time.Time
	done      chan struct{}
}

// ProcessManager supervises a single frp client process. opMu serialises
// Start and Stop and may be held while waiting for a child to exit; mu
// guards the fields below it and is never held across a wait.
type ProcessManager struct {
	opMu sync.Mutex

	mu       sync.RWMutex
	proc     *child
	state    models.ProcessState
	exitCode *int

	cfg     config.ProcessConfig
	logs    *LogBuffer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewProcessManager(cfg config.ProcessConfig, logs *LogBuffer, logger *slog.Logger, m *metrics.Metrics) *ProcessManager {
	if logs == nil {
		logs = NewLogBuffer(DefaultLogCapacity)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pm := &ProcessManager{
		state:   models.StateStopped,
		cfg:     cfg,
		logs:    logs,
		logger:  logger.With("process", cfg.Name),
		metrics: m,
	}
	m.SetState(pm.state)
	return pm
}

func (pm *ProcessManager) system(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	pm.logs.Add(models.LogEntry{
		Timestamp: time.Now(),
		Channel:   models.ChannelSystem,
		Text:      msg,
	})
	pm.metrics.ObserveLogLine(models.ChannelSystem)
	pm.logger.Info(msg)
}

// setState must be called with mu held.
func (pm *ProcessManager) setState(s models.ProcessState) {
	pm.state = s
	pm.metrics.SetState(s)
}

func (pm *ProcessManager) checkFiles() error {
	if strings.ContainsRune(pm.cfg.Command, os.PathSeparator) || strings.Contains(pm.cfg.Command, "/") {
		info, err := os.Stat(pm.cfg.Command)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%w: %s", ErrExecutableNotFound, pm.cfg.Command)
		}
	} else if _, err := exec.LookPath(pm.cfg.Command); err != nil {
		return fmt.Errorf("%w: %s", ErrExecutableNotFound, pm.cfg.Command)
	}

	if pm.cfg.DocumentPath != "" {
		if _, err := os.Stat(pm.cfg.DocumentPath); err != nil {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, pm.cfg.DocumentPath)
		}
	}
	return nil
}

// StartProcess launches the client, first terminating any client that is
// already held. It returns as soon as the process has been spawned; progress
// after that is visible through the log buffer and Status.
func (pm *ProcessManager) StartProcess(ctx context.Context) (int, error) {
	pm.opMu.Lock()
	defer pm.opMu.Unlock()

	if err := pm.checkFiles(); err != nil {
		pm.metrics.ObserveStart(err)
		return 0, err
	}

	pm.mu.Lock()
	old := pm.proc
	pm.proc = nil
	pm.mu.Unlock()

	if old != nil {
		pm.logger.Info("terminating previous client", "pid", old.pid)
		pm.terminate(ctx, old)
	}

	pm.logs.Clear()

	cmd := exec.Command(pm.cfg.Command, pm.cfg.Args...)
	cmd.Dir = pm.cfg.Directory
	cmd.Env = pm.cfg.Env()
	cmd.WaitDelay = waitDelay

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		spawnErr := &SpawnError{Command: pm.cfg.Command, Err: err}

		pm.mu.Lock()
		pm.setState(models.StateErrored)
		pm.mu.Unlock()

		pm.system("Failed to start %s: %v", pm.cfg.Name, err)
		pm.metrics.ObserveStart(spawnErr)
		return 0, spawnErr
	}

	c := &child{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}

	pm.mu.Lock()
	pm.proc = c
	pm.exitCode = nil
	pm.setState(models.StateStarting)
	pm.mu.Unlock()

	pm.system("Process %s started with PID %d", pm.cfg.Name, c.pid)
	pm.metrics.ObserveStart(nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go pm.readOutput(c, stdoutR, models.ChannelStdout, &wg)
	go pm.readOutput(c, stderrR, models.ChannelStderr, &wg)
	go pm.monitorProcess(c, &wg, stdoutW, stderrW)

	return c.pid, nil
}

func (pm *ProcessManager) readOutput(c *child, r io.Reader, ch models.LogChannel, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		pm.logs.Add(models.LogEntry{
			Timestamp: time.Now(),
			Channel:   ch,
			Text:      line,
		})
		pm.metrics.ObserveLogLine(ch)
		pm.logger.Debug("client output", "channel", ch, "line", line)

		if hasReadyMarker(line) {
			pm.markRunning(c)
		}
	}
	if err := scanner.Err(); err != nil {
		pm.logger.Warn("reading client output", "channel", ch, "error", err)
		io.Copy(io.Discard, r)
	}
}

func hasReadyMarker(line string) bool {
	for _, m := range readyMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func (pm *ProcessManager) markRunning(c *child) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.proc == c && pm.state == models.StateStarting {
		pm.setState(models.StateRunning)
		pm.logger.Info("client connected", "pid", c.pid)
	}
}

// monitorProcess waits for c to exit and releases it, unless Stop or Start
// already took the handle.
func (pm *ProcessManager) monitorProcess(c *child, wg *sync.WaitGroup, outputs ...io.Closer) {
	defer close(c.done)

	err := c.cmd.Wait()
	for _, o := range outputs {
		o.Close()
	}
	wg.Wait()

	code := -1
	if c.cmd.ProcessState != nil {
		code = c.cmd.ProcessState.ExitCode()
	}

	pm.mu.Lock()
	held := pm.proc == c
	if held {
		pm.proc = nil
		pm.exitCode = &code
		if code == 0 {
			pm.setState(models.StateStopped)
		} else {
			pm.setState(models.StateErrored)
		}
	}
	pm.mu.Unlock()

	switch {
	case !held:
		pm.metrics.ObserveExit("stopped")
	case code == 0:
		pm.metrics.ObserveExit("clean")
	default:
		pm.metrics.ObserveExit("failed")
	}

	if err != nil && code != 0 {
		pm.system("Process %s exited with code %d: %v", pm.cfg.Name, code, err)
		return
	}
	pm.system("Process %s exited with code %d", pm.cfg.Name, code)
}

// terminate sends the stop signal and waits for c to exit, escalating to
// SIGKILL after the configured grace period or when ctx is done.
func (pm *ProcessManager) terminate(ctx context.Context, c *child) {
	if err := c.cmd.Process.Signal(pm.cfg.Signal()); err != nil && !errors.Is(err, os.ErrProcessDone) {
		pm.logger.Warn("signal client", "pid", c.pid, "signal", pm.cfg.StopSignal, "error", err)
	}

	grace := time.NewTimer(pm.cfg.StopGrace())
	defer grace.Stop()

	select {
	case <-c.done:
		return
	case <-grace.C:
		pm.system("Process %s did not stop in time, killing", pm.cfg.Name)
	case <-ctx.Done():
		pm.logger.Warn("stop interrupted, killing client", "pid", c.pid, "error", ctx.Err())
	}

	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		pm.logger.Error("kill client", "pid", c.pid, "error", err)
	}

	select {
	case <-c.done:
	case <-time.After(killWait):
		pm.logger.Error("client did not exit after SIGKILL", "pid", c.pid)
	}
}

// StopProcess terminates the held client. It returns ErrNoProcessRunning
// when there is nothing to stop.
func (pm *ProcessManager) StopProcess(ctx context.Context) error {
	pm.opMu.Lock()
	defer pm.opMu.Unlock()

	pm.mu.Lock()
	c := pm.proc
	if c == nil {
		pm.mu.Unlock()
		return ErrNoProcessRunning
	}
	pm.proc = nil
	pm.setState(models.StateStopped)
	pm.mu.Unlock()

	pm.system("Stopping process %s (PID %d) on request", pm.cfg.Name, c.pid)
	pm.terminate(ctx, c)
	return nil
}

// RestartProcess is StartProcess under another name; starting always
// replaces the running client.
func (pm *ProcessManager) RestartProcess(ctx context.Context) (int, error) {
	return pm.StartProcess(ctx)
}

func (pm *ProcessManager) Status() models.Process {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	p := models.Process{
		Name:     pm.cfg.Name,
		State:    pm.state,
		Running:  pm.proc != nil,
		Uptime:   "N/A",
		ExitCode: pm.exitCode,
	}
	if pm.proc != nil {
		started := pm.proc.startTime
		p.Pid = pm.proc.pid
		p.StartedAt = &started
		p.Uptime = formatDuration(time.Since(started))
	}
	return p
}

// Config returns the resolved client launch settings.
func (pm *ProcessManager) Config() config.ProcessConfig {
	return pm.cfg
}

func (pm *ProcessManager) GetLogs(limit int) []models.LogEntry {
	return pm.logs.GetLast(limit)
}

func (pm *ProcessManager) Logs() []models.LogEntry {
	return pm.logs.Entries()
}

// AutoStart starts the client when the process config asks for it.
func (pm *ProcessManager) AutoStart(ctx context.Context) {
	if !pm.cfg.AutoStart {
		return
	}
	pm.logger.Info("auto-starting client")
	if _, err := pm.StartProcess(ctx); err != nil {
		pm.logger.Error("auto-start failed", "error", err)
	}
}

// Shutdown stops the client, if any, before the panel exits.
func (pm *ProcessManager) Shutdown(ctx context.Context) {
	if err := pm.StopProcess(ctx); err != nil && !errors.Is(err, ErrNoProcessRunning) {
		pm.logger.Error("stop client on shutdown", "error", err)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour

	hours := d / time.Hour
	d -= hours * time.Hour

	minutes := d / time.Minute
	d -= minutes * time.Minute

	seconds := d / time.Second

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
