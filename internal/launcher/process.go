package launcher

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/roach88/hostbench/internal/runner"
	"github.com/roach88/hostbench/internal/simhost"
)

// hostEnvKeys are the variables the launcher owns in the host environment.
// Inherited values are dropped so a nested run never reuses a parent's id.
var hostEnvKeys = []string{
	runner.EnvRunID,
	runner.EnvSinkDir,
	runner.EnvTimeout,
	runner.EnvStopOnFailure,
	simhost.EnvHome,
}

// hostEnv builds the host environment: the launcher's own environment
// minus hostEnvKeys, then extra, then the run configuration.
func hostEnv(base, extra []string, run runner.RunConfig, home string) []string {
	env := make([]string, 0, len(base)+len(extra)+6)
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		owned := false
		for _, k := range hostEnvKeys {
			if key == k {
				owned = true
				break
			}
		}
		if !owned {
			env = append(env, kv)
		}
	}
	env = append(env, extra...)
	env = append(env, run.Environ()...)
	if home != "" {
		env = append(env, simhost.EnvHome+"="+home)
	}
	return env
}

// outputDrainDelay bounds how long Wait keeps reading host output after
// the host exits. Children that inherited the output pipes would otherwise
// hold Wait open for as long as they live.
const outputDrainDelay = 2 * time.Second

// maxHostLine caps a forwarded output line. Longer lines are truncated.
const maxHostLine = 64 * 1024

// process is a running host. The host leads its own process group so that
// kill also reaches anything it spawned.
type process struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	code    int // valid once exited is closed; -1 when killed by a signal
	waitErr error
}

// start spawns the host and forwards its stdout and stderr line by line to
// logger. The exited channel closes once the host has been reaped, at most
// outputDrainDelay after it exits.
func start(path string, args, env []string, dir string, logger *slog.Logger) (*process, error) {
	cmd := exec.Command(path, args...)
	cmd.Env = env
	cmd.Dir = dir
	cmd.WaitDelay = outputDrainDelay
	setProcessGroup(cmd)

	stdout := &lineWriter{logger: logger, stream: "stdout"}
	stderr := &lineWriter{logger: logger, stream: "stderr"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start host %s: %w", path, err)
	}

	p := &process{cmd: cmd, exited: make(chan struct{})}
	logger = logger.With("pid", cmd.Process.Pid)
	logger.Debug("host started")

	go func() {
		defer close(p.exited)
		p.waitErr = cmd.Wait()
		p.code = cmd.ProcessState.ExitCode()
		stdout.Flush()
		stderr.Flush()
		if errors.Is(p.waitErr, exec.ErrWaitDelay) {
			logger.Warn("host output still open after exit, closed it", "delay", outputDrainDelay)
		}
	}()
	return p, nil
}

// kill terminates the host's process group and waits for the host to be
// reaped. It also clears out children left behind by a host that already
// exited.
func (p *process) kill() {
	killProcessGroup(p.cmd)
	<-p.exited
}

// running reports whether the host has not exited yet.
func (p *process) running() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// lineWriter logs host output one line at a time. It never fails a write,
// so the host is never blocked on a full pipe.
type lineWriter struct {
	logger  *slog.Logger
	stream  string
	buf     []byte
	dropped int // bytes cut from the current line
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			w.append(p)
			break
		}
		w.append(p[:i])
		w.emit()
		p = p[i+1:]
	}
	return n, nil
}

// Flush logs a trailing line that had no newline.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 || w.dropped > 0 {
		w.emit()
	}
}

func (w *lineWriter) append(b []byte) {
	if room := maxHostLine - len(w.buf); len(b) > room {
		w.dropped += len(b) - room
		b = b[:room]
	}
	w.buf = append(w.buf, b...)
}

func (w *lineWriter) emit() {
	line := strings.TrimSuffix(string(w.buf), "\r")
	if w.dropped > 0 {
		w.logger.Info("host", "stream", w.stream, "line", line, "truncated_bytes", w.dropped)
	} else {
		w.logger.Info("host", "stream", w.stream, "line", line)
	}
	w.buf = w.buf[:0]
	w.dropped = 0
}
