package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"media-service/ddd/domain/port"
	"media-service/pkg/config"
	"media-service/pkg/errno"
	"media-service/pkg/logger"
)

const stderrTailBytes = 8 << 10

// FFmpegExecutor runs the encoder binary as a subprocess.
// On timeout or cancellation the process group gets SIGTERM, then SIGKILL after the grace period.
type FFmpegExecutor struct {
	binary      string
	timeout     time.Duration
	gracePeriod time.Duration
}

func NewFFmpegExecutor(cfg config.FFmpegConfig) *FFmpegExecutor {
	e := &FFmpegExecutor{
		binary:      cfg.BinaryPath,
		timeout:     cfg.Timeout,
		gracePeriod: cfg.GracePeriod,
	}
	if e.binary == "" {
		e.binary = "ffmpeg"
	}
	if e.gracePeriod <= 0 {
		e.gracePeriod = 5 * time.Second
	}
	return e
}

var _ port.Encoder = (*FFmpegExecutor)(nil)

// Encode runs job and returns *errno.EncoderError on spawn failure, non-zero exit or timeout.
func (e *FFmpegExecutor) Encode(ctx context.Context, job port.EncodeJob) (*port.EncodeResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.binary, job.Args...)
	cmd.Dir = job.Dir
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = e.gracePeriod

	logger.WithContext(ctx).Debugf("ffmpeg command op=%s dir=%s command=%s %s",
		job.Op, job.Dir, e.binary, strings.Join(job.Args, " "))

	start := time.Now()
	err := cmd.Run()
	res := &port.EncodeResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		logger.WithContext(ctx).Info("ffmpeg finished", map[string]interface{}{
			"op":          job.Op,
			"duration_ms": res.Duration.Milliseconds(),
		})
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", e.timeout, ctxErr)
		} else {
			err = fmt.Errorf("killed by context: %w", ctxErr)
		}
	}
	logger.WithContext(ctx).Error("ffmpeg failed", map[string]interface{}{
		"op":          job.Op,
		"exit_code":   res.ExitCode,
		"tail_stderr": lastLines(res.Stderr, 20),
	})
	return res, &errno.EncoderError{Op: job.Op, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
}

// LookPath reports whether the configured binary can be found.
func (e *FFmpegExecutor) LookPath() (string, error) {
	return exec.LookPath(e.binary)
}

// tailBuffer keeps only the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
