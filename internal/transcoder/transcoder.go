package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"audio-compressor/internal/logging"
	"audio-compressor/internal/metrics"
	"audio-compressor/internal/workers"
)

const (
	// DefaultTimeout bounds a single ffmpeg run.
	DefaultTimeout = 60 * time.Second

	stderrTailBytes = 8 * 1024

	// waitDelay bounds how long Wait keeps draining stderr after the
	// process exits, in case a grandchild still holds the pipe.
	waitDelay = 5 * time.Second
)

// Config configures a Transcoder.
type Config struct {
	FFmpegPath    string
	FFprobePath   string
	Timeout       time.Duration
	MaxConcurrent int // 0 means one per CPU
	VerifyOutput  bool
}

// Job is a single transcode of InputPath into OutputPath.
type Job struct {
	ID         string
	InputPath  string
	OutputPath string
	Profile    Profile
}

// Result is the outcome of a successful job.
type Result struct {
	OutputPath string
	OutputSize int64
	Duration   time.Duration
}

// Transcoder runs ffmpeg jobs with bounded concurrency.
type Transcoder struct {
	ffmpegPath   string
	ffprobePath  string
	timeout      time.Duration
	verifyOutput bool

	slots chan struct{}

	processes map[string]*exec.Cmd
	processMu sync.Mutex
	closed    bool // set by Cleanup; guarded by processMu
}

// New creates a new Transcoder instance.
func New(cfg Config) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Transcoder{
		ffmpegPath:   cfg.FFmpegPath,
		ffprobePath:  cfg.FFprobePath,
		timeout:      cfg.Timeout,
		verifyOutput: cfg.VerifyOutput,
		slots:        make(chan struct{}, workers.Slots(cfg.MaxConcurrent)),
		processes:    make(map[string]*exec.Cmd),
	}
}

// Slots returns the maximum number of concurrent ffmpeg processes.
func (t *Transcoder) Slots() int {
	return cap(t.slots)
}

// Timeout returns the per-job timeout.
func (t *Transcoder) Timeout() time.Duration {
	return t.timeout
}

// Active returns the number of ffmpeg processes currently running.
func (t *Transcoder) Active() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// Ready reports whether the ffmpeg binary can be found.
func (t *Transcoder) Ready() error {
	if _, err := exec.LookPath(t.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}

// Transcode runs job and blocks until ffmpeg exits, the job times out, or ctx
// is done. Exactly one of Result or a *JobError is produced.
func (t *Transcoder) Transcode(ctx context.Context, job Job) (Result, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Profile == (Profile{}) {
		job.Profile = SpeechProfile
	}

	waitStart := time.Now()
	select {
	case t.slots <- struct{}{}:
	case <-ctx.Done():
		metrics.TranscoderJobsTotal.WithLabelValues(statusFor(ctx.Err())).Inc()
		return Result{}, &JobError{
			JobID:  job.ID,
			Stage:  StageQueue,
			Reason: "gave up waiting for a transcode slot",
			Kind:   kindFor(ctx.Err()),
			Err:    ctx.Err(),
		}
	}
	defer func() { <-t.slots }()
	metrics.TranscoderSlotWaitDuration.Observe(time.Since(waitStart).Seconds())

	if t.isClosed() {
		metrics.TranscoderJobsTotal.WithLabelValues("failed").Inc()
		return Result{}, &JobError{
			JobID:  job.ID,
			Stage:  StageQueue,
			Reason: "transcoder is shutting down",
			Kind:   ErrTranscodeFailed,
		}
	}

	start := time.Now()
	result, err := t.run(ctx, job)
	elapsed := time.Since(start)
	metrics.TranscoderJobDuration.Observe(elapsed.Seconds())

	if err != nil {
		var jobErr *JobError
		status := "failed"
		if errors.As(err, &jobErr) {
			status = statusFor(jobErr.Kind)
		}
		metrics.TranscoderJobsTotal.WithLabelValues(status).Inc()
		logging.Warn("Transcode job %s failed after %v: %v", job.ID, elapsed.Round(time.Millisecond), err)
		return Result{}, err
	}

	metrics.TranscoderJobsTotal.WithLabelValues("success").Inc()
	result.Duration = elapsed
	logging.Debug("Transcode job %s finished in %v (%d bytes)", job.ID, elapsed.Round(time.Millisecond), result.OutputSize)
	return result, nil
}

func (t *Transcoder) run(ctx context.Context, job Job) (Result, error) {
	args := job.Profile.Args(job.InputPath, job.OutputPath)
	cmd := exec.Command(t.ffmpegPath, args...)
	cmd.WaitDelay = waitDelay

	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr

	logging.Debug("Starting ffmpeg for job %s: %s %s", job.ID, t.ffmpegPath, strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		return Result{}, &JobError{
			JobID:  job.ID,
			Stage:  StageStart,
			Reason: "could not start ffmpeg",
			Kind:   ErrTranscodeFailed,
			Err:    err,
		}
	}

	t.track(job.ID, cmd)
	defer t.untrack(job.ID)

	metrics.TranscoderJobsInProgress.Inc()
	defer metrics.TranscoderJobsInProgress.Dec()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return Result{}, &JobError{
				JobID:  job.ID,
				Stage:  StageRun,
				Reason: exitReason(err),
				Stderr: stderr.String(),
				Kind:   ErrTranscodeFailed,
				Err:    err,
			}
		}

	case <-timer.C:
		t.kill(cmd, done)
		return Result{}, &JobError{
			JobID:  job.ID,
			Stage:  StageRun,
			Reason: fmt.Sprintf("ffmpeg did not finish within %v", t.timeout),
			Stderr: stderr.String(),
			Kind:   ErrTranscodeTimeout,
		}

	case <-ctx.Done():
		t.kill(cmd, done)
		return Result{}, &JobError{
			JobID:  job.ID,
			Stage:  StageRun,
			Reason: "request ended before ffmpeg finished",
			Stderr: stderr.String(),
			Kind:   kindFor(ctx.Err()),
			Err:    ctx.Err(),
		}
	}

	return t.checkOutput(ctx, job)
}

// kill terminates the process and waits for the reaper goroutine to report.
func (t *Transcoder) kill(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logging.Warn("Failed to kill ffmpeg process %d: %v", cmd.Process.Pid, err)
		}
	}
	<-done
}

func (t *Transcoder) checkOutput(ctx context.Context, job Job) (Result, error) {
	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return Result{}, &JobError{
			JobID:  job.ID,
			Stage:  StageOutput,
			Reason: "ffmpeg produced no output file",
			Kind:   ErrTranscodeFailed,
			Err:    err,
		}
	}
	if info.Size() == 0 {
		return Result{}, &JobError{
			JobID:  job.ID,
			Stage:  StageOutput,
			Reason: "ffmpeg produced an empty output file",
			Kind:   ErrTranscodeFailed,
		}
	}

	if t.verifyOutput {
		probed, err := t.Probe(ctx, job.OutputPath)
		if err != nil {
			return Result{}, &JobError{
				JobID:  job.ID,
				Stage:  StageVerify,
				Reason: "could not probe output",
				Kind:   ErrTranscodeFailed,
				Err:    err,
			}
		}
		if !job.Profile.Matches(probed) {
			return Result{}, &JobError{
				JobID: job.ID,
				Stage: StageVerify,
				Reason: fmt.Sprintf("output is %s %d ch %d Hz, want %s %d ch %d Hz",
					probed.Codec, probed.Channels, probed.SampleRate,
					job.Profile.Format, job.Profile.Channels, job.Profile.SampleRate),
				Kind: ErrTranscodeFailed,
			}
		}
	}

	return Result{
		OutputPath: job.OutputPath,
		OutputSize: info.Size(),
	}, nil
}

func (t *Transcoder) track(id string, cmd *exec.Cmd) {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	t.processes[id] = cmd
	// Started after Cleanup swept the registry.
	if t.closed && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func (t *Transcoder) isClosed() bool {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return t.closed
}

func (t *Transcoder) untrack(id string) {
	t.processMu.Lock()
	delete(t.processes, id)
	t.processMu.Unlock()
}

// Cleanup stops all active transcoding processes. Their jobs observe the exit
// and fail normally. Jobs submitted afterwards are refused.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	t.closed = true

	for id, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing ffmpeg process for job: %s", id)
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				logging.Warn("failed to kill ffmpeg process for job %s: %v", id, err)
			}
		}
	}
}

func exitReason(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return fmt.Sprintf("ffmpeg exited with status %d", code)
		}
		return "ffmpeg was terminated by a signal"
	}
	return "ffmpeg failed"
}

func kindFor(ctxErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return ErrTranscodeTimeout
	}
	return context.Canceled
}

func statusFor(kind error) string {
	switch {
	case errors.Is(kind, ErrTranscodeTimeout), errors.Is(kind, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(kind, context.Canceled):
		return "canceled"
	default:
		return "failed"
	}
}
