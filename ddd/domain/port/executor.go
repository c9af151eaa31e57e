package port

import (
	"context"
	"time"
)

// EncodeJob is one encoder invocation. Args are passed as-is; Dir is the
// working directory relative output names resolve against.
type EncodeJob struct {
	Op   string
	Args []string
	Dir  string
}

// EncodeResult describes a finished encoder run.
type EncodeResult struct {
	ExitCode int
	Stderr   string
	Duration time.Duration
}

// Encoder runs an encode synchronously on the calling goroutine.
type Encoder interface {
	Encode(ctx context.Context, job EncodeJob) (*EncodeResult, error)
}

// EncodeFuture is the pending outcome of a submitted job.
type EncodeFuture interface {
	// Done is closed once the result is available.
	Done() <-chan struct{}
	// Wait blocks until the job finishes or ctx is done.
	Wait(ctx context.Context) (*EncodeResult, error)
}

// EncoderRunner decides where an encode executes: inline or on a bounded pool.
type EncoderRunner interface {
	Submit(ctx context.Context, job EncodeJob) EncodeFuture
}
