// Package commandqueue implements C6: a single implicit command encoder
// that batches closures and auto-flushes once a batch threshold is
// reached.
package commandqueue

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultMaxBatch is §4.6's default max_batch of 100 pending commands
// before an automatic flush.
const DefaultMaxBatch = 100

// Future resolves once a flushed submission's work is reported complete by
// the device. Resolve happens synchronously inside Flush (a blocking
// device.Poll(true, nil)), so Wait never actually blocks by the time a
// caller holds a Future — it exists so Flush's return shape matches §4.6
// ("returns a future that resolves when the device reports the submission
// complete") and so a caller can use the same shape regardless of whether
// the device backend resolves synchronously or asynchronously.
type Future struct {
	done chan struct{}
	err  error
}

func resolvedFuture(err error) *Future {
	f := &Future{done: make(chan struct{})}
	f.err = err
	close(f.done)
	return f
}

// Wait blocks until the submission completes and returns its error, if any.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

// Queue is the single implicit command encoder described in §4.6.
type Queue struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	encoder  *wgpu.CommandEncoder
	pending  int
	maxBatch int
}

// Option configures a Queue during construction.
type Option func(*Queue)

// WithMaxBatch overrides DefaultMaxBatch.
func WithMaxBatch(n int) Option {
	return func(q *Queue) { q.maxBatch = n }
}

func New(device *wgpu.Device, queue *wgpu.Queue, options ...Option) *Queue {
	q := &Queue{device: device, queue: queue, maxBatch: DefaultMaxBatch}
	for _, opt := range options {
		opt(q)
	}
	return q
}

// beginRecording lazily creates the implicit encoder.
func (q *Queue) beginRecording() error {
	if q.encoder != nil {
		return nil
	}
	encoder, err := q.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	q.encoder = encoder
	return nil
}

// AddCommand runs fn against the current (lazily-created) encoder. A
// closure error abandons the encoder — discarding everything recorded in
// it so far — so the next command starts a fresh one, per §4.6's failure
// contract. On success, auto-flushes once pending reaches maxBatch.
func (q *Queue) AddCommand(fn func(encoder *wgpu.CommandEncoder) error) error {
	if err := q.beginRecording(); err != nil {
		return err
	}

	if err := fn(q.encoder); err != nil {
		q.encoder.Release()
		q.encoder = nil
		q.pending = 0
		return err
	}

	q.pending++
	if q.pending >= q.maxBatch {
		if _, err := q.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// AddRenderPass begins a render pass against the implicit encoder, runs fn
// against it, and ends it.
func (q *Queue) AddRenderPass(desc *wgpu.RenderPassDescriptor, fn func(pass *wgpu.RenderPassEncoder)) error {
	return q.AddCommand(func(encoder *wgpu.CommandEncoder) error {
		pass := encoder.BeginRenderPass(desc)
		fn(pass)
		pass.End()
		return nil
	})
}

// AddComputePass begins a compute pass against the implicit encoder, runs
// fn against it, and ends it.
func (q *Queue) AddComputePass(fn func(pass *wgpu.ComputePassEncoder)) error {
	return q.AddCommand(func(encoder *wgpu.CommandEncoder) error {
		pass := encoder.BeginComputePass(nil)
		fn(pass)
		pass.End()
		return nil
	})
}

// AddTextureCopy records a texture-to-texture copy.
func (q *Queue) AddTextureCopy(src, dst *wgpu.ImageCopyTexture, size wgpu.Extent3D) error {
	return q.AddCommand(func(encoder *wgpu.CommandEncoder) error {
		encoder.CopyTextureToTexture(src, dst, &size)
		return nil
	})
}

// AddBufferCopy records a buffer-to-buffer copy.
func (q *Queue) AddBufferCopy(src *wgpu.Buffer, srcOffset uint64, dst *wgpu.Buffer, dstOffset uint64, size uint64) error {
	return q.AddCommand(func(encoder *wgpu.CommandEncoder) error {
		encoder.CopyBufferToBuffer(src, srcOffset, dst, dstOffset, size)
		return nil
	})
}

// Flush finishes the current encoder, submits it, clears recording state,
// and returns a Future resolving once the device reports the submission
// complete. A flush with nothing pending is a no-op that returns an
// already-resolved Future.
func (q *Queue) Flush() (*Future, error) {
	if q.encoder == nil {
		return resolvedFuture(nil), nil
	}

	commandBuffer, err := q.encoder.Finish(nil)
	if err != nil {
		q.encoder.Release()
		q.encoder = nil
		q.pending = 0
		return nil, err
	}

	q.queue.Submit(commandBuffer)
	commandBuffer.Release()
	q.encoder.Release()
	q.encoder = nil
	q.pending = 0

	q.device.Poll(true, nil)
	return resolvedFuture(nil), nil
}

// Pending returns the number of commands recorded since the last flush.
func (q *Queue) Pending() int { return q.pending }
