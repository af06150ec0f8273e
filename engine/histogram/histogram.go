// Package histogram implements C9: statistics over a 256-bin histogram
// computed on the GPU, readback of the bins, and the auto-threshold
// feedback loop that adjusts a threshold filter's bindings.
package histogram

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/errs"
)

// BinCount is the fixed histogram resolution (§4.9).
const BinCount = 256

// Stats is the result of reducing a 256-bin histogram (§4.9). All fields
// are zero-valued (Total=0) when the input histogram is empty.
type Stats struct {
	Min        int
	Max        int
	Mean       float64
	Median     float64
	Total      uint64
	Normalized [BinCount]float64
}

// reduceWorkers bounds the fan-out used by Compute; a 256-bin reduction is
// small, but chunking it across the engine's shared worker pool (the same
// pool pipelinemgr's Prefetch fans out over) keeps the CPU-side cost off
// the scheduler goroutine under heavy filter graphs.
var reduceWorkers = max(runtime.NumCPU()-1, 1)

// Compute reduces bins (a 256-entry histogram, bins[i] = count of samples
// at intensity i) into Stats (§4.9). A bins slice that is nil, the wrong
// length, or entirely zero yields the all-zero/all-null Stats with
// Total=0. pool fans the reduction out across the engine's shared worker
// pool; a nil pool runs the same reduction inline on the calling
// goroutine, which is all a one-off test needs.
func Compute(bins []uint32, pool worker.DynamicWorkerPool) Stats {
	var stats Stats
	if len(bins) != BinCount {
		return stats
	}

	totals, weighted, mins, maxs := reduceChunks(bins, pool)

	var total uint64
	var weightedSum float64
	minIdx, maxIdx := -1, -1
	for i := range totals {
		total += totals[i]
		weightedSum += weighted[i]
		if totals[i] > 0 {
			if minIdx == -1 || mins[i] < minIdx {
				minIdx = mins[i]
			}
			if maxs[i] > maxIdx {
				maxIdx = maxs[i]
			}
		}
	}

	if total == 0 {
		return stats
	}

	stats.Total = total
	stats.Min = minIdx
	stats.Max = maxIdx
	stats.Mean = weightedSum / float64(total)

	half := float64(total) / 2
	var cumulative uint64
	for i, count := range bins {
		prevCum := cumulative
		cumulative += uint64(count)
		if float64(cumulative) >= half {
			if count == 0 {
				stats.Median = float64(i)
			} else {
				stats.Median = float64(i) + (half-float64(prevCum))/float64(count)
			}
			break
		}
	}

	for i, count := range bins {
		stats.Normalized[i] = float64(count) / float64(total)
	}

	return stats
}

// reduceChunks fans the per-bin pass out across pool, each worker producing
// one chunk's partial total/weighted-sum/min/max, combined by the caller. A
// WaitGroup barrier rather than pool.Wait() because the pool's workers are
// long-lived and idle-exit semantics don't fit a per-call reduction.
func reduceChunks(bins []uint32, pool worker.DynamicWorkerPool) (totals []uint64, weighted []float64, mins, maxs []int) {
	chunkCount := reduceWorkers
	if chunkCount > BinCount {
		chunkCount = BinCount
	}
	chunkSize := (BinCount + chunkCount - 1) / chunkCount

	totals = make([]uint64, chunkCount)
	weighted = make([]float64, chunkCount)
	mins = make([]int, chunkCount)
	maxs = make([]int, chunkCount)

	reduce := func(idx, start, end int) {
		var total uint64
		var weightedSum float64
		min, max := -1, -1
		for i := start; i < end; i++ {
			count := bins[i]
			if count == 0 {
				continue
			}
			total += uint64(count)
			weightedSum += float64(i) * float64(count)
			if min == -1 {
				min = i
			}
			max = i
		}

		totals[idx] = total
		weighted[idx] = weightedSum
		mins[idx] = min
		maxs[idx] = max
	}

	var wg sync.WaitGroup
	for c := 0; c < chunkCount; c++ {
		start := c * chunkSize
		end := start + chunkSize
		if end > BinCount {
			end = BinCount
		}
		if start >= end {
			continue
		}

		if pool == nil {
			reduce(c, start, end)
			continue
		}

		wg.Add(1)
		idx, s, e := c, start, end
		pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				reduce(idx, s, e)
				return nil, nil
			},
		})
	}
	wg.Wait()

	return totals, weighted, mins, maxs
}

// Readback copies src (a BinCount*4-byte u32 storage buffer) into a
// mappable staging buffer, maps it for read, copies out BinCount u32s, and
// releases the staging buffer (§4.9). A map failure is reported as an
// errs.InternalError naming the map status. Readback does not start C10
// recovery, and App's feedback loop only logs the error.
func Readback(device *wgpu.Device, queue *wgpu.Queue, src *wgpu.Buffer) ([BinCount]uint32, error) {
	var out [BinCount]uint32
	const size = uint64(BinCount * 4)

	staging, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "histogram:readback-staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return out, &errs.InternalError{Op: "histogram readback", Reason: "create staging buffer: " + err.Error()}
	}
	defer staging.Release()

	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return out, &errs.InternalError{Op: "histogram readback", Reason: "create command encoder: " + err.Error()}
	}
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return out, &errs.InternalError{Op: "histogram readback", Reason: "finish encoder: " + err.Error()}
	}
	queue.Submit(cmd)
	cmd.Release()
	encoder.Release()
	device.Poll(true, nil)

	done := make(chan error, 1)
	staging.MapAsync(wgpu.MapModeRead, 0, uint(size), func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- &errs.InternalError{Op: "histogram readback", Reason: fmt.Sprintf("map invalid buffer: %v", status)}
			return
		}
		done <- nil
	})
	device.Poll(true, nil)
	if err := <-done; err != nil {
		return out, err
	}

	mapped := staging.GetMappedRange(0, uint(size))
	for i := 0; i < BinCount; i++ {
		out[i] = uint32(mapped[i*4]) | uint32(mapped[i*4+1])<<8 | uint32(mapped[i*4+2])<<16 | uint32(mapped[i*4+3])<<24
	}
	staging.Unmap()

	return out, nil
}

// Threshold is the pair of threshold-filter bindings an auto-threshold
// pass updates (§4.9).
type Threshold struct {
	SamplePoint float32
	Range       float32
}

// AutoThreshold computes the next threshold filter bindings from stats
// (§4.9): sample = clamp(median/255, 0.001, 0.999), range =
// clamp((max-min)/255, 0.001, 1.0).
func AutoThreshold(stats Stats) Threshold {
	sample := clamp(float32(stats.Median)/255, 0.001, 0.999)
	rng := clamp(float32(stats.Max-stats.Min)/255, 0.001, 1.0)
	return Threshold{SamplePoint: sample, Range: rng}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
