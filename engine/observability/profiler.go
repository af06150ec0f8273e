package observability

import (
	"runtime"
	"time"
)

// Profiler tracks frame rate and memory statistics for performance
// monitoring, reporting a FrameStats sample to an Observer once per update
// interval instead of logging directly.
type Profiler struct {
	observer Observer

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a Profiler reporting to observer once per second.
func NewProfiler(observer Observer) *Profiler {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Profiler{
		observer:       observer,
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// Tick should be called once per frame. Reports a FrameStats sample to the
// observer when the update interval has elapsed.
//
// Returns true if a sample was reported this tick.
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	p.observer.Frame(FrameStats{
		FPS:           fps,
		HeapAllocMB:   allocMB,
		AllocRateMBps: allocRateMB,
		GCCount:       gcCount,
		LastGCPauseUs: lastPauseUs,
		MaxGCPauseUs:  maxPauseUs,
		SysMB:         sysMB,
	})

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
