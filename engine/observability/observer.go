// Package observability replaces the engine's direct log.Printf calls with an
// injected Observer, so a host application can route diagnostics into its own
// logging/metrics stack instead of stdout. Construction-time injection
// mirrors the Config{Logger, Observer} pattern used elsewhere in the
// ecosystem for runner-style components.
package observability

import (
	"fmt"
	"log"
)

// Observer receives diagnostic events from engine components. All methods
// must be safe to call from the single engine goroutine; implementations
// that forward off-goroutine (e.g. to a metrics exporter) are responsible
// for their own buffering.
type Observer interface {
	// Frame reports per-second frame statistics.
	Frame(stats FrameStats)

	// CacheEvent reports a pipeline/layout/shader cache hit, miss, or
	// eviction.
	CacheEvent(cache string, event CacheEventKind, key string)

	// SchedulerEvent reports a render queue state transition or task
	// lifecycle event.
	SchedulerEvent(event string, taskID int, detail string)

	// RecoveryEvent reports device-loss recovery progress.
	RecoveryEvent(attempt int, stage string, err error)

	// Warnf reports a non-fatal condition worth surfacing to an operator.
	Warnf(format string, args ...any)
}

// FrameStats mirrors the teacher profiler's per-second sample.
type FrameStats struct {
	FPS            float64
	HeapAllocMB    float64
	AllocRateMBps  float64
	GCCount        uint32
	LastGCPauseUs  uint64
	MaxGCPauseUs   uint64
	SysMB          float64
}

// CacheEventKind enumerates the kinds of cache events an Observer can
// receive.
type CacheEventKind int

const (
	CacheHit CacheEventKind = iota
	CacheMiss
	CacheEvict
	CacheInsert
)

func (k CacheEventKind) String() string {
	switch k {
	case CacheHit:
		return "hit"
	case CacheMiss:
		return "miss"
	case CacheEvict:
		return "evict"
	case CacheInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// NoopObserver discards all events. Used when a host application has no
// diagnostics sink configured.
type NoopObserver struct{}

func (NoopObserver) Frame(FrameStats)                                {}
func (NoopObserver) CacheEvent(string, CacheEventKind, string)       {}
func (NoopObserver) SchedulerEvent(string, int, string)              {}
func (NoopObserver) RecoveryEvent(int, string, error)                {}
func (NoopObserver) Warnf(string, ...any)                            {}

var _ Observer = NoopObserver{}

// LogObserver forwards events to the standard library logger, matching the
// teacher's own log.Printf-based profiler output.
type LogObserver struct {
	logger *log.Logger
}

// NewLogObserver wraps logger, or the standard logger if logger is nil.
func NewLogObserver(logger *log.Logger) *LogObserver {
	if logger == nil {
		logger = log.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Frame(stats FrameStats) {
	o.logger.Printf("[frame] fps=%.2f heap=%.2fMB alloc_rate=%.2fMB/s gc=%d (last=%dus max=%dus) sys=%.2fMB",
		stats.FPS, stats.HeapAllocMB, stats.AllocRateMBps, stats.GCCount, stats.LastGCPauseUs, stats.MaxGCPauseUs, stats.SysMB)
}

func (o *LogObserver) CacheEvent(cache string, event CacheEventKind, key string) {
	o.logger.Printf("[cache:%s] %s key=%s", cache, event, key)
}

func (o *LogObserver) SchedulerEvent(event string, taskID int, detail string) {
	o.logger.Printf("[scheduler] %s task=%d %s", event, taskID, detail)
}

func (o *LogObserver) RecoveryEvent(attempt int, stage string, err error) {
	if err != nil {
		o.logger.Printf("[recovery] attempt=%d stage=%s error=%v", attempt, stage, err)
		return
	}
	o.logger.Printf("[recovery] attempt=%d stage=%s", attempt, stage)
}

func (o *LogObserver) Warnf(format string, args ...any) {
	o.logger.Print("[warn] " + fmt.Sprintf(format, args...))
}

var _ Observer = (*LogObserver)(nil)
