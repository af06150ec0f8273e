package histogram

import (
	"math"
	"testing"
)

func TestComputeAllZeroYieldsAllNullStats(t *testing.T) {
	stats := Compute(make([]uint32, BinCount), nil)
	if stats.Total != 0 {
		t.Fatalf("Total = %d, want 0", stats.Total)
	}
	if stats.Min != 0 || stats.Max != 0 || stats.Mean != 0 || stats.Median != 0 {
		t.Fatalf("expected zero-valued stats for empty histogram, got %+v", stats)
	}
}

func TestComputeWrongLengthYieldsAllNullStats(t *testing.T) {
	stats := Compute(make([]uint32, 10), nil)
	if stats.Total != 0 {
		t.Fatalf("Total = %d, want 0 for malformed input", stats.Total)
	}
}

func TestComputeSingleBin(t *testing.T) {
	bins := make([]uint32, BinCount)
	bins[128] = 10
	stats := Compute(bins, nil)

	if stats.Total != 10 {
		t.Fatalf("Total = %d, want 10", stats.Total)
	}
	if stats.Min != 128 || stats.Max != 128 {
		t.Fatalf("Min/Max = %d/%d, want 128/128", stats.Min, stats.Max)
	}
	if stats.Mean != 128 {
		t.Fatalf("Mean = %v, want 128", stats.Mean)
	}
	// half = total/2 = 5; cumulative reaches 10 within bin 128 itself, so
	// the median interpolates to 128 + (5-0)/10 = 128.5.
	if stats.Median != 128.5 {
		t.Fatalf("Median = %v, want 128.5", stats.Median)
	}
	if stats.Normalized[128] != 1 {
		t.Fatalf("Normalized[128] = %v, want 1", stats.Normalized[128])
	}
}

func TestComputeMedianInterpolatesWithinBin(t *testing.T) {
	// bin 0 holds 2 counts, bin 10 holds 6: cumulative only crosses half
	// (4 of 8) partway through bin 10, so the median interpolates inside it.
	bins := make([]uint32, BinCount)
	bins[0] = 2
	bins[10] = 6
	stats := Compute(bins, nil)

	if stats.Min != 0 || stats.Max != 10 {
		t.Fatalf("Min/Max = %d/%d, want 0/10", stats.Min, stats.Max)
	}
	wantMean := (0*2.0 + 10*6.0) / 8.0
	if math.Abs(stats.Mean-wantMean) > 1e-9 {
		t.Fatalf("Mean = %v, want %v", stats.Mean, wantMean)
	}
	wantMedian := 10 + (4.0-2.0)/6.0
	if math.Abs(stats.Median-wantMedian) > 1e-9 {
		t.Fatalf("Median = %v, want %v", stats.Median, wantMedian)
	}
}

func TestComputeSpansAllReduceChunks(t *testing.T) {
	// One count in the first bin and one in the last exercises both ends
	// of the chunked reduction regardless of how many workers are used.
	bins := make([]uint32, BinCount)
	bins[0] = 1
	bins[BinCount-1] = 1
	stats := Compute(bins, nil)

	if stats.Total != 2 {
		t.Fatalf("Total = %d, want 2", stats.Total)
	}
	if stats.Min != 0 {
		t.Fatalf("Min = %d, want 0", stats.Min)
	}
	if stats.Max != BinCount-1 {
		t.Fatalf("Max = %d, want %d", stats.Max, BinCount-1)
	}
}

func TestAutoThresholdClampsToRange(t *testing.T) {
	th := AutoThreshold(Stats{Median: 0, Min: 0, Max: 0})
	if th.SamplePoint != 0.001 {
		t.Fatalf("SamplePoint = %v, want clamped to 0.001", th.SamplePoint)
	}
	if th.Range != 0.001 {
		t.Fatalf("Range = %v, want clamped to 0.001", th.Range)
	}

	th = AutoThreshold(Stats{Median: 255, Min: 0, Max: 255})
	if th.SamplePoint != 0.999 {
		t.Fatalf("SamplePoint = %v, want clamped to 0.999", th.SamplePoint)
	}
	if th.Range != 1.0 {
		t.Fatalf("Range = %v, want clamped to 1.0", th.Range)
	}
}

func TestAutoThresholdMidRange(t *testing.T) {
	th := AutoThreshold(Stats{Median: 127.5, Min: 50, Max: 200})
	wantSample := float32(127.5) / 255
	wantRange := float32(150) / 255
	if math.Abs(float64(th.SamplePoint-wantSample)) > 1e-6 {
		t.Fatalf("SamplePoint = %v, want %v", th.SamplePoint, wantSample)
	}
	if math.Abs(float64(th.Range-wantRange)) > 1e-6 {
		t.Fatalf("Range = %v, want %v", th.Range, wantRange)
	}
}
