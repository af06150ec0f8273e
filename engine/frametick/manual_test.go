package frametick

import "testing"

func TestManualSourceTickInvokesCallback(t *testing.T) {
	m := NewManualSource(640, 480)
	ticks := 0
	m.SetTickCallback(func() { ticks++ })

	m.Tick()
	m.Tick()
	m.Tick()

	if ticks != 3 {
		t.Fatalf("ticks = %d, want 3", ticks)
	}
}

func TestManualSourceTickIsNoOpWithoutCallback(t *testing.T) {
	m := NewManualSource(640, 480)
	m.Tick() // must not panic
}

func TestManualSourceResizeUpdatesDimsAndInvokesCallback(t *testing.T) {
	m := NewManualSource(640, 480)
	var gotW, gotH int
	m.SetResizeCallback(func(w, h int) { gotW, gotH = w, h })

	m.Resize(1920, 1080)

	if m.Width() != 1920 || m.Height() != 1080 {
		t.Fatalf("Width/Height = %d/%d, want 1920/1080", m.Width(), m.Height())
	}
	if gotW != 1920 || gotH != 1080 {
		t.Fatalf("resize callback got %d/%d, want 1920/1080", gotW, gotH)
	}
}

func TestManualSourceStopUnblocksRun(t *testing.T) {
	m := NewManualSource(1, 1)
	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()

	m.Stop()
	<-done
}

func TestManualSourceStopIsIdempotent(t *testing.T) {
	m := NewManualSource(1, 1)
	m.Stop()
	m.Stop() // must not panic on double-close
}

func TestManualSourceSurfaceDescriptorIsNil(t *testing.T) {
	m := NewManualSource(1, 1)
	if m.SurfaceDescriptor() != nil {
		t.Fatal("expected nil SurfaceDescriptor for a manual source")
	}
}
