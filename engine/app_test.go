package engine

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/sequentialgpu/engine/engine/buffermgr"
	"github.com/sequentialgpu/engine/engine/errs"
	"github.com/sequentialgpu/engine/engine/filter"
	"github.com/sequentialgpu/engine/engine/frametick"
	"github.com/sequentialgpu/engine/engine/pipelinemgr"
)

func validSettings() Settings {
	return Settings{
		PresentationFormat: "bgra8unorm",
		Width:              640,
		Height:             480,
		ShaderFetcher:      func(ref string) (string, error) { return "", nil },
		FrameSource:        frametick.NewManualSource(640, 480),
	}
}

func TestSettingsValidateRejectsUnknownPresentationFormat(t *testing.T) {
	s := validSettings()
	s.PresentationFormat = "rgba32float"

	err := s.Validate()
	var cfgErr *errs.ConfigError
	if !asConfigError(err, &cfgErr) {
		t.Fatalf("Validate() = %v, want *errs.ConfigError", err)
	}
	if cfgErr.Field != "presentation_format" {
		t.Fatalf("Field = %q, want presentation_format", cfgErr.Field)
	}
}

func TestSettingsValidateAcceptsEachKnownPresentationFormat(t *testing.T) {
	for format := range validPresentationFormats {
		s := validSettings()
		s.PresentationFormat = format
		if err := s.Validate(); err != nil {
			t.Errorf("Validate() for %q = %v, want nil", format, err)
		}
	}
}

func TestSettingsValidateRejectsZeroDims(t *testing.T) {
	s := validSettings()
	s.Width = 0
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestSettingsValidateRejectsOversizedTexture(t *testing.T) {
	s := validSettings()
	s.Textures = map[string]TextureSettings{
		"scratch": {Size: &TextureSize{Width: 20000, Height: 480}},
	}
	err := s.Validate()
	var cfgErr *errs.ConfigError
	if !asConfigError(err, &cfgErr) {
		t.Fatalf("Validate() = %v, want *errs.ConfigError", err)
	}
}

func TestSettingsValidateRejectsOversizedDepth(t *testing.T) {
	s := validSettings()
	s.Textures = map[string]TextureSettings{
		"volume": {Size: &TextureSize{Width: 64, Height: 64, Depth: 4096}},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for oversized depth")
	}
}

func TestSettingsValidateRejectsStorageAndRenderAttachmentTogether(t *testing.T) {
	s := validSettings()
	s.Textures = map[string]TextureSettings{
		"scratch": {UsageFlags: wgpu.TextureUsageStorageBinding | wgpu.TextureUsageRenderAttachment},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for storage_binding + render_attachment")
	}
}

func TestSettingsValidateRejectsInvalidSampleCount(t *testing.T) {
	s := validSettings()
	s.Textures = map[string]TextureSettings{
		"scratch": {SampleCount: 2},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for sample_count = 2")
	}
}

func TestSettingsValidateRejectsReservedBufferBinding(t *testing.T) {
	s := validSettings()
	s.Filters = map[string]FilterSettings{
		"blur": {
			Kind:   filter.KindRender,
			Passes: []PassSettings{{ShaderRef: "blur.wgsl"}},
			BufferAttachment: &BufferAttachmentSettings{
				GroupIndex:   0,
				BindingIndex: 1,
				Bindings:     map[string]buffermgr.Binding{"strength": {Type: buffermgr.BindingUniform, Value: []float32{1}}},
			},
		},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for reserved buffer_attachment binding_index")
	}
}

func TestSettingsValidateRejectsEmptyShaderRef(t *testing.T) {
	s := validSettings()
	s.Filters = map[string]FilterSettings{
		"blur": {Kind: filter.KindRender, Passes: []PassSettings{{}}},
	}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for empty shader_ref")
	}
}

func TestSettingsValidateRequiresShaderFetcherAndFrameSource(t *testing.T) {
	s := validSettings()
	s.ShaderFetcher = nil
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for nil ShaderFetcher")
	}

	s = validSettings()
	s.FrameSource = nil
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for nil FrameSource")
	}
}

func TestTextureSettingsDescriptorDefaultsToSurfaceSize(t *testing.T) {
	ts := TextureSettings{Label: "scratch"}
	desc := ts.descriptor("scratch", wgpu.TextureFormatBGRA8Unorm, 640, 480)

	if desc.Width != 640 || desc.Height != 480 {
		t.Fatalf("descriptor dims = %dx%d, want 640x480", desc.Width, desc.Height)
	}
	if desc.DepthLayers != 1 {
		t.Fatalf("DepthLayers = %d, want 1", desc.DepthLayers)
	}
	if desc.SampleCount != 1 {
		t.Fatalf("SampleCount = %d, want 1", desc.SampleCount)
	}
	if desc.Format != wgpu.TextureFormatBGRA8Unorm {
		t.Fatalf("Format = %v, want fallback format", desc.Format)
	}
	if desc.Usage&wgpu.TextureUsageTextureBinding == 0 {
		t.Fatal("expected default usage to include TextureBinding")
	}
}

func TestTextureSettingsDescriptorHonorsExplicitSize(t *testing.T) {
	ts := TextureSettings{Size: &TextureSize{Width: 128, Height: 64, Depth: 2}, Format: wgpu.TextureFormatRGBA16Float}
	desc := ts.descriptor("tex", wgpu.TextureFormatBGRA8Unorm, 640, 480)

	if desc.Width != 128 || desc.Height != 64 || desc.DepthLayers != 2 {
		t.Fatalf("descriptor = %+v, want 128x64x2", desc.Signature)
	}
	if desc.Format != wgpu.TextureFormatRGBA16Float {
		t.Fatalf("Format = %v, want explicit override", desc.Format)
	}
}

func TestWaitForRenderCompleteWithNoPriorFrameSucceedsImmediately(t *testing.T) {
	a := &App{}
	report := a.WaitForRenderComplete()
	if !report.Success || report.TimedOut {
		t.Fatalf("report = %+v, want Success=true, TimedOut=false", report)
	}
}

func TestSortedKeysIsDeterministic(t *testing.T) {
	m := map[string]int{"c": 1, "a": 2, "b": 3}
	keys := sortedKeys(m)
	want := []string{"a", "b", "c"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("sortedKeys = %v, want %v", keys, want)
		}
	}
}

func TestUpdateFilterBufferRejectsUnknownFilter(t *testing.T) {
	a := &App{filters: map[string]*filter.Filter{}}
	err := a.UpdateFilterBuffer("missing", "strength", []float32{1})
	var cfgErr *errs.ConfigError
	if !asConfigError(err, &cfgErr) {
		t.Fatalf("UpdateFilterBuffer err = %v, want *errs.ConfigError", err)
	}
}

func TestUpdateFilterBufferRejectsFilterWithoutBuffer(t *testing.T) {
	a := &App{filters: map[string]*filter.Filter{
		"blur": {Name: "blur", Kind: filter.KindRender},
	}}
	if err := a.UpdateFilterBuffer("blur", "strength", []float32{1}); err == nil {
		t.Fatal("expected error for filter without buffer_attachment")
	}
}

func TestUpdateFilterInputTextureRejectsOutOfRangeIndices(t *testing.T) {
	a := &App{filters: map[string]*filter.Filter{
		"blur": {Name: "blur", Kind: filter.KindRender, Passes: []*filter.Pass{
			{Label: "blur:0", Inputs: []string{"source"}, Built: &pipelinemgr.Built{Pipeline: struct{}{}}},
		}},
	}}

	if err := a.UpdateFilterInputTexture("blur", 5, 0, "other", 0); err == nil {
		t.Fatal("expected error for out-of-range pass_index")
	}
	if err := a.UpdateFilterInputTexture("blur", 0, 5, "other", 0); err == nil {
		t.Fatal("expected error for out-of-range binding_index")
	}
}

// asConfigError is a small helper so table-style assertions above read as
// "is this a ConfigError" rather than repeating a type switch everywhere.
func asConfigError(err error, target **errs.ConfigError) bool {
	ce, ok := err.(*errs.ConfigError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
