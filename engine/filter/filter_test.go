package filter

import (
	"testing"

	"github.com/sequentialgpu/engine/engine/bindingmgr"
)

func TestPassIsTerminalWhenOutputEmpty(t *testing.T) {
	p := &Pass{Output: ""}
	if !p.IsTerminal() {
		t.Fatal("expected terminal pass with empty output")
	}
	p.Output = "sceneColor"
	if p.IsTerminal() {
		t.Fatal("expected non-terminal pass with named output")
	}
}

func TestPassAliasesDetectsOutputAmongInputs(t *testing.T) {
	p := &Pass{Inputs: []string{"a", "b"}, Output: "b"}
	if !p.Aliases() {
		t.Fatal("expected alias when output appears in inputs")
	}

	p = &Pass{Inputs: []string{"a", "b"}, Output: "c"}
	if p.Aliases() {
		t.Fatal("expected no alias when output is distinct")
	}

	p = &Pass{Inputs: []string{"a"}, Output: ""}
	if p.Aliases() {
		t.Fatal("terminal pass never aliases")
	}
}

func TestFilterBufferKindIsNoneWithoutAttachment(t *testing.T) {
	f := &Filter{Kind: KindRender}
	if got := f.BufferKind(); got != bindingmgr.BufferNone {
		t.Fatalf("BufferKind() = %v, want BufferNone with no buffer", got)
	}

	f.Kind = KindCompute
	if got := f.BufferKind(); got != bindingmgr.BufferNone {
		t.Fatalf("BufferKind() = %v, want BufferNone with no buffer", got)
	}
}

func TestKindString(t *testing.T) {
	if KindRender.String() != "render" {
		t.Fatalf("KindRender.String() = %q", KindRender.String())
	}
	if KindCompute.String() != "compute" {
		t.Fatalf("KindCompute.String() = %q", KindCompute.String())
	}
}
