package common

import (
	"errors"
	"testing"
)

type stubPauseView struct {
	modules map[string]bool
}

func (s stubPauseView) IsPaused(module string) bool {
	if s.modules == nil {
		return false
	}
	return s.modules[module]
}

func TestGuardBlocksPausedModule(t *testing.T) {
	view := stubPauseView{modules: map[string]bool{"pool": true}}
	if err := Guard(view, "pool"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(view, "other"); err != nil {
		t.Fatalf("expected other module unaffected, got %v", err)
	}
}

func TestGuardSkipsNilViewAndEmptyModule(t *testing.T) {
	if err := Guard(nil, "pool"); err != nil {
		t.Fatalf("expected nil view to pass, got %v", err)
	}
	view := stubPauseView{modules: map[string]bool{"": true}}
	if err := Guard(view, ""); err != nil {
		t.Fatalf("expected empty module to pass, got %v", err)
	}
}
