package plugin

import (
	"errors"
	"testing"
)

const switchWAT = `
(module
  (global $state (mut i32) (i32.const 0))
  (func (export "on") (result i32)
    (global.set $state (i32.const 1))
    (i32.const 1))
  (func (export "off") (result i32)
    (global.set $state (i32.const 0))
    (i32.const 1))
  (func (export "get_state") (result i32)
    (global.get $state)))
`

const stubbornWAT = `
(module
  (func (export "on") (result i32) (i32.const 0))
  (func (export "off") (result i32) (i32.const 0))
  (func (export "get_state") (result i32) (i32.const 7)))
`

const noResultWAT = `
(module
  (func (export "on"))
  (func (export "off"))
  (func (export "get_state")))
`

func TestLoadHandler_Switch(t *testing.T) {
	path := writePlugin(t, t.TempDir(), "switch.wasm", switchWAT)

	h, err := NewLoader().LoadHandler("lamp", path)
	if err != nil {
		t.Fatalf("LoadHandler() error = %v", err)
	}

	steps := []struct {
		name string
		act  func() error
		want State
	}{
		{"initial", func() error { return nil }, StateOff},
		{"on", h.On, StateOn},
		{"on again", h.On, StateOn},
		{"off", h.Off, StateOff},
	}

	for _, step := range steps {
		if err := step.act(); err != nil {
			t.Fatalf("%s: error = %v", step.name, err)
		}
		got, err := h.State()
		if err != nil {
			t.Fatalf("%s: State() error = %v", step.name, err)
		}
		if got != step.want {
			t.Errorf("%s: State() = %v, want %v", step.name, got, step.want)
		}
	}

	if h.Module().Name != "lamp" {
		t.Errorf("Module().Name = %v, want lamp", h.Module().Name)
	}
}

func TestLoadHandler_Refusals(t *testing.T) {
	path := writePlugin(t, t.TempDir(), "stubborn.wasm", stubbornWAT)

	h, err := NewLoader().LoadHandler("stubborn", path)
	if err != nil {
		t.Fatalf("LoadHandler() error = %v", err)
	}

	if err := h.On(); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("On() error = %v, want ErrCommandFailed", err)
	}
	if err := h.Off(); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("Off() error = %v, want ErrCommandFailed", err)
	}

	state, err := h.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state != StateUnknown {
		t.Errorf("State() = %v, want unknown", state)
	}
}

func TestLoadHandler_NotAHandler(t *testing.T) {
	path := writePlugin(t, t.TempDir(), "counter.wasm", counterWAT)

	h, err := NewLoader().LoadHandler("counter", path)
	if h != nil {
		t.Error("LoadHandler() returned a handler for a module without the contract")
	}
	if !errors.Is(err, ErrMissingCapability) {
		t.Fatalf("error = %v, want ErrMissingCapability", err)
	}

	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Op != "validate" {
		t.Errorf("error = %v, want *LoadError with Op validate", err)
	}
}

func TestHandler_WrongResultType(t *testing.T) {
	path := writePlugin(t, t.TempDir(), "noresult.wasm", noResultWAT)

	h, err := NewLoader().LoadHandler("silent", path)
	if err != nil {
		t.Fatalf("LoadHandler() error = %v", err)
	}

	if err := h.On(); err == nil {
		t.Error("On() should fail when the export returns nothing")
	}
	if _, err := h.State(); err == nil {
		t.Error("State() should fail when the export returns nothing")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateOn:      "on",
		StateOff:     "off",
		StateUnknown: "unknown",
		State(42):    "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %v, want %v", int(s), got, want)
		}
	}
}
