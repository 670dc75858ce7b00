package plugin

import (
	"errors"
	"fmt"
)

// Required exports of a device handler module
const (
	ExportOn       = "on"
	ExportOff      = "off"
	ExportGetState = "get_state"
)

// HandlerExports is the full handler contract
var HandlerExports = []string{ExportOn, ExportOff, ExportGetState}

// ErrCommandFailed is returned when a handler reports that on or off failed
var ErrCommandFailed = errors.New("device handler reported failure")

// State is the power state reported by a handler
type State int

const (
	StateUnknown State = iota
	StateOff
	StateOn
)

func (s State) String() string {
	switch s {
	case StateOn:
		return "on"
	case StateOff:
		return "off"
	default:
		return "unknown"
	}
}

// Handler controls one emulated device
type Handler interface {
	On() error
	Off() error
	State() (State, error)
}

// ModuleHandler adapts a loaded module to Handler
type ModuleHandler struct {
	mod *Module
}

var _ Handler = (*ModuleHandler)(nil)

// NewHandler checks that mod implements the handler contract
func NewHandler(mod *Module) (*ModuleHandler, error) {
	if err := mod.requireFunctions(HandlerExports...); err != nil {
		return nil, fmt.Errorf("module %q is not a device handler: %w", mod.Name, err)
	}
	return &ModuleHandler{mod: mod}, nil
}

// LoadHandler loads a plugin and adapts it to Handler
func (l *Loader) LoadHandler(moduleName, path string) (*ModuleHandler, error) {
	mod, err := l.Load(moduleName, path)
	if err != nil {
		return nil, err
	}
	h, err := NewHandler(mod)
	if err != nil {
		return nil, &LoadError{Module: moduleName, Path: mod.Path, Op: "validate", Err: err}
	}
	return h, nil
}

// Module returns the underlying module
func (h *ModuleHandler) Module() *Module {
	return h.mod
}

// On turns the device on
func (h *ModuleHandler) On() error {
	return h.command(ExportOn)
}

// Off turns the device off
func (h *ModuleHandler) Off() error {
	return h.command(ExportOff)
}

// State queries the device state
func (h *ModuleHandler) State() (State, error) {
	v, err := h.callInt(ExportGetState)
	if err != nil {
		return StateUnknown, err
	}
	switch v {
	case 1:
		return StateOn, nil
	case 0:
		return StateOff, nil
	default:
		return StateUnknown, nil
	}
}

func (h *ModuleHandler) command(name string) error {
	v, err := h.callInt(name)
	if err != nil {
		return err
	}
	if v == 0 {
		return fmt.Errorf("%s.%s: %w", h.mod.Name, name, ErrCommandFailed)
	}
	return nil
}

func (h *ModuleHandler) callInt(name string) (int64, error) {
	result, err := h.mod.Call(name)
	if err != nil {
		return 0, err
	}
	switch v := result.(type) {
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("%s.%s returned %T, want i32", h.mod.Name, name, result)
	}
}
