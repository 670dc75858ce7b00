package plugin

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/muurk/fauxhub/internal/logging"
)

// ErrMissingCapability is returned when a module lacks a required export
var ErrMissingCapability = errors.New("missing required export")

// LoadError reports a failure to load a plugin. No module is returned
// alongside it.
type LoadError struct {
	// Module is the requested module name
	Module string
	// Path is the plugin path, expanded when expansion succeeded
	Path string
	// Op is "expand", "read", "compile", "wasi", "instantiate" or "validate"
	Op string
	// Err is the underlying error
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load plugin %q from %s (%s): %v", e.Module, e.Path, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Export describes one export of a loaded module
type Export struct {
	Name string
	Kind string // "function", "global", "table" or "memory"
}

// Module is a loaded and instantiated plugin
type Module struct {
	// Name is the module name the plugin was loaded under
	Name string
	// Path is the absolute path the plugin was read from
	Path string

	store    *wasmer.Store
	wasi     *wasmer.WasiEnvironment
	instance *wasmer.Instance
	exports  []Export
	kinds    map[string]string
}

// WASIConfig is the host environment given to modules that import a WASI
// snapshot, which is what TinyGo and Rust wasm32-wasi builds produce.
type WASIConfig struct {
	Args []string
	Env  map[string]string
	// Dirs are host directories the module may open, ~ is expanded
	Dirs []string
}

// Loader loads plugins from the file system
type Loader struct {
	// Require lists function exports every loaded module must provide
	Require []string

	// WASI applies only to modules with WASI imports. Other modules get no
	// host functions at all.
	WASI WASIConfig

	engine *wasmer.Engine
}

// NewLoader creates a loader. Modules must export every function in require.
func NewLoader(require ...string) *Loader {
	return &Loader{
		Require: require,
		engine:  wasmer.NewEngine(),
	}
}

// Load reads the plugin at path and instantiates it as moduleName
func (l *Loader) Load(moduleName, path string) (*Module, error) {
	if moduleName == "" {
		return nil, &LoadError{Module: moduleName, Path: path, Op: "validate", Err: errors.New("module name is required")}
	}

	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, &LoadError{Module: moduleName, Path: path, Op: "expand", Err: err}
	}

	code, err := os.ReadFile(expanded)
	if err != nil {
		return nil, &LoadError{Module: moduleName, Path: expanded, Op: "read", Err: err}
	}

	store := wasmer.NewStore(l.engine)

	compiled, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, &LoadError{Module: moduleName, Path: expanded, Op: "compile", Err: err}
	}

	imports, wasiEnv, err := l.imports(moduleName, store, compiled)
	if err != nil {
		return nil, &LoadError{Module: moduleName, Path: expanded, Op: "wasi", Err: err}
	}

	instance, err := wasmer.NewInstance(compiled, imports)
	if err != nil {
		return nil, &LoadError{Module: moduleName, Path: expanded, Op: "instantiate", Err: err}
	}

	mod := &Module{
		Name:     moduleName,
		Path:     expanded,
		store:    store,
		wasi:     wasiEnv,
		instance: instance,
		kinds:    make(map[string]string),
	}
	for _, exp := range compiled.Exports() {
		kind := kindName(exp.Type().Kind())
		mod.exports = append(mod.exports, Export{Name: exp.Name(), Kind: kind})
		mod.kinds[exp.Name()] = kind
	}
	sort.Slice(mod.exports, func(i, j int) bool {
		return mod.exports[i].Name < mod.exports[j].Name
	})

	// WASI reactors expect _initialize before any other export is called
	if wasiEnv != nil && mod.HasFunction(wasiInitialize) {
		if _, err := mod.Call(wasiInitialize); err != nil {
			return nil, &LoadError{Module: moduleName, Path: expanded, Op: "instantiate", Err: err}
		}
	}

	if err := mod.requireFunctions(l.Require...); err != nil {
		return nil, &LoadError{Module: moduleName, Path: expanded, Op: "validate", Err: err}
	}

	logging.LogPluginLoad(moduleName, expanded, mod.ExportNames())

	return mod, nil
}

const wasiInitialize = "_initialize"

// imports builds the import object for compiled. Modules without WASI
// imports get an empty one and a nil environment.
func (l *Loader) imports(moduleName string, store *wasmer.Store, compiled *wasmer.Module) (*wasmer.ImportObject, *wasmer.WasiEnvironment, error) {
	if wasmer.GetWasiVersion(compiled) == wasmer.WASI_VERSION_INVALID {
		return wasmer.NewImportObject(), nil, nil
	}

	builder := wasmer.NewWasiStateBuilder(moduleName).
		InheritStdout().
		InheritStderr()
	for _, arg := range l.WASI.Args {
		builder = builder.Argument(arg)
	}

	keys := make([]string, 0, len(l.WASI.Env))
	for key := range l.WASI.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		builder = builder.Environment(key, l.WASI.Env[key])
	}

	for _, dir := range l.WASI.Dirs {
		expanded, err := ExpandPath(dir)
		if err != nil {
			return nil, nil, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot preopen %s: %w", expanded, err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("cannot preopen %s: not a directory", expanded)
		}
		builder = builder.PreopenDirectory(expanded)
	}

	wasiEnv, err := builder.Finalize()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build WASI environment: %w", err)
	}

	imports, err := wasiEnv.GenerateImportObject(store, compiled)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate WASI imports: %w", err)
	}
	return imports, wasiEnv, nil
}

// ExpandPath expands a leading ~ or ~user and returns an absolute path
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		rest := path[1:]
		sep := strings.IndexAny(rest, `/`+string(filepath.Separator))
		name := rest
		if sep >= 0 {
			name = rest[:sep]
			rest = rest[sep:]
		} else {
			rest = ""
		}

		var home string
		if name == "" {
			dir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			home = dir
		} else {
			u, err := user.Lookup(name)
			if err != nil {
				return "", fmt.Errorf("cannot expand ~%s: %w", name, err)
			}
			home = u.HomeDir
		}
		path = filepath.Join(home, rest)
	}

	return filepath.Abs(path)
}

// Exports returns the module's exports sorted by name
func (m *Module) Exports() []Export {
	return append([]Export(nil), m.exports...)
}

// ExportNames returns the sorted export names
func (m *Module) ExportNames() []string {
	names := make([]string, len(m.exports))
	for i, e := range m.exports {
		names[i] = e.Name
	}
	return names
}

// HasFunction reports whether the module exports a function called name
func (m *Module) HasFunction(name string) bool {
	return m.kinds[name] == "function"
}

// Function returns an exported function
func (m *Module) Function(name string) (wasmer.NativeFunction, error) {
	if !m.HasFunction(name) {
		return nil, fmt.Errorf("%w: function %q in module %q", ErrMissingCapability, name, m.Name)
	}
	return m.instance.Exports.GetFunction(name)
}

// Call invokes an exported function
func (m *Module) Call(name string, args ...interface{}) (interface{}, error) {
	fn, err := m.Function(name)
	if err != nil {
		return nil, err
	}
	result, err := fn(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s.%s: %w", m.Name, name, err)
	}
	return result, nil
}

// Global returns the current value of an exported global
func (m *Module) Global(name string) (interface{}, error) {
	if m.kinds[name] != "global" {
		return nil, fmt.Errorf("%w: global %q in module %q", ErrMissingCapability, name, m.Name)
	}
	g, err := m.instance.Exports.GetGlobal(name)
	if err != nil {
		return nil, err
	}
	return g.Get()
}

func (m *Module) requireFunctions(names ...string) error {
	var missing []string
	for _, name := range names {
		if !m.HasFunction(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCapability, strings.Join(missing, ", "))
	}
	return nil
}

func kindName(kind wasmer.ExternKind) string {
	switch kind {
	case wasmer.FUNCTION:
		return "function"
	case wasmer.GLOBAL:
		return "global"
	case wasmer.TABLE:
		return "table"
	case wasmer.MEMORY:
		return "memory"
	default:
		return kind.String()
	}
}
