// Package plugin loads device handler code from files at runtime.
//
// A plugin is a WebAssembly module. Load compiles the file into a fresh
// store and instantiates it under the caller's module name; the module's
// start function runs during instantiation and the instance's exports make
// up the returned Module. Nothing is known about a plugin ahead of time, so
// a device registry can point the loader at a directory of files and treat
// each one as a self-contained handler.
//
// # Isolation
//
// Every Load gets its own store, so two loads of the same file under
// different names share no memory, tables or globals.
//
// # Host Imports
//
// Modules built for WASI (TinyGo, Rust wasm32-wasi) import a WASI snapshot.
// For those, Load builds a WASI environment from Loader.WASI: arguments,
// environment variables and preopened directories, with stdout and stderr
// inherited from the host. A WASI reactor's _initialize export runs once
// after instantiation. Modules that import nothing get no host functions,
// and any other import fails instantiation.
//
// # Handler Contract
//
// Device handlers export three functions taking no arguments and returning
// an i32:
//
//	on        -> non-zero on success
//	off       -> non-zero on success
//	get_state -> 1 for on, 0 for off, anything else for unknown
//
// LoadHandler loads a file and adapts it to the Handler interface, failing
// before any call is made if an export is missing.
//
// # Usage Example
//
//	loader := plugin.NewLoader()
//	h, err := loader.LoadHandler("kitchen", "~/.config/fauxhub/plugins/switch.wasm")
//	if err != nil {
//	    return err
//	}
//	if err := h.On(); err != nil {
//	    return err
//	}
//
// # Trust
//
// Plugins are trusted input. They run in the wasm sandbox but with no limit
// on CPU time, and a plugin whose start function loops blocks Load forever.
// A WASI plugin can read and write every directory in Loader.WASI.Dirs.
package plugin
