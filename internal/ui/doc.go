// Package ui renders the fauxhub CLI output.
//
// Commands run once and exit, so nothing here is interactive. The package
// offers result boxes (success, failure, warning) and a bordered table for
// device listings, both styled with Lipgloss. Widths follow the stdout
// terminal via golang.org/x/term and fall back to MinTerminalWidth when
// output is piped.
//
// Example:
//
//	fmt.Println(ui.RenderSuccess("Plugin switch loaded", map[string]string{
//	    "Path":    "/opt/plugins/switch.wasm",
//	    "Devices": "2",
//	}))
//
// Details are always printed sorted by key so output is stable across runs.
package ui
