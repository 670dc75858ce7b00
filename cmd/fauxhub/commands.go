package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/muurk/fauxhub/internal/config"
	"github.com/muurk/fauxhub/internal/mdns"
	"github.com/muurk/fauxhub/internal/monitor"
	"github.com/muurk/fauxhub/internal/multicast"
	"github.com/muurk/fauxhub/internal/probe"
	"github.com/muurk/fauxhub/internal/serial"
	"github.com/muurk/fauxhub/internal/ui"
)

// Command flags
var (
	ipHint       string
	listenPort   int
	listenGroup  string
	scanTimeout  time.Duration
	probeTarget  string
	probeWait    time.Duration
	initForce    bool
	monitorQuiet bool
)

func init() {
	rootCmd.AddCommand(ipCmd)
	rootCmd.AddCommand(serialCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(announceCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(initCmd)

	ipCmd.Flags().StringVar(&ipHint, "hint", "", `Address to use instead of auto-detection ("auto" detects)`)

	listenCmd.Flags().IntVar(&listenPort, "port", 0, "Discovery port (default from config, normally 1900)")
	listenCmd.Flags().StringVar(&listenGroup, "group", "", "Multicast group (default from config, normally 239.255.255.250)")
	listenCmd.Flags().BoolVarP(&monitorQuiet, "quiet", "q", false, "Only print the datagram count on exit")

	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", mdns.DefaultScanTimeout, "How long to browse")

	probeCmd.Flags().StringVar(&probeTarget, "target", probe.DefaultTarget, "Search target (ST header)")
	probeCmd.Flags().DurationVar(&probeWait, "wait", probe.DefaultWait, "How long to wait for responses (at least 1s)")

	initCmd.Flags().BoolVar(&initForce, "force", false, "Replace an existing config file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// resolveAddress picks the advertised address: the flag hint, then the
// config file's ip_address, then auto-detection.
func resolveAddress(ctx context.Context, cfg *config.Config, hint string) (string, error) {
	if hint == "" {
		hint = cfg.IPAddress
	}
	return cfg.Resolver().ResolveContext(ctx, hint)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

var ipCmd = &cobra.Command{
	Use:   "ip",
	Short: "Print the address devices are advertised on",
	Long: `Print the local IPv4 address devices are advertised on.

The machine's hostname is resolved first. When that yields a loopback
address, the outbound interface towards the internet is used instead.
No packets are sent.`,
	Example: `  fauxhub ip
  fauxhub ip --hint 192.168.1.20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr, err := resolveAddress(cmd.Context(), cfg, ipHint)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), addr)
		return nil
	},
}

var serialCmd = &cobra.Command{
	Use:   "serial NAME...",
	Short: "Print the serial derived from each device name",
	Example: `  fauxhub serial "living room light"
  fauxhub serial kitchen garage`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		writeSerials(cmd.OutOrStdout(), args)
	},
}

func writeSerials(w io.Writer, names []string) {
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", serial.FromName(name), name)
	}
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List configured devices with their serials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		devices := cfg.Devices()
		if len(devices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderWarning("No devices configured", map[string]string{
				"Config": displayConfigPath(),
			}))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderTable([]string{"Name", "Serial", "Plugin", "Port"}, deviceRows(devices)))
		return nil
	},
}

func deviceRows(devices []config.Device) [][]string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		port := "auto"
		if d.Port != 0 {
			port = strconv.Itoa(d.Port)
		}
		rows = append(rows, []string{d.Name, d.Serial, d.Plugin, port})
	}
	return rows
}

func displayConfigPath() string {
	if configPath != "" {
		return configPath
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return "(unknown)"
	}
	return path
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Load every configured plugin and report its state",
	Long: `Load every configured handler plugin in isolation and query its state.

Each plugin must export on, off and get_state. A plugin that fails to load
is reported and the remaining plugins are still checked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Plugins) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderWarning("No plugins configured", map[string]string{
				"Config": displayConfigPath(),
			}))
			return nil
		}

		var errs error
		for _, p := range cfg.Plugins {
			h, err := p.Loader().LoadHandler(p.Name, p.Path)
			if err != nil {
				errs = multierr.Append(errs, err)
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderFailure("Plugin "+p.Name, err, []string{
					"Check that the path points to a compiled .wasm module",
					"The module must export on, off and get_state returning i32",
					"Only WASI imports are provided; directories must be listed under dirs",
				}))
				continue
			}

			result := ui.NewSuccessResult("Plugin "+p.Name, map[string]string{
				"Path":    h.Module().Path,
				"Exports": strings.Join(h.Module().ExportNames(), ", "),
				"Devices": deviceNames(p.Devices),
			})
			if state, err := h.State(); err != nil {
				result.AddDetail("State", "error: "+err.Error())
			} else {
				result.AddDetail("State", state.String())
			}
			if len(p.Dirs) > 0 {
				result.AddDetail("Directories", strings.Join(p.Dirs, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Render())
		}

		if errs != nil {
			return fmt.Errorf("%d of %d plugins failed to load", len(multierr.Errors(errs)), len(cfg.Plugins))
		}
		return nil
	},
}

func deviceNames(entries []config.DeviceEntry) string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

var setCmd = &cobra.Command{
	Use:   "set DEVICE on|off",
	Short: "Switch a device through its plugin",
	Long: `Load the device's plugin, run its on or off handler and print the
resulting state. DEVICE is a device name or serial.`,
	Example: `  fauxhub set "living room light" on`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		on, err := parseToggle(args[1])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dev, ok := cfg.FindDevice(args[0])
		if !ok {
			return fmt.Errorf("device %q not found in config", args[0])
		}

		p, ok := cfg.FindPlugin(dev.Plugin)
		if !ok {
			return fmt.Errorf("plugin %q not found in config", dev.Plugin)
		}
		h, err := p.Loader().LoadHandler(p.Name, p.Path)
		if err != nil {
			return err
		}
		if on {
			err = h.On()
		} else {
			err = h.Off()
		}
		if err != nil {
			return fmt.Errorf("failed to switch %s %s: %w", dev.Name, args[1], err)
		}

		state, err := h.State()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]: %s\n", dev.Name, dev.Serial, state)
		return nil
	},
}

func parseToggle(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid state %q, expected on or off", arg)
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Join the discovery group and print incoming datagrams",
	Long: `Open the shared discovery socket (UDP 1900, group 239.255.255.250 by
default) and print every datagram until interrupted. Run with
--log-level debug to get hex dumps.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mc, err := listenConfig(cfg, listenPort, listenGroup)
		if err != nil {
			return err
		}

		sock, err := multicast.Listen(mc)
		if err != nil {
			return err
		}
		defer sock.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Listening on %s, group %s (SO_REUSEPORT %s)\n", sock.LocalAddr(), sock.Group(), sock.ReusePort())
		if ui.IsTerminal() {
			fmt.Fprintln(out, ui.RenderHorizontalDivider(ui.GetTerminalWidth(), "─"))
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		mon := monitor.New(sock.Conn(), sock.Group().String())
		if !monitorQuiet {
			mon.OnDatagram(func(d monitor.Datagram) {
				fmt.Fprintf(out, "%s  %-21s  %4d bytes  %s\n",
					d.ReceivedAt.Format("15:04:05.000"), d.From, len(d.Data), firstLine(d.Data))
			})
		}

		if err := mon.Run(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%d datagrams received\n", mon.Received())
		return nil
	},
}

// listenConfig applies command line overrides on top of the config file.
func listenConfig(cfg *config.Config, port int, group string) (multicast.Config, error) {
	if port != 0 {
		cfg.Discovery.Port = port
	}
	if group != "" {
		cfg.Discovery.Group = group
	}
	mc, err := cfg.MulticastConfig()
	if err != nil {
		return multicast.Config{}, fmt.Errorf("invalid discovery settings: %w", err)
	}
	return mc, nil
}

func firstLine(data []byte) string {
	line := string(data)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	const max = 60
	if len(line) > max {
		line = line[:max] + "..."
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '.'
		}
		return r
	}, line)
}

var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Advertise configured devices over mDNS until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ip, err := resolveAddress(cmd.Context(), cfg, "")
		if err != nil {
			return err
		}

		devices := cfg.Devices()
		services := make([]mdns.Service, 0, len(devices))
		for _, d := range devices {
			services = append(services, mdns.Service{Name: d.Name, Serial: d.Serial, Plugin: d.Plugin, Port: d.Port})
		}

		ann, err := mdns.Announce(services, ip)
		if err != nil {
			return err
		}
		defer ann.Shutdown()

		fmt.Fprintf(cmd.OutOrStdout(), "Announcing %d of %d devices on %s, press Ctrl+C to stop\n", ann.Count(), len(services), ip)

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		<-ctx.Done()
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Browse mDNS for devices advertised by fauxhub",
	Example: `  fauxhub scan
  fauxhub scan --timeout 10s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Scanning for fauxhub devices (timeout: %s)...\n\n", scanTimeout)

		devices, err := mdns.ScanForDevices(scanTimeout)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if len(devices) == 0 {
			fmt.Fprintln(out, "No devices found.")
			return nil
		}

		fmt.Fprintln(out, ui.RenderTable([]string{"Name", "Serial", "Plugin", "URL"}, scanRows(devices)))
		return nil
	},
}

func scanRows(devices []*mdns.Device) [][]string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.Name, d.Serial, d.Plugin, d.BaseURL()})
	}
	return rows
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send an SSDP M-SEARCH and list the responders",
	Long: `Send an SSDP M-SEARCH from the advertised address and list every
device that answers. Useful to check that emulated devices are
discoverable from this host.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ip, err := resolveAddress(cmd.Context(), cfg, "")
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Searching for %s from %s (wait: %s)...\n\n", probeTarget, ip, probeWait)
		responses, err := probe.Search(ctx, ip, probeTarget, probeWait)
		if err != nil {
			return err
		}
		if len(responses) == 0 {
			fmt.Fprintln(out, "No responses.")
			return nil
		}

		rows := make([][]string, 0, len(responses))
		for _, r := range responses {
			rows = append(rows, []string{r.USN, r.Location, r.Server})
		}
		fmt.Fprintln(out, ui.RenderTable([]string{"USN", "Location", "Server"}, rows))
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.GetConfigPath(); err != nil {
				return fmt.Errorf("failed to get config path: %w", err)
			}
		}
		if initForce {
			// Save replaces through a rename, so a failed write keeps the old file
			if err := config.Example().Save(path); err != nil {
				return err
			}
		} else if _, err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}
