// auradsp is a realtime audio DSP engine: it sits between a capture and a
// playback device and runs a configured graph of mixers and filters over
// the stream, with live reconfiguration and loudness-compensated volume.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jtoivane/auradsp/cmd/check"
	"github.com/jtoivane/auradsp/internal/config"
	"github.com/jtoivane/auradsp/internal/engine"
	"github.com/jtoivane/auradsp/internal/logging"
	"github.com/jtoivane/auradsp/internal/observability"
	"github.com/jtoivane/auradsp/internal/remote"
	"github.com/jtoivane/auradsp/internal/status"
)

// Process exit codes.
const (
	exitOK              = 0
	exitBadConfig       = 101
	exitProcessingError = 102
)

// meterUpdateIntervalMS is how often the capture worker publishes
// RMS/peak/rate aggregates into the shared status cells.
const meterUpdateIntervalMS = 1000

type options struct {
	gain         float64
	mute         bool
	logLevel     string
	logFile      string
	samplerate   int
	channels     int
	format       string
	extraSamples int
	port         int
	address      string
	wait         bool
	metricsAddr  string
}

func main() {
	os.Exit(run())
}

func run() int {
	logging.Init()

	opts := &options{}
	var code int

	rootCmd := &cobra.Command{
		Use:   "auradsp [config file]",
		Short: "Realtime audio DSP engine",
		Long: "auradsp reads audio from a capture device, processes it through a\n" +
			"configured pipeline of mixers and filters, and writes it to a\n" +
			"playback device. Configuration reloads apply in place when only\n" +
			"parameters changed and trigger a clean restart otherwise.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true
			var configPath string
			if len(args) > 0 {
				configPath = args[0]
			}
			code = runEngine(cmd, configPath, opts)
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.Float64VarP(&opts.gain, "gain", "g", 0.0, "Initial gain in dB for Volume and Loudness filters")
	flags.BoolVarP(&opts.mute, "mute", "m", false, "Start with Volume filters muted")
	flags.StringVarP(&opts.logLevel, "loglevel", "l", "info", "Log level: trace, debug, info, warn, error")
	flags.StringVarP(&opts.logFile, "logfile", "o", "", "Write logs to a rotating file instead of stderr")
	flags.IntVarP(&opts.samplerate, "samplerate", "r", 0, "Override samplerate in config")
	flags.IntVarP(&opts.channels, "channels", "n", 0, "Override capture channel count in config")
	flags.StringVarP(&opts.format, "format", "f", "", "Override capture sample format in config")
	flags.IntVarP(&opts.extraSamples, "extra_samples", "e", -1, "Override number of extra samples in config")
	flags.IntVarP(&opts.port, "port", "p", 0, "Port for the websocket control server")
	flags.StringVarP(&opts.address, "address", "a", "127.0.0.1", "Address to bind the websocket control server to")
	flags.BoolVarP(&opts.wait, "wait", "w", false, "Wait for a config from the control server")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Address for the prometheus metrics endpoint")

	rootCmd.AddCommand(check.Command())

	if err := rootCmd.Execute(); err != nil {
		var coded interface{ Code() int }
		if errors.As(err, &coded) {
			return coded.Code()
		}
		fmt.Fprintln(os.Stderr, err)
		return exitProcessingError
	}
	return code
}

func runEngine(cmd *cobra.Command, configPath string, opts *options) int {
	logging.SetLevel(logging.ParseLevel(opts.logLevel))
	if opts.logFile != "" {
		if err := logging.SetFileOutput(opts.logFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitProcessingError
		}
	}

	if configPath == "" && !opts.wait {
		logging.Error("no config file given and not in wait mode")
		return exitBadConfig
	}
	if opts.gain < -120.0 || opts.gain > 20.0 {
		logging.Error("initial gain out of range", "gain", opts.gain, "range", "-120..+20")
		return exitBadConfig
	}

	config.SetOverrides(overridesFromFlags(cmd, opts))

	shared := status.NewShared(opts.gain, opts.mute, meterUpdateIntervalMS)
	shared.ConfigPath.Set(configPath)

	if configPath != "" {
		cfg, err := config.LoadValidate(configPath)
		if err != nil {
			logging.Error("invalid config file", "path", configPath, "error", err)
			return exitBadConfig
		}
		shared.NewConfig.Set(cfg)
	}

	eng := engine.New(shared)

	if opts.metricsAddr != "" {
		m, err := observability.NewMetrics()
		if err != nil {
			logging.Error("metrics setup failed", "error", err)
			return exitProcessingError
		}
		m.Serve(opts.metricsAddr)
		eng.Metrics = m.Engine
	}

	if opts.port > 0 {
		server := remote.NewServer(shared)
		server.Start(fmt.Sprintf("%s:%d", opts.address, opts.port))
	}

	engine.RegisterSignalHandlers(shared)

	logging.Info("auradsp starting", "version", remote.Version)
	return eng.MainLoop(opts.wait)
}

// overridesFromFlags maps only the flags the user actually set, so zero
// values in the config survive.
func overridesFromFlags(cmd *cobra.Command, opts *options) config.Overrides {
	var ov config.Overrides
	if cmd.Flags().Changed("samplerate") {
		ov.Samplerate = &opts.samplerate
	}
	if cmd.Flags().Changed("channels") {
		ov.Channels = &opts.channels
	}
	if cmd.Flags().Changed("format") {
		ov.SampleFormat = &opts.format
	}
	if cmd.Flags().Changed("extra_samples") && opts.extraSamples >= 0 {
		ov.ExtraSamples = &opts.extraSamples
	}
	return ov
}
