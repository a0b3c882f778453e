package cmd

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/drone-os/itmsink/cliopts"
	"github.com/drone-os/itmsink/driver"
	"github.com/drone-os/itmsink/itm"
	"github.com/drone-os/itmsink/itmerr"
	"github.com/drone-os/itmsink/logging"
	"github.com/drone-os/itmsink/metrics"
	"github.com/drone-os/itmsink/route"
	"github.com/drone-os/itmsink/sink"
	"github.com/drone-os/itmsink/util"
	"github.com/drone-os/itmsink/version"
)

var (
	verbosityFlag int
	inputPathFlag string
	metricsAddr   string
)

var rootCmd = &cobra.Command{
	Use:   "itmsink [flags] [OUTPUT...]",
	Short: "Decode an ARM ITM byte stream and route stimulus-port output to sinks.",
	Long: "itmsink reads a raw ARM Instrumentation Trace Macrocell byte stream\n" +
		"from a file or stdin, decodes it incrementally, and routes each\n" +
		"stimulus port's bytes to one or more output sinks.\n\n" +
		"Each OUTPUT argument has the form PORTS:PATH, where PORTS is \"all\"\n" +
		"or a comma-separated list of port numbers, and PATH is a file path\n" +
		"or empty for stdout. With no OUTPUT arguments, all ports are\n" +
		"written to stdout.",
	Version:       version.CLIDisplayString(),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().CountVarP(&verbosityFlag, "verbosity", "v", "increase logging verbosity; repeatable")
	rootCmd.Flags().StringVarP(&inputPathFlag, "input", "i", "", "input file to read (default: stdin)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")
}

func Execute() {
	if _, err := rootCmd.ExecuteC(); err != nil {
		exitCode := 1
		var exitErr util.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode
		}
		logging.Errorf("%s", err)
		os.Exit(exitCode)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logging.SetVerbosity(verbosityFlag)
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		logging.SwitchToPlain()
	}

	specs, err := cliopts.ParseAll(args)
	if err != nil {
		return util.Wrap(err)
	}

	input, err := openInput(inputPathFlag)
	if err != nil {
		return util.Wrap(err)
	}
	defer input.Close()

	paths := make([]string, len(specs))
	for i, spec := range specs {
		paths[i] = spec.Path
	}
	sinks, err := sink.OpenAll(sink.OSOpener(), paths)
	if err != nil {
		return util.Wrap(err)
	}
	defer sink.CloseAll(sinks)

	table := route.Build(specs, sinks)
	dec := itm.New(table, logging.Stderr)

	if metricsAddr != "" {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			if err := metrics.Serve(ctx, metricsAddr); err != nil {
				logging.Warnf("metrics server stopped: %s", err)
			}
		}()
	}

	if err := driver.Run(input, dec); err != nil {
		return util.Wrap(err)
	}
	return nil
}

// openInput opens path for reading, or stdin if path is empty. Closing
// the returned reader when reading from stdin is a no-op: the process's
// stdin fd is not ours to close.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, itmerr.NewInputIoError(err)
	}
	return f, nil
}
