package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vorthain/vorthain-vortex"
)

const envPrefix = "VORTEX"

// app holds what the subcommands share: bound settings and output streams.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer

	logWriter *lumberjack.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:           "vortex",
		Short:         "Send requests to configured endpoints",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPostRun: func(*cobra.Command, []string) {
			a.closeLog()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	configureGlobalFlags(cmd.PersistentFlags())
	a.bind(cmd.PersistentFlags())

	cmd.AddCommand(a.sendCommand(), a.endpointsCommand(), versionCommand())
	return cmd
}

func configureGlobalFlags(flags *pflag.FlagSet) {
	flags.String("config", "vortex.yaml", "Path to the YAML client configuration")
	flags.Duration("timeout", 0, "Client-wide request timeout (0 keeps the configured value)")
	flags.Int("retries", 0, "Retry transient failures up to this many times")
	flags.Float64("rate", 0, "Maximum requests per second (0 means unlimited)")
	flags.Bool("debug", false, "Log requests, cache activity and retries")
	flags.String("log-file", "", "Write logs to a rotating file instead of stderr")
	flags.Int("log-max-size", 10, "Maximum log file size in megabytes before rotation")
}

// bind makes every flag settable as VORTEX_<FLAG>, dashes as underscores.
func (a *app) bind(flags *pflag.FlagSet) {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(flags)
}

func (a *app) logger() vortex.Logger {
	level := slog.LevelInfo
	if a.v.GetBool("debug") {
		level = slog.LevelDebug
	}

	var w io.Writer = a.stderr
	if path := a.v.GetString("log-file"); path != "" {
		a.logWriter = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    a.v.GetInt("log-max-size"),
			MaxBackups: 3,
		}
		w = a.logWriter
	}
	return vortex.NewTextLogger(w, level)
}

func (a *app) closeLog() {
	if a.logWriter != nil {
		_ = a.logWriter.Close()
		a.logWriter = nil
	}
}

// client loads the configuration file, applies the global flags on top of
// the client-level settings and builds a Client.
func (a *app) client() (*vortex.Client, error) {
	cfg, err := vortex.LoadConfigFile(a.v.GetString("config"))
	if err != nil {
		return nil, err
	}

	if d := a.v.GetDuration("timeout"); d > 0 {
		cfg.Settings.Timeout = d
	}
	if n := a.v.GetInt("retries"); n > 0 {
		cfg.Settings.MaxRetries = vortex.Int(n)
		cfg.Settings.ErrorInterceptor = vortex.RetryTransient(vortex.BackoffConfig{})
	}

	opts := []vortex.Option{vortex.WithLogger(a.logger())}
	if a.v.GetBool("debug") {
		opts = append(opts, vortex.WithDebug())
	}
	if r := a.v.GetFloat64("rate"); r > 0 {
		opts = append(opts, vortex.WithRateLimit(rate.Limit(r), max(1, int(r))))
	}
	return vortex.New(cfg, opts...)
}

func (a *app) endpointsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the configured endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			defer client.Destroy()
			for _, name := range client.EndpointNames() {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), vortex.GetVersion())
		},
	}
}

// describe renders err for the terminal, with the full diagnostic block for
// client errors.
func describe(err error) string {
	if ce, ok := vortex.AsClientError(err); ok {
		return ce.DebugInfo()
	}
	return err.Error()
}

var errRequestFailed = errors.New("request failed")

// requestTimeout bounds a single CLI invocation when no timeout is set.
const requestTimeout = 5 * time.Minute
