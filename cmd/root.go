// Package cmd provides the CLI commands for taskmap.
//
// This software is a derivative work based on Zeit (https://github.com/mrusme/zeit)
// Original work copyright (c) マリウス (mrusme)
// Modifications copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/taskmap/internal/config"
	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/output"
	"github.com/manav03panchal/taskmap/internal/runtime"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags.
var (
	flagBackend   string
	flagDataDir   string
	flagConfig    string
	flagFormat    string
	flagColorMode string
	flagLogFile   string
	flagDebug     bool
)

// ctx is the shared runtime context.
var ctx *runtime.Context

// skipRuntime marks commands that run without opening the store.
const skipRuntime = "skip-runtime"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "taskmap",
	Short: "Projects, tasks and habits in an embedded local store",
	Long: `taskmap keeps projects, tasks, categories, tags, settings, timer records
and habits in a local database. Pick the storage engine with --backend:
badger (default), sqlite or json.

Examples:
  taskmap project create "Thesis" --due "in 3 weeks"
  taskmap task create "Write outline" --project prj-20240313100000-ab12cd3
  taskmap task tree --project prj-20240313100000-ab12cd3
  taskmap habit checkin hab-20240313100000-ab12cd3
  taskmap export -o backup.json
  taskmap --backend sqlite stats --metrics`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Completion functions open the store themselves, after cobra has
		// parsed the flags of the command being completed.
		if cmd.Annotations[skipRuntime] == "true" || cmd.Name() == "help" ||
			cmd.Name() == cobra.ShellCompRequestCmd || cmd.Name() == cobra.ShellCompNoDescRequestCmd {
			return nil
		}
		return openRuntime(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeRuntime()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: show backend status
		return runStatus(cmd, args)
	},
}

// openRuntime loads configuration, applies the global flags and opens the
// configured backend.
func openRuntime(cmd *cobra.Command) error {
	format, err := output.ParseFormat(flagFormat)
	if err != nil {
		return errors.NewUserErrorWithField("format", flagFormat, err.Error(), "Use cli, json or plain.")
	}
	colorMode, err := output.ParseColorMode(flagColorMode)
	if err != nil {
		return errors.NewUserErrorWithField("color-mode", flagColorMode, err.Error(), "Use auto, always or never.")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}

	reqCtx := logging.NewRequestContext(cmd.Context())
	cmd.SetContext(reqCtx)

	opts := runtime.DefaultOptions()
	opts.Config = cfg
	opts.Format = format
	opts.ColorMode = colorMode
	opts.Writer = cmd.OutOrStdout()
	opts.Debug = flagDebug

	ctx, err = runtime.New(reqCtx, opts)
	if err != nil {
		return err
	}
	ctx.Debugf("backend=%s data-dir=%s config=%s", cfg.Storage.Backend, cfg.Storage.DataDir, cfg.File)
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	config.LoadEnvFiles()
	cfg, err := config.Load(config.Options{Path: flagConfig})
	if err != nil {
		return nil, errors.NewUserError(err.Error(),
			"Fix the config file or point --config at another one.")
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Storage.Backend = strings.ToLower(flagBackend)
	}
	if flags.Changed("data-dir") {
		cfg.Storage.DataDir = flagDataDir
	}
	if flags.Changed("log-file") {
		cfg.Log.File = flagLogFile
	}
	return cfg, nil
}

func initLogging(cfg *config.Config) error {
	lc := logging.DefaultConfig()
	if flagDebug {
		lc = logging.DebugConfig()
	} else {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return errors.NewUserErrorWithField("log_level", cfg.Log.Level, err.Error(), "Use debug, info, warn or error.")
		}
		lc.Level = level
		lc.JSON = cfg.Log.JSON
	}
	lc.File = cfg.Log.File
	return logging.Init(lc)
}

func closeRuntime() error {
	if ctx == nil {
		return nil
	}
	err := ctx.Close()
	ctx = nil
	return err
}

// Execute adds all child commands to the root command and runs it. Errors
// are printed here, once, in the selected output format.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		if ctx != nil {
			err = ctx.Fail(err)
		} else {
			err = errors.FromStorage(err)
		}
		printError(err)
	}
	if cerr := closeRuntime(); cerr != nil && err == nil {
		err = cerr
		printError(err)
	}
	_ = logging.Close()
	return err
}

func printError(err error) {
	if flagFormat == string(output.FormatJSON) {
		f := output.NewFormatter()
		f.Writer = os.Stderr
		_ = output.NewJSONFormatter(f).PrintError(err.Error(), errors.Classify(err).String(), errors.GetSuggestion(err))
		return
	}
	if flagDebug {
		fmt.Fprint(os.Stderr, errors.FormatDebugError(err))
		return
	}
	fmt.Fprintln(os.Stderr, "Error: "+errors.FormatUserError(err))
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagBackend, "backend", "b", config.DefaultBackend,
		"Storage backend: "+strings.Join(config.KnownBackends, ", "))
	pf.StringVar(&flagDataDir, "data-dir", "", "Data directory (default $XDG_DATA_HOME/taskmap)")
	pf.StringVar(&flagConfig, "config", "", "Config file (default $XDG_CONFIG_HOME/taskmap/config.yaml)")
	pf.StringVarP(&flagFormat, "format", "f", "cli", "Output format: cli, json, plain")
	pf.StringVar(&flagColorMode, "color-mode", "auto", "Color output: auto, always, never")
	pf.StringVar(&flagLogFile, "log-file", "", "Write logs to a rotating file")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug output")

	_ = rootCmd.RegisterFlagCompletionFunc("backend", cobra.FixedCompletions(config.KnownBackends, cobra.ShellCompDirectiveNoFileComp))
	_ = rootCmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions([]string{"cli", "json", "plain"}, cobra.ShellCompDirectiveNoFileComp))
	_ = rootCmd.RegisterFlagCompletionFunc("color-mode", cobra.FixedCompletions([]string{"auto", "always", "never"}, cobra.ShellCompDirectiveNoFileComp))

	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{skipRuntime: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("taskmap %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
		cmd.Printf("  built: %s\n", BuildTime)
		cmd.Println("")
		cmd.Println("Based on Zeit (https://github.com/mrusme/zeit)")
		cmd.Println("Licensed under SEGV License v1.0")
	},
}
