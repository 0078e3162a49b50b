package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"sassc/config"
	"sassc/engine"
	"sassc/misc"
	"sassc/sass"
	"sassc/state"
)

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	env := state.EnvFromContext(ctx)

	if env.Cfg, err = config.LoadConfiguration(cmd.String("config")); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		env.Cfg.Logging.ConsoleLogger.Level = "debug"
	}
	if env.Log, err = env.Cfg.Logging.Prepare(); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()))
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}
	env.RestoreStdLog()
	return nil
}

// Ignore urfave/cli default error handling - regular errors are returned
// from subcommands and logged once here.
var errWasHandled bool

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := state.EnvFromContext(ctx)
	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func render(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if cmd.NArg() == 0 {
		return fmt.Errorf("no input file specified ('-' reads from standard input)")
	}
	source := cmd.Args().Get(0)
	destination := cmd.Args().Get(1)

	var template []byte
	filename := ""
	if source == "-" {
		if template, err = io.ReadAll(os.Stdin); err != nil {
			return fmt.Errorf("unable to read standard input: %w", err)
		}
	} else {
		if template, err = os.ReadFile(source); err != nil {
			return fmt.Errorf("unable to read input file: %w", err)
		}
		filename = source
	}

	opts, err := renderOptions(env, cmd, filename, destination)
	if err != nil {
		return err
	}

	eng := engine.New(string(template), opts)
	css, err := eng.Render()
	if err != nil {
		return err
	}

	if deps, derr := eng.Dependencies(); derr == nil && len(deps) > 0 {
		env.Log.Debug("Loaded dependencies", zap.Strings("paths", deps))
	}

	if destination == "" {
		fmt.Print(css)
	} else if werr := os.WriteFile(destination, []byte(css), 0644); werr != nil {
		err = multierr.Append(err, fmt.Errorf("unable to write output file: %w", werr))
	}

	if opts.SourceMapFile != "" {
		if sm, serr := eng.SourceMap(); serr != nil {
			err = multierr.Append(err, serr)
		} else if werr := os.WriteFile(opts.SourceMapFile, []byte(sm), 0644); werr != nil {
			err = multierr.Append(err, fmt.Errorf("unable to write source map: %w", werr))
		}
	}
	return err
}

// renderOptions composes engine options from configuration file values
// overridden by command line flags.
func renderOptions(env *state.LocalEnv, cmd *cli.Command, filename, destination string) (engine.Options, error) {
	rc := env.Cfg.Render

	opts := engine.Options{
		Options: sass.Options{
			Syntax:            sass.Syntax(rc.Syntax),
			Style:             sass.Style(rc.Style),
			LoadPaths:         rc.LoadPaths,
			Filename:          filename,
			SourceMapContents: rc.SourceMapContents,
			SourceMapEmbed:    rc.SourceMapEmbed,
			OmitSourceMapURL:  rc.OmitSourceMapURL,
			AlertASCII:        rc.AlertASCII,
			AlertColor:        rc.AlertColor,
			QuietDeps:         rc.QuietDeps,
			Verbose:           rc.Verbose,
		},
		Log: env.Log,
	}

	if cmd.IsSet("syntax") {
		opts.Syntax = sass.Syntax(cmd.String("syntax"))
	}
	if cmd.IsSet("style") {
		opts.Style = sass.Style(cmd.String("style"))
	}
	if paths := cmd.StringSlice("load-path"); len(paths) > 0 {
		opts.LoadPaths = append(opts.LoadPaths, paths...)
	}
	if cmd.Bool("omit-map-comment") {
		opts.OmitSourceMapURL = true
	}
	if cmd.Bool("embed-map-sources") {
		opts.SourceMapContents = true
	}
	if cmd.Bool("embed-map") {
		opts.SourceMapEmbed = true
	}
	if cmd.Bool("quiet") {
		opts.Quiet = true
	}
	if cmd.Bool("quiet-deps") {
		opts.QuietDeps = true
	}
	if cmd.Bool("verbose") {
		opts.Verbose = true
	}

	if cmd.Bool("sourcemap") {
		if destination == "" {
			return opts, fmt.Errorf("--sourcemap requires an output file")
		}
		opts.SourceMapFile = destination + ".map"
	}
	return opts, nil
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	conf := env.Cfg
	if cmd.Bool("default") {
		conf = config.Default()
	}
	data, err := config.Dump(conf)
	if err != nil {
		return err
	}
	if cmd.NArg() == 0 {
		fmt.Print(string(data))
		return nil
	}
	fname := cmd.Args().Get(0)
	if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
		return fmt.Errorf("unable to create destination directory: %w", err)
	}
	if err := os.WriteFile(fname, data, 0644); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}

func main() {

	// allow graceful shutdown on interrupt
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "SassC compatible stylesheet renderer",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "force debug console logging"},
			&cli.StringFlag{Name: "syntax", Usage: "input `SYNTAX` (scss, sass, indented, css)"},
			&cli.StringFlag{Name: "style", Aliases: []string{"t"}, Usage: "output `STYLE` (nested, expanded, compact, compressed)"},
			&cli.StringSliceFlag{Name: "load-path", Aliases: []string{"I"}, Usage: "add `PATH` to the stylesheet search path (repeatable)"},
			&cli.BoolFlag{Name: "sourcemap", Aliases: []string{"m"}, Usage: "generate a source map next to the output file"},
			&cli.BoolFlag{Name: "embed-map", Usage: "embed the source map as a data: URI in the CSS"},
			&cli.BoolFlag{Name: "embed-map-sources", Usage: "include full source texts in the source map"},
			&cli.BoolFlag{Name: "omit-map-comment", Aliases: []string{"M"}, Usage: "do not append the sourceMappingURL comment"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "render without emitting CSS"},
			&cli.BoolFlag{Name: "quiet-deps", Usage: "silence diagnostics from dependency stylesheets"},
			&cli.BoolFlag{Name: "verbose", Usage: "emit all deprecation diagnostics"},
		},
		Action:    render,
		ArgsUsage: "SOURCE [DESTINATION]",
		Commands: []*cli.Command{
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
			},
		},
	}

	err := app.Run(ctx, os.Args)
	stop()

	if err != nil {
		if !errWasHandled {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(1)
	}
}
