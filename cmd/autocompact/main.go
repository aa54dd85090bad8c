package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deepnoodle-ai/autocompact/config"
	"github.com/deepnoodle-ai/autocompact/slogger"
	"github.com/deepnoodle-ai/wonton/cli"
	"github.com/joho/godotenv"
)

const defaultConfigFile = "autocompact.yaml"

func main() {
	// A missing .env file is normal.
	_ = godotenv.Load()

	app := cli.New("autocompact").
		Description("Compacts opencode sessions that hit the model's context limit").
		Version("0.1.0")

	app.GlobalFlags(
		cli.String("config", "c").
			Env("AUTOCOMPACT_CONFIG").
			Help("Path to a YAML or JSON config file"),
		cli.String("server", "s").
			Env("AUTOCOMPACT_SERVER").
			Help("opencode server URL (default " + config.DefaultServer + ")"),
		cli.String("directory", "d").
			Env("AUTOCOMPACT_DIRECTORY").
			Help("Project directory (defaults to current directory)"),
		cli.String("log-level", "").
			Env("AUTOCOMPACT_LOG_LEVEL").
			Help("Log level to use (debug, info, warn, error)"),
		cli.Bool("terminal-toasts", "").
			Default(false).
			Help("Also print toasts to stderr"),
	)

	app.Main().Run(runMain)

	app.Command("config").
		Description("Print the effective configuration as YAML").
		Run(func(ctx *cli.Context) error {
			cfg, err := loadConfig(readFlags(ctx))
			if err != nil {
				return cli.Errorf("%v", err)
			}
			return cfg.Write(os.Stdout)
		})

	app.Command("init").
		Description("Write a default config file").
		Args("path?").
		Run(func(ctx *cli.Context) error {
			path := defaultConfigFile
			if ctx.NArg() > 0 {
				path = ctx.Arg(0)
			}
			if err := writeDefaultConfig(path); err != nil {
				return cli.Errorf("%v", err)
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		})

	if err := app.Execute(); err != nil {
		if cli.IsHelpRequested(err) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

func runMain(ctx *cli.Context) error {
	flags := readFlags(ctx)
	cfg, err := loadConfig(flags)
	if err != nil {
		return cli.Errorf("%v", err)
	}
	level, err := slogger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cli.Errorf("%v", err)
	}
	logger := slogger.New(level)

	goCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.configPath != "" {
		go func() {
			if err := watchConfig(goCtx, flags.configPath, logger); err != nil {
				logger.Warn("config watch disabled", "path", flags.configPath, "error", err)
			}
		}()
	}
	return serve(goCtx, cfg, logger, os.Stderr)
}

type flagValues struct {
	configPath     string
	server         string
	directory      string
	logLevel       string
	terminalToasts bool
}

func readFlags(ctx *cli.Context) flagValues {
	return flagValues{
		configPath:     ctx.String("config"),
		server:         ctx.String("server"),
		directory:      ctx.String("directory"),
		logLevel:       ctx.String("log-level"),
		terminalToasts: ctx.Bool("terminal-toasts"),
	}
}

// loadConfig reads the config file, if any, and overlays flag values.
func loadConfig(flags flagValues) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.server != "" {
		cfg.Server = flags.server
	}
	if flags.directory != "" {
		cfg.Directory = flags.directory
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.terminalToasts {
		cfg.TerminalToasts = true
	}
	if cfg.Directory == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		cfg.Directory = wd
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	return config.Default().Save(path)
}
