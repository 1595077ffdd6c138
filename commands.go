package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sammcj/mcp-base64/internal/config"
	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sammcj/mcp-base64/internal/session"
	"github.com/sammcj/mcp-base64/internal/tools"
	"github.com/sammcj/mcp-base64/internal/tools/base64conv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	clirunner "github.com/sammcj/mcp-base64/internal/cli"
)

// errSilentExit exits non-zero without logging; the command already
// reported the problem to the user
var errSilentExit = errors.New("exit")

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   config.DefaultConfigPath(),
		Usage:   "Path to the YAML configuration file",
		Sources: cli.EnvVars("MCP_BASE64_CONFIG"),
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   string(clirunner.OutputText),
		Usage:   "Output format (text or json)",
	}
}

// setupCommand prepares logging, failure logging, tracing and the input
// limit for a terminal command
func setupCommand(cmd *cli.Command, logger *logrus.Logger) (*clirunner.Runner, *config.Config, error) {
	configureLogging(logger, false)
	if err := tools.InitGlobalFailureLogger(logger, logDir()); err != nil {
		logger.WithError(err).Warn("Failed to initialise conversion failure logger")
	}
	initTracing(logger)

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	base64conv.SetMaxInputBytes(cfg.MaxInputBytes)

	output := clirunner.OutputFormat(cmd.String("output"))
	if output != clirunner.OutputJSON {
		output = clirunner.OutputText
	}
	return clirunner.NewRunner(logger, output), cfg, nil
}

func convertCommand(mode converter.Mode, usage string, logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      string(mode),
		Usage:     usage,
		ArgsUsage: "[text...] (reads stdin when omitted)",
		Flags:     []cli.Flag{outputFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runner, cfg, err := setupCommand(cmd, logger)
			if err != nil {
				return err
			}

			text, err := clirunner.ReadInput(cmd.Args().Slice(), os.Stdin, cfg.MaxInputBytes)
			if err != nil {
				return err
			}

			if err := runner.Convert(ctx, mode, text); err != nil {
				if errors.Is(err, clirunner.ErrConversionFailed) {
					return errSilentExit
				}
				return err
			}
			return nil
		},
	}
}

func commands(logger *logrus.Logger) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "version",
			Usage: "Print version information",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fmt.Printf("mcp-base64 version %s\n", Version)
				fmt.Printf("Commit: %s\n", Commit)
				fmt.Printf("Built: %s\n", BuildDate)
				return nil
			},
		},
		convertCommand(converter.ModeEncode, "Encode text to Base64", logger),
		convertCommand(converter.ModeDecode, "Decode Base64 to text", logger),
		{
			Name:  "cli",
			Usage: "Invoke tools directly without an MCP client",
			Flags: []cli.Flag{outputFlag()},
			Commands: []*cli.Command{
				{
					Name:  "list",
					Usage: "List available tools",
					Action: func(ctx context.Context, cmd *cli.Command) error {
						runner, _, err := setupCommand(cmd, logger)
						if err != nil {
							return err
						}
						return runner.ListTools()
					},
				},
				{
					Name:      "help",
					Usage:     "Show parameters for a tool",
					ArgsUsage: "<tool>",
					Action: func(ctx context.Context, cmd *cli.Command) error {
						if cmd.Args().Len() != 1 {
							return fmt.Errorf("usage: mcp-base64 cli help <tool>")
						}
						runner, _, err := setupCommand(cmd, logger)
						if err != nil {
							return err
						}
						return runner.HelpTool(cmd.Args().First())
					},
				},
				{
					Name:            "run",
					Usage:           "Run a tool with --key=value flags or a JSON object",
					ArgsUsage:       "<tool> [--key=value ...] ['{\"key\": \"value\"}']",
					SkipFlagParsing: true,
					Action: func(ctx context.Context, cmd *cli.Command) error {
						if cmd.Args().Len() < 1 {
							return fmt.Errorf("usage: mcp-base64 cli run <tool> [args]")
						}
						runner, _, err := setupCommand(cmd, logger)
						if err != nil {
							return err
						}
						return runner.RunTool(ctx, cmd.Args().First(), cmd.Args().Tail())
					},
				},
			},
		},
		{
			Name:  "interactive",
			Usage: "Convert text line by line in an interactive session",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				runner, _, err := setupCommand(cmd, logger)
				if err != nil {
					return err
				}
				return runner.Interactive(ctx, os.Stdin, session.NewTerminalClipboard(os.Stdout))
			},
		},
		{
			Name:      "theme",
			Usage:     "Show or set the default theme of the web page",
			ArgsUsage: "[dark|light]",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				runner, _, err := setupCommand(cmd, logger)
				if err != nil {
					return err
				}
				state := config.LoadState(config.DefaultStatePath())
				return runner.Theme(state, cmd.Args().First())
			},
		},
		{
			Name:  "config-validate",
			Usage: "Validate the configuration file",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "print",
					Usage: "Print the effective configuration after validation",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return handleConfigValidate(cmd)
			},
		},
	}
}

// handleConfigValidate reports whether the config file is usable
func handleConfigValidate(cmd *cli.Command) error {
	path := cmd.String("config")

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Printf("No config file at %s, built-in defaults are used\n", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("❌ Configuration is invalid: %v\n", err)
		return errSilentExit
	}

	fmt.Printf("✅ Configuration is valid: %s\n", path)
	if cmd.Bool("print") {
		data, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		fmt.Print(string(data))
	}
	return nil
}
