package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/cmd/surakshad/run"
	"github.com/anjihan3601K/suraksha/server"
	"github.com/anjihan3601K/suraksha/services/diagnostic"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// These variables are populated via the Go linker.
var (
	version string
	commit  string
	branch  string
)

func init() {
	// If commit or branch are not set, make that clear.
	if commit == "" {
		commit = "unknown"
	}
	if branch == "" {
		branch = "unknown"
	}
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "path to the configuration file",
	EnvVars: []string{"SURAKSHA_CONFIG_PATH"},
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "surakshad",
		Usage:     "emergency alert dispatch daemon",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Commands: []*cli.Command{
			newRunCmd(),
			newConfigCmd(),
			newVersionCmd(),
			newRecipientsCmd(),
			newDispatchCmd(),
		},
	}
}

func newRunCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the server",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{Name: "pidfile", Usage: "write process ID to a file"},
			&cli.StringFlag{Name: "log-file", Usage: "write logs to a file"},
			&cli.StringFlag{Name: "log-level", Usage: "one of debug, info, warn, error"},
		},
		Action: func(ctx *cli.Context) error {
			cmd := run.NewCommand()
			cmd.Version = version
			cmd.Commit = commit
			cmd.Branch = branch
			cmd.Stdout = ctx.App.Writer
			cmd.Stderr = ctx.App.ErrWriter

			err := cmd.Run(run.Options{
				ConfigPath: ctx.String("config"),
				PIDFile:    ctx.String("pidfile"),
				LogFile:    ctx.String("log-file"),
				LogLevel:   ctx.String("log-level"),
			})
			if err != nil {
				if cmd.Diag != nil {
					cmd.Diag.Error("encountered error", err)
				}
				return fmt.Errorf("run: %s", err)
			}

			signalCh := make(chan os.Signal, 1)
			signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
			cmd.Diag.Info("listening for signals")

			<-signalCh
			cmd.Diag.Info("signal received, initializing clean shutdown...")
			go cmd.Close()

			// Block again until another signal is received, a shutdown timeout elapses,
			// or the Command is gracefully closed
			cmd.Diag.Info("waiting for clean shutdown...")
			select {
			case <-signalCh:
				cmd.Diag.Info("second signal received, initializing hard shutdown")
			case <-time.After(time.Second * 30):
				cmd.Diag.Info("time limit reached, initializing hard shutdown")
			case <-cmd.Closed:
				cmd.Diag.Info("server shutdown completed")
			}
			return nil
		},
	}
}

func newConfigCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "display the configuration, merged with the config file and environment",
		Flags: []cli.Flag{configFlag},
		Action: func(ctx *cli.Context) error {
			config, err := run.LoadConfig(run.FindConfigPath(ctx.String("config")), os.Getenv)
			if err != nil {
				return fmt.Errorf("config: %s", err)
			}
			if err := toml.NewEncoder(ctx.App.Writer).Encode(config); err != nil {
				return err
			}
			fmt.Fprint(ctx.App.Writer, "\n")
			return nil
		},
	}
}

func newVersionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "display the version, build branch and git commit hash",
		Action: func(ctx *cli.Context) error {
			fmt.Fprintf(ctx.App.Writer, "Suraksha version %s (git: %s %s)\n", version, branch, commit)
			return nil
		},
	}
}

func newDispatchCmd() *cli.Command {
	return &cli.Command{
		Name:      "dispatch",
		Usage:     "send one alert to every registered recipient and print the summary",
		ArgsUsage: "<title> <message>",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{Name: "severity", Value: alert.Info.String(), Usage: "one of Info, Low, Moderate, High"},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 2 {
				return errors.New("dispatch requires a title and a message")
			}
			sev, err := alert.ParseSeverity(ctx.String("severity"))
			if err != nil {
				return err
			}
			a := alert.Alert{Title: ctx.Args().Get(0), Message: ctx.Args().Get(1), Severity: sev}
			if err := a.Validate(); err != nil {
				return err
			}

			config, err := run.LoadConfig(run.FindConfigPath(ctx.String("config")), os.Getenv)
			if err != nil {
				return err
			}
			config.HTTP.Enabled = false

			diagService := diagnostic.NewService(config.Logging, ctx.App.Writer, ctx.App.ErrWriter)
			if err := diagService.Open(); err != nil {
				return fmt.Errorf("init logging: %s", err)
			}
			defer diagService.Close()

			s, err := server.New(config, server.BuildInfo{Version: version, Commit: commit, Branch: branch}, diagService)
			if err != nil {
				return err
			}
			if err := s.Open(); err != nil {
				return err
			}
			defer s.Close()

			summary, err := s.Dispatch(context.Background(), a)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(ctx.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}
