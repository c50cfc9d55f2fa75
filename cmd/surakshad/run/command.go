package run

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/anjihan3601K/suraksha/server"
	"github.com/anjihan3601K/suraksha/services/diagnostic"
)

type Diagnostic interface {
	Error(msg string, err error)
	Starting(version, commit string)
	GoVersion()
	Info(msg string)
}

// Options represents the command line options of "surakshad run".
type Options struct {
	ConfigPath string
	PIDFile    string
	LogFile    string
	LogLevel   string
}

// Command represents the command executed by "surakshad run".
type Command struct {
	Version string
	Branch  string
	Commit  string

	closing chan struct{}
	Closed  chan struct{}

	Stdout io.Writer
	Stderr io.Writer

	Server *server.Server
	Diag   Diagnostic

	diagService *diagnostic.Service
}

// NewCommand return a new instance of Command.
func NewCommand() *Command {
	return &Command{
		closing: make(chan struct{}),
		Closed:  make(chan struct{}),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Run loads the config and starts the server.
// It returns once the server is open, call Close to stop it.
func (cmd *Command) Run(options Options) error {
	config, err := LoadConfig(FindConfigPath(options.ConfigPath), os.Getenv)
	if err != nil {
		return fmt.Errorf("parse config: %s", err)
	}
	if options.LogFile != "" {
		config.Logging.File = options.LogFile
	}
	if options.LogLevel != "" {
		config.Logging.Level = options.LogLevel
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("%s. To generate a configuration file run `surakshad config > suraksha.conf` and fill in the provider credentials", err)
	}

	cmd.diagService = diagnostic.NewService(config.Logging, cmd.Stdout, cmd.Stderr)
	if err := cmd.diagService.Open(); err != nil {
		return fmt.Errorf("init logging: %s", err)
	}
	cmd.Diag = cmd.diagService.NewCmdHandler()

	cmd.Diag.Starting(cmd.Version, cmd.Commit)
	cmd.Diag.GoVersion()

	if err := cmd.writePIDFile(options.PIDFile); err != nil {
		return fmt.Errorf("write pid file: %s", err)
	}

	buildInfo := server.BuildInfo{Version: cmd.Version, Commit: cmd.Commit, Branch: cmd.Branch}
	s, err := server.New(config, buildInfo, cmd.diagService)
	if err != nil {
		return fmt.Errorf("create server: %s", err)
	}
	if err := s.Open(); err != nil {
		return fmt.Errorf("open server: %s", err)
	}
	cmd.Server = s

	go cmd.monitorServerErrors()
	return nil
}

// Close shuts down the server.
func (cmd *Command) Close() error {
	defer close(cmd.Closed)
	close(cmd.closing)
	var err error
	if cmd.Server != nil {
		err = cmd.Server.Close()
	}
	if cmd.diagService != nil {
		cmd.diagService.Close()
	}
	return err
}

func (cmd *Command) monitorServerErrors() {
	for {
		select {
		case err := <-cmd.Server.Err():
			if err != nil {
				cmd.Diag.Error("encountered error", err)
			}
		case <-cmd.closing:
			return
		}
	}
}

// writePIDFile writes the process ID to path.
func (cmd *Command) writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return fmt.Errorf("mkdir: %s", err)
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid), 0666); err != nil {
		return fmt.Errorf("write file: %s", err)
	}
	return nil
}
