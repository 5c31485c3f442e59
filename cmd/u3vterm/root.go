package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/kevmo314/go-u3vterm/pkg/config"
	"github.com/kevmo314/go-u3vterm/pkg/console"
	"github.com/kevmo314/go-u3vterm/pkg/log"
	"github.com/kevmo314/go-u3vterm/pkg/poll"
	"github.com/kevmo314/go-u3vterm/pkg/terminal"
	"github.com/kevmo314/go-u3vterm/pkg/uvcp"
)

var (
	errCommandArgs = errors.New("--command does not take positional arguments")
	errModeRange   = errors.New("invalid interactive mode value")
)

// app holds everything a run touches outside the process.
type app struct {
	open      opener
	console   console.Terminal
	clock     poll.Clock
	stdout    io.Writer
	stderr    io.Writer
	logOutput io.Writer
}

type options struct {
	configPath string
	command    string
	mode       int
	get        bool
	put        bool
	reset      bool
	password   string
	serial     string
	vendorID   config.ID
	productID  config.ID
	fd         int
	verbose    bool
}

func newRootCmd(a *app) *cobra.Command {
	opts := &options{
		mode:      config.DefaultInteractiveMode,
		vendorID:  config.DefaultVendorID,
		productID: config.DefaultProductID,
	}
	cmd := &cobra.Command{
		Use:   "u3vterm [flags] [command...]",
		Short: "Remote shell and file transfer for USB3 Vision cameras",
		Long: `u3vterm talks to the terminal service of a USB3 Vision camera over its
control channel. With no command it opens an interactive shell; otherwise it
runs the command, prints the output and exits.

Inside a shell, u3vget <remote> <local> and u3vput <local> <remote> copy files.
The terminal password may also be given in ` + config.PasswordEnv + `.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	// Everything from the first positional argument on is the remote command.
	flags.SetInterspersed(false)
	flags.StringVarP(&opts.command, "command", "c", "", "run one command and exit")
	flags.IntVarP(&opts.mode, "interactive", "i", opts.mode, "force interactive mode 1 (line) or 2 (raw)")
	flags.BoolVar(&opts.get, "get", false, "download: --get <remote> <local>")
	flags.BoolVar(&opts.put, "put", false, "upload: --put <local> <remote>")
	flags.BoolVarP(&opts.reset, "reset", "r", false, "reset the remote shell before running")
	flags.StringVarP(&opts.password, "password", "p", "", "terminal password")
	flags.StringVar(&opts.serial, "id", "", "select the camera with this serial number")
	flags.Var(&opts.vendorID, "vid", "USB vendor id")
	flags.Var(&opts.productID, "pid", "USB product id")
	flags.IntVar(&opts.fd, "fd", -1, "use an already opened usbfs file descriptor")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.u3vterm/config.yaml)")
	cmd.MarkFlagsMutuallyExclusive("command", "get", "put")
	return cmd
}

// plan returns the one-shot command to run, or interactive when there is
// none.
func (o *options) plan(args []string) (command string, interactive bool, err error) {
	if o.mode < 0 || o.mode > 0xFFFF {
		return "", false, fmt.Errorf("%w: %d", errModeRange, o.mode)
	}
	switch {
	case o.get || o.put:
		verb, flag := terminal.VerbGet, "--get"
		if o.put {
			verb, flag = terminal.VerbPut, "--put"
		}
		if len(args) != 2 {
			return "", false, fmt.Errorf("%s requires 2 arguments, got %d", flag, len(args))
		}
		return verb + " " + args[0] + " " + args[1], false, nil
	case o.command != "":
		if len(args) > 0 {
			return "", false, errCommandArgs
		}
		return o.command, false, nil
	case len(args) > 0:
		return strings.Join(args, " "), false, nil
	}
	return "", true, nil
}

// apply lays explicitly set flags over the loaded configuration.
func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("vid") {
		cfg.VendorID = o.vendorID
	}
	if flags.Changed("pid") {
		cfg.ProductID = o.productID
	}
	if flags.Changed("id") {
		cfg.Serial = o.serial
	}
	if flags.Changed("password") {
		cfg.Password = o.password
	}
	if flags.Changed("interactive") {
		cfg.InteractiveMode = o.mode
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
}

func (a *app) run(cmd *cobra.Command, opts *options, args []string) (err error) {
	command, interactive, err := opts.plan(args)
	if err != nil {
		return err
	}

	path := opts.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts.apply(cmd, cfg)

	logger, err := log.New(log.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: a.logOutput})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	link, fields, err := a.open(cfg, opts.fd, logger)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(link))
	logger = logger.With(fields...)
	logger.Info("device opened")

	client := uvcp.NewClient(link, uvcp.WithLogger(logger), uvcp.WithClock(a.clock))
	s := terminal.NewSession(uvcp.NewRegisters(client),
		terminal.WithLogger(logger),
		terminal.WithClock(a.clock),
		terminal.WithOutput(a.stdout, a.stderr))
	if err := s.Initialize(); err != nil {
		return err
	}
	s.SetPassword(cfg.Password)
	defer multierr.AppendInvoke(&err, multierr.Invoke(s.Lock))

	mode := cfg.InteractiveMode
	if interactive {
		if mode, err = s.ResolveMode(mode); err != nil {
			return err
		}
		s.SetEchoEnabled(mode == terminal.ModeRaw)
	} else {
		s.SetEchoEnabled(false)
	}

	if opts.reset {
		if err := s.Reset(); err != nil {
			return err
		}
	}
	if interactive {
		return s.Interactive(mode, a.console)
	}
	return s.RunOnce(command)
}
