package cli

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/config"
	"github.com/bringyour/byctl/internal/output"
	"github.com/bringyour/byctl/internal/poll"
	"github.com/bringyour/byctl/internal/session"
)

// RootOptions holds global flags for all commands, plus what
// PersistentPreRunE resolves from them.
type RootOptions struct {
	ConfigPath string
	Format     string // "text" | "json" | "yaml"
	Verbose    bool
	Poll       time.Duration

	format   output.Format
	cfg      config.Config
	logger   *slog.Logger
	sessions *poll.Registry // poll sessions started by the running command
}

// NewRootCommand creates the root command for the byctl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{sessions: poll.NewRegistry()}

	cmd := &cobra.Command{
		Use:   "byctl",
		Short: "byctl - manage a BringYour network from the terminal",
		Long: `Manage the devices of a BringYour network: list them, switch who they
provide to, pair them with share and adopt codes, and redeem balance codes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output on stderr")
	cmd.PersistentFlags().DurationVar(&opts.Poll, "poll", 0, "status poll interval (default from config, 2s)")

	// Add subcommands
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewDevicesCommand(opts))
	cmd.AddCommand(NewProvideCommand(opts))
	cmd.AddCommand(NewDeviceCommand(opts))
	cmd.AddCommand(NewShareCommand(opts))
	cmd.AddCommand(NewAdoptCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewDashCommand(opts))
	cmd.AddCommand(NewLogsCommand(opts))

	return cmd
}

func (o *RootOptions) resolve(cmd *cobra.Command) error {
	format, err := output.ParseFormat(o.Format)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --format", err)
	}
	o.format = format
	o.logger = newLogger(cmd.ErrOrStderr(), o.Verbose)

	if err := config.LoadDotEnv("."); err != nil {
		o.logger.Warn("ignoring .env", "error", err)
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if o.Poll > 0 {
		cfg.PollInterval = o.Poll
	}
	o.cfg = cfg
	o.logger.Debug("config loaded", "api_url", cfg.APIURL, "poll_interval", cfg.PollInterval, "session", cfg.SessionPath)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) renderer(cmd *cobra.Command) *output.Renderer {
	return output.New(o.format, cmd.OutOrStdout())
}

// session returns the stored session with BY_JWT taking precedence.
func (o *RootOptions) session() session.Session {
	sess, _ := session.Load(o.cfg.SessionPath)
	if o.cfg.JWT != "" {
		sess.JWT = o.cfg.JWT
	}
	return sess
}

// client builds an API client. With requireLogin the session must hold a token.
func (o *RootOptions) client(requireLogin bool) (*api.Client, error) {
	clientOpts := []api.Option{api.WithTimeout(o.cfg.RequestTimeout)}
	if sess := o.session(); sess.LoggedIn() {
		clientOpts = append(clientOpts, api.WithToken(sess.JWT))
	} else if requireLogin {
		return nil, NewExitError(ExitCommandError, "not logged in: run `byctl login` or set BY_JWT")
	}
	c, err := api.NewClient(o.cfg.APIURL, clientOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid api url", err)
	}
	return c, nil
}

func (o *RootOptions) pollOptions() []poll.Option {
	return []poll.Option{
		poll.WithInterval(o.cfg.PollInterval),
		poll.WithLogger(o.logger),
		poll.WithRegistry(o.sessions),
	}
}

// interactive reports whether progress can be drawn on w.
func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
