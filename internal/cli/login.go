package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bringyour/byctl/internal/cache"
	"github.com/bringyour/byctl/internal/session"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		code          string
		user          string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with an auth code or a user and password",
		Long: `Log in and store the network token in the session file.

Either pass an auth code from the web dashboard:

  byctl login --code <auth_code>

or a user (email or phone) with the password on stdin:

  echo "$PASSWORD" | byctl login --user me@example.com --password-stdin`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, rootOpts, code, user, passwordStdin)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "auth code from the web dashboard")
	cmd.Flags().StringVar(&user, "user", "", "email or phone number")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.MarkFlagsMutuallyExclusive("code", "user")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *RootOptions, code, user string, passwordStdin bool) error {
	code = strings.TrimSpace(code)
	user = strings.TrimSpace(user)
	if code == "" && user == "" {
		return NewExitError(ExitCommandError, "either --code or --user is required")
	}

	client, err := opts.client(false)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	sess := session.Session{UserAuth: user}
	if code != "" {
		jwt, err := client.LoginWithCode(ctx, code)
		if err != nil {
			return apiFailure("login", err)
		}
		sess.JWT = jwt
	} else {
		if !passwordStdin {
			return NewExitError(ExitCommandError, "--user requires --password-stdin")
		}
		password, err := readPassword(cmd)
		if err != nil {
			return WrapExitError(ExitCommandError, "read password", err)
		}
		res, err := client.LoginWithPassword(ctx, user, password)
		if err != nil {
			return apiFailure("login", err)
		}
		if res.VerificationRequired {
			return NewExitError(ExitFailure, fmt.Sprintf("%s must be verified first: follow the link sent to it, then log in again", user))
		}
		sess.JWT = res.JWT
		sess.NetworkName = res.NetworkName
	}

	if err := session.Save(opts.cfg.SessionPath, sess); err != nil {
		return WrapExitError(ExitFailure, "save session", err)
	}
	opts.logger.Debug("session saved", "path", opts.cfg.SessionPath)

	if sess.NetworkName != "" {
		return opts.renderer(cmd).Message("Logged in to %s.", sess.NetworkName)
	}
	return opts.renderer(cmd).Message("Logged in.")
}

func readPassword(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		if err != nil {
			return "", err
		}
		return "", fmt.Errorf("password is empty")
	}
	return password, nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "Forget the stored token and cached devices",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := session.Clear(rootOpts.cfg.SessionPath); err != nil {
				return WrapExitError(ExitFailure, "logout", err)
			}
			clearCache(cmd.Context(), rootOpts)
			return rootOpts.renderer(cmd).Message("Logged out.")
		},
	}
}

// clearCache drops cached devices; a missing or broken cache is only logged.
func clearCache(ctx context.Context, opts *RootOptions) {
	c, err := cache.Open(opts.cfg.CachePath)
	if err != nil {
		opts.logger.Warn("open device cache", "error", err)
		return
	}
	defer c.Close()
	if err := c.Clear(ctx); err != nil {
		opts.logger.Warn("clear device cache", "error", err)
	}
}
