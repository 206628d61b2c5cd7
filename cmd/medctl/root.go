package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/geocoder89/medportal/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is the state shared by every command once flags and config are read.
type app struct {
	v       *viper.Viper
	session *client.Session
}

func (a *app) client() *client.Client { return a.session.Client() }

// ctx bounds a single command; the CLI never holds a request open longer.
func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.v.GetDuration("timeout"))
}

// restore loads the stored session and applies the role guard.
func (a *app) restore(cmd *cobra.Command, roles ...client.Role) error {
	ctx, cancel := a.ctx(cmd)
	defer cancel()

	if _, err := a.session.Restore(ctx); err != nil {
		if errors.Is(err, client.ErrSessionExpired) {
			return fmt.Errorf("%w (run `medctl login`)", err)
		}
		return err
	}

	err := a.session.Require(roles...)
	switch {
	case errors.Is(err, client.ErrNotAuthenticated):
		return fmt.Errorf("not logged in (run `medctl login`)")
	case errors.Is(err, client.ErrForbidden):
		return fmt.Errorf("this command needs one of the roles %v", roles)
	}
	return err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MEDCTL")
	v.AutomaticEnv()

	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("token_file", defaultTokenFile())
	v.SetDefault("timeout", 15*time.Second)
	v.SetDefault("debug", false)

	v.SetConfigName(".medctl")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	return v
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".medctl-tokens.json"
	}
	return filepath.Join(dir, "medctl", "tokens.json")
}

func newRootCmd() *cobra.Command {
	a := &app{v: newViper()}

	root := &cobra.Command{
		Use:           "medctl",
		Short:         "Command line client for the medportal API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var notFound viper.ConfigFileNotFoundError
			if err := a.v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}

			level := slog.LevelWarn
			if a.v.GetBool("debug") {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			c, err := client.New(a.v.GetString("base_url"),
				client.WithTokenStore(client.NewFileTokenStore(a.v.GetString("token_file"))),
				client.WithUserAgent("medctl"),
				client.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			a.session = client.NewSession(c)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("base-url", "", "API server URL (env MEDCTL_BASE_URL)")
	pf.String("token-file", "", "where the session tokens are kept (env MEDCTL_TOKEN_FILE)")
	pf.Duration("timeout", 0, "per-request timeout (env MEDCTL_TIMEOUT)")
	pf.Bool("debug", false, "log client internals to stderr")

	for key, flag := range map[string]string{
		"base_url":   "base-url",
		"token_file": "token-file",
		"timeout":    "timeout",
		"debug":      "debug",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		registerCmd(a),
		passwdCmd(a),
		patientsCmd(a),
		doctorsCmd(a),
		mappingsCmd(a),
		usersCmd(a),
		settingsCmd(a),
		statsCmd(a),
		reportCmd(a),
	)

	return root
}
