package main

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/massctl/internal/auth"
	"github.com/desertthunder/massctl/internal/shared"
	"github.com/urfave/cli/v3"
)

// serverAddress resolves the target from the flag, then the saved setting, then config.
func (r *Runner) serverAddress(ctx context.Context, cmd *cli.Command, arg string) (string, int, error) {
	raw, port := cmp.Or(arg, cmd.String("url")), cmd.Int("port")
	if raw != "" {
		return raw, cmp.Or(port, r.config.Server.Port), nil
	}

	raw, saved := r.savedAddress(ctx)
	if raw == "" {
		return "", 0, fmt.Errorf("%w: server address (pass --url or set server.url)", shared.ErrMissingArgument)
	}
	return raw, cmp.Or(port, saved), nil
}

// savedAddress returns the saved server and port, falling back to config.
func (r *Runner) savedAddress(ctx context.Context) (string, int) {
	raw, port := r.config.Server.URL, r.config.Server.Port
	if saved, ok, err := r.settings.Get(ctx, auth.SettingServerURL); err == nil && ok && saved != "" {
		raw = saved
		if p, ok, err := r.settings.GetInt(ctx, auth.SettingPort); err == nil && ok {
			port = p
		}
	}
	return raw, port
}

// AuthDetect probes a server and prints its login method.
func (r *Runner) AuthDetect(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	raw, port, err := r.serverAddress(ctx, cmd, cmd.StringArg("url"))
	if err != nil {
		return err
	}
	target, err := auth.Address(raw, port)
	if err != nil {
		return err
	}

	r.logger.Info("detecting auth strategy", "url", target)
	strategy, err := r.manager.Detect(ctx, target)
	if err != nil {
		return fmt.Errorf("%s: %w", auth.UserMessage(err), err)
	}

	r.writePlain("Server:   %s\n", target)
	r.writePlain("Strategy: %s\n", strategy.Kind)
	if strategy.AuthServerURL != "" {
		r.writePlain("Portal:   %s\n", strategy.AuthServerURL)
		if cmd.Bool("open") {
			if err := shared.OpenBrowser(strategy.AuthServerURL); err != nil {
				r.logger.Warn("could not open portal", "error", err)
			}
		}
	}
	switch {
	case !strategy.NeedsCredentials():
		r.writePlain("No login required.\n")
	case strategy.PreConnect():
		r.writePlain("Credentials are checked before the connection opens.\n")
	default:
		r.writePlain("Credentials are checked over the connection.\n")
	}
	return nil
}

// AuthLogin signs in and saves the session for later commands.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	raw, port, err := r.serverAddress(ctx, cmd, "")
	if err != nil {
		return err
	}

	req := auth.LoginRequest{
		ServerURL:     raw,
		Port:          port,
		OwnerName:     cmp.Or(cmd.String("owner"), r.config.Server.OwnerName, cmd.String("username")),
		Username:      cmd.String("username"),
		Password:      cmd.String("password"),
		AuthServerURL: cmd.String("auth-server"),
	}
	if name := cmd.String("strategy"); name != "" {
		kind, err := auth.ParseKind(name)
		if err != nil {
			return err
		}
		req.Strategy = &auth.Strategy{Kind: kind}
	}

	if err := r.manager.SignIn(ctx, req); err != nil {
		return fmt.Errorf("%s: %w", auth.UserMessage(err), err)
	}

	s := r.manager.Session()
	r.logger.Info("signed in", "url", s.ServerURL, "strategy", s.Strategy)
	r.writePlain("✓ Connected to %s\n", s.ServerURL)
	if s.ServerInfo != nil {
		r.writePlain("  Server version: %s (schema %d)\n", s.ServerInfo.ServerVersion, s.ServerInfo.SchemaVersion)
	}
	if s.Username != "" {
		r.writePlain("  Signed in as: %s\n", s.Username)
	}
	return nil
}

// AuthStatus prints the saved session and, with --connect, the live state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	settings, err := r.settings.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	keys, err := r.secrets.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to read secrets: %w", err)
	}

	r.writePlainHeader("Saved session")
	if settings[auth.SettingServerURL] == "" {
		r.writePlain("No saved server. Run 'massctl auth login'.\n")
		return nil
	}
	for _, k := range []string{auth.SettingServerURL, auth.SettingPort, auth.SettingOwnerName, auth.SettingUsername, auth.SettingAuthServerURL} {
		if v := settings[k]; v != "" {
			r.writePlain("%-16s %s\n", k, v)
		}
	}
	for _, k := range []string{auth.SecretPassword, auth.SecretToken, auth.SecretCredentials} {
		mark := "✗"
		if slices.Contains(keys, k) {
			mark = "✓"
		}
		r.writePlain("%-16s %s\n", k, mark)
	}

	if !cmd.Bool("connect") {
		return nil
	}

	restoreErr := r.manager.Restore(ctx)
	s := r.manager.Session()
	r.writePlainln("State: %s", s.State)
	if restoreErr != nil {
		return r.writePlain("✗ %s\n", auth.UserMessage(restoreErr))
	}
	return r.writePlain("✓ Authenticated (%s)\n", s.Strategy)
}

// AuthLogout disconnects and deletes stored credentials, keeping the server address.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.manager.Logout(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}
