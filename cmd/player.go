package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/massctl/internal/formatter"
	"github.com/desertthunder/massctl/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlayerList prints every known player.
func (r *Runner) PlayerList(ctx context.Context, cmd *cli.Command) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	players, err := r.client.Players(ctx)
	if err != nil {
		return fmt.Errorf("failed to list players: %w", err)
	}
	return r.render(formatter.Players(f, players))
}

// PlayerPlay queues the URIs given as arguments on a player.
func (r *Runner) PlayerPlay(ctx context.Context, cmd *cli.Command) error {
	uris := cmd.Args().Slice()
	if len(uris) == 0 {
		return fmt.Errorf("%w: at least one URI", shared.ErrMissingArgument)
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	player := cmd.String("player")
	if err := r.client.PlayMedia(ctx, player, uris, cmd.String("option")); err != nil {
		return fmt.Errorf("failed to play media: %w", err)
	}
	r.logger.Info("media queued", "player", player, "count", len(uris))
	return r.writePlain("✓ Queued %d item(s) on %s\n", len(uris), player)
}

// PlayerCmd sends a transport command to a player.
func (r *Runner) PlayerCmd(ctx context.Context, cmd *cli.Command) error {
	command := cmd.StringArg("command")
	if command == "" {
		return fmt.Errorf("%w: command", shared.ErrMissingArgument)
	}
	if err := r.connect(ctx); err != nil {
		return err
	}

	player := cmd.String("player")
	if err := r.client.PlayerCommand(ctx, player, command); err != nil {
		return fmt.Errorf("failed to send %s: %w", command, err)
	}
	return r.writePlain("✓ %s sent to %s\n", command, player)
}
