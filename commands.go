package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/hendrywilliam/tether/src/api"
	"github.com/hendrywilliam/tether/src/channels"
	"github.com/hendrywilliam/tether/src/structs"
)

const channelsUsage = `Usage:
  tether [flags] channels remove [--all] [name]
  tether [flags] channels sort [--topic-prefix prefix]
  tether [flags] channels create [--topic t] [--parent id] [--announce text] name

All channel commands act on DISCORD_GUILD_ID.`

// runCommand executes a one-shot maintenance command instead of opening the gateway.
func runCommand(ctx context.Context, args []string, restClient api.RESTClient, guildID structs.Snowflake, log *slog.Logger) error {
	if args[0] != "channels" {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args) < 2 {
		return fmt.Errorf("channels: subcommand required\n\n%s", channelsUsage)
	}
	if guildID == 0 {
		return errors.New("channels: DISCORD_GUILD_ID is required")
	}
	m, err := channels.NewMaintainer(restClient, guildID, log)
	if err != nil {
		return err
	}

	sub, subArgs := args[1], args[2:]
	flagSet := pflag.NewFlagSet("channels "+sub, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	switch sub {
	case "remove":
		all := flagSet.Bool("all", false, "remove every top-level text channel")
		if err := flagSet.Parse(subArgs); err != nil {
			return fmt.Errorf("channels remove: %w", err)
		}
		removed, err := m.Remove(ctx, channels.RemoveOptions{
			Name: strings.Join(flagSet.Args(), " "),
			All:  *all,
		})
		log.Info("channels removed", "count", len(removed))
		return err
	case "sort":
		prefix := flagSet.String("topic-prefix", "", "only sort channels whose topic starts with this")
		if err := flagSet.Parse(subArgs); err != nil {
			return fmt.Errorf("channels sort: %w", err)
		}
		moved, err := m.Sort(ctx, *prefix)
		log.Info("channels moved", "count", len(moved))
		return err
	case "create":
		topic := flagSet.String("topic", "", "channel topic")
		parent := flagSet.String("parent", "", "category id to create the channel under")
		announce := flagSet.String("announce", "", "message to post in the new channel")
		if err := flagSet.Parse(subArgs); err != nil {
			return fmt.Errorf("channels create: %w", err)
		}
		opts := channels.CreateOptions{
			Name:     strings.Join(flagSet.Args(), " "),
			Topic:    *topic,
			Announce: *announce,
		}
		if *parent != "" {
			if opts.ParentID = structs.SnowflakeFromString(*parent); opts.ParentID == 0 {
				return fmt.Errorf("channels create: invalid parent id %q", *parent)
			}
		}
		channel, err := m.Create(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Println(channel.ID.String())
		return nil
	default:
		return fmt.Errorf("channels: unknown subcommand %q\n\n%s", sub, channelsUsage)
	}
}
