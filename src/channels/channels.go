// Package channels holds the guild channel maintenance jobs: removing
// top-level text channels, reordering them by name and creating new ones.
package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hendrywilliam/tether/src/api"
	"github.com/hendrywilliam/tether/src/structs"
	"github.com/hendrywilliam/tether/src/utils"
)

var (
	ErrNoGuild     = errors.New("channels: no guild id configured")
	ErrEmptyName   = errors.New("channels: name is empty after sanitizing")
	ErrNoSelection = errors.New("channels: refusing to remove every channel without a name")
)

type Maintainer struct {
	guildID  structs.Snowflake
	guilds   *api.GuildAPI
	channels *api.ChannelAPI
	messages *api.MessageAPI
	log      *slog.Logger
}

func NewMaintainer(rest api.RESTClient, guildID structs.Snowflake, log *slog.Logger) (*Maintainer, error) {
	if guildID == 0 {
		return nil, ErrNoGuild
	}
	if log == nil {
		log = slog.Default()
	}
	return &Maintainer{
		guildID:  guildID,
		guilds:   api.NewGuildAPI(rest),
		channels: api.NewChannelAPI(rest),
		messages: api.NewMessageAPI(rest),
		log:      log.With("guild_id", guildID.String()),
	}, nil
}

// topLevelText reports whether c is a text channel outside any category.
func topLevelText(c structs.Channel) bool {
	return c.ParentID == nil && c.Type == structs.ChannelTypeGuildText
}

// RemoveOptions selects the channels Remove deletes. Name is sanitized before
// matching; an empty Name needs All.
type RemoveOptions struct {
	Name string
	All  bool
}

// Remove deletes the matching top-level text channels. A failed delete does not
// stop the others; the returned slice holds the channels that were deleted.
func (m *Maintainer) Remove(ctx context.Context, opts RemoveOptions) ([]structs.Channel, error) {
	name := utils.SanitizeChannelName(opts.Name)
	if name == "" && !opts.All {
		if opts.Name != "" {
			return nil, ErrEmptyName
		}
		return nil, ErrNoSelection
	}

	all, err := m.guilds.Channels(ctx, m.guildID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	var (
		removed []structs.Channel
		errs    []error
	)
	for _, c := range all {
		if !topLevelText(c) || (name != "" && c.Name != name) {
			continue
		}
		deleted, err := m.channels.DeleteChannel(ctx, c.ID)
		if err != nil {
			m.log.Error("failed to delete channel", "channel_id", c.ID.String(), "name", c.Name, "error", err)
			errs = append(errs, fmt.Errorf("delete %s (%s): %w", c.Name, c.ID, err))
			continue
		}
		m.log.Info("channel deleted", "channel_id", deleted.ID.String(), "name", c.Name)
		removed = append(removed, *deleted)
	}
	m.log.Info("remove finished", "channels", len(all), "removed", len(removed))
	return removed, errors.Join(errs...)
}

// Sort orders the top-level text channels whose topic starts with topicPrefix
// by name, descending, and patches the positions that changed. Positions count
// down from the total number of guild channels. An empty prefix selects every
// top-level text channel.
func (m *Maintainer) Sort(ctx context.Context, topicPrefix string) ([]structs.Channel, error) {
	all, err := m.guilds.Channels(ctx, m.guildID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	var selected []structs.Channel
	for _, c := range all {
		if !topLevelText(c) {
			continue
		}
		if topicPrefix != "" && (c.Topic == nil || !strings.HasPrefix(*c.Topic, topicPrefix)) {
			continue
		}
		selected = append(selected, c)
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Name > selected[j].Name })

	var patched []structs.Channel
	position := len(all)
	for _, c := range selected {
		m.log.Debug("channel position", "channel_id", c.ID.String(), "name", c.Name, "from", c.Position, "to", position)
		if c.Position != position {
			pos := position
			updated, err := m.channels.PatchChannel(ctx, c.ID, structs.ChannelPatch{Position: &pos})
			if err != nil {
				return patched, fmt.Errorf("move %s (%s) to %d: %w", c.Name, c.ID, pos, err)
			}
			patched = append(patched, *updated)
		}
		position--
	}
	m.log.Info("sort finished", "channels", len(all), "selected", len(selected), "moved", len(patched))
	return patched, nil
}

type CreateOptions struct {
	Name     string
	Topic    string
	ParentID structs.Snowflake
	// Announce is posted into the new channel when set.
	Announce string
}

// Create makes a text channel named after the sanitized Name.
func (m *Maintainer) Create(ctx context.Context, opts CreateOptions) (*structs.Channel, error) {
	name := utils.SanitizeChannelName(opts.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	var topic *string
	if opts.Topic != "" {
		topic = &opts.Topic
	}
	var parent *structs.Snowflake
	if opts.ParentID != 0 {
		parent = &opts.ParentID
	}

	channel, err := m.guilds.CreateChannel(ctx, m.guildID, structs.NewGuildChannelCreate(structs.ChannelTypeGuildText, name, topic, parent))
	if err != nil {
		return nil, fmt.Errorf("create channel %s: %w", name, err)
	}
	m.log.Info("channel created", "channel_id", channel.ID.String(), "name", channel.Name)

	if opts.Announce != "" {
		msg, err := m.messages.CreateMessage(ctx, channel.ID, structs.CreateMessageData{Content: opts.Announce})
		if err != nil {
			return channel, fmt.Errorf("announce in %s: %w", channel.Name, err)
		}
		m.log.Debug("announcement posted", "channel_id", channel.ID.String(), "message_id", msg.ID.String())
	}
	return channel, nil
}
