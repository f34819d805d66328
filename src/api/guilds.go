package api

import (
	"context"
	"fmt"

	"github.com/hendrywilliam/tether/src/structs"
)

// Guild API.
// Source: https://discord.com/developers/docs/resources/guild
type GuildAPI struct {
	rest RESTClient
}

func NewGuildAPI(rest RESTClient) *GuildAPI {
	return &GuildAPI{rest: rest}
}

// Routes
func guildRoute(guildID structs.Snowflake) string {
	return fmt.Sprintf("guilds/%s", guildID)
}

func guildChannelsRoute(guildID structs.Snowflake) string {
	return fmt.Sprintf("guilds/%s/channels", guildID)
}

func (g *GuildAPI) Guild(ctx context.Context, guildID structs.Snowflake) (*structs.Guild, error) {
	guild := &structs.Guild{}
	if err := g.rest.Get(ctx, guildRoute(guildID), guild); err != nil {
		return nil, err
	}
	return guild, nil
}

func (g *GuildAPI) Channels(ctx context.Context, guildID structs.Snowflake) ([]structs.Channel, error) {
	var channels []structs.Channel
	if err := g.rest.Get(ctx, guildChannelsRoute(guildID), &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (g *GuildAPI) CreateChannel(ctx context.Context, guildID structs.Snowflake, data structs.GuildChannelCreate) (*structs.Channel, error) {
	channel := &structs.Channel{}
	if err := g.rest.Post(ctx, guildChannelsRoute(guildID), data, channel); err != nil {
		return nil, err
	}
	return channel, nil
}
