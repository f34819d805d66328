package api

import (
	"context"
	"fmt"

	"github.com/hendrywilliam/tether/src/structs"
)

// Channel API.
// Source: https://discord.com/developers/docs/resources/channel
type ChannelAPI struct {
	rest RESTClient
}

func NewChannelAPI(rest RESTClient) *ChannelAPI {
	return &ChannelAPI{rest: rest}
}

func channelRoute(channelID structs.Snowflake) string {
	return fmt.Sprintf("channels/%s", channelID)
}

// PatchChannel updates the fields set in patch and returns the updated channel.
func (c *ChannelAPI) PatchChannel(ctx context.Context, channelID structs.Snowflake, patch structs.ChannelPatch) (*structs.Channel, error) {
	channel := &structs.Channel{}
	if err := c.rest.Patch(ctx, channelRoute(channelID), patch, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// DeleteChannel deletes the channel and returns it as it was.
func (c *ChannelAPI) DeleteChannel(ctx context.Context, channelID structs.Snowflake) (*structs.Channel, error) {
	channel := &structs.Channel{}
	if err := c.rest.Delete(ctx, channelRoute(channelID), channel); err != nil {
		return nil, err
	}
	return channel, nil
}
