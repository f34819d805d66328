package api

import (
	"context"
	"fmt"

	"github.com/hendrywilliam/tether/src/structs"
)

// Messages API.
// Provide methods to interact with "Messages" event struct.
// Source: https://discord.com/developers/docs/resources/message
type MessageAPI struct {
	rest RESTClient
}

func NewMessageAPI(rest RESTClient) *MessageAPI {
	return &MessageAPI{rest: rest}
}

// Routes
func createMessageRoute(channelID structs.Snowflake) string {
	return fmt.Sprintf("channels/%s/messages", channelID)
}

func (m *MessageAPI) CreateMessage(ctx context.Context, channelID structs.Snowflake, data structs.CreateMessageData) (*structs.Message, error) {
	msg := &structs.Message{}
	if err := m.rest.Post(ctx, createMessageRoute(channelID), data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
