package api

import (
	"context"
	"fmt"

	"github.com/hendrywilliam/tether/src/structs"
)

// Gateway API.
// Source: https://discord.com/developers/docs/events/gateway#get-gateway
type GatewayAPI struct {
	rest RESTClient
}

func NewGatewayAPI(rest RESTClient) *GatewayAPI {
	return &GatewayAPI{rest: rest}
}

// GetGateway returns the WebSocket URL to connect to.
func (g *GatewayAPI) GetGateway(ctx context.Context) (structs.GatewayResponse, error) {
	var res structs.GatewayResponse
	if err := g.rest.Get(ctx, "gateway", &res); err != nil {
		return res, fmt.Errorf("get gateway: %w", err)
	}
	if res.URL == "" {
		return res, fmt.Errorf("get gateway: empty url")
	}
	return res, nil
}
