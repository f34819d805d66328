package structs

// GatewayResponse is the body of GET /gateway.
type GatewayResponse struct {
	URL string `json:"url"`
}

type HelloEvent struct {
	HeartbeatInterval uint64 `json:"heartbeat_interval"`
}

type IdentifyEventProperties struct {
	Os      string `json:"$os"`
	Browser string `json:"$browser"`
	Device  string `json:"$device"`
}

type IdentifyEvent struct {
	Token      string                  `json:"token"`
	Intents    uint64                  `json:"intents"`
	Properties IdentifyEventProperties `json:"properties"`
	V          int                     `json:"v"`
}

type ReadyEvent struct {
	V                int    `json:"v"`
	User             User   `json:"user"`
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	Shard            []uint `json:"shard,omitempty"`
}
