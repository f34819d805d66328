package structs

type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator"`
	GlobalName    string    `json:"global_name,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	Email         *string   `json:"email,omitempty"`
	Bot           *bool     `json:"bot,omitempty"`
	System        *bool     `json:"system,omitempty"`
	Flags         *uint64   `json:"flags,omitempty"`
	PublicFlags   *uint64   `json:"public_flags,omitempty"`
}
