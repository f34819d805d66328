package structs

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Snowflake is the platform's 64-bit identifier. It travels as a JSON string.
// https://discord.com/developers/docs/reference#snowflakes
type Snowflake uint64

// SnowflakeFromString parses id, returning zero when it is not a valid uint64.
func SnowflakeFromString(id string) Snowflake {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0
	}
	return Snowflake(v)
}

func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Snowflake) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("snowflake must be a string: %w", err)
	}
	v, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid snowflake %q: %w", str, err)
	}
	*s = Snowflake(v)
	return nil
}
