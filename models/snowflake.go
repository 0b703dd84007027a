package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Snowflake is a Discord id. Older state files written by the first version of the bot
// stored channel, role and message ids as bare JSON numbers, so decoding accepts both
// numbers and strings. Encoding always writes a string.
type Snowflake string

func (s Snowflake) String() string {
	return string(s)
}

// IsZero reports whether the id is unset.
func (s Snowflake) IsZero() bool {
	return s == "" || s == "0"
}

func (s *Snowflake) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Snowflake(str)
		return nil
	}
	// Python json writes 64-bit ids as plain integers; keep every digit.
	if _, err := strconv.ParseUint(string(data), 10, 64); err != nil {
		return fmt.Errorf("invalid snowflake %s: %w", data, err)
	}
	*s = Snowflake(data)
	return nil
}
