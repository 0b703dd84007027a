package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Referral records who gets the credit for a member that is still in the guild and how
// many points that credit was worth at the time. Stored under invited_by.
type Referral struct {
	InviterID string `json:"inviter"`
	Points    int    `json:"points"`
}

// UnmarshalJSON accepts the structured form and the legacy bare inviter id. A legacy
// entry is upgraded to one point, which is what every credit was worth before multipliers
// existed.
func (r *Referral) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var inviter Snowflake
		if err := json.Unmarshal(data, &inviter); err != nil {
			return fmt.Errorf("legacy invited_by entry: %w", err)
		}
		*r = Referral{InviterID: inviter.String(), Points: 1}
		return nil
	}

	var raw struct {
		Inviter Snowflake `json:"inviter"`
		Points  *int      `json:"points"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.InviterID = raw.Inviter.String()
	r.Points = 1
	if raw.Points != nil {
		r.Points = *raw.Points
	}
	return nil
}
