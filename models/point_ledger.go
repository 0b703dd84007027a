package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// PointLedger maps a referrer to their cumulative points. It remembers the order in which
// referrers were first credited so leaderboard ties stay stable; that order survives a
// save/load cycle because the JSON object is written and read key by key.
type PointLedger struct {
	order  []string
	points map[string]int
}

func NewPointLedger() *PointLedger {
	return &PointLedger{points: make(map[string]int)}
}

// Get returns the balance for referrerID, 0 when absent.
func (l *PointLedger) Get(referrerID string) int {
	if l == nil {
		return 0
	}
	return l.points[referrerID]
}

// Has reports whether referrerID has ever been credited.
func (l *PointLedger) Has(referrerID string) bool {
	if l == nil {
		return false
	}
	_, ok := l.points[referrerID]
	return ok
}

// Set stores a balance. Negative values are clamped to zero; entries are never removed.
func (l *PointLedger) Set(referrerID string, points int) {
	if points < 0 {
		points = 0
	}
	if l.points == nil {
		l.points = make(map[string]int)
	}
	if _, ok := l.points[referrerID]; !ok {
		l.order = append(l.order, referrerID)
	}
	l.points[referrerID] = points
}

// Len returns the number of referrers in the ledger.
func (l *PointLedger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// Total sums every balance.
func (l *PointLedger) Total() int {
	total := 0
	if l == nil {
		return total
	}
	for _, p := range l.points {
		total += p
	}
	return total
}

// Each visits entries in first-credited order. Returning false stops the walk.
func (l *PointLedger) Each(fn func(referrerID string, points int) bool) {
	if l == nil {
		return
	}
	for _, id := range l.order {
		if !fn(id, l.points[id]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (l *PointLedger) Clone() *PointLedger {
	out := NewPointLedger()
	l.Each(func(id string, p int) bool {
		out.Set(id, p)
		return true
	})
	return out
}

func (l *PointLedger) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range l.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", l.points[id])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (l *PointLedger) UnmarshalJSON(data []byte) error {
	l.order = nil
	l.points = make(map[string]int)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("point ledger: expected object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("point ledger: unexpected key %v", tok)
		}
		var points int
		if err := dec.Decode(&points); err != nil {
			return fmt.Errorf("point ledger: value for %s: %w", key, err)
		}
		l.Set(key, points)
	}
	_, err = dec.Token()
	return err
}
