package orderbookv1

import (
	"encoding/json"
	"fmt"
)

// Side is the side of the book an order rests on.
type Side string

const (
	// Buy orders rest on the bid side.
	Buy Side = "buy"
	// Sell orders rest on the ask side.
	Sell Side = "sell"
)

// ParseSide converts a feed side string into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Buy, Sell:
		return Side(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// IsBid checks if the side is the bid (buy) side.
func (s Side) IsBid() bool {
	return s == Buy
}

// IsValid reports whether s is Buy or Sell.
func (s Side) IsValid() bool {
	return s == Buy || s == Sell
}

// UnmarshalJSON rejects anything that is not "buy" or "sell".
func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	side, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = side
	return nil
}
