package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CityID is the opaque identifier the remote store assigns to a city.
type CityID string

// String returns the id as plain text.
func (id CityID) String() string {
	return string(id)
}

// UnmarshalJSON accepts both string and numeric ids. json-server style stores
// emit numbers, our own store emits uuid strings.
func (id *CityID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("city id: %w", err)
		}
		*id = CityID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("city id must be a string or number: %w", err)
	}
	*id = CityID(n.String())
	return nil
}

// Position is a geographic coordinate.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// City is a visited-place record as persisted by the remote store.
type City struct {
	ID       CityID   `json:"id"`
	CityName string   `json:"cityName"`
	Country  string   `json:"country"`
	Emoji    string   `json:"emoji"`
	Date     string   `json:"date"`
	Notes    string   `json:"notes"`
	Position Position `json:"position"`
}

// Visited parses the ISO-8601 visit date.
func (c City) Visited() (time.Time, error) {
	return parseVisitDate(c.Date)
}

// NewCity is the create payload; the store assigns the id.
type NewCity struct {
	CityName string   `json:"cityName"`
	Country  string   `json:"country"`
	Emoji    string   `json:"emoji"`
	Date     string   `json:"date"`
	Notes    string   `json:"notes"`
	Position Position `json:"position"`
}

// WithID returns the persisted form of the payload.
func (n NewCity) WithID(id CityID) City {
	return City{
		ID:       id,
		CityName: n.CityName,
		Country:  n.Country,
		Emoji:    n.Emoji,
		Date:     n.Date,
		Notes:    n.Notes,
		Position: n.Position,
	}
}

// Validate reports the first problem with the payload, wrapped in ErrBadRequest.
func (n NewCity) Validate() error {
	if strings.TrimSpace(n.CityName) == "" {
		return fmt.Errorf("%w: cityName is required", ErrBadRequest)
	}
	if _, err := parseVisitDate(n.Date); err != nil {
		return fmt.Errorf("%w: date %q is not an ISO-8601 timestamp", ErrBadRequest, n.Date)
	}
	if n.Position.Lat < -90 || n.Position.Lat > 90 {
		return fmt.Errorf("%w: latitude %s out of range", ErrBadRequest, strconv.FormatFloat(n.Position.Lat, 'f', -1, 64))
	}
	if n.Position.Lng < -180 || n.Position.Lng > 180 {
		return fmt.Errorf("%w: longitude %s out of range", ErrBadRequest, strconv.FormatFloat(n.Position.Lng, 'f', -1, 64))
	}
	return nil
}

// Country is derived from the city list, never persisted.
type Country struct {
	Country string `json:"country"`
	Emoji   string `json:"emoji"`
}

// FlagEmoji turns an ISO 3166-1 alpha-2 country code such as "PT" into its
// regional-indicator flag.
func FlagEmoji(countryCode string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if len(code) != 2 {
		return "", fmt.Errorf("%w: country code %q must have two letters", ErrBadRequest, countryCode)
	}
	var b strings.Builder
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: country code %q must have two letters", ErrBadRequest, countryCode)
		}
		b.WriteRune(regionalIndicatorA + (r - 'A'))
	}
	return b.String(), nil
}

const regionalIndicatorA = '\U0001F1E6'

func parseVisitDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
