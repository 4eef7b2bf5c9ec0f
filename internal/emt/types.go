package emt

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Token is a bearer credential obtained from the login endpoint. The API
// supplies no expiry; staleness only shows up as a rejected request.
type Token struct {
	AccessToken string
	ObtainedAt  time.Time
}

// loginResponse is the login endpoint envelope.
type loginResponse struct {
	Data []struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

// StopsResponse is the stop-list endpoint envelope. Code "00" means
// success; anything else is a business error carried inside a 200.
type StopsResponse struct {
	Code        string     `json:"code"`
	Description string     `json:"description"`
	Data        []StopData `json:"data"`
}

// StopData is one stop as it appears on the wire.
type StopData struct {
	Node     string   `json:"node"`
	Name     string   `json:"name"`
	Wifi     string   `json:"wifi"`
	Lines    []string `json:"lines"`
	Geometry Geometry `json:"geometry"`
}

// Geometry is a GeoJSON-style point. Coordinates are [longitude, latitude].
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// ArrivalResponse is the arrivals endpoint envelope.
type ArrivalResponse struct {
	Code        string        `json:"code"`
	Description string        `json:"description"`
	DateTime    string        `json:"datetime"`
	Data        []ArrivalData `json:"data"`
}

// ArrivalData groups the arrival estimates and stop metadata for one stop.
type ArrivalData struct {
	Arrive    []BusArrival      `json:"Arrive"`
	StopInfo  []StopInfo        `json:"StopInfo"`
	ExtraInfo []string          `json:"ExtraInfo"`
	Incident  map[string]string `json:"Incident"`
}

// BusArrival is a single arrival estimate.
type BusArrival struct {
	Line            string    `json:"line"`
	Stop            string    `json:"stop"`
	IsHead          string    `json:"isHead"`
	Destination     string    `json:"destination"`
	Deviation       int       `json:"deviation"`
	Bus             int       `json:"bus"`
	Geometry        *Geometry `json:"geometry"`
	EstimateArrive  FlexInt   `json:"estimateArrive"`
	DistanceBus     int       `json:"DistanceBus"`
	PositionTypeBus string    `json:"positionTypeBus"`
}

// StopInfo is the stop metadata block inside an arrivals response.
type StopInfo struct {
	Lines     []LineDetail `json:"lines"`
	StopID    string       `json:"stopId"`
	StopName  string       `json:"stopName"`
	Geometry  *Geometry    `json:"geometry"`
	Direction string       `json:"Direction"`
	Forecolor string       `json:"forecolor"`
}

// LineDetail describes one line serving a stop.
type LineDetail struct {
	Label            string `json:"label"`
	Line             string `json:"line"`
	NameA            string `json:"nameA"`
	NameB            string `json:"nameB"`
	MetersFromHeader int    `json:"metersFromHeader"`
	To               string `json:"to"`
	Color            string `json:"color"`
	Forecolor        string `json:"forecolor"`
}

// FlexInt decodes a JSON number or numeric string as an int. The API
// returns estimateArrive in either form depending on the stop; anything
// that parses as neither decodes to 0. That default is part of the
// client contract, not an error.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = FlexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = FlexInt(n)
			return nil
		}
	}
	*f = 0
	return nil
}

// FormatETA renders an arrival estimate in seconds as display text.
func FormatETA(seconds int) string {
	if seconds < 60 {
		return strconv.Itoa(seconds) + " seg"
	}
	return strconv.Itoa(seconds/60) + " min"
}
