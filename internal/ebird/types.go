// Package ebird provides a client for interacting with the eBird API v2
package ebird

import (
	"strconv"
	"time"
)

// Observation represents a single recent-observation record as returned by
// the eBird API. The observation date is free text and not guaranteed to be
// machine-parseable; HowMany is zero when the report did not include a count.
type Observation struct {
	SpeciesCode     string  `json:"speciesCode"`
	CommonName      string  `json:"comName"`
	ScientificName  string  `json:"sciName"`
	LocationID      string  `json:"locId"`
	LocationName    string  `json:"locName"`
	ObservationDate string  `json:"obsDt"`
	HowMany         int     `json:"howMany,omitempty"`
	Latitude        float64 `json:"lat,omitempty"`
	Longitude       float64 `json:"lng,omitempty"`
	Valid           bool    `json:"obsValid,omitempty"`
	Reviewed        bool    `json:"obsReviewed,omitempty"`
	Private         bool    `json:"locationPrivate,omitempty"`
}

// CountLabel returns the reported individual count for display, using the
// eBird "X" sentinel when no count was reported.
func (o *Observation) CountLabel() string {
	if o.HowMany <= 0 {
		return "X"
	}
	return strconv.Itoa(o.HowMany)
}

// Config holds configuration for the eBird client
type Config struct {
	APIKey      string        `json:"api_key"`
	BaseURL     string        `json:"base_url"`
	Timeout     time.Duration `json:"timeout"`
	CacheTTL    time.Duration `json:"cache_ttl"`
	RateLimitMS int           `json:"rate_limit_ms"` // Milliseconds between requests
}

// Error represents an eBird API error response
type Error struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (e *Error) Error() string {
	return e.Detail
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.ebird.org/v2",
		Timeout:     30 * time.Second,
		CacheTTL:    5 * time.Minute, // Recent observations change quickly
		RateLimitMS: 100,             // 10 requests per second max
	}
}
