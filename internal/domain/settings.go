package domain

import (
	"errors"
	"fmt"
	"strings"
)

// TGL marker match modes.
const (
	MatchSubstring = "substring"
	MatchExact     = "exact"
)

// TGL marker fields.
const (
	FieldSummary   = "summary"
	FieldLineItems = "line_items"
)

// ErrInvalidSettings is returned by Settings.Validate for malformed configuration.
var ErrInvalidSettings = errors.New("invalid celebration settings")

// Settings is the operator-supplied configuration passed into every poller
// invocation. It is loaded fresh per run so that admin changes apply without
// a restart.
type Settings struct {
	BigSaleThreshold      float64  `json:"big_sale_threshold" yaml:"big_sale_threshold"`
	TGLMarkerText         string   `json:"tgl_marker_text" yaml:"tgl_marker_text"`
	TGLMatch              string   `json:"tgl_match" yaml:"tgl_match"`
	TGLCaseSensitive      bool     `json:"tgl_case_sensitive" yaml:"tgl_case_sensitive"`
	TGLFields             []string `json:"tgl_fields" yaml:"tgl_fields"`
	PollingEnabled        bool     `json:"polling_enabled" yaml:"polling_enabled"`
	LookbackBufferMinutes int      `json:"lookback_buffer_minutes" yaml:"lookback_buffer_minutes"`
	RecentIDsCacheSize    int      `json:"recent_ids_cache_size" yaml:"recent_ids_cache_size"`
}

// Validate rejects settings the poller cannot run with.
func (s Settings) Validate() error {
	var problems []string
	if s.BigSaleThreshold < 0 {
		problems = append(problems, "big_sale_threshold must be >= 0")
	}
	if strings.TrimSpace(s.TGLMarkerText) == "" {
		problems = append(problems, "tgl_marker_text is required")
	}
	switch s.TGLMatch {
	case MatchSubstring, MatchExact:
	default:
		problems = append(problems, fmt.Sprintf("tgl_match %q is not one of substring|exact", s.TGLMatch))
	}
	if len(s.TGLFields) == 0 {
		problems = append(problems, "tgl_fields must name at least one field")
	}
	for _, f := range s.TGLFields {
		if f != FieldSummary && f != FieldLineItems {
			problems = append(problems, fmt.Sprintf("unknown tgl field %q", f))
		}
	}
	if s.LookbackBufferMinutes < 0 {
		problems = append(problems, "lookback_buffer_minutes must be >= 0")
	}
	if s.RecentIDsCacheSize <= 0 {
		problems = append(problems, "recent_ids_cache_size must be > 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}
