package models

import (
	"encoding/json"
	"time"
)

// Language is the display language of the client.
type Language string

const (
	LanguageZH Language = "zh"
	LanguageEN Language = "en"
)

// Bounds for the configurable durations, in seconds.
const (
	MinSpinDuration     = 1.0
	MaxSpinDuration     = 60.0
	MinConfettiDuration = 1.0
	MaxConfettiDuration = 30.0
)

// GlobalSettings holds the session-wide draw configuration.
// Durations are in seconds, matching what the client stores.
type GlobalSettings struct {
	SpinDuration     float64  `json:"spinDuration"`
	ConfettiDuration float64  `json:"confettiDuration"`
	RemoveAfterWin   bool     `json:"removeAfterWin"`
	Language         Language `json:"language"`
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings() GlobalSettings {
	return GlobalSettings{
		SpinDuration:     5,
		ConfettiDuration: 5,
		RemoveAfterWin:   true,
		Language:         LanguageZH,
	}
}

// SpinDurationValue returns the clamped spin duration as a time.Duration.
func (s GlobalSettings) SpinDurationValue() time.Duration {
	return time.Duration(clamp(s.SpinDuration, MinSpinDuration, MaxSpinDuration) * float64(time.Second))
}

// Normalize clamps durations into range and resets an unknown language.
func (s GlobalSettings) Normalize() GlobalSettings {
	s.SpinDuration = clamp(s.SpinDuration, MinSpinDuration, MaxSpinDuration)
	s.ConfettiDuration = clamp(s.ConfettiDuration, MinConfettiDuration, MaxConfettiDuration)
	if s.Language != LanguageZH && s.Language != LanguageEN {
		s.Language = LanguageZH
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Older clients stored named presets instead of seconds.
var (
	legacySpinPresets = map[string]float64{
		"slow":   8,
		"normal": 5,
		"fast":   3,
	}
	legacyConfettiPresets = map[string]float64{
		"short":  3,
		"normal": 5,
		"long":   8,
		"epic":   12,
	}
)

type settingsWire struct {
	SpinDuration     json.RawMessage `json:"spinDuration"`
	AnimationSpeed   *string         `json:"animationSpeed"`
	ConfettiDuration json.RawMessage `json:"confettiDuration"`
	RemoveAfterWin   *bool           `json:"removeAfterWin"`
	Language         *string         `json:"language"`
}

// UnmarshalJSON merges the fields present in data onto s. Absent or
// unreadable fields keep their current value, so decoding into a copy of
// the live settings applies a partial update.
func (s *GlobalSettings) UnmarshalJSON(data []byte) error {
	var w settingsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	if w.AnimationSpeed != nil {
		if v, ok := legacySpinPresets[*w.AnimationSpeed]; ok {
			s.SpinDuration = v
		}
	}
	if v, ok := decodeSeconds(w.SpinDuration, legacySpinPresets); ok {
		s.SpinDuration = v
	}
	if v, ok := decodeSeconds(w.ConfettiDuration, legacyConfettiPresets); ok {
		s.ConfettiDuration = v
	}
	if w.RemoveAfterWin != nil {
		s.RemoveAfterWin = *w.RemoveAfterWin
	}
	if w.Language != nil {
		if l := Language(*w.Language); l == LanguageZH || l == LanguageEN {
			s.Language = l
		}
	}

	*s = s.Normalize()
	return nil
}

// decodeSeconds accepts either a number or one of the named presets.
func decodeSeconds(raw json.RawMessage, presets map[string]float64) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		v, ok := presets[name]
		return v, ok
	}
	return 0, false
}
