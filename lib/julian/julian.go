// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

// Package julian converts between the Julian day numbers a Fossil
// repository stores in its event tables and standard time.Time
// values. Pure arithmetic; resolution correctness never depends on
// it.
package julian

import (
	"fmt"
	"time"
)

// unixEpochDay is the Julian day number of 1970-01-01T00:00:00Z.
const unixEpochDay = 2440587.5

// secondsPerDay is exact for this representation: Julian days ignore
// leap seconds, as does Unix time.
const secondsPerDay = 86400

// ToTime converts a Julian day number to a UTC time.Time.
func ToTime(day float64) time.Time {
	seconds := (day - unixEpochDay) * secondsPerDay
	wholeSeconds := int64(seconds)
	nanos := int64((seconds - float64(wholeSeconds)) * 1e9)
	return time.Unix(wholeSeconds, nanos).UTC()
}

// FromTime converts a time.Time to a Julian day number.
func FromTime(t time.Time) float64 {
	seconds := float64(t.Unix()) + float64(t.Nanosecond())/1e9
	return seconds/secondsPerDay + unixEpochDay
}

// cardTimeLayout is the timestamp format used by manifest D and E
// cards. Fossil may append fractional seconds; parsing uses only the
// leading 19 characters.
const cardTimeLayout = "2006-01-02T15:04:05"

// ParseCardTime parses a manifest card timestamp into a UTC time.
func ParseCardTime(s string) (time.Time, error) {
	if len(s) < len(cardTimeLayout) {
		return time.Time{}, fmt.Errorf("timestamp %q too short", s)
	}
	t, err := time.ParseInLocation(cardTimeLayout, s[:len(cardTimeLayout)], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing card timestamp %q: %w", s, err)
	}
	return t, nil
}
