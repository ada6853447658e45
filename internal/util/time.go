// ABOUTME: UTC time helpers shared by the ledger, sync, and loader packages
// ABOUTME: Everything is stored in UTC; ISO-8601 with a trailing Z on the wire
package util

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// ISOFormat is the timestamp layout used in all ledger entries.
const ISOFormat = "2006-01-02T15:04:05Z"

// DateFormat is the day layout used for daily file names and date filters.
const DateFormat = "2006-01-02"

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// IsoNow returns the current UTC time as an ISO-8601 string.
func IsoNow() string {
	return Now().Format(ISOFormat)
}

// TodayStr returns the current UTC date as YYYY-MM-DD.
func TodayStr() string {
	return Now().Format(DateFormat)
}

// ParseISO parses an ISO-8601 timestamp. Unparsable input returns the zero
// time so callers can treat broken timestamps as "very old" rather than fail.
func ParseISO(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	if t, err := time.Parse(ISOFormat, ts); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(DateFormat, ts); err == nil {
		return t
	}
	return time.Time{}
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// TimeID returns a short time-derived ID fragment such as "143005123-a7x2"
// (HHMMSS + milliseconds + random suffix). Unique enough for the write rates
// a single assistant session produces.
func TimeID() string {
	now := Now()
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return fmt.Sprintf("%s%03d-%s", now.Format("150405"), now.Nanosecond()/1e6, suffix)
}
