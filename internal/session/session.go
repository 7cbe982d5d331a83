// Package session parses brokerage trading-hours strings.
//
// The gateway reports hours as semicolon-separated tokens covering a
// multi-day window, e.g. "20250217:0930-1600;20250218:CLOSED". The end of a
// range may repeat its date ("0930-20250217:1600"). Upstream data is not
// guaranteed well-formed for every date, so malformed tokens are skipped
// rather than treated as errors.
package session

import (
	"strings"
	"time"
)

const (
	dateLayout    = "20060102"
	instantLayout = "200601021504"
	closedMarker  = "CLOSED"
)

// IsTradingDay reports whether the token matching now's date describes a
// real session. The first matching token decides; a CLOSED marker or a
// missing token both mean no trading (unknown days are assumed closed).
func IsTradingDay(hours string, now time.Time) bool {
	today := now.Format(dateLayout)
	for _, token := range strings.Split(hours, ";") {
		if token == "" || !strings.Contains(token, ":") {
			continue
		}
		if !strings.HasPrefix(token, today) {
			continue
		}
		_, spec, _ := strings.Cut(token, ":")
		return !strings.EqualFold(strings.TrimSpace(spec), closedMarker)
	}
	return false
}

// Window scans for today's session and reports whether now falls inside it.
// On open=true, end is the session close instant in now's location. A CLOSED
// token for today short-circuits; a session now falls outside of does not,
// so scanning continues over the remaining tokens.
func Window(hours string, now time.Time) (open bool, end time.Time) {
	today := now.Format(dateLayout)
	loc := now.Location()
	for _, token := range strings.Split(hours, ";") {
		if !strings.HasPrefix(token, today) {
			continue
		}
		datePart, spec, ok := strings.Cut(token, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(spec, closedMarker) {
			return false, time.Time{}
		}
		startStr, endStr, ok := strings.Cut(spec, "-")
		if !ok {
			continue
		}
		endDate, endHHMM, crossRef := strings.Cut(endStr, ":")
		if !crossRef {
			endDate, endHHMM = datePart, endStr
		}
		start, err := time.ParseInLocation(instantLayout, datePart+startStr, loc)
		if err != nil {
			continue
		}
		closeAt, err := time.ParseInLocation(instantLayout, endDate+endHHMM, loc)
		if err != nil {
			continue
		}
		if !now.Before(start) && !now.After(closeAt) {
			return true, closeAt
		}
	}
	return false, time.Time{}
}
