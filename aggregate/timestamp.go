package aggregate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type qsoTime struct {
	hourKey string
	at      time.Time
}

// deriveQSOTime turns the logger's DATE/TIMEON pair into an hour bucket.
// Accepted dates: "M/D", "M/D <anything>", "M/D/YYYY", and "YYYYMMDD".
// Accepted times: "H:MM", "HH:MM[:SS]" or "HHMM[SS]"; only the hour is required.
// Dates without a year take defaultYear.
func deriveQSOTime(date, timeOn string, defaultYear int) (qsoTime, bool) {
	date = strings.TrimSpace(date)
	timeOn = strings.TrimSpace(timeOn)
	if date == "" || timeOn == "" {
		return qsoTime{}, false
	}

	year, month, day, ok := parseQSODate(date, defaultYear)
	if !ok {
		return qsoTime{}, false
	}
	hour, minute, ok := parseQSOHour(timeOn)
	if !ok {
		return qsoTime{}, false
	}

	at := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if at.Day() != day || int(at.Month()) != month {
		// time.Date normalizes 02/30 into March; treat it as garbage instead.
		return qsoTime{}, false
	}
	return qsoTime{
		hourKey: fmt.Sprintf("%04d-%02d-%02d-%02d", year, month, day, hour),
		at:      at,
	}, true
}

func parseQSODate(date string, defaultYear int) (year, month, day int, ok bool) {
	if strings.Contains(date, "/") {
		parts := strings.Split(date, "/")
		if len(parts) < 2 {
			return 0, 0, 0, false
		}
		dayField := strings.Fields(parts[1])
		if len(dayField) == 0 {
			return 0, 0, 0, false
		}
		year = defaultYear
		if len(parts) >= 3 {
			// "06/28/2025 18:12" carries its own year.
			if yf := strings.Fields(parts[2]); len(yf) > 0 && len(yf[0]) == 4 {
				if y, okYear := atoiDigits(yf[0]); okYear {
					year = y
				}
			}
		}
		month, okMonth := atoiDigits(strings.TrimSpace(parts[0]))
		day, okDay := atoiDigits(dayField[0])
		if !okMonth || !okDay {
			return 0, 0, 0, false
		}
		return year, month, day, validDate(month, day)
	}
	if len(date) == 8 {
		y, okYear := atoiDigits(date[0:4])
		m, okMonth := atoiDigits(date[4:6])
		d, okDay := atoiDigits(date[6:8])
		if !okYear || !okMonth || !okDay {
			return 0, 0, 0, false
		}
		return y, m, d, validDate(m, d)
	}
	return 0, 0, 0, false
}

func parseQSOHour(timeOn string) (hour, minute int, ok bool) {
	timeOn = strings.TrimSpace(timeOn)
	if h, rest, found := strings.Cut(timeOn, ":"); found {
		// "9:05" and "18:12:45"; the hour field may be a single digit.
		h = strings.TrimSpace(h)
		if len(h) == 0 || len(h) > 2 {
			return 0, 0, false
		}
		hour, ok = atoiDigits(h)
		if !ok || hour > 23 {
			return 0, 0, false
		}
		m, _, _ := strings.Cut(rest, ":")
		if v, okMinute := atoiDigits(strings.TrimSpace(m)); okMinute && v < 60 {
			minute = v
		}
		return hour, minute, true
	}
	if len(timeOn) < 2 {
		return 0, 0, false
	}
	hour, ok = atoiDigits(timeOn[:2])
	if !ok || hour > 23 {
		return 0, 0, false
	}
	if len(timeOn) >= 4 {
		if m, okMinute := atoiDigits(timeOn[2:4]); okMinute && m < 60 {
			minute = m
		}
	}
	return hour, minute, true
}

func validDate(month, day int) bool {
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}

func atoiDigits(s string) (int, bool) {
	if s == "" || len(s) > 4 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
