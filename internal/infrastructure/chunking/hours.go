package chunking

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	meridiemAM = "ص"
	meridiemPM = "م"
)

// Digits may be ASCII or Arabic-Indic and the marker may follow a no-break
// space.
var timeOfDayPattern = regexp.MustCompile(`(\p{Nd}{1,2}:\p{Nd}{2})[\p{Z}\s]*(ص|م)`)

type WorkingHours struct {
	Days string
	From string
	To   string
}

func (w WorkingHours) String() string {
	return fmt.Sprintf("%s %s-%s", w.Days, w.From, w.To)
}

// ParseWorkingHours reads strings like "يوميا 8:00 ص - 1:00 ص". The day range is
// the first space-separated token; exactly two time-of-day tokens are required.
func ParseWorkingHours(raw string) (WorkingHours, bool) {
	days, _, _ := strings.Cut(raw, " ")
	matches := timeOfDayPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) != 2 {
		return WorkingHours{}, false
	}

	from, err := To24Hour(matches[0][1], matches[0][2])
	if err != nil {
		return WorkingHours{}, false
	}
	to, err := To24Hour(matches[1][1], matches[1][2])
	if err != nil {
		return WorkingHours{}, false
	}
	return WorkingHours{Days: days, From: from, To: to}, true
}

// To24Hour converts "H:MM" with an Arabic meridiem marker to "HH:MM".
func To24Hour(clock, meridiem string) (string, error) {
	hourText, minuteText, ok := strings.Cut(clock, ":")
	if !ok {
		return "", fmt.Errorf("invalid time %q", clock)
	}
	hour, err := parseDecimal(hourText)
	if err != nil {
		return "", fmt.Errorf("invalid hour in %q: %w", clock, err)
	}
	minute, err := parseDecimal(minuteText)
	if err != nil {
		return "", fmt.Errorf("invalid minute in %q: %w", clock, err)
	}

	switch {
	case meridiem == meridiemAM && hour == 12:
		hour = 0
	case meridiem == meridiemPM && hour != 12:
		hour += 12
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// parseDecimal reads a number written in any Unicode decimal digit set.
func parseDecimal(text string) (int, error) {
	if text == "" {
		return 0, fmt.Errorf("empty number")
	}
	n := 0
	for _, r := range text {
		d, ok := digitValue(r)
		if !ok {
			return 0, fmt.Errorf("%q is not a decimal digit", r)
		}
		n = n*10 + d
	}
	return n, nil
}

// digitValue relies on every decimal digit set being a contiguous run that
// starts at its zero.
func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	if !unicode.IsDigit(r) {
		return 0, false
	}
	start := r
	for unicode.IsDigit(start - 1) {
		start--
	}
	return int(r-start) % 10, true
}
