package wire

import (
	"fmt"
	"time"
)

// Locale names the language of human-readable dates.
type Locale string

const (
	LocaleFrench  Locale = "fr"
	LocaleEnglish Locale = "en"
)

var frenchDays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// ParseLocale validates a locale name.
func ParseLocale(s string) (Locale, error) {
	switch Locale(s) {
	case LocaleFrench, LocaleEnglish:
		return Locale(s), nil
	case "":
		return LocaleFrench, nil
	}
	return "", fmt.Errorf("unknown locale %q", s)
}

// Format renders t as weekday, day, month and time of day,
// e.g. "jeudi 24 octobre 15:30:12".
func (l Locale) Format(t time.Time) string {
	if l == LocaleEnglish {
		return t.Format("Monday 02 January 15:04:05")
	}
	return fmt.Sprintf("%s %02d %s %s",
		frenchDays[t.Weekday()], t.Day(), frenchMonths[t.Month()-1], t.Format("15:04:05"))
}
