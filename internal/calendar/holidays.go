package calendar

import "time"

// Holiday is a named public holiday.
type Holiday struct {
	Name string
	Date time.Time
}

// None is a HolidayProvider without any holidays.
type None struct{}

// IsHoliday always returns false.
func (None) IsHoliday(time.Time) bool { return false }

// French provides the French public holidays.
// Easter Sunday and Pentecost Sunday are omitted: they always fall on a weekend.
type French struct {
	// WorkWhitMonday drops Whit Monday for plants that work it.
	WorkWhitMonday bool
}

// IsHoliday reports whether t's date is a French public holiday.
func (f French) IsHoliday(t time.Time) bool {
	y, m, d := t.Date()
	for _, h := range f.Holidays(y) {
		hy, hm, hd := h.Date.Date()
		if hy == y && hm == m && hd == d {
			return true
		}
	}
	return false
}

// Holidays lists the French public holidays of the given year in date order.
// Dates are midnight UTC.
func (f French) Holidays(year int) []Holiday {
	easter := Easter(year)
	day := func(m time.Month, d int) time.Time {
		return time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
	}
	holidays := []Holiday{
		{Name: "Jour de l'an", Date: day(time.January, 1)},
		{Name: "Lundi de Pâques", Date: easter.AddDate(0, 0, 1)},
		{Name: "Fête du travail", Date: day(time.May, 1)},
		{Name: "Victoire des alliés", Date: day(time.May, 8)},
		{Name: "Ascension", Date: easter.AddDate(0, 0, 39)},
	}
	if !f.WorkWhitMonday {
		holidays = append(holidays, Holiday{Name: "Lundi de Pentecôte", Date: easter.AddDate(0, 0, 50)})
	}
	return append(holidays, []Holiday{
		{Name: "Fête nationale", Date: day(time.July, 14)},
		{Name: "Assomption", Date: day(time.August, 15)},
		{Name: "Toussaint", Date: day(time.November, 1)},
		{Name: "Armistice", Date: day(time.November, 11)},
		{Name: "Noël", Date: day(time.December, 25)},
	}...)
}

// Easter returns Easter Sunday of the given Gregorian year (midnight UTC),
// using the anonymous Gregorian computus.
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
