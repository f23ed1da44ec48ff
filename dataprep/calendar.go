package dataprep

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// TradingCalendar approximates the exchange session calendar with a US
// business calendar: weekdays minus federal holidays.
type TradingCalendar struct {
	cal *cal.BusinessCalendar
}

// NewTradingCalendar initializes a calendar loaded with US holidays.
func NewTradingCalendar() *TradingCalendar {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(us.Holidays...)
	return &TradingCalendar{cal: c}
}

// IsTradingDay reports whether the market is open on the given date.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	return tc.cal.IsWorkday(t)
}

// TradingDaysInMonth counts open sessions in a calendar month.
func (tc *TradingCalendar) TradingDaysInMonth(year int, month time.Month) int {
	return tc.cal.WorkdaysInMonth(year, month)
}

// FilterTradingDays drops records dated on weekends or holidays, keeping
// stale quotes from leaking into monthly averages.
func (tc *TradingCalendar) FilterTradingDays(days []DailyValue) []DailyValue {
	open := make([]DailyValue, 0, len(days))
	for _, day := range days {
		if tc.cal.IsWorkday(day.Date) {
			open = append(open, day)
		}
	}
	return open
}
