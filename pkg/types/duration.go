package types

import "time"

// Calendar approximations in whole milliseconds: a year is 365.25 days and a
// month is 30.44 days. Integer constants keep the conversion exact.
const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
	msPerMonth  = int64(2_630_016_000)  // 30.44 * msPerDay
	msPerYear   = int64(31_557_600_000) // 365.25 * msPerDay
)

// Duration is the structured auction duration as sellers enter it.
// Unset fields default to zero.
type Duration struct {
	Years   int `json:"years,omitempty"`
	Months  int `json:"months,omitempty"`
	Days    int `json:"days,omitempty"`
	Hours   int `json:"hours,omitempty"`
	Minutes int `json:"minutes,omitempty"`
	Seconds int `json:"seconds,omitempty"`
}

// Elapsed converts the structured duration to a scalar time.Duration.
func (d Duration) Elapsed() time.Duration {
	ms := int64(d.Years)*msPerYear +
		int64(d.Months)*msPerMonth +
		int64(d.Days)*msPerDay +
		int64(d.Hours)*msPerHour +
		int64(d.Minutes)*msPerMinute +
		int64(d.Seconds)*msPerSecond
	return time.Duration(ms) * time.Millisecond
}

// IsZero reports whether every field is unset.
func (d Duration) IsZero() bool {
	return d == Duration{}
}
