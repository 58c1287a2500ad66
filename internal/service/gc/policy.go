package gc

import "time"

// Policy decides when rolling-channel artifacts become collectable.
type Policy struct {
	cutoff    time.Time
	hasCutoff bool
}

// NewPolicy builds a policy keeping rolling artifacts for days days before now.
// A nil days means rolling artifacts are never collected by age.
func NewPolicy(days *int, now time.Time) Policy {
	if days == nil {
		return Policy{}
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return Policy{
		cutoff:    today.AddDate(0, 0, -*days),
		hasCutoff: true,
	}
}

// Cutoff returns the cutoff date, if any.
func (p Policy) Cutoff() (time.Time, bool) {
	return p.cutoff, p.hasCutoff
}

// RollingEligible reports whether rolling artifacts dated date may be collected.
func (p Policy) RollingEligible(date time.Time) bool {
	return p.hasCutoff && date.Before(p.cutoff)
}
