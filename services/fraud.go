package services

import (
	"time"

	"invite-reward-bot/models"
)

// DefaultMinAccountAge is how old an account must be for its arrival to count.
const DefaultMinAccountAge = 3 * 24 * time.Hour

// Verdict is the fraud classifier's answer for one arrival.
type Verdict int

const (
	Legitimate Verdict = iota
	Fraudulent
)

func (v Verdict) String() string {
	if v == Fraudulent {
		return "fraudulent"
	}
	return "legitimate"
}

// ClassifyArrival flags accounts younger than minAge at time now.
func ClassifyArrival(arrival models.Arrival, now time.Time, minAge time.Duration) Verdict {
	if now.Sub(arrival.CreatedAt) < minAge {
		return Fraudulent
	}
	return Legitimate
}

// FraudClassifier binds ClassifyArrival to a clock and threshold.
type FraudClassifier struct {
	MinAccountAge time.Duration
	Now           func() time.Time
}

func NewFraudClassifier(minAge time.Duration) FraudClassifier {
	if minAge <= 0 {
		minAge = DefaultMinAccountAge
	}
	return FraudClassifier{MinAccountAge: minAge, Now: time.Now}
}

func (c FraudClassifier) Classify(arrival models.Arrival) Verdict {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return ClassifyArrival(arrival, now(), c.Threshold())
}

// Threshold is the effective minimum account age.
func (c FraudClassifier) Threshold() time.Duration {
	if c.MinAccountAge <= 0 {
		return DefaultMinAccountAge
	}
	return c.MinAccountAge
}

// ThresholdDays is Threshold in whole days, for messages.
func (c FraudClassifier) ThresholdDays() int {
	return int(c.Threshold() / (24 * time.Hour))
}
