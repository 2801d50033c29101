package engine

import "time"

// Severity ranks how actionable an alert is. Values are ordered; a higher
// value always means a stronger alert.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMedium
	SeverityReliable
	SeverityHighConfidence
	SeverityUrgent
)

// String returns the wire/display name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityUrgent:
		return "URGENT"
	case SeverityHighConfidence:
		return "HIGH_CONFIDENCE"
	case SeverityReliable:
		return "RELIABLE"
	case SeverityMedium:
		return "MEDIUM"
	default:
		return "NONE"
	}
}

// EndingSoon reports whether a market resolves within horizon of now.
// A zero endDate means the resolution time is unknown.
func EndingSoon(endDate, now time.Time, horizon time.Duration) bool {
	if endDate.IsZero() {
		return false
	}
	return endDate.After(now) && endDate.Sub(now) <= horizon
}

// Classify maps a signal set to a severity. The rules are an ordered
// decision table; the first match wins.
func Classify(signals []Signal, endingSoon bool) Severity {
	n := len(signals)
	switch {
	case endingSoon && n >= 1:
		return SeverityUrgent
	case n >= 3:
		return SeverityHighConfidence
	case hasSignal(signals, SignalNewWallet) &&
		(hasSignal(signals, SignalLowTradeCount) || hasSignal(signals, SignalLongshot)):
		return SeverityReliable
	case n == 2:
		return SeverityMedium
	default:
		return SeverityNone
	}
}

// PriorityScore produces a rough ranking number for sorting alerts in
// notifications and stats. Higher is more interesting.
func PriorityScore(signals []Signal, usdSize float64, endingSoon bool) int {
	score := 0
	for _, s := range signals {
		switch s.Kind {
		case SignalNewWallet:
			score += 30
		case SignalLowTradeCount:
			score += 25
		case SignalHighVolumeShare:
			score += 20
		case SignalLongshot:
			score += 15
		}
	}
	if endingSoon {
		score += 10
	}
	if usdSize >= 50000 {
		score += 20
	} else if usdSize >= 10000 {
		score += 10
	}
	return score
}
