// Package sla computes severity-derived deadlines and classifies how much of
// the response window a ticket has consumed. Everything here is pure; callers
// supply the clock.
package sla

import (
	"time"

	"github.com/spec-kit/support-core/internal/domain"
)

// Band is the traffic-light classification of SLA consumption.
type Band string

const (
	BandGreen    Band = "green"
	BandYellow   Band = "yellow"
	BandRed      Band = "red"
	BandBreached Band = "breached"
)

// Response windows in minutes per severity.
var windowMinutes = map[domain.TicketSeverity]int{
	domain.SeverityCritical: 120,
	domain.SeverityHigh:     480,
	domain.SeverityNormal:   1440,
	domain.SeverityLow:      4320,
}

const (
	yellowThresholdPercent = 60.0
	redThresholdPercent    = 90.0
)

// Status describes SLA consumption at a point in time.
type Status struct {
	Band             Band    `json:"status"`
	PercentUsed      float64 `json:"percent_used"`
	MinutesRemaining int     `json:"minutes_remaining"`
}

// Window returns the response window for a severity. Unknown severities fall
// back to the NORMAL window.
func Window(severity domain.TicketSeverity) time.Duration {
	minutes, ok := windowMinutes[severity]
	if !ok {
		minutes = windowMinutes[domain.SeverityNormal]
	}
	return time.Duration(minutes) * time.Minute
}

// ComputeDeadline derives the due timestamp for a ticket of the given
// severity created at now.
func ComputeDeadline(severity domain.TicketSeverity, now time.Time) time.Time {
	return now.Add(Window(severity))
}

// Classify buckets the deadline against now. A nil deadline is green with
// zero remaining. Boundary percentages belong to the higher bucket: exactly
// 60% used is yellow and exactly 90% used is red. Any positive overdue is
// breached with a negative remaining minute count.
func Classify(severity domain.TicketSeverity, deadline *time.Time, now time.Time) Status {
	if deadline == nil {
		return Status{Band: BandGreen}
	}

	remaining := deadline.Sub(now)
	minutesRemaining := int(remaining.Minutes())

	if now.After(*deadline) {
		return Status{Band: BandBreached, PercentUsed: 100, MinutesRemaining: minutesRemaining}
	}

	total := Window(severity)
	percentUsed := float64(total-remaining) / float64(total) * 100

	status := Status{PercentUsed: percentUsed, MinutesRemaining: minutesRemaining}
	switch {
	case percentUsed >= redThresholdPercent:
		status.Band = BandRed
	case percentUsed >= yellowThresholdPercent:
		status.Band = BandYellow
	default:
		status.Band = BandGreen
	}
	return status
}
