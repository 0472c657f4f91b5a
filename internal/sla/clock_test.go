package sla_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-core/internal/domain"
	"github.com/spec-kit/support-core/internal/sla"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestComputeDeadline(t *testing.T) {
	cases := []struct {
		severity domain.TicketSeverity
		minutes  int
	}{
		{domain.SeverityCritical, 120},
		{domain.SeverityHigh, 480},
		{domain.SeverityNormal, 1440},
		{domain.SeverityLow, 4320},
		{domain.TicketSeverity("UNKNOWN"), 1440},
	}
	for _, tc := range cases {
		t.Run(string(tc.severity), func(t *testing.T) {
			deadline := sla.ComputeDeadline(tc.severity, t0)
			assert.Equal(t, t0.Add(time.Duration(tc.minutes)*time.Minute), deadline)
		})
	}
}

func TestClassifyNilDeadline(t *testing.T) {
	status := sla.Classify(domain.SeverityNormal, nil, t0)
	assert.Equal(t, sla.BandGreen, status.Band)
	assert.Zero(t, status.MinutesRemaining)
	assert.Zero(t, status.PercentUsed)
}

func TestClassifyBoundaries(t *testing.T) {
	deadline := sla.ComputeDeadline(domain.SeverityCritical, t0) // t0 + 120m

	cases := []struct {
		name    string
		elapsed time.Duration
		want    sla.Band
	}{
		{"fresh", 0, sla.BandGreen},
		{"just under yellow", 71 * time.Minute, sla.BandGreen},
		{"exactly 60 percent", 72 * time.Minute, sla.BandYellow},
		{"just under red", 107 * time.Minute, sla.BandYellow},
		{"exactly 90 percent", 108 * time.Minute, sla.BandRed},
		{"at deadline", 120 * time.Minute, sla.BandRed},
		{"one second over", 120*time.Minute + time.Second, sla.BandBreached},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := sla.Classify(domain.SeverityCritical, &deadline, t0.Add(tc.elapsed))
			assert.Equal(t, tc.want, status.Band)
		})
	}
}

func TestClassifyMonotonic(t *testing.T) {
	deadline := sla.ComputeDeadline(domain.SeverityHigh, t0)
	rank := map[sla.Band]int{sla.BandGreen: 0, sla.BandYellow: 1, sla.BandRed: 2, sla.BandBreached: 3}

	prev := sla.BandGreen
	for elapsed := time.Duration(0); elapsed <= 500*time.Minute; elapsed += time.Minute {
		status := sla.Classify(domain.SeverityHigh, &deadline, t0.Add(elapsed))
		assert.GreaterOrEqual(t, rank[status.Band], rank[prev], "band regressed at %s", elapsed)
		prev = status.Band
	}
}

func TestClassifyBreachedScenario(t *testing.T) {
	// CRITICAL ticket created at T0 is due at T0+120m; checked at T0+130m it
	// is breached with ten minutes of overdue.
	deadline := sla.ComputeDeadline(domain.SeverityCritical, t0)
	status := sla.Classify(domain.SeverityCritical, &deadline, t0.Add(130*time.Minute))

	assert.Equal(t, sla.BandBreached, status.Band)
	assert.Equal(t, -10, status.MinutesRemaining)
	assert.Equal(t, 100.0, status.PercentUsed)
}
