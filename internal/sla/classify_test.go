package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/sla-engine/internal/domain"
)

func TestClassify(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	target := domain.PolicyTarget{
		Response:   time.Hour,
		Resolution: 10 * time.Hour,
	}
	responded := createdAt.Add(30 * time.Minute)

	tests := []struct {
		name           string
		sweepOffset    time.Duration
		lastResponseAt *time.Time
		wantStatus     domain.SlaStatus
		wantKind       domain.EscalationKind
	}{
		{
			name:        "well inside both deadlines",
			sweepOffset: 10 * time.Minute,
			wantStatus:  domain.SlaStatusOnTrack,
		},
		{
			// response warning window is 20% of 1h = 12m
			name:        "inside response warning window",
			sweepOffset: 55 * time.Minute,
			wantStatus:  domain.SlaStatusAtRisk,
			wantKind:    domain.EscalationResponseWarning,
		},
		{
			name:        "response deadline passed without response",
			sweepOffset: 2 * time.Hour,
			wantStatus:  domain.SlaStatusBreachedResponse,
			wantKind:    domain.EscalationResponseBreach,
		},
		{
			name:           "response recorded clears response rules",
			sweepOffset:    2 * time.Hour,
			lastResponseAt: &responded,
			wantStatus:     domain.SlaStatusOnTrack,
		},
		{
			// resolution warning window is 20% of 10h = 2h
			name:           "inside resolution warning window after response",
			sweepOffset:    8*time.Hour + 30*time.Minute,
			lastResponseAt: &responded,
			wantStatus:     domain.SlaStatusAtRisk,
			wantKind:       domain.EscalationResolutionWarning,
		},
		{
			name:        "response breach outranks resolution warning",
			sweepOffset: 9 * time.Hour,
			wantStatus:  domain.SlaStatusBreachedResponse,
			wantKind:    domain.EscalationResponseBreach,
		},
		{
			name:        "resolution breach outranks everything",
			sweepOffset: 11 * time.Hour,
			wantStatus:  domain.SlaStatusBreachedResolution,
			wantKind:    domain.EscalationResolutionBreach,
		},
		{
			name:           "resolution breach applies even after a response",
			sweepOffset:    11 * time.Hour,
			lastResponseAt: &responded,
			wantStatus:     domain.SlaStatusBreachedResolution,
			wantKind:       domain.EscalationResolutionBreach,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := &domain.Issue{
				ID:             "issue-1",
				Status:         domain.IssueStatusOpen,
				Priority:       domain.IssuePriorityHigh,
				CreatedAt:      createdAt,
				LastResponseAt: tt.lastResponseAt,
			}
			got := Classify(issue, target, 0.2, createdAt.Add(tt.sweepOffset))
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantKind, got.Kind)
		})
	}
}

func TestClassifyDeadlinesAnchoredAtCreation(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	target := domain.PolicyTarget{Response: time.Hour, Resolution: 4 * time.Hour}

	// A late reply stops response escalation but never pushes the resolution
	// deadline out.
	responded := createdAt.Add(3 * time.Hour)
	issue := &domain.Issue{
		ID:             "issue-1",
		Status:         domain.IssueStatusOpen,
		Priority:       domain.IssuePriorityUrgent,
		CreatedAt:      createdAt,
		LastResponseAt: &responded,
	}

	got := Classify(issue, target, 0.2, createdAt.Add(5*time.Hour))
	assert.Equal(t, domain.SlaStatusBreachedResolution, got.Status)
}
