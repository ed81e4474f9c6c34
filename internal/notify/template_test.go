package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
)

func TestRenderPerKind(t *testing.T) {
	issue := &domain.Issue{
		ID:        "issue-42",
		OrgID:     "org-1",
		Title:     "database failover stuck",
		Priority:  domain.IssuePriorityUrgent,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		kind        domain.EscalationKind
		wantSubject string
	}{
		{domain.EscalationResponseWarning, "[SLA warning] first response due soon for issue issue-42"},
		{domain.EscalationResponseBreach, "[SLA breach] response deadline missed for issue issue-42"},
		{domain.EscalationResolutionWarning, "[SLA warning] resolution due soon for issue issue-42"},
		{domain.EscalationResolutionBreach, "[SLA breach] resolution deadline missed for issue issue-42"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			msg, err := Render(&domain.EscalationJob{ID: "job-1", IssueID: issue.ID, Kind: tt.kind}, issue)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, msg.Subject)
			assert.Equal(t, tt.kind, msg.Kind)
			assert.Equal(t, "org-1", msg.OrgID)
			assert.Contains(t, msg.Body, "issue-42")
			assert.Contains(t, msg.Body, "database failover stuck")
			assert.Contains(t, msg.Body, "2026-03-01T09:00:00Z")
		})
	}
}

func TestRenderUnknownKindFails(t *testing.T) {
	issue := &domain.Issue{ID: "issue-1"}
	_, err := Render(&domain.EscalationJob{ID: "job-1", Kind: "MYSTERY"}, issue)
	assert.Error(t, err)
}

func TestCompositeRequiresAChannel(t *testing.T) {
	err := NewComposite().Send(context.Background(), Message{})
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}
