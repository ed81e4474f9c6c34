package sla

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// Classification pairs the computed status with the escalation kind a
// transition into that status should raise. Kind is empty for OnTrack.
type Classification struct {
	Status domain.SlaStatus
	Kind   domain.EscalationKind
}

// Classify applies the deadline rules to one issue at sweepTime. Deadlines
// are anchored at issue creation; a reply does not reset them. Rules are
// evaluated in precedence order, first match wins:
//
//  1. resolution deadline passed
//  2. response deadline passed with no response recorded
//  3. response deadline inside its warning window with no response recorded
//  4. resolution deadline inside its warning window
//  5. on track
//
// warningFraction sizes both warning windows as a fraction of the respective
// deadline duration.
func Classify(issue *domain.Issue, target domain.PolicyTarget, warningFraction float64, sweepTime time.Time) Classification {
	responseDue := issue.CreatedAt.Add(target.Response)
	resolveDue := issue.CreatedAt.Add(target.Resolution)
	awaitingResponse := issue.LastResponseAt == nil

	if resolveDue.Before(sweepTime) {
		return Classification{Status: domain.SlaStatusBreachedResolution, Kind: domain.EscalationResolutionBreach}
	}
	if awaitingResponse && responseDue.Before(sweepTime) {
		return Classification{Status: domain.SlaStatusBreachedResponse, Kind: domain.EscalationResponseBreach}
	}
	if awaitingResponse && responseDue.Sub(sweepTime) < window(target.Response, warningFraction) {
		return Classification{Status: domain.SlaStatusAtRisk, Kind: domain.EscalationResponseWarning}
	}
	if resolveDue.Sub(sweepTime) < window(target.Resolution, warningFraction) {
		return Classification{Status: domain.SlaStatusAtRisk, Kind: domain.EscalationResolutionWarning}
	}
	return Classification{Status: domain.SlaStatusOnTrack}
}

func window(deadline time.Duration, fraction float64) time.Duration {
	return time.Duration(float64(deadline) * fraction)
}
