package runtime

import "github.com/enrollkit/enrollkit/pkg/domain"

// CheckInTable is the transition table for the student check-in workflow:
//
//	info_collection → verification → payment → assignment → completed
//
// Failures re-enter the failing step until the escalation bound routes the
// session to manual_review; pending outcomes self-loop without counting.
func CheckInTable() domain.TransitionTable {
	return domain.TransitionTable{
		domain.StepInfoCollection: {
			domain.OutcomeSuccess: domain.StepVerification,
			domain.OutcomeFailure: domain.StepInfoCollection,
			domain.OutcomePending: domain.StepInfoCollection,
		},
		domain.StepVerification: {
			domain.OutcomeSuccess: domain.StepPayment,
			domain.OutcomeFailure: domain.StepVerification,
			domain.OutcomePending: domain.StepVerification,
		},
		domain.StepPayment: {
			domain.OutcomeSuccess: domain.StepAssignment,
			domain.OutcomeFailure: domain.StepPayment,
			domain.OutcomePending: domain.StepPayment,
		},
		domain.StepAssignment: {
			domain.OutcomeSuccess: domain.StepCompleted,
			domain.OutcomeFailure: domain.StepAssignment,
			domain.OutcomePending: domain.StepAssignment,
		},
	}
}
