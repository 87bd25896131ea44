package runtime

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/enrollkit/enrollkit/pkg/domain"
	"github.com/enrollkit/enrollkit/pkg/ports"
)

// Fee schedule for the check-in payment step.
const (
	tuitionFee       = 5000.00
	accommodationFee = 1200.00
)

var studentIDPattern = regexp.MustCompile(`\b20\d{8}\b`)

// CheckInNodes returns the default node set for the check-in workflow.
// dir may be nil, in which case identity verification falls back to a
// format check on the student ID.
func CheckInNodes(dir ports.Directory) []Node {
	return []Node{
		&infoCollectionNode{},
		&verificationNode{dir: dir},
		&paymentNode{},
		&assignmentNode{},
	}
}

// infoCollectionNode gathers the student ID and name from free text.
// Missing input is a pending condition, not an error; a malformed ID is a
// failure that counts toward escalation.
type infoCollectionNode struct{}

func (n *infoCollectionNode) Step() domain.Step { return domain.StepInfoCollection }

func (n *infoCollectionNode) Run(ctx context.Context, state *domain.WorkflowState, input Input) (NodeResult, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return NodeResult{
			Outcome:  domain.OutcomePending,
			Messages: []string{"Welcome to check-in. Please provide your student ID and full name."},
		}, nil
	}

	id := studentIDPattern.FindString(text)
	name := strings.TrimSpace(strings.Replace(text, id, "", 1))

	if id == "" {
		return NodeResult{
			Outcome:  domain.OutcomeFailure,
			Messages: []string{"That does not look like a valid student ID. IDs are 10 digits starting with the enrollment year, e.g. 2024000123."},
		}, nil
	}
	if name == "" {
		return NodeResult{
			Outcome:  domain.OutcomePending,
			Messages: []string{"Got your student ID. Please also provide your full name."},
		}, nil
	}

	state.Profile.StudentID = id
	state.Profile.StudentName = name
	return NodeResult{
		Outcome:  domain.OutcomeSuccess,
		Messages: []string{fmt.Sprintf("Thanks %s, let's verify your identity.", name)},
	}, nil
}

// verificationNode checks the collected identity against the student
// directory.
type verificationNode struct {
	dir ports.Directory
}

func (n *verificationNode) Step() domain.Step { return domain.StepVerification }

func (n *verificationNode) Run(ctx context.Context, state *domain.WorkflowState, input Input) (NodeResult, error) {
	id := state.Profile.StudentID
	name := state.Profile.StudentName

	ok := studentIDPattern.MatchString(id) && name != ""
	if ok && n.dir != nil {
		var err error
		ok, err = n.dir.Lookup(ctx, id, name)
		if err != nil {
			return NodeResult{}, fmt.Errorf("directory lookup for %s: %w", id, err)
		}
	}

	if !ok {
		return NodeResult{
			Outcome:  domain.OutcomeFailure,
			Messages: []string{"Identity verification failed. Please double-check your student ID and name."},
		}, nil
	}

	state.Profile.IdentityVerified = true
	return NodeResult{
		Outcome:  domain.OutcomeSuccess,
		Messages: []string{fmt.Sprintf("Identity verified: %s (%s).", name, id)},
	}, nil
}

// paymentNode checks the payment flag. While unpaid it self-loops with a
// guide message; once the student reports payment it suspends for human
// confirmation of the amount.
type paymentNode struct{}

func (n *paymentNode) Step() domain.Step { return domain.StepPayment }

func (n *paymentNode) Run(ctx context.Context, state *domain.WorkflowState, input Input) (NodeResult, error) {
	if input.Decision != nil {
		return n.resolve(state, *input.Decision), nil
	}

	if state.Profile.PaymentConfirmed {
		return NodeResult{
			Outcome:  domain.OutcomeSuccess,
			Messages: []string{"Payment already confirmed."},
		}, nil
	}

	if !claimsPayment(input.Text) {
		return NodeResult{
			Outcome:  domain.OutcomePending,
			Messages: []string{"Tuition and accommodation fees are still outstanding. Please pay at the finance office or online, then tell me once you have paid."},
		}, nil
	}

	amount := state.Profile.PaymentAmount
	if amount == 0 {
		amount = tuitionFee + accommodationFee
		state.Profile.PaymentAmount = amount
	}

	return NodeResult{
		Outcome:  domain.OutcomePending,
		Messages: []string{fmt.Sprintf("Payment of %.2f reported. A staff member will confirm it shortly.", amount)},
		Suspend: &SuspendRequest{
			Kind: domain.KindPaymentConfirmation,
			Payload: map[string]any{
				"student_id": state.Profile.StudentID,
				"amount":     amount,
				"items": map[string]any{
					"tuition":       tuitionFee,
					"accommodation": accommodationFee,
				},
			},
			Options: []string{domain.DecisionApprove, domain.DecisionReject, domain.DecisionModify},
		},
	}, nil
}

func (n *paymentNode) resolve(state *domain.WorkflowState, decision domain.Decision) NodeResult {
	switch decision.Choice {
	case domain.DecisionApprove:
		state.Profile.PaymentConfirmed = true
		return NodeResult{
			Outcome:  domain.OutcomeSuccess,
			Messages: []string{"Payment confirmed. Moving on to dormitory assignment."},
		}
	case domain.DecisionModify:
		// The reviewer corrected the amount; re-confirm with the new figure.
		if decision.Amount > 0 {
			state.Profile.PaymentAmount = decision.Amount
		}
		return NodeResult{
			Outcome:  domain.OutcomePending,
			Messages: []string{fmt.Sprintf("Amount adjusted to %.2f, awaiting re-confirmation.", state.Profile.PaymentAmount)},
			Suspend: &SuspendRequest{
				Kind: domain.KindPaymentConfirmation,
				Payload: map[string]any{
					"student_id": state.Profile.StudentID,
					"amount":     state.Profile.PaymentAmount,
					"modified":   true,
				},
				Options: []string{domain.DecisionApprove, domain.DecisionReject},
			},
		}
	case domain.DecisionTimeout, domain.DecisionAbandon:
		return NodeResult{
			Abort:    true,
			Messages: []string{"The payment review was not completed in time. Your case has been handed to a staff member."},
		}
	default: // reject
		return NodeResult{
			Outcome:  domain.OutcomeFailure,
			Messages: []string{"Payment could not be confirmed. Please contact the finance office and try again."},
		}
	}
}

func claimsPayment(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "paid") || strings.Contains(t, "payment done") || strings.Contains(t, "transferred")
}

// assignmentNode proposes a dormitory and suspends for staff confirmation.
type assignmentNode struct{}

func (n *assignmentNode) Step() domain.Step { return domain.StepAssignment }

// Dorm pool for deterministic proposals. Real placement data lives with
// housing; the proposal here only seeds the review.
var dormPool = []string{"East-1-302", "East-1-305", "East-2-118", "West-3-201", "West-3-207"}

func (n *assignmentNode) Run(ctx context.Context, state *domain.WorkflowState, input Input) (NodeResult, error) {
	if input.Decision != nil {
		return n.resolve(state, *input.Decision), nil
	}

	proposed := proposeDorm(state.Profile.StudentID)
	return NodeResult{
		Outcome:  domain.OutcomePending,
		Messages: []string{fmt.Sprintf("Proposed dormitory: %s. Waiting for housing staff to confirm.", proposed)},
		Suspend: &SuspendRequest{
			Kind: domain.KindDormAssignment,
			Payload: map[string]any{
				"student_id": state.Profile.StudentID,
				"proposed":   proposed,
				"pool":       dormPool,
			},
			Options: []string{domain.DecisionApprove, domain.DecisionReject, domain.DecisionModify},
		},
	}, nil
}

func (n *assignmentNode) resolve(state *domain.WorkflowState, decision domain.Decision) NodeResult {
	switch decision.Choice {
	case domain.DecisionApprove:
		state.Profile.Dorm = proposeDorm(state.Profile.StudentID)
		return NodeResult{
			Outcome:  domain.OutcomeSuccess,
			Messages: []string{fmt.Sprintf("Dormitory assigned: %s. Check-in complete, welcome aboard!", state.Profile.Dorm)},
		}
	case domain.DecisionModify:
		if decision.Dorm == "" {
			return NodeResult{
				Outcome:  domain.OutcomeFailure,
				Messages: []string{"The assignment was modified without a dormitory. Please review again."},
			}
		}
		state.Profile.Dorm = decision.Dorm
		return NodeResult{
			Outcome:  domain.OutcomeSuccess,
			Messages: []string{fmt.Sprintf("Dormitory assigned: %s. Check-in complete, welcome aboard!", state.Profile.Dorm)},
		}
	case domain.DecisionTimeout, domain.DecisionAbandon:
		return NodeResult{
			Abort:    true,
			Messages: []string{"The housing review was not completed in time. Your case has been handed to a staff member."},
		}
	default: // reject
		return NodeResult{
			Outcome:  domain.OutcomeFailure,
			Messages: []string{"The proposed dormitory was rejected. A new proposal will be made."},
		}
	}
}

func proposeDorm(studentID string) string {
	h := fnv.New32a()
	h.Write([]byte(studentID))
	return dormPool[int(h.Sum32())%len(dormPool)]
}
