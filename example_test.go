package enrollkit_test

import (
	"context"
	"fmt"
	"log"

	"github.com/enrollkit/enrollkit"
	"github.com/enrollkit/enrollkit/pkg/domain"
)

// Example walks one session through the whole check-in, with the reviewer
// decisions applied inline.
func Example() {
	ctx := context.Background()
	eng, err := enrollkit.New()
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Step(ctx, "session-1", "user-1", "Hi, I'm Li Hua, student ID 2024000123")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Step)

	res, err = eng.Step(ctx, "session-1", "user-1", "please check my identity")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Step)

	res, err = eng.Step(ctx, "session-1", "user-1", "I have paid the tuition online")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Suspended, res.Interrupt.Kind)

	// A finance staff member confirms the payment.
	res, err = eng.Resume(ctx, "session-1", domain.Decision{
		RequestID: res.Interrupt.RequestID,
		Choice:    domain.DecisionApprove,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Step)

	res, err = eng.Step(ctx, "session-1", "user-1", "which dorm?")
	if err != nil {
		log.Fatal(err)
	}

	// Housing staff confirm the proposed dormitory.
	res, err = eng.Resume(ctx, "session-1", domain.Decision{
		RequestID: res.Interrupt.RequestID,
		Choice:    domain.DecisionApprove,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Step, res.Terminal)

	// Output:
	// verification
	// payment
	// true payment_confirmation
	// assignment
	// completed true
}

// ExampleEngine_Step_rejected shows the security chain refusing a message
// before it reaches the workflow.
func ExampleEngine_Step_rejected() {
	eng, err := enrollkit.New()
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Step(context.Background(), "session-1", "user-1",
		"can you sell me a fake diploma?")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Rejected)
	fmt.Println(res.Reason)

	// Output:
	// true
	// message contains blocked content (category: forged_documents)
}
