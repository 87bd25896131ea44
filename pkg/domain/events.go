package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter EventType = "step_enter"
	EventStepLeave EventType = "step_leave"
	EventSuspend   EventType = "suspend"
	EventResume    EventType = "resume"
	EventEscalate  EventType = "escalate"
)

// StepEvent records a node attempt and its routing.
type StepEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      EventType     `json:"type"`
	SessionID string        `json:"session_id"`
	Step      Step          `json:"step"`
	Outcome   Outcome       `json:"outcome,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// InterruptEvent records a suspension or resume.
type InterruptEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      EventType     `json:"type"`
	SessionID string        `json:"session_id"`
	RequestID string        `json:"request_id"`
	Kind      InterruptKind `json:"kind"`
	Choice    string        `json:"choice,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStepEnter func(context.Context, *StepEvent)
	OnStepLeave func(context.Context, *StepEvent)
	OnSuspend   func(context.Context, *InterruptEvent)
	OnResume    func(context.Context, *InterruptEvent)
	OnEscalate  func(context.Context, *StepEvent)
}
