package conversation

import (
	"context"

	"github.com/qmuntal/stateless"

	"github.com/comigor/jarvis-chat/internal/logger"
)

// RequestState is the per-conversation completion request state.
type RequestState string

const (
	StateIdle    RequestState = "Idle"
	StateSending RequestState = "Sending"
)

// RequestTrigger moves a conversation between request states.
type RequestTrigger string

const (
	TriggerSend      RequestTrigger = "Send"
	TriggerSucceeded RequestTrigger = "Succeeded"
	TriggerFailed    RequestTrigger = "Failed"
)

// newRequestMachine builds the Idle -> Sending -> Idle machine for one
// conversation. Firing Send while Sending is rejected by the machine.
func newRequestMachine(conversationID string) *stateless.StateMachine {
	fsm := stateless.NewStateMachine(StateIdle)

	// State: Idle
	// Transitions:
	//   - On Send -> StateSending
	fsm.Configure(StateIdle).
		Permit(TriggerSend, StateSending)

	// State: Sending
	// Action: one completion request is in flight.
	// Transitions:
	//   - On Succeeded -> StateIdle (assistant reply appended)
	//   - On Failed -> StateIdle (error-marked reply appended)
	fsm.Configure(StateSending).
		OnEntry(func(_ context.Context, _ ...any) error {
			logger.L.Debug("FSM: entering Sending", "conversation", conversationID)
			return nil
		}).
		OnExit(func(_ context.Context, _ ...any) error {
			logger.L.Debug("FSM: leaving Sending", "conversation", conversationID)
			return nil
		}).
		Permit(TriggerSucceeded, StateIdle).
		Permit(TriggerFailed, StateIdle)

	return fsm
}
