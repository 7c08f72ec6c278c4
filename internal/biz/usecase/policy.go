package usecase

// Call identifies a collaborator call made while dispatching an event
type Call string

const (
	CallComplete       Call = "complete"
	CallGenerateImage  Call = "generate_image"
	CallTranscribe     Call = "transcribe"
	CallSaveAttachment Call = "save_attachment"
)

// Outcome is what happens to the event when a call fails
type Outcome int

const (
	// OutcomeDrop logs the failure and sends nothing
	OutcomeDrop Outcome = iota
	// OutcomeFallback replies with the policy's fallback message
	OutcomeFallback
)

// FallbackMessage is sent when a model call fails or returns nothing
const FallbackMessage = "Sorry, please try again later. 😔"

// Policy is the error handling rule for one collaborator call
type Policy struct {
	Outcome Outcome
	Message string
}

// PolicyTable maps collaborator calls to their failure policy
type PolicyTable map[Call]Policy

// DefaultPolicies returns the default failure policies.
// Model replies and images fall back to an apology; audio failures are dropped.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		CallComplete:       {Outcome: OutcomeFallback, Message: FallbackMessage},
		CallGenerateImage:  {Outcome: OutcomeFallback, Message: FallbackMessage},
		CallTranscribe:     {Outcome: OutcomeDrop},
		CallSaveAttachment: {Outcome: OutcomeDrop},
	}
}

// Resolve returns the policy for call; unknown calls are dropped
func (t PolicyTable) Resolve(call Call) Policy {
	if p, ok := t[call]; ok {
		return p
	}
	return Policy{Outcome: OutcomeDrop}
}
