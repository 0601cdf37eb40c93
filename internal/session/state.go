// Package session implements the per-client conversation core: the turn
// lifecycle, the conversation state machine, the streaming output pipeline
// that turns LLM fragments into ordered sentence and audio-with-expression
// events, and the orchestrator that owns all of it.
package session

// State is the conversation state of one session.
type State int32

const (
	// StateIdle means no turn is active and the microphone is not open.
	StateIdle State = iota

	// StateListening means microphone audio is streaming through the VAD.
	StateListening

	// StateProcessing means a turn is running its input pipeline or
	// waiting for the agent's first output.
	StateProcessing

	// StateSpeaking means the agent's reply is streaming to the client.
	StateSpeaking

	// StateError is held while a fatal provider error is being reported;
	// the session returns to idle as soon as the error event is emitted.
	StateError
)

// String returns the state's log-friendly name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
