// Package server is the transport-facing layer: it accepts WebSocket
// clients, allocates one conversation orchestrator per connection, demuxes
// inbound JSON frames into orchestrator calls, and forwards outbound
// frames produced by the output handlers.
package server

// inboundFrame is the superset of all client → server frame payloads,
// discriminated by Type.
type inboundFrame struct {
	Type string `json:"type"`

	// text_input
	Text     string `json:"text,omitempty"`
	FromName string `json:"from_name,omitempty"`

	// raw_audio_data: 16 kHz mono little-endian samples.
	Audio []int16 `json:"audio,omitempty"`

	// set_log_level
	Level string `json:"level,omitempty"`
}

// Inbound frame types.
const (
	frameTextInput       = "text_input"
	frameRawAudioData    = "raw_audio_data"
	frameMicAudioEnd     = "mic_audio_end"
	frameInterruptSignal = "interrupt_signal"
	frameClearHistory    = "clear_history"
	frameSetLogLevel     = "set_log_level"
)
