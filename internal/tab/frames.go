package tab

import "github.com/ashureev/chat-recorder/internal/dom"

// Frames sent by the page.
const (
	FrameSnapshot       = "snapshot"
	FrameMutations      = "mutations"
	FrameClick          = "click"
	FrameNavigate       = "navigate"
	FrameStartSelection = "start_selection"
	FrameStopRecording  = "stop_recording"
	FramePing           = "ping"
)

// Frames sent to the page.
const (
	FrameShowHint         = "show_hint"
	FrameHideHint         = "hide_hint"
	FrameRecordingStarted = "recording_started"
	FrameRecordingStopped = "recording_stopped"
	FrameResync           = "resync"
	FrameError            = "error"
	FramePong             = "pong"
)

// Inbound is a frame received from the page bridge.
type Inbound struct {
	Type    string       `json:"type"`
	URL     string       `json:"url,omitempty"`
	HTML    string       `json:"html,omitempty"`
	Seq     uint64       `json:"seq,omitempty"`
	Records []dom.Record `json:"records,omitempty"`
	Path    string       `json:"path,omitempty"`
}

// Outbound is a frame sent to the page bridge.
type Outbound struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}
