package domain

// Phase is the recording state of one page session.
type Phase int

const (
	// PhaseIdle indicates nothing is being recorded.
	PhaseIdle Phase = iota
	// PhaseAwaitingSelection indicates the page waits for the user to click a message.
	PhaseAwaitingSelection
	// PhaseRecording indicates a container is resolved and messages are being captured.
	PhaseRecording
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingSelection:
		return "awaiting_selection"
	case PhaseRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// Label returns the text the status indicator renders for the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseAwaitingSelection:
		return "Awaiting Selection"
	case PhaseRecording:
		return "Recording"
	default:
		return "Inactive"
	}
}

// Reasons carried by a recording_stopped signal.
const (
	StopReasonSelectionTimeout = "selection_timeout"
	StopReasonContainerLost    = "container_lost"
	StopReasonNavigation       = "navigation"
	StopReasonStopped          = "stopped"
)

// TabStatus is the externally visible state of one tab.
type TabStatus struct {
	TabID         string `json:"tab_id"`
	URL           string `json:"url"`
	Phase         string `json:"phase"`
	Status        string `json:"status"`
	ContainerPath string `json:"container_path,omitempty"`
	Tracked       int    `json:"tracked"`
	Catalogued    int    `json:"catalogued"`
	Emitted       int    `json:"emitted"`
	Recoveries    int    `json:"recoveries"`
	Connected     bool   `json:"connected"`
}
