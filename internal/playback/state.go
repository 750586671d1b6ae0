package playback

// State represents the playback state reported by the observed player.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateLoading
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateLoading:
		return "Loading"
	default:
		return "Unknown"
	}
}

// IsActive returns true if media is loaded (playing, paused or buffering).
// Only a stop ends the play session.
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused || s == StateLoading
}
