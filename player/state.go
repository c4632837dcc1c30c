// Package player is the adapter boundary to the music player page: the
// playback state contract every module consumes, the action vocabulary,
// and the rod-backed adapter that scrapes and drives the page DOM. Nothing
// outside this package touches selectors, and no unvalidated host data
// leaks past it.
package player

// Action is a playback operation the adapter can execute on the player.
type Action string

const (
	ActionPlay       Action = "play"
	ActionPause      Action = "pause"
	ActionNext       Action = "next"
	ActionPrevious   Action = "previous"
	ActionTogglePlay Action = "togglePlay"
)

// ValidAction reports whether s names a known playback action.
func ValidAction(s string) bool {
	switch Action(s) {
	case ActionPlay, ActionPause, ActionNext, ActionPrevious, ActionTogglePlay:
		return true
	}
	return false
}

// PlaybackState is the snapshot the adapter produces and every module
// consumes. String fields are empty when the page does not expose them;
// Progress and Duration are seconds.
type PlaybackState struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Album      string  `json:"album"`
	Year       int     `json:"year"`
	ArtworkURL string  `json:"artworkUrl"`
	IsPlaying  bool    `json:"isPlaying"`
	Progress   float64 `json:"progress"`
	Duration   float64 `json:"duration"`
}

// TrackKey is the identity used for change detection: title and artist,
// NUL-joined so neither field can collide with a separator occurring in
// the other. Empty when either half is unknown.
func (s PlaybackState) TrackKey() string {
	if s.Title == "" || s.Artist == "" {
		return ""
	}
	return s.Title + "\x00" + s.Artist
}

// ParseState validates a duck-typed value (typically the decoded data of a
// get-playback-state response) field by field into a PlaybackState.
// Unknown or mistyped fields fall back to the zero value for that field;
// nothing is ever propagated as an error.
func ParseState(data any) PlaybackState {
	fields, _ := data.(map[string]any)
	var st PlaybackState
	if fields == nil {
		return st
	}
	st.Title = stringField(fields, "title")
	st.Artist = stringField(fields, "artist")
	st.Album = stringField(fields, "album")
	st.Year = int(numberField(fields, "year"))
	st.ArtworkURL = stringField(fields, "artworkUrl")
	st.IsPlaying, _ = fields["isPlaying"].(bool)
	st.Progress = numberField(fields, "progress")
	st.Duration = numberField(fields, "duration")
	return st
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func numberField(fields map[string]any, key string) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
