package player

// Selectors for the player page DOM. Kept in one place so page markup
// changes touch a single file.
const (
	selPlayPauseButton  = "ytmusic-player-bar #play-pause-button"
	selNextButton       = "ytmusic-player-bar .next-button"
	selPreviousButton   = "ytmusic-player-bar .previous-button"
	selPlayerBar        = "ytmusic-player-bar"
	selSongArtContainer = "#song-image"
	selVideoElement     = ".html5-main-video"
	selNativeMiniPlayer = ".player-minimize-button"
)

// NativeMiniPlayerSelector is exported for the mini-player controller,
// which hijacks the native affordance.
const NativeMiniPlayerSelector = selNativeMiniPlayer

// PlayerBarSelector and SongArtSelector locate the two persistent
// visualizer surfaces.
const (
	PlayerBarSelector = selPlayerBar
	SongArtSelector   = selSongArtContainer
)
