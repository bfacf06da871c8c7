// Package events defines the state-change event types carried on the
// broadcast bus (component H of the core spec).
package events

import "github.com/kallax-audio/audiocore/internal/model"

// Event is the tagged union of everything the bus can carry. Exactly
// one of the typed payload fields is meaningful, selected by Kind.
type Event struct {
	Kind Kind

	PlaybackState    model.PlayerState
	CurrentSong      model.Song
	SongTime         SongTime
	Mode             model.PlaybackMode
	StreamerState    model.StreamerState
	NotificationText string
	Queue            model.Page
	Playlists        []model.Playlist
	PlaylistItems    model.Page
	ScanProgress     ScanProgress
	LocalItems       []model.Song
	FavoriteStations []string
}

// Kind tags which payload field of Event is populated.
type Kind int

const (
	PlaybackStateEvent Kind = iota
	CurrentSongEvent
	SongTimeEvent
	RandomToggleEvent
	StreamerStateEvent
	NotificationSuccess
	CurrentQueueEvent
	PlaylistsEvent
	PlaylistItemsEvent
	MetadataSongScanStarted
	MetadataSongScanned
	MetadataSongScanFinished
	MetadataLocalItems
	FavoriteRadioStations
	Shutdown
)

// SongTime is the payload of SongTimeEvent.
type SongTime struct {
	CurrentSeconds int
	TotalSeconds   int
}

// ScanProgress is the payload of the Metadata*Scan* events.
type ScanProgress struct {
	Count       int
	Seconds     float64
	CurrentFile string
}

func NewPlaybackState(s model.PlayerState) Event {
	return Event{Kind: PlaybackStateEvent, PlaybackState: s}
}

func NewCurrentSong(s model.Song) Event {
	return Event{Kind: CurrentSongEvent, CurrentSong: s}
}

func NewSongTime(current, total int) Event {
	return Event{Kind: SongTimeEvent, SongTime: SongTime{CurrentSeconds: current, TotalSeconds: total}}
}

func NewModeChanged(m model.PlaybackMode) Event {
	return Event{Kind: RandomToggleEvent, Mode: m}
}

func NewStreamerState(s model.StreamerState) Event {
	return Event{Kind: StreamerStateEvent, StreamerState: s}
}

func NewNotification(text string) Event {
	return Event{Kind: NotificationSuccess, NotificationText: text}
}

func NewCurrentQueue(p model.Page) Event {
	return Event{Kind: CurrentQueueEvent, Queue: p}
}

func NewScanStarted() Event { return Event{Kind: MetadataSongScanStarted} }

func NewScanned(current string) Event {
	return Event{Kind: MetadataSongScanned, ScanProgress: ScanProgress{CurrentFile: current}}
}

func NewScanFinished(count int, seconds float64) Event {
	return Event{Kind: MetadataSongScanFinished, ScanProgress: ScanProgress{Count: count, Seconds: seconds}}
}

func NewShutdown() Event { return Event{Kind: Shutdown} }
