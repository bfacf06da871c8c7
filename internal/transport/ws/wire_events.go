package ws

import (
	"encoding/json"

	"github.com/kallax-audio/audiocore/internal/events"
)

// encodeEvent renders a bus event in the same tagged shape decodeCommand
// parses commands in, keyed by the event's Kind name (spec.md §6:
// "Events are emitted in the same tagged-JSON shape on the WebSocket").
func encodeEvent(ev events.Event) ([]byte, error) {
	switch ev.Kind {
	case events.PlaybackStateEvent:
		return wrap("PlaybackStateEvent", map[string]any{"state": ev.PlaybackState.String()})
	case events.CurrentSongEvent:
		return wrap("CurrentSongEvent", map[string]any{"song": ev.CurrentSong})
	case events.SongTimeEvent:
		return wrap("SongTimeEvent", map[string]any{
			"current": ev.SongTime.CurrentSeconds,
			"total":   ev.SongTime.TotalSeconds,
		})
	case events.RandomToggleEvent:
		return wrap("RandomToggleEvent", map[string]any{"mode": ev.Mode.String()})
	case events.StreamerStateEvent:
		return wrap("StreamerStateEvent", ev.StreamerState)
	case events.NotificationSuccess:
		return wrap("NotificationSuccess", map[string]any{"text": ev.NotificationText})
	case events.CurrentQueueEvent:
		return wrap("CurrentQueueEvent", ev.Queue)
	case events.PlaylistsEvent:
		return wrap("PlaylistsEvent", map[string]any{"list": ev.Playlists})
	case events.PlaylistItemsEvent:
		return wrap("PlaylistItemsEvent", ev.PlaylistItems)
	case events.MetadataSongScanStarted:
		return wrap("MetadataSongScanStarted", nil)
	case events.MetadataSongScanned:
		return wrap("MetadataSongScanned", map[string]any{"current_file": ev.ScanProgress.CurrentFile})
	case events.MetadataSongScanFinished:
		return wrap("MetadataSongScanFinished", map[string]any{
			"count":   ev.ScanProgress.Count,
			"seconds": ev.ScanProgress.Seconds,
		})
	case events.MetadataLocalItems:
		return wrap("MetadataLocalItems", map[string]any{"items": ev.LocalItems})
	case events.FavoriteRadioStations:
		return wrap("FavoriteRadioStations", map[string]any{"ids": ev.FavoriteStations})
	case events.Shutdown:
		return wrap("Shutdown", nil)
	default:
		return wrap("Unknown", nil)
	}
}

// lagged is sent in place of a regular event when a subscriber's backlog
// overflowed; its own tag lets clients distinguish it from ordinary
// events so they know to resynchronise (spec.md §4.H).
func lagged() ([]byte, error) {
	return wrap("Lagged", nil)
}

func wrap(kind string, payload any) ([]byte, error) {
	return json.Marshal(map[string]any{kind: payload})
}
