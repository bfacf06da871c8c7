// Package ws bridges the command dispatcher and event bus onto a single
// WebSocket connection per client, encoding both in the tagged-JSON wire
// shape spec.md §6 defines: {"Family":"Action"} for parameterless
// actions, {"Family":{"Action":payload}} otherwise. The read/write pump
// pattern is a single global command-and-event stream — every
// connected client sees the same dispatcher and the same bus, there
// are no per-connection roles here.
package ws

import (
	"encoding/json"
	"fmt"

	"github.com/kallax-audio/audiocore/internal/dispatcher"
)

// defaultQueuePageLimit bounds QueryCurrentQueue pages when the wire
// frame doesn't specify one (the reference wire format never does).
const defaultQueuePageLimit = 100

// decodeCommand parses one command frame into a dispatcher.Command.
func decodeCommand(raw []byte) (dispatcher.Command, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return dispatcher.Command{}, fmt.Errorf("ws: malformed command frame: %w", err)
	}
	if len(envelope) != 1 {
		return dispatcher.Command{}, fmt.Errorf("ws: command frame must have exactly one family key, got %d", len(envelope))
	}
	for family, body := range envelope {
		switch family {
		case "Player":
			return decodePlayer(body)
		case "Queue":
			return decodeQueue(body)
		case "Playlist":
			return decodePlaylist(body)
		case "Metadata":
			return decodeMetadata(body)
		case "System":
			return decodeSystem(body)
		default:
			return dispatcher.Command{}, fmt.Errorf("ws: unknown command family %q", family)
		}
	}
	return dispatcher.Command{}, fmt.Errorf("ws: empty command frame")
}

// action splits body into either a bare string ("Play") or a single-key
// object ({"Seek":12}), mirroring serde's externally-tagged enum
// encoding, and returns the action name plus its raw payload (nil for
// the bare-string case).
func action(body json.RawMessage) (string, json.RawMessage, error) {
	var name string
	if err := json.Unmarshal(body, &name); err == nil {
		return name, nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", nil, fmt.Errorf("ws: action must be a string or single-key object: %w", err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("ws: action object must have exactly one key, got %d", len(obj))
	}
	for k, v := range obj {
		return k, v, nil
	}
	return "", nil, fmt.Errorf("ws: unreachable")
}

func withID(payload json.RawMessage, ctor func(string) dispatcher.Command, what string) (dispatcher.Command, error) {
	var id string
	if err := json.Unmarshal(payload, &id); err != nil {
		return dispatcher.Command{}, fmt.Errorf("ws: %s: %w", what, err)
	}
	return ctor(id), nil
}

func decodePlayer(body json.RawMessage) (dispatcher.Command, error) {
	name, payload, err := action(body)
	if err != nil {
		return dispatcher.Command{}, err
	}
	switch name {
	case "Play":
		return dispatcher.NewPlayCommand(), nil
	case "Pause":
		return dispatcher.NewPauseCommand(), nil
	case "Next":
		return dispatcher.NewNextCommand(), nil
	case "Prev":
		return dispatcher.NewPrevCommand(), nil
	case "RandomToggle":
		return dispatcher.NewRandomToggleCommand(), nil
	case "Seek":
		var secs int
		if err := json.Unmarshal(payload, &secs); err != nil {
			return dispatcher.Command{}, fmt.Errorf("ws: Player.Seek: %w", err)
		}
		return dispatcher.NewSeekCommand(secs), nil
	case "PlayItem":
		return withID(payload, dispatcher.NewPlayItemCommand, "Player.PlayItem")
	default:
		return dispatcher.Command{}, fmt.Errorf("ws: unknown Player action %q", name)
	}
}

func decodeQueue(body json.RawMessage) (dispatcher.Command, error) {
	name, payload, err := action(body)
	if err != nil {
		return dispatcher.Command{}, err
	}
	switch name {
	case "AddSongToQueue":
		return withID(payload, dispatcher.NewQueueAddSongCommand, "Queue.AddSongToQueue")
	case "AddPlaylistToQueue":
		return withID(payload, dispatcher.NewQueueAddPlaylistCommand, "Queue.AddPlaylistToQueue")
	case "AddAlbumToQueue":
		return withID(payload, dispatcher.NewQueueAddAlbumCommand, "Queue.AddAlbumToQueue")
	case "AddDirectoryToQueue":
		return withID(payload, dispatcher.NewQueueAddDirectoryCommand, "Queue.AddDirectoryToQueue")
	case "LoadSongToQueue":
		return withID(payload, dispatcher.NewQueueLoadSongCommand, "Queue.LoadSongToQueue")
	case "LoadPlaylistToQueue":
		return withID(payload, dispatcher.NewQueueLoadPlaylistCommand, "Queue.LoadPlaylistToQueue")
	case "LoadAlbumToQueue":
		return withID(payload, dispatcher.NewQueueLoadAlbumCommand, "Queue.LoadAlbumToQueue")
	case "LoadDirectoryToQueue":
		return withID(payload, dispatcher.NewQueueLoadDirectoryCommand, "Queue.LoadDirectoryToQueue")
	case "RemoveSongFromQueue":
		return withID(payload, dispatcher.NewQueueRemoveCommand, "Queue.RemoveSongFromQueue")
	case "Clear":
		return dispatcher.NewQueueClearCommand(), nil
	case "QueryCurrentQueue":
		return decodeQueueQuery(payload)
	default:
		return dispatcher.Command{}, fmt.Errorf("ws: unknown Queue action %q", name)
	}
}

// decodeQueueQuery handles QueryCurrentQueue's own nested tag: "All" for
// an unfiltered page starting at the current song, or
// {"WithSearchTerm":[term, offset]} for a filtered page.
func decodeQueueQuery(payload json.RawMessage) (dispatcher.Command, error) {
	name, inner, err := action(payload)
	if err != nil {
		return dispatcher.Command{}, err
	}
	switch name {
	case "All":
		return dispatcher.NewQueueQueryCurrentCommand(0, defaultQueuePageLimit, ""), nil
	case "WithSearchTerm":
		var args []json.RawMessage
		if err := json.Unmarshal(inner, &args); err != nil || len(args) != 2 {
			return dispatcher.Command{}, fmt.Errorf("ws: Queue.QueryCurrentQueue.WithSearchTerm: expected [term, offset]")
		}
		var term string
		var offset int
		if err := json.Unmarshal(args[0], &term); err != nil {
			return dispatcher.Command{}, fmt.Errorf("ws: Queue.QueryCurrentQueue.WithSearchTerm term: %w", err)
		}
		if err := json.Unmarshal(args[1], &offset); err != nil {
			return dispatcher.Command{}, fmt.Errorf("ws: Queue.QueryCurrentQueue.WithSearchTerm offset: %w", err)
		}
		return dispatcher.NewQueueQueryCurrentCommand(offset, defaultQueuePageLimit, term), nil
	default:
		return dispatcher.Command{}, fmt.Errorf("ws: unknown QueryCurrentQueue variant %q", name)
	}
}

func decodePlaylist(body json.RawMessage) (dispatcher.Command, error) {
	name, payload, err := action(body)
	if err != nil {
		return dispatcher.Command{}, err
	}
	switch name {
	case "SaveQueueAsPlaylist":
		return withID(payload, dispatcher.NewPlaylistSaveCommand, "Playlist.SaveQueueAsPlaylist")
	case "DeletePlaylist":
		return withID(payload, dispatcher.NewPlaylistDeleteCommand, "Playlist.DeletePlaylist")
	case "QueryPlaylist":
		return dispatcher.NewPlaylistQueryCommand(), nil
	default:
		return dispatcher.Command{}, fmt.Errorf("ws: unknown Playlist action %q", name)
	}
}

func decodeMetadata(body json.RawMessage) (dispatcher.Command, error) {
	name, payload, err := action(body)
	if err != nil {
		return dispatcher.Command{}, err
	}
	switch name {
	case "RescanMetadata":
		var args []json.RawMessage
		if err := json.Unmarshal(payload, &args); err != nil || len(args) != 2 {
			return dispatcher.Command{}, fmt.Errorf("ws: Metadata.RescanMetadata: expected [root, full_scan]")
		}
		var fullScan bool
		if err := json.Unmarshal(args[1], &fullScan); err != nil {
			return dispatcher.Command{}, fmt.Errorf("ws: Metadata.RescanMetadata full_scan: %w", err)
		}
		return dispatcher.NewMetadataRescanCommand(fullScan), nil
	case "LikeMediaItem":
		return withID(payload, dispatcher.NewMetadataLikeCommand, "Metadata.LikeMediaItem")
	case "DislikeMediaItem":
		return withID(payload, dispatcher.NewMetadataDislikeCommand, "Metadata.DislikeMediaItem")
	default:
		return dispatcher.Command{}, fmt.Errorf("ws: unknown Metadata action %q", name)
	}
}

func decodeSystem(body json.RawMessage) (dispatcher.Command, error) {
	name, payload, err := action(body)
	if err != nil {
		return dispatcher.Command{}, err
	}
	switch name {
	case "SetVol":
		var v int
		if err := json.Unmarshal(payload, &v); err != nil {
			return dispatcher.Command{}, fmt.Errorf("ws: System.SetVol: %w", err)
		}
		return dispatcher.NewSystemSetVolumeCommand(v), nil
	case "VolUp":
		return dispatcher.NewSystemVolumeUpCommand(), nil
	case "VolDown":
		return dispatcher.NewSystemVolumeDownCommand(), nil
	case "RestartRSPlayer":
		return dispatcher.NewSystemRestartPlayerCommand(), nil
	case "PowerOff":
		return dispatcher.NewSystemPowerOffCommand(), nil
	case "RestartSystem":
		return dispatcher.NewSystemRestartSystemCommand(), nil
	default:
		return dispatcher.Command{}, fmt.Errorf("ws: unknown System action %q", name)
	}
}
