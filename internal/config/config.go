// Package config implements the persistent configuration store
// (component I): two documents, "settings" and "streamer_state", held
// in their own KV tree. Settings are read at startup and rewritten on
// user update; streamer state is written on every volume or
// output-selector change. Missing documents are created with defaults,
// matching the "open_at_startup -> write on change -> close on exit"
// singleton lifecycle described in the core design notes.
package config

import (
	"encoding/json"
	"os"

	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/model"
)

const (
	docSettings      = "settings"
	docStreamerState = "streamer_state"
)

// Settings holds the user-tunable parameters read at startup.
type Settings struct {
	MusicDirectory   string   `json:"music_directory"`
	ArtworkDirectory string   `json:"artwork_directory"`
	FollowSymlinks   bool     `json:"follow_symlinks"`
	Extensions       []string `json:"extensions"`
	RingBufferMs     int      `json:"ring_buffer_ms"`
	ByFolderDepth    int      `json:"by_folder_depth"` // resolved open question, SPEC_FULL.md §11.1
	HTTPPort         string   `json:"http_port"`
}

// DefaultSettings returns the settings used when no document exists yet.
func DefaultSettings() Settings {
	return Settings{
		MusicDirectory:   Env("MUSIC_DIRECTORY", "./music"),
		ArtworkDirectory: Env("ARTWORK_DIRECTORY", "./data/artwork"),
		FollowSymlinks:   false,
		Extensions:       []string{".flac", ".mp3", ".ogg", ".wav", ".m4a"},
		RingBufferMs:     1500,
		ByFolderDepth:    1,
		HTTPPort:         Env("PORT", "8080"),
	}
}

// Env returns the value of the environment variable key, or def if unset.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Store is the bbolt-backed configuration document store.
type Store struct {
	tree *kvstore.Tree
}

// Open wraps the given tree (normally db.Tree("config")).
func Open(tree *kvstore.Tree) *Store {
	return &Store{tree: tree}
}

// LoadSettings returns the persisted settings, or defaults (persisted
// immediately) if none exist yet.
func (s *Store) LoadSettings() (Settings, error) {
	b, ok := s.tree.Get([]byte(docSettings))
	if !ok {
		def := DefaultSettings()
		return def, s.SaveSettings(def)
	}
	var out Settings
	if err := json.Unmarshal(b, &out); err != nil {
		def := DefaultSettings()
		return def, s.SaveSettings(def)
	}
	return out, nil
}

// SaveSettings persists settings, overwriting the previous document.
func (s *Store) SaveSettings(settings Settings) error {
	b, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.tree.Put([]byte(docSettings), b)
}

// LoadStreamerState returns the persisted streamer state, or a default
// (mid-range volume, no output selected) if none exists yet.
func (s *Store) LoadStreamerState() (model.StreamerState, error) {
	b, ok := s.tree.Get([]byte(docStreamerState))
	if !ok {
		def := model.StreamerState{Volume: model.Volume{Current: 50, Min: 0, Max: 100, Step: 2}}
		return def, s.SaveStreamerState(def)
	}
	var out model.StreamerState
	if err := json.Unmarshal(b, &out); err != nil {
		def := model.StreamerState{Volume: model.Volume{Current: 50, Min: 0, Max: 100, Step: 2}}
		return def, s.SaveStreamerState(def)
	}
	return out, nil
}

// SaveStreamerState persists streamer state, overwriting the previous document.
func (s *Store) SaveStreamerState(state model.StreamerState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.tree.Put([]byte(docStreamerState), b)
}
