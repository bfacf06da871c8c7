package repository

import (
	"encoding/json"

	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/model"
)

// StatsRepository stores PlayItemStatistics (like/dislike/play-count)
// keyed by play item id, supplemented per SPEC_FULL.md §12.
type StatsRepository struct {
	tree *kvstore.Tree
}

func NewStatsRepository(tree *kvstore.Tree) *StatsRepository {
	return &StatsRepository{tree: tree}
}

func (r *StatsRepository) Get(id string) model.PlayItemStatistics {
	b, ok := r.tree.Get([]byte(id))
	if !ok {
		return model.PlayItemStatistics{PlayItemID: id}
	}
	var s model.PlayItemStatistics
	if err := json.Unmarshal(b, &s); err != nil {
		return model.PlayItemStatistics{PlayItemID: id}
	}
	return s
}

func (r *StatsRepository) save(s model.PlayItemStatistics) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.tree.Put([]byte(s.PlayItemID), b)
}

// IncrementPlayCount records a Play adoption, per the resolved open
// question that play-count increments on adoption, not completion.
func (r *StatsRepository) IncrementPlayCount(id string) (model.PlayItemStatistics, error) {
	s := r.Get(id)
	s.PlayCount++
	return s, r.save(s)
}

// Like increments liked_count.
func (r *StatsRepository) Like(id string) (model.PlayItemStatistics, error) {
	s := r.Get(id)
	s.LikedCount++
	return s, r.save(s)
}

// Dislike decrements liked_count, explicitly allowed to go negative per
// the resolved open question.
func (r *StatsRepository) Dislike(id string) (model.PlayItemStatistics, error) {
	s := r.Get(id)
	s.LikedCount--
	return s, r.save(s)
}

// IgnoredRepository records files the scanner could not probe, keyed by
// path, with the probe error string as the value, so future scans skip
// them without re-attempting a decode that's already known to fail.
// Paths are escaped with kvstore.EscapePathKey, the same key form the
// song tree uses.
type IgnoredRepository struct {
	tree *kvstore.Tree
}

func NewIgnoredRepository(tree *kvstore.Tree) *IgnoredRepository {
	return &IgnoredRepository{tree: tree}
}

func (r *IgnoredRepository) IsIgnored(path string) bool {
	_, ok := r.tree.Get([]byte(kvstore.EscapePathKey(path)))
	return ok
}

func (r *IgnoredRepository) MarkIgnored(path, reason string) error {
	return r.tree.PutString(kvstore.EscapePathKey(path), reason)
}

func (r *IgnoredRepository) Forget(path string) error {
	return r.tree.Delete([]byte(kvstore.EscapePathKey(path)))
}
