package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	recipesFile = "recipes.json"
	scansFile   = "scans.json"
)

// FileStore keeps recipes and scan results in JSON files under a data
// directory. Every mutation rewrites the affected file.
type FileStore struct {
	dir string
	log *zap.Logger

	mu      sync.RWMutex
	recipes []*Recipe
	scans   map[string]*Draft
}

// NewFileStore loads the store from dir, creating the directory and a seed
// recipe when nothing exists yet.
func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &FileStore{dir: dir, log: log, scans: map[string]*Draft{}}

	found, err := s.readJSON(recipesFile, &s.recipes)
	if err != nil {
		return nil, err
	}
	if !found {
		s.recipes = []*Recipe{seedRecipe()}
		if err := s.writeJSON(recipesFile, s.recipes); err != nil {
			return nil, err
		}
		log.Info("Seeded recipe store", zap.String("dir", dir))
	}
	for _, r := range s.recipes {
		r.normalize()
	}

	if _, err := s.readJSON(scansFile, &s.scans); err != nil {
		return nil, err
	}
	if s.scans == nil {
		s.scans = map[string]*Draft{}
	}

	return s, nil
}

func seedRecipe() *Recipe {
	return &Recipe{
		ID:           1,
		Title:        "Example Pancakes",
		Description:  "Fluffy starter recipe",
		Ingredients:  []string{"Flour", "Eggs", "Milk"},
		Instructions: "Mix, cook, eat.",
	}
}

// ListRecipes implements Store.
func (s *FileStore) ListRecipes(_ context.Context, query string) ([]*Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]*Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		if q == "" || strings.Contains(strings.ToLower(r.Title), q) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// GetRecipe implements Store.
func (s *FileStore) GetRecipe(_ context.Context, id int64) (*Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.recipes[i].Clone(), nil
	}
	return nil, nil
}

// CreateRecipe implements Store.
func (s *FileStore) CreateRecipe(_ context.Context, r *Recipe) (*Recipe, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := r.Clone()
	created.ID = s.nextID()
	created.normalize()

	prev := s.recipes
	s.recipes = append(append([]*Recipe(nil), prev...), created)
	if err := s.writeJSON(recipesFile, s.recipes); err != nil {
		s.recipes = prev
		return nil, err
	}
	return created.Clone(), nil
}

// UpdateRecipe implements Store.
func (s *FileStore) UpdateRecipe(_ context.Context, id int64, p Patch) (*Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, nil
	}

	updated := s.recipes[i].Clone()
	if err := p.Apply(updated); err != nil {
		return nil, err
	}

	prev := s.recipes[i]
	s.recipes[i] = updated
	if err := s.writeJSON(recipesFile, s.recipes); err != nil {
		s.recipes[i] = prev
		return nil, err
	}
	return updated.Clone(), nil
}

// DeleteRecipe implements Store.
func (s *FileStore) DeleteRecipe(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}

	prev := s.recipes
	next := make([]*Recipe, 0, len(prev)-1)
	next = append(next, prev[:i]...)
	next = append(next, prev[i+1:]...)
	s.recipes = next
	if err := s.writeJSON(recipesFile, s.recipes); err != nil {
		s.recipes = prev
		return false, err
	}
	return true, nil
}

// GetScan implements Store.
func (s *FileStore) GetScan(_ context.Context, mediaHash string) (*Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.scans[mediaHash]
	if !ok {
		return nil, nil
	}
	c := *d
	c.Ingredients = append([]string(nil), d.Ingredients...)
	return &c, nil
}

// SaveScan implements Store.
func (s *FileStore) SaveScan(_ context.Context, mediaHash string, d *Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.scans[mediaHash]
	c := *d
	s.scans[mediaHash] = &c
	if err := s.writeJSON(scansFile, s.scans); err != nil {
		if had {
			s.scans[mediaHash] = prev
		} else {
			delete(s.scans, mediaHash)
		}
		return err
	}
	return nil
}

// Close implements Store. Files are written on every change, so there is
// nothing to flush.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) indexOf(id int64) int {
	for i, r := range s.recipes {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) nextID() int64 {
	var max int64
	for _, r := range s.recipes {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

// readJSON decodes name into v and reports whether the file existed.
func (s *FileStore) readJSON(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return true, nil
}

// writeJSON replaces name atomically with the indented encoding of v.
func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	s.log.Debug("Wrote data file", zap.String("file", name), zap.Int("bytes", len(data)))
	return nil
}
