// Package blueprint keeps saved selections as zstd-compressed JSON files,
// one per name, under a subdirectory of the data directory.
package blueprint

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"sections.ai/internal/sim/grid"
)

const (
	Version = 1
	ext     = ".bp.json.zst"
)

var (
	ErrNotFound    = errors.New("blueprint not found")
	ErrExists      = errors.New("blueprint already exists")
	ErrInvalidName = errors.New("invalid blueprint name")
)

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("blueprint.schema.json", schemaJSON)

type File struct {
	Version int            `json:"version"`
	Name    string         `json:"name"`
	SavedAt time.Time      `json:"saved_at"`
	Grids   []grid.Builder `json:"grids"`
}

// Blocks counts the blocks of every grid.
func (f File) Blocks() int {
	n := 0
	for _, g := range f.Grids {
		n += len(g.Blocks)
	}
	return n
}

// Saved describes a blueprint written by Save.
type Saved struct {
	Name    string
	Path    string
	Grids   int
	Blocks  int
	Size    int64
	SavedAt time.Time
}

type Store struct {
	dir string
	now func() time.Time

	mu        sync.Mutex
	listeners []func(Saved)
}

// Open returns a store rooted at dataDir/subdir, creating it if needed.
func Open(dataDir, subdir string) (*Store, error) {
	dir := filepath.Join(dataDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blueprint: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

// OnSaved registers fn to run after every successful save.
func (s *Store) OnSaved(fn func(Saved)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// FileName maps a blueprint name to its file name. Characters outside
// letters, digits, space, dash, underscore and dot become underscores.
func FileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == ' ', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
	return clean + ext, nil
}

func (s *Store) path(name string) (string, error) {
	fn, err := FileName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, fn), nil
}

func (s *Store) Exists(name string) (bool, error) {
	p, err := s.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Save writes grids under name. The first grid is the main one; world
// positions are censored so that it sits at the origin. Without replace an
// existing blueprint fails with ErrExists.
func (s *Store) Save(name string, grids []grid.Builder, replace bool) error {
	if len(grids) == 0 {
		return fmt.Errorf("blueprint: %q has no grids", name)
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !replace {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%w: %q", ErrExists, name)
		}
	}

	f := File{
		Version: Version,
		Name:    strings.TrimSpace(name),
		SavedAt: s.now().UTC(),
		Grids:   CensorWorldPosition(grids),
	}
	size, err := writeFile(p, f)
	if err != nil {
		return fmt.Errorf("blueprint: save %q: %w", name, err)
	}
	saved := Saved{
		Name:    f.Name,
		Path:    p,
		Grids:   len(f.Grids),
		Blocks:  f.Blocks(),
		Size:    size,
		SavedAt: f.SavedAt,
	}
	for _, fn := range s.listeners {
		fn(saved)
	}
	return nil
}

// CensorWorldPosition returns a copy of grids translated so that the first
// grid is at the origin.
func CensorWorldPosition(grids []grid.Builder) []grid.Builder {
	out := make([]grid.Builder, len(grids))
	copy(out, grids)
	if len(out) == 0 {
		return out
	}
	origin := out[0].Position
	for i := range out {
		for k := 0; k < 3; k++ {
			out[i].Position[k] -= origin[k]
		}
	}
	return out
}

func (s *Store) Load(name string) (File, error) {
	p, err := s.path(name)
	if err != nil {
		return File{}, err
	}
	f, err := ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return File{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return f, err
}

// List returns the names of stored blueprints, sorted.
func (s *Store) List() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+ext))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		f, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f.Name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Delete(name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return err
	}
	return nil
}

func writeFile(path string, f File) (int64, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return int64(buf.Len()), nil
}

// ReadFile decodes and validates one blueprint file.
func ReadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer fh.Close()

	dec, err := zstd.NewReader(fh)
	if err != nil {
		return File{}, err
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return Decode(raw)
}

// Decode validates raw JSON against the blueprint schema and decodes it.
func Decode(raw []byte) (File, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return File{}, fmt.Errorf("blueprint: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return File{}, fmt.Errorf("blueprint: invalid: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("blueprint: %w", err)
	}
	return f, nil
}
