package mfm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	lotsFilename     = "lots.jsonl"
	historyFilename  = "history.jsonl"
	foreignFilename  = "foreign.jsonl"
	modifiedFilename = "modified.json"
)

// FileRepository persists the state as JSONL files in a folder, in a way that
// is still human-readable and git-friendly.
//
// Every save rewrites the affected file through a temporary file and a rename.
type FileRepository struct {
	dir   string
	state State
}

// NewFileRepository returns a repository in dir. The folder is created on the first save.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

func (r *FileRepository) path(name string) string { return filepath.Join(r.dir, name) }

// Load implements Repository. Missing files are empty.
func (r *FileRepository) Load(ctx context.Context) (State, error) {
	var st State
	var err error
	if st.Lots, err = readLines[Lot](r.path(lotsFilename)); err != nil {
		return State{}, err
	}
	if st.Snapshots, err = readLines[Snapshot](r.path(historyFilename)); err != nil {
		return State{}, err
	}
	if st.Foreign, err = readLines[ForeignBalance](r.path(foreignFilename)); err != nil {
		return State{}, err
	}
	st.Modified = LastModified{}
	data, err := os.ReadFile(r.path(modifiedFilename))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return State{}, fmt.Errorf("cannot read %q: %w", modifiedFilename, err)
	default:
		if err := json.Unmarshal(data, &st.Modified); err != nil {
			return State{}, fmt.Errorf("parse error %s: %w", modifiedFilename, err)
		}
	}
	r.state = st
	return st, nil
}

func readLines[T any](filename string) ([]T, error) {
	f, err := os.Open(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open %q for reading: %w", filename, err)
	}
	defer f.Close()
	return decodeLines[T](filename, f)
}

// SaveLots implements Repository.
func (r *FileRepository) SaveLots(ctx context.Context, symbol string, lots []Lot) error {
	kept := slices.DeleteFunc(slices.Clone(r.state.Lots), func(l Lot) bool { return l.Symbol == symbol })
	kept = append(kept, lots...)
	slices.SortFunc(kept, func(a, b Lot) int {
		if c := strings.Compare(a.Symbol, b.Symbol); c != 0 {
			return c
		}
		return a.Sequence - b.Sequence
	})
	if err := writeLines(r.path(lotsFilename), kept); err != nil {
		return err
	}
	r.state.Lots = kept
	return nil
}

// SaveSnapshot implements Repository.
func (r *FileRepository) SaveSnapshot(ctx context.Context, s Snapshot) error {
	list := slices.Clone(r.state.Snapshots)
	i, found := slices.BinarySearchFunc(list, s, func(a, b Snapshot) int {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case a.Date.After(b.Date):
			return 1
		}
		return 0
	})
	if found {
		list[i] = s
	} else {
		list = slices.Insert(list, i, s)
	}
	if err := writeLines(r.path(historyFilename), list); err != nil {
		return err
	}
	r.state.Snapshots = list
	return nil
}

// SaveForeign implements Repository.
func (r *FileRepository) SaveForeign(ctx context.Context, b ForeignBalance) error {
	list := slices.DeleteFunc(slices.Clone(r.state.Foreign), func(x ForeignBalance) bool {
		return x.Currency == b.Currency && x.Account == b.Account
	})
	list = append(list, b)
	if err := writeLines(r.path(foreignFilename), list); err != nil {
		return err
	}
	r.state.Foreign = list
	return nil
}

// SaveModified implements Repository.
func (r *FileRepository) SaveModified(ctx context.Context, m LastModified) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(r.path(modifiedFilename), append(data, '\n')); err != nil {
		return err
	}
	r.state.Modified = m
	return nil
}

func writeLines[T any](filename string, items []T) error {
	var buf bytes.Buffer
	if err := encodeLines(&buf, items); err != nil {
		return fmt.Errorf("cannot encode %q: %w", filename, err)
	}
	return writeFile(filename, buf.Bytes())
}

func writeFile(filename string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create folder for %q: %w", filename, err)
	}
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("cannot replace %q: %w", filename, err)
	}
	return nil
}
