package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sivanlv/pharmassist/pharmacy"
)

const (
	medicationsFile = "medications.json"
	inventoryFile   = "inventory.json"
	usersFile       = "users.json"
	feedbackFile    = "feedback.json"
)

// File persists each collection as a whole JSON document under dir.
// Saves go through a temp file + rename so a crash mid-write never leaves a
// truncated collection on disk.
type File struct {
	dir string
	mu  sync.Mutex
}

func NewFile(dir string) *File {
	return &File{dir: dir}
}

func (f *File) LoadMedications(ctx context.Context) ([]pharmacy.Medication, error) {
	return loadDocument[pharmacy.Medication](f, medicationsFile)
}

func (f *File) LoadInventory(ctx context.Context) ([]pharmacy.InventoryRecord, error) {
	return loadDocument[pharmacy.InventoryRecord](f, inventoryFile)
}

func (f *File) LoadUsers(ctx context.Context) ([]pharmacy.User, error) {
	return loadDocument[pharmacy.User](f, usersFile)
}

func (f *File) LoadFeedback(ctx context.Context) ([]pharmacy.Feedback, error) {
	return loadDocument[pharmacy.Feedback](f, feedbackFile)
}

func (f *File) SaveInventory(ctx context.Context, records []pharmacy.InventoryRecord) error {
	return saveDocument(f, inventoryFile, records)
}

func (f *File) SaveUsers(ctx context.Context, users []pharmacy.User) error {
	return saveDocument(f, usersFile, users)
}

func (f *File) SaveFeedback(ctx context.Context, entries []pharmacy.Feedback) error {
	return saveDocument(f, feedbackFile, entries)
}

func loadDocument[T any](f *File, name string) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := filepath.Join(f.dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && name == feedbackFile {
			// feedback starts empty; the other collections must be seeded
			return []T{}, nil
		}
		return nil, fmt.Errorf("read collection %s: %w", name, err)
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", name, err)
	}
	return out, nil
}

func saveDocument[T any](f *File, name string, data []T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if data == nil {
		data = []T{}
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}

	path := filepath.Join(f.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write collection %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit collection %s: %w", name, err)
	}
	return nil
}
