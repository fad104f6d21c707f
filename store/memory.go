package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sivanlv/pharmassist/pharmacy"
)

// Memory keeps all collections in process. Loads hand out deep copies so a
// caller's working copy never aliases committed state; saves copy back in.
type Memory struct {
	mu          sync.RWMutex
	medications []pharmacy.Medication
	inventory   []pharmacy.InventoryRecord
	users       []pharmacy.User
	feedback    []pharmacy.Feedback
}

func NewMemory(
	medications []pharmacy.Medication,
	inventory []pharmacy.InventoryRecord,
	users []pharmacy.User,
	feedback []pharmacy.Feedback,
) *Memory {
	return &Memory{
		medications: medications,
		inventory:   inventory,
		users:       users,
		feedback:    feedback,
	}
}

func (m *Memory) LoadMedications(ctx context.Context) ([]pharmacy.Medication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return deepCopy(m.medications)
}

func (m *Memory) LoadInventory(ctx context.Context) ([]pharmacy.InventoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return deepCopy(m.inventory)
}

func (m *Memory) LoadUsers(ctx context.Context) ([]pharmacy.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return deepCopy(m.users)
}

func (m *Memory) LoadFeedback(ctx context.Context) ([]pharmacy.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return deepCopy(m.feedback)
}

func (m *Memory) SaveInventory(ctx context.Context, records []pharmacy.InventoryRecord) error {
	copied, err := deepCopy(records)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory = copied
	return nil
}

func (m *Memory) SaveUsers(ctx context.Context, users []pharmacy.User) error {
	copied, err := deepCopy(users)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = copied
	return nil
}

func (m *Memory) SaveFeedback(ctx context.Context, entries []pharmacy.Feedback) error {
	copied, err := deepCopy(entries)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = copied
	return nil
}

func deepCopy[T any](in []T) ([]T, error) {
	if in == nil {
		return []T{}, nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("copy collection: %w", err)
	}
	out := make([]T, 0, len(in))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copy collection: %w", err)
	}
	return out, nil
}
