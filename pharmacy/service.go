package pharmacy

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store provides whole-collection load/save access to the record store.
// A load result is a private working copy; the engine is responsible for
// read-modify-write correctness (see Service.mu).
type Store interface {
	LoadMedications(ctx context.Context) ([]Medication, error)
	LoadInventory(ctx context.Context) ([]InventoryRecord, error)
	LoadUsers(ctx context.Context) ([]User, error)
	LoadFeedback(ctx context.Context) ([]Feedback, error)
	SaveInventory(ctx context.Context, records []InventoryRecord) error
	SaveUsers(ctx context.Context, users []User) error
	SaveFeedback(ctx context.Context, entries []Feedback) error
}

// Service implements the reservation/inventory engine. Every mutating
// operation runs its full load-compute-save sequence under mu so that
// concurrent reservations over the same (store, medication) key cannot
// lose updates. Read-only lookups skip the lock.
type Service struct {
	store Store
	mu    sync.Mutex

	now   func() time.Time
	newID func() string
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		newID: func() string {
			return "r_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

func (s *Service) nowISO() string {
	return s.now().UTC().Format(time.RFC3339)
}

// LookupResult carries an exact match (if any) plus partial matches for
// clarification on ambiguous or mistyped queries.
type LookupResult struct {
	Found      bool                `json:"found"`
	Medication *Medication         `json:"medication"`
	Matches    []MedicationSummary `json:"matches"`
}

// LookupMedicationByName matches case-insensitively against both brand and
// generic names. Substring hits always populate Matches, whether or not an
// exact match was found.
func (s *Service) LookupMedicationByName(ctx context.Context, name string) (*LookupResult, error) {
	meds, err := s.store.LoadMedications(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(name))
	out := &LookupResult{Matches: []MedicationSummary{}}
	for i := range meds {
		brand := strings.ToLower(meds[i].NameBrand)
		generic := strings.ToLower(meds[i].NameGeneric)
		if query == brand || query == generic {
			m := meds[i]
			out.Found = true
			out.Medication = &m
		}
		if strings.Contains(brand, query) || strings.Contains(generic, query) {
			out.Matches = append(out.Matches, MedicationSummary{
				MedicationID: meds[i].MedicationID,
				NameBrand:    meds[i].NameBrand,
				NameGeneric:  meds[i].NameGeneric,
			})
		}
	}
	return out, nil
}

func (s *Service) LookupMedicationByID(ctx context.Context, medicationID string) (*LookupResult, error) {
	meds, err := s.store.LoadMedications(ctx)
	if err != nil {
		return nil, err
	}
	med := findMedication(meds, medicationID)
	if med == nil {
		return nil, NewFault(CodeNotFound, "Unknown medication_id.")
	}
	return &LookupResult{Found: true, Medication: med}, nil
}

// InventoryStatus is the wire shape for a single (store, medication) record.
type InventoryStatus struct {
	MedicationID      string `json:"medication_id"`
	StoreID           string `json:"store_id"`
	Available         bool   `json:"available"`
	QuantityAvailable int    `json:"quantity_available"`
	QuantityOnHand    int    `json:"quantity_on_hand"`
	Reserved          int    `json:"reserved"`
	LastUpdatedISO    string `json:"last_updated_iso"`
}

func (s *Service) CheckInventory(ctx context.Context, medicationID, storeID string) (*InventoryStatus, error) {
	records, err := s.store.LoadInventory(ctx)
	if err != nil {
		return nil, err
	}
	rec := findInventory(records, storeID, medicationID)
	if rec == nil {
		return nil, NewFault(CodeNotFound, "No inventory record for that store/medication.")
	}
	status := inventoryStatus(*rec)
	return &status, nil
}

type PrescriptionRequirement struct {
	MedicationID         string `json:"medication_id"`
	RequiresPrescription bool   `json:"requires_prescription"`
	Note                 string `json:"note"`
}

func (s *Service) CheckPrescriptionRequirement(ctx context.Context, medicationID string) (*PrescriptionRequirement, error) {
	meds, err := s.store.LoadMedications(ctx)
	if err != nil {
		return nil, err
	}
	med := findMedication(meds, medicationID)
	if med == nil {
		return nil, NewFault(CodeNotFound, "Unknown medication_id.")
	}
	note := "OTC (no prescription required)"
	if med.RequiresPrescription {
		note = "Prescription-only"
	}
	return &PrescriptionRequirement{
		MedicationID:         medicationID,
		RequiresPrescription: med.RequiresPrescription,
		Note:                 note,
	}, nil
}

/* ------------------------------- helpers -------------------------------- */

func findMedication(meds []Medication, medicationID string) *Medication {
	for i := range meds {
		if meds[i].MedicationID == medicationID {
			m := meds[i]
			return &m
		}
	}
	return nil
}

func findInventory(records []InventoryRecord, storeID, medicationID string) *InventoryRecord {
	for i := range records {
		if records[i].StoreID == storeID && records[i].MedicationID == medicationID {
			return &records[i]
		}
	}
	return nil
}

func findUserByLast4(users []User, phoneLast4 string) *User {
	for i := range users {
		if users[i].PhoneLast4 == phoneLast4 {
			return &users[i]
		}
	}
	return nil
}

func medicationBrief(meds []Medication, medicationID string) *MedicationBrief {
	med := findMedication(meds, medicationID)
	if med == nil {
		return nil
	}
	return &MedicationBrief{
		MedicationID:         med.MedicationID,
		NameBrand:            med.NameBrand,
		NameGeneric:          med.NameGeneric,
		RequiresPrescription: med.RequiresPrescription,
	}
}

func inventoryStatus(rec InventoryRecord) InventoryStatus {
	avail := rec.Available()
	return InventoryStatus{
		MedicationID:      rec.MedicationID,
		StoreID:           rec.StoreID,
		Available:         avail > 0,
		QuantityAvailable: avail,
		QuantityOnHand:    rec.QuantityOnHand,
		Reserved:          rec.Reserved,
		LastUpdatedISO:    rec.LastUpdatedISO,
	}
}
