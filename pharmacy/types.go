package pharmacy

// DefaultStoreID is the well-known store used when a caller omits store_id.
const DefaultStoreID = "s001"

type Ingredient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Medication is immutable reference data; no operation mutates it.
type Medication struct {
	MedicationID         string       `json:"medication_id"`
	NameBrand            string       `json:"name_brand"`
	NameGeneric          string       `json:"name_generic"`
	ActiveIngredients    []Ingredient `json:"active_ingredients"`
	RequiresPrescription bool         `json:"requires_prescription"`
}

// MedicationSummary is the lightweight shape returned for partial name matches.
type MedicationSummary struct {
	MedicationID string `json:"medication_id"`
	NameBrand    string `json:"name_brand"`
	NameGeneric  string `json:"name_generic"`
}

// MedicationBrief enriches user-record listings with the joined medication.
type MedicationBrief struct {
	MedicationID         string `json:"medication_id"`
	NameBrand            string `json:"name_brand"`
	NameGeneric          string `json:"name_generic"`
	RequiresPrescription bool   `json:"requires_prescription"`
}

// InventoryRecord is keyed by (store_id, medication_id).
// Invariant: 0 <= reserved <= quantity_on_hand.
type InventoryRecord struct {
	StoreID        string `json:"store_id"`
	MedicationID   string `json:"medication_id"`
	QuantityOnHand int    `json:"quantity_on_hand"`
	Reserved       int    `json:"reserved"`
	LastUpdatedISO string `json:"last_updated_iso"`
}

// Available is on-hand minus reserved, floored at zero.
func (r InventoryRecord) Available() int {
	avail := r.QuantityOnHand - r.Reserved
	if avail < 0 {
		return 0
	}
	return avail
}

type Prescription struct {
	RxID         string `json:"rx_id"`
	MedicationID string `json:"medication_id"`
	Status       string `json:"status"`
}

const PrescriptionActive = "active"

// Reservation exists only while present in the owning user's list;
// cancellation removes it rather than flipping a status.
type Reservation struct {
	ReservationID string `json:"reservation_id"`
	MedicationID  string `json:"medication_id"`
	StoreID       string `json:"store_id"`
	Quantity      int    `json:"quantity"`
	CreatedAtISO  string `json:"created_at_iso"`
}

type User struct {
	UserID        string         `json:"user_id"`
	PhoneLast4    string         `json:"phone_last4"`
	Allergies     []string       `json:"allergies"`
	Prescriptions []Prescription `json:"active_prescriptions"`
	Reservations  []Reservation  `json:"reservations"`
}

type Feedback struct {
	FeedbackID   string `json:"feedback_id"`
	UserID       string `json:"user_id,omitempty"`
	Rating       int    `json:"rating"`
	Message      string `json:"message"`
	CreatedAtISO string `json:"created_at_iso"`
}
