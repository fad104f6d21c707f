package tool

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/sivanlv/pharmassist/pharmacy"
)

var validate = validator.New()

type lookupByNameArgs struct {
	Name string `json:"name" validate:"required"`
}

type medicationArgs struct {
	MedicationID string `json:"medication_id" validate:"required"`
}

type inventoryArgs struct {
	MedicationID string `json:"medication_id" validate:"required"`
	StoreID      string `json:"store_id"`
}

type allergyArgs struct {
	MedicationID string `json:"medication_id" validate:"required"`
	UserID       string `json:"user_id"`
}

type reserveArgs struct {
	MedicationID string `json:"medication_id" validate:"required"`
	Quantity     int    `json:"quantity"`
	PhoneLast4   string `json:"phone_last4" validate:"required,len=4,numeric"`
	StoreID      string `json:"store_id"`
}

type cancelArgs struct {
	MedicationID string `json:"medication_id" validate:"required"`
	PhoneLast4   string `json:"phone_last4" validate:"required,len=4,numeric"`
	StoreID      string `json:"store_id"`
}

type cancelByIDArgs struct {
	ReservationID string `json:"reservation_id" validate:"required"`
	PhoneLast4    string `json:"phone_last4" validate:"required,len=4,numeric"`
}

type userArgs struct {
	PhoneLast4 string `json:"phone_last4" validate:"required,len=4,numeric"`
}

type feedbackArgs struct {
	Rating  int    `json:"rating"`
	Message string `json:"message" validate:"required"`
	UserID  string `json:"user_id"`
}

func (a inventoryArgs) storeOrDefault() string { return storeOrDefault(a.StoreID) }
func (a reserveArgs) storeOrDefault() string   { return storeOrDefault(a.StoreID) }
func (a cancelArgs) storeOrDefault() string    { return storeOrDefault(a.StoreID) }

func storeOrDefault(storeID string) string {
	if storeID == "" {
		return pharmacy.DefaultStoreID
	}
	return storeID
}

// decodeArgs maps the engine-supplied argument object onto a typed shape and
// validates it. Shape mismatches become BAD_ARGS faults; business-rule
// validation (positive quantity, rating range) stays in the engine so it can
// answer with its own codes.
func decodeArgs[T any](args map[string]any) (*T, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, pharmacy.NewFault(pharmacy.CodeBadArgs, err.Error())
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, pharmacy.NewFault(pharmacy.CodeBadArgs, err.Error())
	}
	if err := validate.Struct(&out); err != nil {
		return nil, pharmacy.NewFault(pharmacy.CodeBadArgs, err.Error())
	}
	return &out, nil
}
