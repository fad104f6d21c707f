package pharmacy

import (
	"encoding/json"
	"fmt"
)

// Code identifies a tool-domain rejection. Faults carrying these codes are
// returned to the reasoning engine as data and never abort a turn.
type Code string

const (
	CodeNotFound             Code = "NOT_FOUND"
	CodeBadRequest           Code = "BAD_REQUEST"
	CodeAlreadyReserved      Code = "ALREADY_RESERVED"
	CodePrescriptionRequired Code = "PRESCRIPTION_REQUIRED"
	CodeInsufficientStock    Code = "INSUFFICIENT_STOCK"
	CodeNoReservation        Code = "NO_RESERVATION"
	CodeBadReservation       Code = "BAD_RESERVATION"
	CodeNoPrescriptions      Code = "NO_PRESCRIPTIONS"
	CodeNoReservations       Code = "NO_RESERVATIONS"
	CodeInvalidRating        Code = "INVALID_RATING"
	CodeUnknownTool          Code = "UNKNOWN_TOOL"
	CodeBadArgs              Code = "BAD_ARGS"
	CodeToolError            Code = "TOOL_ERROR"
)

// Fault is a structured operation rejection. It marshals flat:
// {"error_code": ..., "message": ..., <extra keys>}.
type Fault struct {
	Code    Code
	Message string
	Extra   map[string]any
}

func NewFault(code Code, message string) *Fault {
	return &Fault{Code: code, Message: message}
}

// With attaches a context key to the fault payload.
func (f *Fault) With(key string, value any) *Fault {
	if f.Extra == nil {
		f.Extra = make(map[string]any, 2)
	}
	f.Extra[key] = value
	return f
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *Fault) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, len(f.Extra)+2)
	for k, v := range f.Extra {
		payload[k] = v
	}
	payload["error_code"] = f.Code
	payload["message"] = f.Message
	return json.Marshal(payload)
}
