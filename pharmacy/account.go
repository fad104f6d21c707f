package pharmacy

import (
	"context"
	"fmt"
	"strings"
)

const allergyDisclaimer = "This is not medical advice. For safety and personalized guidance, consult a pharmacist or healthcare professional."

type PrescriptionEntry struct {
	RxID       string           `json:"rx_id"`
	Status     string           `json:"status"`
	Medication *MedicationBrief `json:"medication"`
}

type PrescriptionList struct {
	Success             bool                `json:"success"`
	Count               int                 `json:"count"`
	ActivePrescriptions []PrescriptionEntry `json:"active_prescriptions"`
}

// ActivePrescriptions lists the user's active-status prescriptions, each
// joined with its medication summary. An empty result is a NO_PRESCRIPTIONS
// fault rather than an empty success list.
func (s *Service) ActivePrescriptions(ctx context.Context, phoneLast4 string) (*PrescriptionList, error) {
	users, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	user := findUserByLast4(users, phoneLast4)
	if user == nil {
		return nil, NewFault(CodeNotFound, "No user found for that phone number.")
	}

	meds, err := s.store.LoadMedications(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]PrescriptionEntry, 0, len(user.Prescriptions))
	for _, rx := range user.Prescriptions {
		if rx.Status != PrescriptionActive {
			continue
		}
		entries = append(entries, PrescriptionEntry{
			RxID:       rx.RxID,
			Status:     rx.Status,
			Medication: medicationBrief(meds, rx.MedicationID),
		})
	}
	if len(entries) == 0 {
		return nil, NewFault(CodeNoPrescriptions, "No active prescriptions on file.")
	}
	return &PrescriptionList{Success: true, Count: len(entries), ActivePrescriptions: entries}, nil
}

type ReservationEntry struct {
	Reservation
	Medication *MedicationBrief `json:"medication"`
}

type ReservationList struct {
	Success      bool               `json:"success"`
	Count        int                `json:"count"`
	Reservations []ReservationEntry `json:"reservations"`
}

// Reservations lists the user's reservations joined with medication summaries.
func (s *Service) Reservations(ctx context.Context, phoneLast4 string) (*ReservationList, error) {
	users, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	user := findUserByLast4(users, phoneLast4)
	if user == nil {
		return nil, NewFault(CodeNotFound, "No user found for that phone number.")
	}
	if len(user.Reservations) == 0 {
		return nil, NewFault(CodeNoReservations, "No reservations on file.")
	}

	meds, err := s.store.LoadMedications(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]ReservationEntry, 0, len(user.Reservations))
	for _, r := range user.Reservations {
		entries = append(entries, ReservationEntry{
			Reservation: r,
			Medication:  medicationBrief(meds, r.MedicationID),
		})
	}
	return &ReservationList{Success: true, Count: len(entries), Reservations: entries}, nil
}

type AllergyReport struct {
	MedicationID      string       `json:"medication_id"`
	ActiveIngredients []Ingredient `json:"active_ingredients"`
	AllergyFlag       *bool        `json:"allergy_flag"`
	AllergyMatches    []string     `json:"allergy_matches"`
	Disclaimer        string       `json:"disclaimer"`
}

// AllergyCheck lists a medication's active ingredients. When userID is given,
// the user's allergy terms are matched case-insensitively against ingredient
// names; AllergyFlag stays nil for anonymous callers.
func (s *Service) AllergyCheck(ctx context.Context, medicationID, userID string) (*AllergyReport, error) {
	meds, err := s.store.LoadMedications(ctx)
	if err != nil {
		return nil, err
	}
	med := findMedication(meds, medicationID)
	if med == nil {
		return nil, NewFault(CodeNotFound, "Unknown medication_id.")
	}

	report := &AllergyReport{
		MedicationID:      medicationID,
		ActiveIngredients: med.ActiveIngredients,
		AllergyMatches:    []string{},
		Disclaimer:        allergyDisclaimer,
	}
	if userID == "" {
		return report, nil
	}

	users, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	var user *User
	for i := range users {
		if users[i].UserID == userID {
			user = &users[i]
			break
		}
	}
	if user == nil {
		return nil, NewFault(CodeNotFound, "Unknown user_id.")
	}

	ingredients := make(map[string]struct{}, len(med.ActiveIngredients))
	for _, ing := range med.ActiveIngredients {
		ingredients[strings.ToLower(ing.Name)] = struct{}{}
	}
	for _, a := range user.Allergies {
		if _, ok := ingredients[strings.ToLower(a)]; ok {
			report.AllergyMatches = append(report.AllergyMatches, a)
		}
	}
	flag := len(report.AllergyMatches) > 0
	report.AllergyFlag = &flag
	return report, nil
}

type FeedbackReceipt struct {
	Success      bool   `json:"success"`
	FeedbackID   string `json:"feedback_id"`
	CreatedAtISO string `json:"created_at_iso"`
}

// SubmitFeedback appends a customer feedback record. Ids are sequential
// within the collection (fb0001, fb0002, ...).
func (s *Service) SubmitFeedback(ctx context.Context, rating int, message, userID string) (*FeedbackReceipt, error) {
	if rating < 1 || rating > 5 {
		return nil, NewFault(CodeInvalidRating, "Rating must be 1-5.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.LoadFeedback(ctx)
	if err != nil {
		return nil, err
	}
	entry := Feedback{
		FeedbackID:   fmt.Sprintf("fb%04d", len(entries)+1),
		UserID:       userID,
		Rating:       rating,
		Message:      message,
		CreatedAtISO: s.nowISO(),
	}
	entries = append(entries, entry)
	if err := s.store.SaveFeedback(ctx, entries); err != nil {
		return nil, err
	}
	return &FeedbackReceipt{Success: true, FeedbackID: entry.FeedbackID, CreatedAtISO: entry.CreatedAtISO}, nil
}
