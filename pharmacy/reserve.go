package pharmacy

import "context"

type ReserveResult struct {
	Success     bool            `json:"success"`
	Reservation Reservation     `json:"reservation"`
	Inventory   InventoryStatus `json:"inventory"`
}

// Reserve places a stock hold for the user identified by phoneLast4.
// Check order is load-bearing: existence errors surface before business
// rejections, duplicate before the prescription gate, prescription before
// the stock check. Both collections are written only after every check
// passes, so a rejected call changes nothing.
func (s *Service) Reserve(ctx context.Context, medicationID string, quantity int, phoneLast4, storeID string) (*ReserveResult, error) {
	if quantity <= 0 {
		return nil, NewFault(CodeBadRequest, "Quantity must be a positive integer.")
	}
	if storeID == "" {
		storeID = DefaultStoreID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meds, err := s.store.LoadMedications(ctx)
	if err != nil {
		return nil, err
	}
	med := findMedication(meds, medicationID)
	if med == nil {
		return nil, NewFault(CodeNotFound, "Unknown medication_id.")
	}

	records, err := s.store.LoadInventory(ctx)
	if err != nil {
		return nil, err
	}
	rec := findInventory(records, storeID, medicationID)
	if rec == nil {
		return nil, NewFault(CodeNotFound, "No inventory record for that store/medication.")
	}

	users, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	user := findUserByLast4(users, phoneLast4)
	if user == nil {
		return nil, NewFault(CodeNotFound, "No user found for that phone number.")
	}

	for _, r := range user.Reservations {
		if r.MedicationID == medicationID && r.StoreID == storeID {
			return nil, NewFault(CodeAlreadyReserved, "An active reservation already exists for this medication at this store.").
				With("existing_reservation", r)
		}
	}

	if med.RequiresPrescription && !hasActivePrescription(user, medicationID) {
		return nil, NewFault(CodePrescriptionRequired, "This medication requires an active prescription.")
	}

	if avail := rec.Available(); avail < quantity {
		return nil, NewFault(CodeInsufficientStock, "Not enough stock available.").
			With("quantity_available", avail)
	}

	nowISO := s.nowISO()
	reservation := Reservation{
		ReservationID: s.newID(),
		MedicationID:  medicationID,
		StoreID:       storeID,
		Quantity:      quantity,
		CreatedAtISO:  nowISO,
	}
	user.Reservations = append(user.Reservations, reservation)
	rec.Reserved += quantity
	rec.LastUpdatedISO = nowISO

	// Two-document commit without a transaction: if the inventory save
	// fails after users committed, reserved undercounts until the
	// reservation is cancelled (the cancel clamp absorbs the drift).
	if err := s.store.SaveUsers(ctx, users); err != nil {
		return nil, err
	}
	if err := s.store.SaveInventory(ctx, records); err != nil {
		return nil, err
	}

	return &ReserveResult{
		Success:     true,
		Reservation: reservation,
		Inventory:   inventoryStatus(*rec),
	}, nil
}

func hasActivePrescription(user *User, medicationID string) bool {
	for _, rx := range user.Prescriptions {
		if rx.MedicationID == medicationID && rx.Status == PrescriptionActive {
			return true
		}
	}
	return false
}
