package pharmacy

import "context"

type CancelResult struct {
	Success   bool            `json:"success"`
	Cancelled Reservation     `json:"cancelled"`
	Inventory InventoryStatus `json:"inventory"`
}

// CancelByMedication removes the user's reservation for the given
// (medication, store) pair and releases the held stock.
func (s *Service) CancelByMedication(ctx context.Context, medicationID, phoneLast4, storeID string) (*CancelResult, error) {
	if storeID == "" {
		storeID = DefaultStoreID
	}
	return s.cancel(ctx, phoneLast4, func(r Reservation) bool {
		return r.MedicationID == medicationID && r.StoreID == storeID
	}, NewFault(CodeNoReservation, "No reservation for that medication at that store."))
}

// CancelByReservationID removes the reservation with the given id, provided
// it belongs to the user identified by phoneLast4.
func (s *Service) CancelByReservationID(ctx context.Context, reservationID, phoneLast4 string) (*CancelResult, error) {
	return s.cancel(ctx, phoneLast4, func(r Reservation) bool {
		return r.ReservationID == reservationID
	}, NewFault(CodeNotFound, "No reservation with that id."))
}

func (s *Service) cancel(ctx context.Context, phoneLast4 string, match func(Reservation) bool, missing *Fault) (*CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	user := findUserByLast4(users, phoneLast4)
	if user == nil {
		return nil, NewFault(CodeNotFound, "No user found for that phone number.")
	}
	if len(user.Reservations) == 0 {
		return nil, NewFault(CodeNoReservation, "User has no reservations.")
	}

	idx := -1
	for i, r := range user.Reservations {
		if match(r) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, missing
	}
	reservation := user.Reservations[idx]

	// A zero or negative quantity means the record was corrupted somewhere;
	// refuse to touch inventory bookkeeping with it.
	if reservation.Quantity <= 0 {
		return nil, NewFault(CodeBadReservation, "Reservation has an invalid quantity.").
			With("reservation", reservation)
	}

	records, err := s.store.LoadInventory(ctx)
	if err != nil {
		return nil, err
	}
	rec := findInventory(records, reservation.StoreID, reservation.MedicationID)
	if rec == nil {
		return nil, NewFault(CodeNotFound, "No inventory record for the reserved store/medication.").
			With("reservation", reservation)
	}

	// Floor at zero: drifted bookkeeping self-heals instead of going negative.
	rec.Reserved -= reservation.Quantity
	if rec.Reserved < 0 {
		rec.Reserved = 0
	}
	rec.LastUpdatedISO = s.nowISO()
	user.Reservations = append(user.Reservations[:idx], user.Reservations[idx+1:]...)

	if err := s.store.SaveUsers(ctx, users); err != nil {
		return nil, err
	}
	if err := s.store.SaveInventory(ctx, records); err != nil {
		return nil, err
	}

	return &CancelResult{
		Success:   true,
		Cancelled: reservation,
		Inventory: inventoryStatus(*rec),
	}, nil
}
