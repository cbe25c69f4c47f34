package domain

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchNew:       {BatchInProcess, BatchApproved, BatchRejected, BatchInReview},
	BatchInProcess: {BatchApproved, BatchRejected, BatchInReview},
	BatchApproved:  {BatchExported},
}

// CanTransition reports whether a batch may move from one status to another.
// EXPORTED is terminal and nothing reopens it.
func CanTransition(from, to BatchStatus) bool {
	for _, next := range batchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the batch to the requested status or returns a TransitionError.
func (b *Batch) Transition(to BatchStatus) error {
	if !CanTransition(b.Status, to) {
		return TransitionError{Batch: b.Code, From: b.Status, To: to}
	}
	b.Status = to
	return nil
}

// StatusForDecision maps a report decision onto the batch status it drives.
func StatusForDecision(decision CheckResult) BatchStatus {
	switch decision {
	case ResultApproved:
		return BatchApproved
	case ResultRejected:
		return BatchRejected
	default:
		return BatchInReview
	}
}

// ShipmentEligible reports whether a shipment trace may be created for b.
func (b Batch) ShipmentEligible() bool {
	return b.Status == BatchApproved
}

// Terminal reports whether no further transition is possible.
func (s BatchStatus) Terminal() bool {
	return len(batchTransitions[s]) == 0
}

var shipmentOrder = map[ShipmentState]int{
	ShipmentPreparation: 0,
	ShipmentShipped:     1,
	ShipmentDelivered:   2,
}

// CanAdvance reports whether a shipment may move forward to next. Shipments
// never move backwards.
func (s ShipmentState) CanAdvance(next ShipmentState) bool {
	cur, ok := shipmentOrder[s]
	if !ok {
		return false
	}
	n, ok := shipmentOrder[next]
	return ok && n > cur
}
