package billing

var transitions = map[InvoiceStatus][]InvoiceStatus{
	StatusDraft:   {StatusSent, StatusCancelled},
	StatusSent:    {StatusPaid, StatusCancelled, StatusOverdue},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusCancelled, StatusOverdue:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s InvoiceStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether an invoice may move from one status to another.
func CanTransition(from, to InvoiceStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Tallied reports whether the invoice amount has been folded into a daily tally.
func (inv Invoice) Tallied() bool {
	return inv.TallyDate != nil
}

// AffectsStock reports whether out movements were recorded for the invoice.
func (inv Invoice) AffectsStock() bool {
	return inv.Status == StatusSent || inv.Status == StatusOverdue || inv.Status == StatusPaid
}
