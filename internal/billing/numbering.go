package billing

import (
	"fmt"
	"time"
)

// DefaultNumberPrefix starts every invoice number.
const DefaultNumberPrefix = "INV"

// Allocator formats invoice numbers as <prefix>-<year>-<sequence>. The sequence is
// the count of invoices already numbered in the business year plus one, zero padded
// to six digits; uniqueness is enforced by the store.
type Allocator struct {
	Prefix   string
	Location *time.Location
}

// NewAllocator returns an Allocator that resolves years in loc.
func NewAllocator(loc *time.Location) Allocator {
	if loc == nil {
		loc = time.UTC
	}
	return Allocator{Prefix: DefaultNumberPrefix, Location: loc}
}

// Year returns the business year of now.
func (a Allocator) Year(now time.Time) int {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Year()
}

// Candidate returns the number to try after count invoices exist in the year of now.
func (a Allocator) Candidate(count int64, now time.Time) string {
	prefix := a.Prefix
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, a.Year(now), count+1)
}
