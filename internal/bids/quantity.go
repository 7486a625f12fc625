package bids

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Quantity is a line item amount in thousandths of a unit, the scale of
// bid_line_items.quantity (numeric(14,3)).
type Quantity int64

const (
	quantityScale  = 1000
	maxWholeDigits = 11

	// maxLineTotalCents keeps the subtotal of 500 lines times a markup in
	// basis points inside int64.
	maxLineTotalCents = 1_000_000_000_000
)

var (
	errQuantityFormat = errors.New("must be a positive decimal with at most 3 decimal places")
	errQuantityRange  = errors.New("is too large")
)

// ParseQuantity reads a plain decimal such as "42.5" without going through
// floating point. Exponents are rejected.
func ParseQuantity(s string) (Quantity, error) {
	whole, frac, dotted := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" || (dotted && frac == "") || len(frac) > 3 || !digits(whole) || !digits(frac) {
		return 0, errQuantityFormat
	}
	whole = strings.TrimLeft(whole, "0")
	if len(whole) > maxWholeDigits {
		return 0, errQuantityRange
	}

	var w, f int64
	if whole != "" {
		w, _ = strconv.ParseInt(whole, 10, 64)
	}
	if frac != "" {
		f, _ = strconv.ParseInt(frac+strings.Repeat("0", 3-len(frac)), 10, 64)
	}
	q := Quantity(w*quantityScale + f)
	if q <= 0 {
		return 0, errQuantityFormat
	}
	return q, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (q Quantity) String() string {
	whole, frac := int64(q)/quantityScale, int64(q)%quantityScale
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%03d", whole, frac), "0")
}

// MarshalJSON writes the quantity as a JSON number.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q Quantity) Value() (driver.Value, error) {
	return q.String(), nil
}

// Scan reads the numeric column, which lib/pq returns as text.
func (q *Quantity) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		*q = Quantity(v * quantityScale)
		return nil
	default:
		return fmt.Errorf("bids: cannot scan %T into Quantity", src)
	}
	parsed, err := ParseQuantity(s)
	if err != nil {
		return fmt.Errorf("bids: quantity %q: %w", s, err)
	}
	*q = parsed
	return nil
}

// LineTotal is quantity times unit cost in cents, rounded half up.
func LineTotal(q Quantity, unitCostCents int64) int64 {
	return (int64(q)*unitCostCents + quantityScale/2) / quantityScale
}

// lineTotalFits reports whether q × unit stays within maxLineTotalCents.
func lineTotalFits(q Quantity, unitCostCents int64) bool {
	if unitCostCents == 0 {
		return true
	}
	return int64(q) <= maxLineTotalCents*quantityScale/unitCostCents
}
