package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const (
	Weekly  Window = "weekly"
	Monthly Window = "monthly"
)

const dateLayout = "2006-01-02"

type (
	TxType string

	// Window is the reporting window used to phrase insight requests.
	Window string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string `json:"id"`
		Amount      Money  `json:"amount"`
		Category    string `json:"category"`
		Date        Date   `json:"date"`
		Type        TxType `json:"type"`
		Description string `json:"description"`
		Notes       string `json:"notes,omitempty"`
	}

	// Draft is the raw form input for a transaction before validation.
	Draft struct {
		Amount      string `json:"amount"`
		Category    string `json:"category"`
		Date        string `json:"date"`
		Type        TxType `json:"type"`
		Description string `json:"description"`
		Notes       string `json:"notes,omitempty"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidDate      = errors.New("invalid date")
)

// KnownCategories is the default category taxonomy offered to users.
var KnownCategories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Education",
	"Travel",
	"Salary",
	"Freelance",
	"Investment",
	"Other",
}

func (t TxType) IsValid() bool {
	return t == Income || t == Expense
}

func (w Window) IsValid() bool {
	return w == Weekly || w == Monthly
}

// Toggle flips between weekly and monthly.
func (w Window) Toggle() Window {
	if w == Monthly {
		return Weekly
	}
	return Monthly
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Today returns the current calendar date in UTC.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return NewDate(y, int(m), d)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Stored collections may carry full timestamps; keep only the calendar day.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NewID returns a time-ordered unique identifier for a transaction.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (d Draft) Validate() error {
	if _, err := ParseAmount(d.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(d.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if d.Type != "" && !d.Type.IsValid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(d.Date) != "" {
		if _, err := ParseDate(d.Date); err != nil {
			return err
		}
	}
	return nil
}

// Build validates the draft and turns it into a transaction with the given id.
// An empty type defaults to expense and an empty date to today.
func (d Draft) Build(id string) (Transaction, error) {
	if err := d.Validate(); err != nil {
		return Transaction{}, err
	}
	amount, _ := ParseAmount(d.Amount)

	date := Today()
	if strings.TrimSpace(d.Date) != "" {
		date, _ = ParseDate(d.Date)
	}
	typ := d.Type
	if typ == "" {
		typ = Expense
	}

	return Transaction{
		ID:          id,
		Amount:      amount,
		Category:    strings.TrimSpace(d.Category),
		Date:        date,
		Type:        typ,
		Description: strings.TrimSpace(d.Description),
		Notes:       strings.TrimSpace(d.Notes),
	}, nil
}

// DraftFrom returns the draft that would rebuild t, used to prefill edit forms.
func DraftFrom(t Transaction) Draft {
	return Draft{
		Amount:      t.Amount.String(),
		Category:    t.Category,
		Date:        t.Date.String(),
		Type:        t.Type,
		Description: t.Description,
		Notes:       t.Notes,
	}
}

// Equal reports whether two transactions carry the same values. Amounts are
// compared numerically so 12.5 and 12.50 are equal.
func (t Transaction) Equal(o Transaction) bool {
	return t.ID == o.ID &&
		t.Amount.Equal(o.Amount.Decimal) &&
		t.Category == o.Category &&
		t.Date.Equal(o.Date.Time) &&
		t.Type == o.Type &&
		t.Description == o.Description &&
		t.Notes == o.Notes
}
