package core

import (
	"strings"
)

// Validator rejects malformed records before they are appended. It is a pure
// check: the returned record is the input with blank defaults filled in.
type Validator struct {
	// Members restricts Transaction.Person. Empty means any value is accepted.
	Members []string
}

// NewValidator creates a validator for the given household members.
func NewValidator(members []string) Validator {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return Validator{Members: out}
}

// Transaction checks t. Categories are open-ended and the account reference is
// not checked against existing assets.
func (v Validator) Transaction(t Transaction) (Transaction, error) {
	if err := t.Date.Validate(); err != nil {
		return Transaction{}, invalid("date", err)
	}
	if !t.Kind.IsValid() {
		return Transaction{}, invalid("kind", ErrInvalidKind)
	}
	if !t.Amount.IsPositive() {
		return Transaction{}, invalid("amount", ErrInvalidAmount)
	}
	t.Category = strings.TrimSpace(t.Category)
	t.Account = strings.TrimSpace(t.Account)
	t.Note = strings.TrimSpace(t.Note)
	t.Person = strings.TrimSpace(t.Person)
	if t.Person == "" {
		t.Person = Household
	}
	if !v.knownPerson(t.Person) {
		return Transaction{}, invalid("person", ErrUnknownPerson)
	}
	return t, nil
}

// Snapshot checks s. Balances may be negative or zero (a closed account).
func (v Validator) Snapshot(s AssetSnapshot) (AssetSnapshot, error) {
	if err := s.Date.Validate(); err != nil {
		return AssetSnapshot{}, invalid("date", err)
	}
	s.Identity.Name = strings.TrimSpace(s.Identity.Name)
	if s.Identity.Name == "" {
		return AssetSnapshot{}, invalid("asset_name", ErrEmptyAssetName)
	}
	s.Identity.Owner = strings.TrimSpace(s.Identity.Owner)
	if s.Identity.Owner == "" {
		s.Identity.Owner = JointOwner
	}
	if !s.Class.IsValid() {
		return AssetSnapshot{}, invalid("asset_class", ErrInvalidAssetClass)
	}
	return s, nil
}

func (v Validator) knownPerson(p string) bool {
	if len(v.Members) == 0 || p == Household {
		return true
	}
	for _, m := range v.Members {
		if m == p {
			return true
		}
	}
	return false
}
