// Package names interns identifier and keyword strings to dense integer IDs
// for the lifetime of one simulator session.
package names

import (
	"errors"
	"unicode"
)

// ErrBadName is returned by Query when a string is not a legal identifier.
var ErrBadName = errors.New("names: not a legal identifier")

// ID is a stable, session-lifetime identifier for an interned string.
type ID int

// Table interns strings to IDs in first-seen order. The zero value is not
// usable; construct one with New.
type Table struct {
	strings []string
	ids     map[string]ID
	errNext int
}

// New returns an empty, ready-to-use Table.
func New() *Table {
	return &Table{
		ids: make(map[string]ID),
	}
}

// Lookup returns the ID for each name, interning any name seen for the
// first time. The result order matches the input order.
func (t *Table) Lookup(ns []string) []ID {
	out := make([]ID, len(ns))
	for i, s := range ns {
		out[i] = t.intern(s)
	}
	return out
}

func (t *Table) intern(s string) ID {
	if id, ok := t.ids[s]; ok {
		return id
	}
	id := ID(len(t.strings))
	t.strings = append(t.strings, s)
	t.ids[s] = id
	return id
}

// Query returns the ID for name if it has been interned already. It fails
// with ErrBadName if name is not alphanumeric-starting-with-a-letter, or is
// purely numeric.
func Query(t *Table, name string) (ID, bool, error) {
	if !isLegalIdentifier(name) {
		return 0, false, ErrBadName
	}
	id, ok := t.ids[name]
	return id, ok, nil
}

func isLegalIdentifier(s string) bool {
	if s == "" {
		return false
	}
	allDigits := true
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return false
			}
		} else if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
	}
	return !allDigits
}

// GetString returns the interned string for id, or "", false if id is out
// of range.
func (t *Table) GetString(id ID) (string, bool) {
	if id < 0 || int(id) >= len(t.strings) {
		return "", false
	}
	return t.strings[id], true
}

// MustLookup interns a single name and returns its ID, for callers that
// already know the name is well-formed (keyword registration, generated
// port names).
func (t *Table) MustLookup(s string) ID {
	return t.intern(s)
}

// String returns the interned string for id, or a bracketed placeholder if
// id is out of range, so callers formatting identifiers (the simulator's
// Format, behind the CLI's fmt subcommand) never need to repeat GetString's
// absent-check idiom themselves.
func (t *Table) String(id ID) string {
	if s, ok := t.GetString(id); ok {
		return s
	}
	return "<?>"
}

// ReserveErrorCodes monotonically allocates n fresh error codes and returns
// the first one allocated; the range [first, first+n) belongs to the
// caller and is never reused.
func (t *Table) ReserveErrorCodes(n int) int {
	first := t.errNext
	t.errNext += n
	return first
}
