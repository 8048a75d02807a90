// Package recipients turns uploaded tables and pasted address lists into
// a deduplicated set of validated recipients with display names.
package recipients

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cleanearth/mailblast/internal/tabular"
)

// emailPattern finds email-like substrings anywhere in a cell.
var emailPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

// strictEmailPattern matches a cell that is exactly one email address.
var strictEmailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

// Recipient is one validated destination address with a display name
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// InvalidAddressError reports manually entered addresses that failed
// validation. The campaign must not start.
type InvalidAddressError struct {
	Addresses []string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid email addresses: %s", strings.Join(e.Addresses, ", "))
}

// Extract pulls recipients out of a parsed table.
//
// Columns whose names match an email alias are used directly, keeping
// only cells that are exactly one address. When no column matches by
// name, every column is scanned for email-like substrings instead; that
// path produces no name mapping, so display names fall back to the
// address's local part. The result is deduplicated by email and sorted
// so repeated extractions of one file are identical.
func Extract(t *tabular.Table) ([]Recipient, error) {
	class := Classify(t.Columns())

	if !class.HasEmailColumns() {
		return scanAllColumns(t), nil
	}

	seen := make(map[string]bool)
	var emails []string
	for _, col := range class.EmailColumns {
		for _, cell := range t.ColumnValues(col) {
			email := strings.ToLower(strings.TrimSpace(cell))
			if email == "" || !strictEmailPattern.MatchString(email) {
				continue
			}
			if !seen[email] {
				seen[email] = true
				emails = append(emails, email)
			}
		}
	}
	sort.Strings(emails)

	out := make([]Recipient, 0, len(emails))
	for _, email := range emails {
		out = append(out, Recipient{Email: email, Name: lookupName(t, class, email)})
	}
	return out, nil
}

// scanAllColumns is the fallback when no column name matches: extract
// every email-like substring from every cell, duplicates collapsed.
func scanAllColumns(t *tabular.Table) []Recipient {
	seen := make(map[string]bool)
	var emails []string

	for col := range t.Columns() {
		for _, cell := range t.ColumnValues(col) {
			for _, match := range emailPattern.FindAllString(cell, -1) {
				email := strings.ToLower(match)
				if !seen[email] {
					seen[email] = true
					emails = append(emails, email)
				}
			}
		}
	}
	sort.Strings(emails)

	out := make([]Recipient, 0, len(emails))
	for _, email := range emails {
		out = append(out, Recipient{Email: email, Name: LocalPart(email)})
	}
	return out
}

// lookupName finds the display name for an email by locating its row in
// the first email column and reading that row's name cells. Blank or
// unresolvable names default to the address's local part.
func lookupName(t *tabular.Table, class Classification, email string) string {
	if !class.HasNameColumns() {
		return LocalPart(email)
	}

	emailCol := class.EmailColumns[0]
	for row := 0; row < t.NumRows(); row++ {
		if strings.ToLower(strings.TrimSpace(t.Cell(row, emailCol))) != email {
			continue
		}

		var name string
		if class.FirstColumn >= 0 && class.LastColumn >= 0 {
			first := strings.TrimSpace(t.Cell(row, class.FirstColumn))
			last := strings.TrimSpace(t.Cell(row, class.LastColumn))
			name = strings.TrimSpace(first + " " + last)
		} else {
			name = strings.TrimSpace(t.Cell(row, class.NameColumn))
		}

		if name != "" {
			return name
		}
		break
	}

	return LocalPart(email)
}

// ParseManual parses an address list typed by the operator, split on
// newlines, commas or semicolons. Every non-blank entry must be exactly
// one address; otherwise an InvalidAddressError listing the offenders
// is returned.
func ParseManual(text string) ([]Recipient, error) {
	seen := make(map[string]bool)
	var out []Recipient
	var invalid []string

	split := func(r rune) bool { return r == '\n' || r == ',' || r == ';' }
	for _, line := range strings.FieldsFunc(text, split) {
		entry := strings.TrimSpace(line)
		if entry == "" {
			continue
		}
		email := strings.ToLower(entry)
		if !strictEmailPattern.MatchString(email) {
			invalid = append(invalid, entry)
			continue
		}
		if !seen[email] {
			seen[email] = true
			out = append(out, Recipient{Email: email, Name: LocalPart(email)})
		}
	}

	if len(invalid) > 0 {
		return nil, &InvalidAddressError{Addresses: invalid}
	}
	return out, nil
}

// Merge combines recipient sets, keeping the first occurrence of each
// email, and returns the union sorted by address
func Merge(sets ...[]Recipient) []Recipient {
	seen := make(map[string]bool)
	var out []Recipient
	for _, set := range sets {
		for _, r := range set {
			if !seen[r.Email] {
				seen[r.Email] = true
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// LocalPart returns the part of an address before the @
func LocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
