package recipients

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cleanearth/mailblast/internal/tabular"
)

func parseCSV(t *testing.T, input string) *tabular.Table {
	t.Helper()
	table, err := tabular.Parse("test.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("failed to parse table: %v", err)
	}
	return table
}

func TestExtractFromEmailColumn(t *testing.T) {
	table := parseCSV(t, `email,notes
ada@example.com,vip
not-an-email,junk
bob@example.org,
ada@example.com,duplicate
`)

	recs, err := Extract(table)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	emails := make([]string, len(recs))
	for i, r := range recs {
		emails[i] = r.Email
	}
	want := []string{"ada@example.com", "bob@example.org"}
	if !reflect.DeepEqual(emails, want) {
		t.Errorf("emails = %v, want %v", emails, want)
	}
}

func TestExtractIgnoresNonEmailColumns(t *testing.T) {
	// The notes column contains an address but must not leak in while a
	// named email column exists.
	table := parseCSV(t, `email,notes
ada@example.com,contact leak@example.net for info
`)

	recs, err := Extract(table)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Email != "ada@example.com" {
		t.Errorf("unexpected recipients: %v", recs)
	}
}

func TestExtractFallbackContentScan(t *testing.T) {
	table := parseCSV(t, `contact,details
"Ada <ada@example.com>",call later
nothing here,bob@example.org and ada@example.com
`)

	recs, err := Extract(table)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	emails := make([]string, len(recs))
	for i, r := range recs {
		emails[i] = r.Email
	}
	want := []string{"ada@example.com", "bob@example.org"}
	if !reflect.DeepEqual(emails, want) {
		t.Errorf("emails = %v, want %v", emails, want)
	}

	// Fallback path has no name mapping: local part is the display name.
	for _, r := range recs {
		if r.Name != LocalPart(r.Email) {
			t.Errorf("expected local part name for %s, got %q", r.Email, r.Name)
		}
	}
}

func TestExtractNameSynthesis(t *testing.T) {
	table := parseCSV(t, `first name,last name,email
Ada,Lovelace,ada@example.com
Grace,,grace@example.com
,,bob@example.org
`)

	recs, err := Extract(table)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	byEmail := make(map[string]string)
	for _, r := range recs {
		byEmail[r.Email] = r.Name
	}

	if byEmail["ada@example.com"] != "Ada Lovelace" {
		t.Errorf("expected Ada Lovelace, got %q", byEmail["ada@example.com"])
	}
	if byEmail["grace@example.com"] != "Grace" {
		t.Errorf("expected Grace, got %q", byEmail["grace@example.com"])
	}
	// Blank names fall back to the local part.
	if byEmail["bob@example.org"] != "bob" {
		t.Errorf("expected bob, got %q", byEmail["bob@example.org"])
	}
}

func TestExtractPlainNameColumn(t *testing.T) {
	table := parseCSV(t, `Email,Name
ada@example.com,Ada Lovelace
`)

	recs, err := Extract(table)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Name != "Ada Lovelace" {
		t.Errorf("unexpected recipients: %v", recs)
	}
}

func TestExtractLowercasesAndTrims(t *testing.T) {
	table := parseCSV(t, `email
  ADA@Example.COM
`)

	recs, err := Extract(table)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Email != "ada@example.com" {
		t.Errorf("unexpected recipients: %v", recs)
	}
}

func TestExtractIdempotent(t *testing.T) {
	input := `email,name
b@example.com,B
a@example.com,A
`
	first, err := Extract(parseCSV(t, input))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	second, err := Extract(parseCSV(t, input))
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("extractions differ: %v vs %v", first, second)
	}
}

func TestExtractEmptyTable(t *testing.T) {
	table := parseCSV(t, "email\n")

	recs, err := Extract(table)
	if err != nil {
		t.Fatalf("zero recipients must not be an error: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no recipients, got %v", recs)
	}
}

func TestParseManual(t *testing.T) {
	recs, err := ParseManual("ada@example.com,\n\n  BOB@example.org ; \nada@example.com\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	want := []Recipient{
		{Email: "ada@example.com", Name: "ada"},
		{Email: "bob@example.org", Name: "bob"},
	}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("recipients = %v, want %v", recs, want)
	}
}

func TestParseManualInvalid(t *testing.T) {
	_, err := ParseManual("ada@example.com\nnot-an-address\n")
	var ierr *InvalidAddressError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected InvalidAddressError, got %v", err)
	}
	if len(ierr.Addresses) != 1 || ierr.Addresses[0] != "not-an-address" {
		t.Errorf("unexpected invalid addresses: %v", ierr.Addresses)
	}
}

func TestMerge(t *testing.T) {
	a := []Recipient{{Email: "ada@example.com", Name: "Ada Lovelace"}}
	b := []Recipient{
		{Email: "ada@example.com", Name: "ada"},
		{Email: "bob@example.org", Name: "bob"},
	}

	got := Merge(a, b)
	want := []Recipient{
		{Email: "ada@example.com", Name: "Ada Lovelace"},
		{Email: "bob@example.org", Name: "bob"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merge = %v, want %v", got, want)
	}
}
