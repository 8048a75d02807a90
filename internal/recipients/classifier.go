package recipients

import "strings"

var emailAliases = []string{"email", "e-mail", "mail", "email address", "emailaddress"}

var nameAliases = []string{"name", "first name", "firstname", "full name", "fullname", "last name", "lastname"}

var firstAliases = []string{"first name", "firstname"}

var lastAliases = []string{"last name", "lastname"}

// Classification is the result of matching column names against the
// known email and name aliases. Indexes refer to the table's columns in
// their original left-to-right order; -1 means not found.
//
// When both FirstColumn and LastColumn are set, the display name is
// synthesized from the pair and NameColumn is -1. Otherwise NameColumn
// is the leftmost qualifying name column, used verbatim.
type Classification struct {
	EmailColumns []int
	NameColumn   int
	FirstColumn  int
	LastColumn   int
}

// HasEmailColumns reports whether any column matched an email alias
func (c Classification) HasEmailColumns() bool {
	return len(c.EmailColumns) > 0
}

// HasNameColumns reports whether any usable name column was found
func (c Classification) HasNameColumns() bool {
	return c.NameColumn >= 0 || (c.FirstColumn >= 0 && c.LastColumn >= 0)
}

// Classify matches column names case-insensitively against the email and
// name aliases. A column qualifies when its lowercased name contains an
// alias as a substring.
func Classify(columns []string) Classification {
	c := Classification{NameColumn: -1, FirstColumn: -1, LastColumn: -1}
	firstQualifying := -1

	for i, col := range columns {
		name := strings.ToLower(col)

		if containsAny(name, emailAliases) {
			c.EmailColumns = append(c.EmailColumns, i)
		}

		if containsAny(name, nameAliases) {
			if firstQualifying < 0 {
				firstQualifying = i
			}
			if containsAny(name, firstAliases) && c.FirstColumn < 0 {
				c.FirstColumn = i
			}
			if containsAny(name, lastAliases) && c.LastColumn < 0 {
				c.LastColumn = i
			}
		}
	}

	if c.FirstColumn >= 0 && c.LastColumn >= 0 {
		return c
	}

	// No first/last pair: fall back to the leftmost qualifying column.
	c.FirstColumn = -1
	c.LastColumn = -1
	c.NameColumn = firstQualifying
	return c
}

func containsAny(s string, aliases []string) bool {
	for _, alias := range aliases {
		if strings.Contains(s, alias) {
			return true
		}
	}
	return false
}
