package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Object names for the records a lead can live in.
const (
	ObjectLead    = "Lead"
	ObjectContact = "Contact"
)

// Person is the subset of a Lead or Contact record used to locate it.
type Person struct {
	ID        string `json:"Id" salesforce:"Id"`
	Email     string `json:"Email" salesforce:"Email"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Title     string `json:"Title" salesforce:"Title"`
}

// Record locates a person in a specific object.
type Record struct {
	Object string
	Person
}

var personFields = []string{"Id", "Email", "FirstName", "LastName", "Title"}

// FindByEmail looks the address up in the given object. Returns nil when no
// record matches.
func FindByEmail(ctx context.Context, c Client, object, email string) (*Person, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, eris.New("sf: email is required")
	}
	return FindByField(ctx, c, object, "Email", email)
}

// FindByField returns the most recently modified record whose field equals
// value, or nil when none match.
func FindByField(ctx context.Context, c Client, object, field, value string) (*Person, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = '%s' ORDER BY LastModifiedDate DESC LIMIT 1",
		strings.Join(personFields, ", "),
		object,
		field,
		escapeSoql(value),
	)

	var people []Person
	if err := c.Query(ctx, soql, &people); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find %s by %s %s", strings.ToLower(object), strings.ToLower(field), value))
	}
	if len(people) == 0 {
		return nil, nil
	}
	return &people[0], nil
}

// FindPerson searches Leads first, then Contacts (converted leads).
func FindPerson(ctx context.Context, c Client, email string) (*Record, error) {
	for _, obj := range []string{ObjectLead, ObjectContact} {
		p, err := FindByEmail(ctx, c, obj, email)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return &Record{Object: obj, Person: *p}, nil
		}
	}
	return nil, nil
}

// UpdateRecord updates a Lead or Contact with the given fields.
func UpdateRecord(ctx context.Context, c Client, rec Record, fields map[string]any) error {
	if rec.ID == "" {
		return eris.New("sf: record id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, rec.Object, rec.ID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update %s %s", strings.ToLower(rec.Object), rec.ID))
	}
	return nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
