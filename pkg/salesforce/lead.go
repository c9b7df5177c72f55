package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead represents a Salesforce Lead record.
type Lead struct {
	ID         string `json:"Id" salesforce:"Id"`
	LastName   string `json:"LastName" salesforce:"LastName"`
	Company    string `json:"Company" salesforce:"Company"`
	Phone      string `json:"Phone" salesforce:"Phone"`
	Email      string `json:"Email" salesforce:"Email"`
	Website    string `json:"Website" salesforce:"Website"`
	City       string `json:"City" salesforce:"City"`
	State      string `json:"State" salesforce:"State"`
	PostalCode string `json:"PostalCode" salesforce:"PostalCode"`
	LeadSource string `json:"LeadSource" salesforce:"LeadSource"`
	Status     string `json:"Status" salesforce:"Status"`
}

// leadFields are the SOQL fields selected for Lead queries.
var leadFields = []string{
	"Id", "LastName", "Company", "Phone", "Email", "Website",
	"City", "State", "PostalCode", "LeadSource", "Status",
}

// FindLeadsByContact queries Salesforce for Leads matching any of the given
// phone numbers or email addresses. Returns an empty slice when both lists
// are empty without issuing a query.
func FindLeadsByContact(ctx context.Context, c Client, phones, emails []string) ([]Lead, error) {
	var conds []string
	if len(phones) > 0 {
		conds = append(conds, fmt.Sprintf("Phone IN (%s)", quoteList(phones)))
	}
	if len(emails) > 0 {
		conds = append(conds, fmt.Sprintf("Email IN (%s)", quoteList(emails)))
	}
	if len(conds) == 0 {
		return nil, nil
	}

	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE %s",
		strings.Join(leadFields, ", "),
		strings.Join(conds, " OR "),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, "sf: find leads by contact")
	}
	return leads, nil
}

// quoteList renders values as a comma-separated list of SOQL string literals.
func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + escapeSoql(v) + "'"
	}
	return strings.Join(quoted, ", ")
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
