package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/pkg/salesforce"
)

// DefaultSalesforceFields maps status keys onto Salesforce fields.
var DefaultSalesforceFields = map[string]string{
	"status":           "Triage_Status__c",
	"profile_summary":  "Description",
	"manual_follow_up": "Triage_Follow_Up__c",
	"score":            "Triage_Score__c",
	"tier":             "Triage_Tier__c",
	"updated_at":       "Triage_Updated_At__c",
}

// SalesforceConfig controls how leads are located and which fields are sent.
type SalesforceConfig struct {
	// ExternalIDField holds the triage lead id on Lead records. Used when the
	// fields carry no email.
	ExternalIDField string
	FieldMap        map[string]string
}

// SalesforceUpdater mirrors status onto the Lead (or converted Contact).
type SalesforceUpdater struct {
	client salesforce.Client
	cfg    SalesforceConfig
}

// NewSalesforceUpdater creates a SalesforceUpdater.
func NewSalesforceUpdater(c salesforce.Client, cfg SalesforceConfig) *SalesforceUpdater {
	if cfg.ExternalIDField == "" {
		cfg.ExternalIDField = "Triage_Lead_ID__c"
	}
	if len(cfg.FieldMap) == 0 {
		cfg.FieldMap = DefaultSalesforceFields
	}
	return &SalesforceUpdater{client: c, cfg: cfg}
}

// Update implements Updater. Fields without a mapping are not sent; an
// update with nothing mapped is a no-op.
func (u *SalesforceUpdater) Update(ctx context.Context, leadID string, fields map[string]any) error {
	sfFields := u.mapFields(fields)
	if len(sfFields) == 0 {
		return nil
	}

	rec, err := u.locate(ctx, leadID, fields)
	if err != nil {
		return err
	}
	if rec == nil {
		return eris.Wrap(ErrLeadNotFound, fmt.Sprintf("status: salesforce record for %s", leadID))
	}
	return eris.Wrap(salesforce.UpdateRecord(ctx, u.client, *rec, sfFields), "status: salesforce update")
}

func (u *SalesforceUpdater) locate(ctx context.Context, leadID string, fields map[string]any) (*salesforce.Record, error) {
	if email, ok := fields["email"].(string); ok && strings.TrimSpace(email) != "" {
		rec, err := salesforce.FindPerson(ctx, u.client, email)
		return rec, eris.Wrap(err, "status: salesforce lookup")
	}
	p, err := salesforce.FindByField(ctx, u.client, salesforce.ObjectLead, u.cfg.ExternalIDField, leadID)
	if err != nil {
		return nil, eris.Wrap(err, "status: salesforce lookup")
	}
	if p == nil {
		return nil, nil
	}
	return &salesforce.Record{Object: salesforce.ObjectLead, Person: *p}, nil
}

func (u *SalesforceUpdater) mapFields(fields map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range fields {
		name, ok := u.cfg.FieldMap[k]
		if !ok || v == nil {
			continue
		}
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339)
		}
		out[name] = v
	}
	return out
}
