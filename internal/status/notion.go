package status

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-triage/pkg/notion"
)

// NotionConfig locates the leads database and its key columns.
type NotionConfig struct {
	DatabaseID     string
	LeadIDProperty string // rich-text column holding the lead id, default "Lead ID"
	TitleProperty  string // default "Name"
	CreateMissing  bool
}

// NotionUpdater mirrors status onto the lead's page in a Notion database.
type NotionUpdater struct {
	client notion.Client
	cfg    NotionConfig
}

// NewNotionUpdater creates a NotionUpdater.
func NewNotionUpdater(c notion.Client, cfg NotionConfig) *NotionUpdater {
	if cfg.LeadIDProperty == "" {
		cfg.LeadIDProperty = "Lead ID"
	}
	if cfg.TitleProperty == "" {
		cfg.TitleProperty = "Name"
	}
	return &NotionUpdater{client: c, cfg: cfg}
}

// Update implements Updater.
func (u *NotionUpdater) Update(ctx context.Context, leadID string, fields map[string]any) error {
	page, err := notion.FindPageByText(ctx, u.client, u.cfg.DatabaseID, u.cfg.LeadIDProperty, leadID)
	if err != nil {
		return eris.Wrap(err, "status: notion lookup")
	}

	props := notion.Properties(fields)
	if page != nil {
		if _, err := u.client.UpdatePage(ctx, string(page.ID), &notionapi.PageUpdateRequest{Properties: props}); err != nil {
			return eris.Wrap(err, "status: notion update")
		}
		return nil
	}

	if !u.cfg.CreateMissing {
		return eris.Wrap(ErrLeadNotFound, fmt.Sprintf("status: notion page for %s", leadID))
	}

	title := leadID
	if name, ok := fields["name"].(string); ok && name != "" {
		title = name
	}
	props[u.cfg.TitleProperty] = notion.Title(title)
	props[u.cfg.LeadIDProperty] = notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: notion.Text(leadID),
	}
	_, err = u.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(u.cfg.DatabaseID),
		},
		Properties: props,
	})
	if err != nil {
		return eris.Wrap(err, "status: notion create")
	}
	return nil
}
