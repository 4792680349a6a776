package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
)

// CRMClient reads and mutates contacts through the CRM subsystem's internal
// API. It implements engine.ContactStore.
type CRMClient struct {
	client
}

func NewCRMClient(baseURL string) *CRMClient {
	return &CRMClient{client: newClient(baseURL)}
}

func (c *CRMClient) contactPath(tenantID, contactID, suffix string) string {
	return fmt.Sprintf("/internal/tenants/%s/contacts/%s%s",
		url.PathEscape(tenantID), url.PathEscape(contactID), suffix)
}

func (c *CRMClient) ContactByID(ctx context.Context, tenantID, contactID string) (*models.Contact, error) {
	var contact models.Contact

	if err := c.doJSON(ctx, http.MethodGet, c.contactPath(tenantID, contactID, ""), nil, &contact); err != nil {
		return nil, err
	}

	return &contact, nil
}

func (c *CRMClient) AddTag(ctx context.Context, tenantID, contactID, tag string) error {
	return c.doJSON(ctx, http.MethodPost, c.contactPath(tenantID, contactID, "/tags"),
		map[string]string{"tag": tag}, nil)
}

func (c *CRMClient) RemoveTag(ctx context.Context, tenantID, contactID, tag string) error {
	return c.doJSON(ctx, http.MethodDelete, c.contactPath(tenantID, contactID, "/tags/"+url.PathEscape(tag)),
		nil, nil)
}

func (c *CRMClient) SetPipelineStage(ctx context.Context, tenantID, contactID, stageID string) error {
	return c.doJSON(ctx, http.MethodPut, c.contactPath(tenantID, contactID, "/pipeline-stage"),
		map[string]string{"stage_id": stageID}, nil)
}

func (c *CRMClient) SetRecoveryStage(ctx context.Context, tenantID, contactID, stageID string) error {
	return c.doJSON(ctx, http.MethodPut, c.contactPath(tenantID, contactID, "/recovery-stage"),
		map[string]string{"stage_id": stageID}, nil)
}

func (c *CRMClient) TeamMemberIDs(ctx context.Context, tenantID string) ([]string, error) {
	var resp struct {
		UserIDs []string `json:"user_ids"`
	}

	path := fmt.Sprintf("/internal/tenants/%s/team-members", url.PathEscape(tenantID))

	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return resp.UserIDs, nil
}
