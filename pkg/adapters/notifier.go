package adapters

import (
	"context"
	"net/http"
)

// NotificationClient sends internal team notifications. It implements
// engine.Notifier.
type NotificationClient struct {
	client
}

func NewNotificationClient(baseURL string) *NotificationClient {
	return &NotificationClient{client: newClient(baseURL)}
}

type notifyRequest struct {
	UserIDs  []string       `json:"user_ids"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (c *NotificationClient) Notify(ctx context.Context, userIDs []string, title, message string, metadata map[string]any) error {
	return c.doJSON(ctx, http.MethodPost, "/internal/notifications", notifyRequest{
		UserIDs:  userIDs,
		Title:    title,
		Message:  message,
		Metadata: metadata,
	}, nil)
}
