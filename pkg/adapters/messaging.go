package adapters

import (
	"context"
	"net/http"
)

// MessagingClient delivers automation content through the messaging
// subsystem's internal API. It implements engine.MessageAdapter.
type MessagingClient struct {
	client
}

func NewMessagingClient(baseURL string) *MessagingClient {
	return &MessagingClient{client: newClient(baseURL)}
}

type sendTextRequest struct {
	ChannelRef string `json:"channel_ref"`
	Text       string `json:"text"`
}

type sendMediaRequest struct {
	ChannelRef string `json:"channel_ref"`
	MediaType  string `json:"media_type"`
	URL        string `json:"url"`
	Caption    string `json:"caption,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

func (c *MessagingClient) SendText(ctx context.Context, channelRef, text string) (string, error) {
	var resp sendResponse

	err := c.doJSON(ctx, http.MethodPost, "/internal/messages/text", sendTextRequest{
		ChannelRef: channelRef,
		Text:       text,
	}, &resp)
	if err != nil {
		return "", err
	}

	return resp.MessageID, nil
}

func (c *MessagingClient) SendMedia(ctx context.Context, channelRef, mediaType, url, caption string) (string, error) {
	var resp sendResponse

	err := c.doJSON(ctx, http.MethodPost, "/internal/messages/media", sendMediaRequest{
		ChannelRef: channelRef,
		MediaType:  mediaType,
		URL:        url,
		Caption:    caption,
	}, &resp)
	if err != nil {
		return "", err
	}

	return resp.MessageID, nil
}
