// Package engine implements the automation flow execution engine: trigger
// dispatching, menu reply routing, the execution interpreter and the
// resumption sweeper.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
)

// AdapterErrorKind classifies message adapter failures.
type AdapterErrorKind string

const (
	// ChannelUnavailable means the delivery channel rejected the send
	// (disconnected session, closed conversation).
	ChannelUnavailable AdapterErrorKind = "channel_unavailable"
	// InvalidPayload means the adapter rejected the content itself.
	InvalidPayload AdapterErrorKind = "invalid_payload"
)

// AdapterError is the typed failure raised by message adapters.
type AdapterError struct {
	Kind    AdapterErrorKind
	Message string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsChannelUnavailable checks whether err is a channel availability failure.
func IsChannelUnavailable(err error) bool {
	var adapterErr *AdapterError

	return errors.As(err, &adapterErr) && adapterErr.Kind == ChannelUnavailable
}

// MessageAdapter delivers content to a contact over the messaging channel.
// channelRef is the conversation ID when the execution has one, otherwise the
// contact's channel identifier.
type MessageAdapter interface {
	SendText(ctx context.Context, channelRef, text string) (messageID string, err error)
	SendMedia(ctx context.Context, channelRef, mediaType, url, caption string) (messageID string, err error)
}

// ContactStore reads contact snapshots and applies action node mutations.
type ContactStore interface {
	ContactByID(ctx context.Context, tenantID, contactID string) (*models.Contact, error)
	AddTag(ctx context.Context, tenantID, contactID, tag string) error
	RemoveTag(ctx context.Context, tenantID, contactID, tag string) error
	SetPipelineStage(ctx context.Context, tenantID, contactID, stageID string) error
	SetRecoveryStage(ctx context.Context, tenantID, contactID, stageID string) error

	// TeamMemberIDs lists every member of the tenant, used when a notify
	// action has no explicit recipient list.
	TeamMemberIDs(ctx context.Context, tenantID string) ([]string, error)
}

// Notifier delivers internal team notifications.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, title, message string, metadata map[string]any) error
}
