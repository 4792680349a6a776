package web

// MessageEventRequest is an inbound message delivered over HTTP intake.
type MessageEventRequest struct {
	TenantID       string `json:"tenant_id"       validate:"required"`
	ContactID      string `json:"contact_id"      validate:"required"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"         validate:"required"`
}

// ContactCreatedRequest reports a newly created contact.
type ContactCreatedRequest struct {
	TenantID  string `json:"tenant_id"  validate:"required"`
	ContactID string `json:"contact_id" validate:"required"`
}

// TagAddedRequest reports a tag applied to a contact.
type TagAddedRequest struct {
	TenantID  string `json:"tenant_id"  validate:"required"`
	ContactID string `json:"contact_id" validate:"required"`
	Tag       string `json:"tag"        validate:"required"`
}

// TransactionEventRequest reports a billing transaction status change.
type TransactionEventRequest struct {
	TenantID      string  `json:"tenant_id"  validate:"required"`
	ContactID     string  `json:"contact_id" validate:"required"`
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"     validate:"required"`
	Product       string  `json:"product"`
	Offer         string  `json:"offer"`
	Amount        float64 `json:"amount"`
}
