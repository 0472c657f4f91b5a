package domain

import "time"

// SenderRole indicates who authored a ticket message.
type SenderRole string

const (
	SenderRoleRequester SenderRole = "REQUESTER"
	SenderRoleOperator  SenderRole = "OPERATOR"
	SenderRoleSystem    SenderRole = "SYSTEM"
)

// AttachmentReference stores metadata for message attachments. The payload
// itself lives in external object storage.
type AttachmentReference struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Message captures one entry in a ticket thread. Messages are append-only;
// nothing in this service mutates or deletes them. Internal messages are
// persisted verbatim and filtered from requester-facing views by consumers.
type Message struct {
	ID          string
	TicketID    string
	SenderID    string
	SenderRole  SenderRole
	Body        string
	Internal    bool
	Attachments []AttachmentReference
	CreatedAt   time.Time
}
