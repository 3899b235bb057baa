package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// Message es un mensaje directo entre dos usuarios, opcionalmente sobre una incidencia.
type Message struct {
	ID          string     `json:"id"`
	IssueID     string     `json:"issueId,omitempty"`
	SenderID    string     `json:"senderId"`
	SenderRole  string     `json:"senderRole"`
	RecipientID string     `json:"recipientId"`
	Body        string     `json:"body"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func NewMessage(issueID, senderID, senderRole, recipientID, body string) (*Message, error) {
	m := &Message{
		ID:          sharedDomain.NewID(),
		IssueID:     issueID,
		SenderID:    senderID,
		SenderRole:  senderRole,
		RecipientID: strings.TrimSpace(recipientID),
		Body:        strings.TrimSpace(body),
		CreatedAt:   sharedDomain.Now(),
	}
	switch {
	case m.Body == "":
		return nil, ErrBodyRequired
	case m.RecipientID == "":
		return nil, ErrRecipientRequired
	case m.RecipientID == m.SenderID:
		return nil, ErrSelfMessage
	}
	return m, nil
}

// MarkRead es idempotente: conserva la primera fecha de lectura.
func (m *Message) MarkRead() bool {
	if m.ReadAt != nil {
		return false
	}
	now := sharedDomain.Now()
	m.ReadAt = &now
	return true
}

// Participants son los dos usuarios cuya bandeja contiene el mensaje.
func (m *Message) Participants() []string {
	return []string{m.SenderID, m.RecipientID}
}

func (m *Message) PageKey(sortBy string) (sharedQuery.PageKey, bool) {
	if sortBy == "createdAt" {
		return sharedQuery.PageKey{At: m.CreatedAt, ID: m.ID}, true
	}
	return sharedQuery.PageKey{}, false
}

func (m *Message) PartitionKey() string {
	return m.RecipientID
}

var (
	_ sharedBus.Keyer      = (*Message)(nil)
	_ sharedQuery.Pageable = (*Message)(nil)
)
