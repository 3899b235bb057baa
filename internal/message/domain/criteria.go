package domain

import (
	shared "github.com/davicafu/civicreport/internal/shared/domain"
)

const (
	FieldIssueID     = "issueId"
	FieldSenderID    = "senderId"
	FieldRecipientID = "recipientId"
)

type IssueCriteria struct {
	IssueID string
}

func (c IssueCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldIssueID, Op: shared.OpEq, Value: c.IssueID}}
}

// InboxCriteria: mensajes enviados o recibidos por el usuario.
func InboxCriteria(userID string) shared.Criteria {
	return shared.Or(
		shared.Cond(FieldRecipientID, shared.OpEq, userID),
		shared.Cond(FieldSenderID, shared.OpEq, userID),
	)
}
