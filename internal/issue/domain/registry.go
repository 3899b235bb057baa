package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
)

// Las constantes de los tipos de evento se definen aquí, como valores string.
const (
	IssueCreated       = "issue.created"
	IssueUpdated       = "issue.updated"
	IssueStatusChanged = "issue.status_changed"
	IssueDeleted       = "issue.deleted"
)

const (
	AggregateType = "issue"
	IssueTopic    = "civic.issues"
)

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	meta := sharedEvents.EventMetadata{
		Type:  reflect.TypeOf(sharedEvents.EntityChanged{}),
		Topic: IssueTopic,
	}
	return map[string]sharedEvents.EventMetadata{
		IssueCreated:       meta,
		IssueUpdated:       meta,
		IssueStatusChanged: meta,
		IssueDeleted:       meta,
	}
}
