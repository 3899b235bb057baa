package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
)

// Las constantes de los tipos de evento se definen aquí, como valores string.
const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"
)

const (
	AggregateType = "user"
	UserTopic     = "civic.users"
)

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	meta := sharedEvents.EventMetadata{
		Type:  reflect.TypeOf(sharedEvents.EntityChanged{}),
		Topic: UserTopic,
	}
	return map[string]sharedEvents.EventMetadata{
		UserCreated: meta,
		UserUpdated: meta,
		UserDeleted: meta,
	}
}
