package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
)

const (
	MessageSent = "message.sent"
	MessageRead = "message.read"
)

const (
	AggregateType = "message"
	MessageTopic  = "civic.messages"
)

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	meta := sharedEvents.EventMetadata{
		Type:  reflect.TypeOf(sharedEvents.EntityChanged{}),
		Topic: MessageTopic,
	}
	return map[string]sharedEvents.EventMetadata{
		MessageSent: meta,
		MessageRead: meta,
	}
}
