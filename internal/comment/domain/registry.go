package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
)

const (
	CommentCreated = "comment.created"
	CommentUpdated = "comment.updated"
	CommentDeleted = "comment.deleted"
)

const (
	AggregateType = "comment"
	CommentTopic  = "civic.comments"
)

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	meta := sharedEvents.EventMetadata{
		Type:  reflect.TypeOf(sharedEvents.EntityChanged{}),
		Topic: CommentTopic,
	}
	return map[string]sharedEvents.EventMetadata{
		CommentCreated: meta,
		CommentUpdated: meta,
		CommentDeleted: meta,
	}
}
