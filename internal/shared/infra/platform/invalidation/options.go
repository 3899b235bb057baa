// Package invalidation decide qué vistas cacheadas quedan obsoletas tras una
// escritura y las purga.
package invalidation

import (
	"errors"
	"fmt"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
)

// Entidades que pueden disparar una invalidación.
const (
	EntityIssue    = "issue"
	EntityComment  = "comment"
	EntityUser     = "user"
	EntityCategory = "category"
	EntityDivision = "division"
	EntityMessage  = "message"
)

// ErrUnknownEntity se devuelve al planificar una entidad que no existe.
var ErrUnknownEntity = errors.New("unknown invalidation entity")

// Options es la señal de cambio. Solo Entity es obligatorio.
// ReviewID identifica el comentario cuando Entity es comment: su detalle se borra
// como clave exacta también en modo async.
type Options struct {
	Entity   string
	EntityID string
	ReviewID string
	UserID   string
	Category string
	Division string
	Status   string
	Role     string
}

func (o Options) validate() error {
	switch o.Entity {
	case EntityIssue, EntityComment, EntityUser, EntityCategory, EntityDivision, EntityMessage:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownEntity, o.Entity)
}

// FromEvent traduce el evento de integración común a opciones.
func FromEvent(e sharedEvents.EntityChanged) Options {
	return Options{
		Entity:   e.Entity,
		EntityID: e.EntityID,
		ReviewID: e.ReviewID,
		UserID:   e.UserID,
		Category: e.Category,
		Division: e.Division,
		Status:   e.Status,
		Role:     e.Role,
	}
}

// Event es la inversa de FromEvent; lo usan los servicios al escribir el outbox.
func (o Options) Event() sharedEvents.EntityChanged {
	return sharedEvents.EntityChanged{
		Entity:     o.Entity,
		EntityID:   o.EntityID,
		ReviewID:   o.ReviewID,
		UserID:     o.UserID,
		Category:   o.Category,
		Division:   o.Division,
		Status:     o.Status,
		Role:       o.Role,
		OccurredAt: sharedDomain.Now(),
	}
}
