package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidID se devuelve cuando un identificador no es un ObjectID hexadecimal.
var ErrInvalidID = errors.New("invalid id")

// NewID genera un identificador de entidad (ObjectID en hexadecimal).
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID comprueba el formato del identificador.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// Now devuelve la hora actual truncada a milisegundos, la precisión con la que
// Mongo guarda las fechas. Así los cursores calculados en memoria coinciden con
// los persistidos.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
