package events

import (
	"encoding/json"
	"reflect"
	"sort"
	"time"
)

// Base de todos los eventos de integración
type IntegrationEvent struct {
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"` // contenido específico del evento
}

// PartitionKey agrupa en la misma partición los eventos de un mismo agregado.
func (e IntegrationEvent) PartitionKey() string {
	return e.AggregateID
}

// EventMetadata asocia un tipo de evento con su payload y su topic.
type EventMetadata struct {
	Type  reflect.Type
	Topic string
}

// MergeRegistries junta los registros de cada contexto en uno solo.
func MergeRegistries(registries ...map[string]EventMetadata) map[string]EventMetadata {
	out := make(map[string]EventMetadata)
	for _, r := range registries {
		for k, v := range r {
			out[k] = v
		}
	}
	return out
}

// Topics devuelve los topics distintos de un registro, ordenados.
func Topics(registry map[string]EventMetadata) []string {
	seen := make(map[string]struct{})
	var topics []string
	for _, meta := range registry {
		if _, ok := seen[meta.Topic]; ok {
			continue
		}
		seen[meta.Topic] = struct{}{}
		topics = append(topics, meta.Topic)
	}
	sort.Strings(topics)
	return topics
}

// EntityChanged es el contrato común de todos los eventos de escritura.
// Lleva las dimensiones que determinan qué vistas cacheadas quedan obsoletas,
// y lo consumen tanto la invalidación asíncrona como la analítica.
type EntityChanged struct {
	Entity     string    `json:"entity"`
	EntityID   string    `json:"entityId,omitempty"`
	ReviewID   string    `json:"reviewId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Category   string    `json:"category,omitempty"`
	Division   string    `json:"division,omitempty"`
	Status     string    `json:"status,omitempty"`
	Role       string    `json:"role,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PartitionKey implementa bus.Keyer.
func (e EntityChanged) PartitionKey() string {
	return e.EntityID
}
