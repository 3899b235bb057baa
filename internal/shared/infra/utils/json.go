package utils

import (
	"encoding/json"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/civicreport/internal/shared/domain/events"
)

// UnmarshalAndHandle decodifica data como T y se lo pasa a handler. Un payload
// inválido se registra y se descarta.
func UnmarshalAndHandle[T any](log *zap.Logger, data json.RawMessage, handler func(T)) {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warn("Failed to unmarshal event data", zap.Error(err))
		return
	}
	handler(evt)
}

// DecodeIntegrationEvent acepta tanto el sobre IntegrationEvent como el payload
// sin envolver (el bus en memoria y pruebas manuales publican así).
func DecodeIntegrationEvent(payload []byte) (sharedEvents.IntegrationEvent, error) {
	var env sharedEvents.IntegrationEvent
	if err := json.Unmarshal(payload, &env); err != nil {
		return env, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		env.Data = json.RawMessage(payload)
	}
	return env, nil
}
