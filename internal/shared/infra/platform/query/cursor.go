package query

import (
	"strconv"
	"strings"
	"time"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
)

const (
	cursorSep = "_"

	keyFirst   = "first"
	keyInvalid = "invalid"
)

// Centinelas para cursores ilegibles: ningún documento cae fuera de este rango.
var (
	minSentinel = time.Time{}
	maxSentinel = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// PageKey es la posición de una fila en el orden total (campo de orden, _id).
type PageKey struct {
	At time.Time
	ID string
}

// Encode produce "{unixMillis}_{id}", o solo los milisegundos si no hay id.
func (k PageKey) Encode() string {
	ms := strconv.FormatInt(k.At.UnixMilli(), 10)
	if k.ID == "" {
		return ms
	}
	return ms + cursorSep + k.ID
}

// Cursor es el cursor del cliente ya interpretado.
type Cursor struct {
	Raw   string
	Key   PageKey
	Valid bool
}

// ParseCursor acepta "{unixMillis}_{id}", unix millis a secas o RFC3339.
// Cualquier otra cosa devuelve un cursor no válido.
func ParseCursor(raw string) Cursor {
	c := Cursor{Raw: raw}
	if raw == "" {
		return c
	}

	tsPart, idPart := raw, ""
	if i := strings.Index(raw, cursorSep); i >= 0 {
		tsPart, idPart = raw[:i], raw[i+1:]
		if !sharedDomain.ValidID(idPart) {
			return c
		}
	}

	at, ok := parseTimestamp(tsPart)
	if !ok {
		return c
	}

	c.Key = PageKey{At: at, ID: idPart}
	c.Valid = true
	return c
}

func parseTimestamp(s string) (time.Time, bool) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Truncate(time.Millisecond), true
	}
	return time.Time{}, false
}

// IsZero indica que no se envió cursor.
func (c Cursor) IsZero() bool {
	return c.Raw == ""
}

// KeyPart es la forma del cursor dentro de una clave de caché; nunca contiene ':'.
func (c Cursor) KeyPart() string {
	switch {
	case c.IsZero():
		return keyFirst
	case !c.Valid:
		return keyInvalid
	default:
		return c.Key.Encode()
	}
}

func (c Cursor) predicate(sortBy string, order SortOrder) sharedDomain.Criteria {
	cmp := sharedDomain.OpLt
	if order == SortAsc {
		cmp = sharedDomain.OpGt
	}

	if !c.Valid {
		if order == SortAsc {
			return sharedDomain.Cond(sortBy, cmp, maxSentinel)
		}
		return sharedDomain.Cond(sortBy, cmp, minSentinel)
	}

	if c.Key.ID == "" {
		return sharedDomain.Cond(sortBy, cmp, c.Key.At)
	}

	// sortBy < t OR (sortBy = t AND _id < id), simétrico para asc.
	return sharedDomain.Or(
		sharedDomain.Cond(sortBy, cmp, c.Key.At),
		sharedDomain.And(
			sharedDomain.Cond(sortBy, sharedDomain.OpEq, c.Key.At),
			sharedDomain.Cond(IDField, cmp, c.Key.ID),
		),
	)
}
