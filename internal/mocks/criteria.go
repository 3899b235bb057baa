package mocks

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// Fields es la vista "documento" de una entidad: nombre persistido -> valor.
type Fields map[string]interface{}

// MatchCriteria evalúa un árbol de criterios sobre un documento en memoria,
// con la misma semántica que el traductor a filtros de Mongo.
func MatchCriteria(doc Fields, criteria sharedDomain.Criteria) bool {
	if criteria == nil {
		return true
	}

	switch c := criteria.(type) {
	case sharedDomain.CompositeCriteria:
		if len(c.Criterias) == 0 {
			return true
		}
		if c.Operator == sharedDomain.OpOr {
			for _, sub := range c.Criterias {
				if MatchCriteria(doc, sub) {
					return true
				}
			}
			return false
		}
		for _, sub := range c.Criterias {
			if !MatchCriteria(doc, sub) {
				return false
			}
		}
		return true
	case sharedDomain.Where:
		return matchCriterion(doc, sharedDomain.Criterion(c))
	default:
		// Criterios propios de un dominio: AND de sus condiciones planas.
		for _, cond := range criteria.ToConditions() {
			if !matchCriterion(doc, cond) {
				return false
			}
		}
		return true
	}
}

func matchCriterion(doc Fields, cond sharedDomain.Criterion) bool {
	got, ok := doc[cond.Field]
	if !ok {
		got = nil
	}

	// Igual que Mongo: = y != sobre un array significan "contiene" / "no contiene".
	if rv := reflect.ValueOf(got); got != nil && rv.Kind() == reflect.Slice &&
		(cond.Op == sharedDomain.OpEq || cond.Op == sharedDomain.OpNe) {
		found := false
		for i := 0; i < rv.Len(); i++ {
			if n, ok := compareValues(rv.Index(i).Interface(), cond.Value); ok && n == 0 {
				found = true
				break
			}
		}
		return found == (cond.Op == sharedDomain.OpEq)
	}

	switch cond.Op {
	case sharedDomain.OpEq:
		n, ok := compareValues(got, cond.Value)
		return ok && n == 0
	case sharedDomain.OpNe:
		n, ok := compareValues(got, cond.Value)
		return !ok || n != 0
	case sharedDomain.OpGt:
		n, ok := compareValues(got, cond.Value)
		return ok && n > 0
	case sharedDomain.OpGte:
		n, ok := compareValues(got, cond.Value)
		return ok && n >= 0
	case sharedDomain.OpLt:
		n, ok := compareValues(got, cond.Value)
		return ok && n < 0
	case sharedDomain.OpLte:
		n, ok := compareValues(got, cond.Value)
		return ok && n <= 0
	case sharedDomain.OpIn:
		rv := reflect.ValueOf(cond.Value)
		if rv.Kind() != reflect.Slice {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if n, ok := compareValues(got, rv.Index(i).Interface()); ok && n == 0 {
				return true
			}
		}
		return false
	case sharedDomain.OpLike, sharedDomain.OpILike:
		s, ok := asString(got)
		pattern, okp := asString(cond.Value)
		if !ok || !okp {
			return false
		}
		pattern = strings.Trim(pattern, "%")
		if cond.Op == sharedDomain.OpILike {
			return strings.Contains(strings.ToLower(s), strings.ToLower(pattern))
		}
		return strings.Contains(s, pattern)
	}
	return false
}

// compareValues devuelve -1, 0 o 1; ok=false si los tipos no son comparables.
func compareValues(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		return 0, a == nil && b == nil
	}

	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		}
		return 0, true
	}

	if sa, ok := asString(a); ok {
		sb, ok := asString(b)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if vb.Kind() < reflect.Int || vb.Kind() > reflect.Int64 {
			return 0, false
		}
		x, y := va.Int(), vb.Int()
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case reflect.Bool:
		if vb.Kind() != reflect.Bool {
			return 0, false
		}
		if va.Bool() == vb.Bool() {
			return 0, true
		}
		return 1, true
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b)), true
}

func asString(v interface{}) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// lessBySorts compara dos documentos según la lista de Sort; el último campo desempata.
func lessBySorts(a, b Fields, sorts []sharedQuery.Sort) bool {
	for _, s := range sorts {
		n, ok := compareValues(a[s.Field], b[s.Field])
		if !ok || n == 0 {
			continue
		}
		if s.Desc {
			return n > 0
		}
		return n < 0
	}
	return false
}
