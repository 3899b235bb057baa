package mongodb

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

var mongoOps = map[sharedDomain.Operator]string{
	sharedDomain.OpEq:    "$eq",
	sharedDomain.OpNe:    "$ne",
	sharedDomain.OpGt:    "$gt",
	sharedDomain.OpGte:   "$gte",
	sharedDomain.OpLt:    "$lt",
	sharedDomain.OpLte:   "$lte",
	sharedDomain.OpIn:    "$in",
	sharedDomain.OpLike:  "$regex",
	sharedDomain.OpILike: "$regex",
}

// CriteriaToFilter traduce un árbol de criterios a un filtro de Mongo.
// Los grupos AND/OR anidados se conservan; _id se convierte a ObjectID.
func CriteriaToFilter(criteria sharedDomain.Criteria) (bson.D, error) {
	if criteria == nil {
		return bson.D{}, nil
	}

	switch c := criteria.(type) {
	case sharedDomain.CompositeCriteria:
		if c.IsEmpty() {
			return bson.D{}, nil
		}
		parts := make(bson.A, 0, len(c.Criterias))
		for _, sub := range c.Criterias {
			if nested, ok := sub.(sharedDomain.CompositeCriteria); ok && nested.IsEmpty() {
				continue
			}
			f, err := CriteriaToFilter(sub)
			if err != nil {
				return nil, err
			}
			parts = append(parts, f)
		}
		op := "$and"
		if c.Operator == sharedDomain.OpOr {
			op = "$or"
		}
		return bson.D{{Key: op, Value: parts}}, nil

	case sharedDomain.Where:
		return conditionsToFilter([]sharedDomain.Criterion{sharedDomain.Criterion(c)})

	default:
		return conditionsToFilter(criteria.ToConditions())
	}
}

func conditionsToFilter(conds []sharedDomain.Criterion) (bson.D, error) {
	if len(conds) == 0 {
		return bson.D{}, nil
	}
	if len(conds) == 1 {
		e, err := conditionToElem(conds[0])
		if err != nil {
			return nil, err
		}
		return bson.D{e}, nil
	}

	// Varias condiciones sobre el mismo campo no caben en un único documento.
	parts := make(bson.A, 0, len(conds))
	for _, c := range conds {
		e, err := conditionToElem(c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, bson.D{e})
	}
	return bson.D{{Key: "$and", Value: parts}}, nil
}

func conditionToElem(c sharedDomain.Criterion) (bson.E, error) {
	op, ok := mongoOps[c.Op]
	if !ok {
		return bson.E{}, fmt.Errorf("unsupported operator %q", c.Op)
	}

	value, err := encodeValue(c.Field, c.Value)
	if err != nil {
		return bson.E{}, err
	}

	switch c.Op {
	case sharedDomain.OpLike, sharedDomain.OpILike:
		s, _ := value.(string)
		pattern := likeToRegex(s)
		if c.Op == sharedDomain.OpILike {
			return bson.E{Key: c.Field, Value: bson.M{op: pattern, "$options": "i"}}, nil
		}
		return bson.E{Key: c.Field, Value: bson.M{op: pattern}}, nil
	}
	return bson.E{Key: c.Field, Value: bson.M{op: value}}, nil
}

// likeToRegex convierte un patrón LIKE (% como comodín) en una regex con el
// resto del texto escapado.
func likeToRegex(s string) string {
	parts := strings.Split(s, "%")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	re := strings.Join(parts, ".*")
	re = strings.TrimPrefix(re, ".*")
	re = strings.TrimSuffix(re, ".*")
	if !strings.HasPrefix(s, "%") {
		re = "^" + re
	}
	if !strings.HasSuffix(s, "%") {
		re += "$"
	}
	return re
}

func encodeValue(field string, v interface{}) (interface{}, error) {
	if field != sharedQuery.IDField {
		return v, nil
	}
	switch id := v.(type) {
	case string:
		return primitive.ObjectIDFromHex(id)
	case []string:
		out := make(bson.A, 0, len(id))
		for _, s := range id {
			oid, err := primitive.ObjectIDFromHex(s)
			if err != nil {
				return nil, err
			}
			out = append(out, oid)
		}
		return out, nil
	}
	return v, nil
}

// SortToBson traduce el orden de la paginación.
func SortToBson(sorts []sharedQuery.Sort) bson.D {
	d := make(bson.D, 0, len(sorts))
	for _, s := range sorts {
		dir := 1
		if s.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: s.Field, Value: dir})
	}
	return d
}
