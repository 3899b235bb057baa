package domain

// ---------------- Operadores ----------------

type Operator string

const (
	OpEq    Operator = "="
	OpNe    Operator = "!="
	OpGt    Operator = ">"
	OpGte   Operator = ">="
	OpLt    Operator = "<"
	OpLte   Operator = "<="
	OpIn    Operator = "IN"
	OpLike  Operator = "LIKE"
	OpILike Operator = "ILIKE"
)

type LogicalOperator string

const (
	OpAnd LogicalOperator = "AND"
	OpOr  LogicalOperator = "OR"
)

// ---------------- Criterion ----------------

// Criterion describe una condición neutral de filtrado.
// Field usa el nombre del campo tal y como se persiste (ej. "createdAt", "_id").
type Criterion struct {
	Field string
	Op    Operator
	Value interface{}
}

// ---------------- Criteria interface ----------------

// Criteria permite transformar filtros a condiciones neutrales
type Criteria interface {
	ToConditions() []Criterion
}

// Where es el criterio hoja: una única condición.
type Where Criterion

func (w Where) ToConditions() []Criterion {
	return []Criterion{Criterion(w)}
}

// Cond construye un criterio hoja.
func Cond(field string, op Operator, value interface{}) Where {
	return Where{Field: field, Op: op, Value: value}
}

// ---------------- Composite Criteria ----------------

// CompositeCriteria agrupa criterios con AND u OR. Los adaptadores que soportan
// anidamiento (Mongo, fakes en memoria) recorren Criterias; ToConditions aplana y
// solo es fiel para grupos AND.
type CompositeCriteria struct {
	Operator  LogicalOperator
	Criterias []Criteria
}

func (c CompositeCriteria) ToConditions() []Criterion {
	var all []Criterion
	for _, crit := range c.Criterias {
		if crit == nil {
			continue
		}
		all = append(all, crit.ToConditions()...)
	}
	return all
}

// IsEmpty indica si el grupo no aporta ninguna condición.
func (c CompositeCriteria) IsEmpty() bool {
	for _, crit := range c.Criterias {
		if crit == nil {
			continue
		}
		if nested, ok := crit.(CompositeCriteria); ok && nested.IsEmpty() {
			continue
		}
		return false
	}
	return true
}

// ---------------- Helpers ----------------

// And crea un CompositeCriteria con operador AND
func And(criterias ...Criteria) CompositeCriteria {
	return CompositeCriteria{Operator: OpAnd, Criterias: compact(criterias)}
}

// Or crea un CompositeCriteria con operador OR
func Or(criterias ...Criteria) CompositeCriteria {
	return CompositeCriteria{Operator: OpOr, Criterias: compact(criterias)}
}

func compact(criterias []Criteria) []Criteria {
	out := make([]Criteria, 0, len(criterias))
	for _, c := range criterias {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
