package model

// FilterOp defines the supported filter operators.
type FilterOp string

const (
	OpEq       FilterOp = "=="       // Equal
	OpNe       FilterOp = "!="       // Not equal
	OpGt       FilterOp = ">"        // Greater than
	OpGte      FilterOp = ">="       // Greater than or equal
	OpLt       FilterOp = "<"        // Less than
	OpLte      FilterOp = "<="       // Less than or equal
	OpIn       FilterOp = "in"       // Value in array
	OpContains FilterOp = "contains" // Array contains value
)

// ValidOps returns all valid filter operators.
func ValidOps() []FilterOp {
	return []FilterOp{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains}
}

// IsValid checks if the operator is valid.
func (op FilterOp) IsValid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains:
		return true
	}
	return false
}

// Filters is a slice of Filter. An empty list matches every document.
type Filters []Filter

// Filter represents a condition on one document field.
type Filter struct {
	Field string      `json:"field" yaml:"field"`
	Op    FilterOp    `json:"op" yaml:"op"`
	Value interface{} `json:"value" yaml:"value"`
}

// Validate checks if the filter is valid.
func (f Filter) Validate() bool {
	if f.Field == "" {
		return false
	}
	return f.Op.IsValid()
}

// Order defines a sort criterion.
type Order struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // "asc" or "desc"
}

// Query is a search over one collection.
type Query struct {
	Filters Filters `json:"filters"`
	OrderBy []Order `json:"orderBy,omitempty"`
	From    int     `json:"from,omitempty"`
	Size    int     `json:"size,omitempty"`
}
