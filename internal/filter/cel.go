// Package filter compiles subscription and search filters to CEL programs
// evaluated against plain documents.
package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/syntrixbase/docflow/pkg/model"
)

var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
	)
})

// Program is a compiled filter list. The zero list compiles to a program
// matching every document.
type Program struct {
	prg  cel.Program
	expr string
}

// Compile joins filters with a logical AND and compiles them.
func Compile(filters model.Filters) (*Program, error) {
	if len(filters) == 0 {
		return &Program{}, nil
	}

	var expressions []string
	for _, f := range filters {
		expr, err := Expression(f)
		if err != nil {
			return nil, err
		}
		expressions = append(expressions, expr)
	}
	fullExpr := strings.Join(expressions, " && ")

	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(fullExpr)
	if issues != nil && issues.Err() != nil {
		return nil, model.NewError(model.KindBadRequest, "api.assert.invalid_filter", "CEL compile error: %v", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}

	return &Program{prg: prg, expr: fullExpr}, nil
}

// Expression returns the CEL source of the compiled filters, empty when the
// program matches everything.
func (p *Program) Expression() string {
	return p.expr
}

// Match evaluates the program against doc. Evaluation errors, such as a
// filtered field missing from the document, count as no match.
func (p *Program) Match(doc model.Document) bool {
	if p == nil || p.prg == nil {
		return true
	}
	if doc == nil {
		doc = model.Document{}
	}
	out, _, err := p.prg.Eval(map[string]interface{}{
		"doc": map[string]interface{}(doc),
	})
	if err != nil {
		return false
	}
	val, ok := out.Value().(bool)
	return ok && val
}

// Expression translates one filter to a CEL expression over doc.
func Expression(f model.Filter) (string, error) {
	if f.Field == "" {
		return "", model.MissingArgument("filters.field")
	}
	valStr, err := formatValue(f.Value)
	if err != nil {
		return "", err
	}

	field := "doc"
	for _, p := range strings.Split(f.Field, ".") {
		// Index syntax keeps special characters in field names safe
		field += "[" + quote(p) + "]"
	}

	switch f.Op {
	case model.OpEq, model.OpNe, model.OpGt, model.OpGte, model.OpLt, model.OpLte:
		return fmt.Sprintf("%s %s %s", field, f.Op, valStr), nil
	case model.OpIn:
		return fmt.Sprintf("%s in %s", field, valStr), nil
	case model.OpContains:
		return fmt.Sprintf("%s in %s", valStr, field), nil
	default:
		return "", model.NewError(model.KindBadRequest, "api.assert.invalid_filter", "unsupported operator: %s", f.Op)
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func formatValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return quote(val), nil
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%du", val), nil
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case []string:
		items := make([]interface{}, len(val))
		for i, s := range val {
			items[i] = s
		}
		return formatValue(items)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, err := formatValue(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", ")), nil
	default:
		return "", model.NewError(model.KindBadRequest, "api.assert.invalid_filter", "unsupported value type: %T", v)
	}
}

// Whole floats print as integer literals, so 5.0 becomes 5.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", model.NewError(model.KindBadRequest, "api.assert.invalid_filter", "unsupported value: %v", f)
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// Canonical returns a stable representation of filters, independent of
// their order. Equal filter sets give equal strings.
func Canonical(filters model.Filters) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		value, err := json.Marshal(f.Value)
		if err != nil {
			value = []byte(fmt.Sprintf("%v", f.Value))
		}
		parts = append(parts, strconv.Quote(f.Field)+string(f.Op)+string(value))
	}
	sort.Strings(parts)
	return "[" + strings.Join(parts, ",") + "]"
}
