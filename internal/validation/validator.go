package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/syntrixbase/docflow/pkg/model"
)

var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)))
})

type program struct {
	expr string
	prg  cel.Program
}

type compiledSpec struct {
	spec     CollectionSpec
	programs []program
	// known holds every declared path and all of its parent paths
	known map[string]bool
}

func compile(index, collection string, spec CollectionSpec) (*compiledSpec, error) {
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	c := &compiledSpec{spec: spec, known: map[string]bool{}}
	for _, expr := range spec.Validators {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("%s/%s: invalid validator %q: %w", index, collection, expr, iss.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: invalid validator %q: %w", index, collection, expr, err)
		}
		c.programs = append(c.programs, program{expr: expr, prg: prg})
	}
	for name := range spec.Fields {
		parts := strings.Split(name, ".")
		for i := range parts {
			c.known[strings.Join(parts[:i+1], ".")] = true
		}
	}
	return c, nil
}

// check returns the violations of doc, sorted. Partial documents skip
// the mandatory and validator checks since they only carry changes.
func (c *compiledSpec) check(doc model.Document, partial bool) []string {
	var details []string

	names := make([]string, 0, len(c.spec.Fields))
	for name := range c.spec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := c.spec.Fields[name]
		v, ok := doc.Lookup(name)
		if !ok || v == nil {
			if f.Mandatory && !partial {
				details = append(details, fmt.Sprintf("field %q is mandatory", name))
			}
			continue
		}
		if !hasType(v, f.Type) {
			details = append(details, fmt.Sprintf("field %q must be of type %s", name, f.Type))
		}
	}

	if c.spec.Strict {
		details = append(details, c.unknown(doc, "")...)
	}

	if !partial {
		for _, p := range c.programs {
			out, _, err := p.prg.Eval(map[string]interface{}{"doc": map[string]interface{}(doc)})
			if err != nil {
				details = append(details, fmt.Sprintf("validator %q failed: %v", p.expr, err))
				continue
			}
			if ok, isBool := out.Value().(bool); !isBool || !ok {
				details = append(details, fmt.Sprintf("validator %q rejected the document", p.expr))
			}
		}
	}
	return details
}

func (c *compiledSpec) unknown(doc map[string]interface{}, prefix string) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var details []string
	for _, k := range keys {
		if prefix == "" && k == model.MetaField {
			continue
		}
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if !c.known[path] {
			details = append(details, fmt.Sprintf("field %q is not allowed", path))
			continue
		}
		// Declared objects are opaque unless sub-fields are declared
		if nested, ok := doc[k].(map[string]interface{}); ok && c.declaresChildren(path) {
			details = append(details, c.unknown(nested, path)...)
		}
	}
	return details
}

func (c *compiledSpec) declaresChildren(path string) bool {
	prefix := path + "."
	for k := range c.known {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func hasType(v interface{}, typ string) bool {
	switch typ {
	case "", TypeAny:
		return true
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]interface{})
		return ok
	case TypeArray:
		switch v.(type) {
		case []interface{}, []string:
			return true
		}
		return false
	case TypeInteger:
		switch n := v.(type) {
		case int, int32, int64, uint, uint32, uint64:
			return true
		case float64:
			return n == math.Trunc(n) && !math.IsInf(n, 0)
		}
		return false
	case TypeNumber:
		switch v.(type) {
		case int, int32, int64, uint, uint32, uint64, float32, float64:
			return true
		}
		return false
	}
	return false
}
