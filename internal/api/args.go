package api

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/syntrixbase/docflow/internal/filter"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

// Argument and body field names.
const (
	argFrom       = "from"
	argSize       = "size"
	fieldQuery    = "query"
	fieldFilters  = "filters"
	fieldSort     = "sort"
	fieldChanges  = "changes"
	fieldDefault  = "default"
	fieldDocument = "documents"
)

// intArg reads an integer argument. Query strings deliver numbers as
// strings and JSON bodies as float64.
func intArg(req *request.Request, name string, def int) (int, error) {
	v, ok := req.Args[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, model.InvalidType(name, v, "integer")
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, model.InvalidType(name, v, "integer")
		}
		return int(i), nil
	case string:
		if strings.TrimSpace(n) == "" {
			return def, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, model.InvalidType(name, v, "integer")
		}
		return i, nil
	default:
		return 0, model.InvalidType(name, v, "integer")
	}
}

// objectField reads an object field of the body.
func objectField(body map[string]interface{}, name string, required bool) (model.Document, error) {
	v, ok := body[name]
	if !ok || v == nil {
		if required {
			return nil, model.MissingArgument("body." + name)
		}
		return nil, nil
	}
	switch obj := v.(type) {
	case map[string]interface{}:
		return obj, nil
	case model.Document:
		return obj, nil
	default:
		return nil, model.InvalidType("body."+name, v, "object")
	}
}

// queryFilters reads body.query.filters.
func queryFilters(body map[string]interface{}, required bool) (model.Filters, error) {
	q, err := objectField(body, fieldQuery, required)
	if err != nil {
		return nil, err
	}
	filters, err := filter.Parse(q[fieldFilters])
	if err != nil {
		return nil, fmt.Errorf("body.query: %w", err)
	}
	return filters, nil
}

// parseQuery builds the search of req: filters from body.query, order from
// body.sort, paging from the from and size arguments.
func parseQuery(req *request.Request) (model.Query, error) {
	var q model.Query
	filters, err := queryFilters(req.Body, false)
	if err != nil {
		return q, err
	}
	q.Filters = filters

	if q.OrderBy, err = parseSort(req.Body[fieldSort]); err != nil {
		return q, err
	}
	if q.From, err = intArg(req, argFrom, 0); err != nil {
		return q, err
	}
	if q.From < 0 {
		return q, model.NewError(model.KindBadRequest, "api.assert.invalid_argument",
			"argument %q must be positive, got %d", argFrom, q.From)
	}
	if q.Size, err = intArg(req, argSize, 0); err != nil {
		return q, err
	}
	return q, nil
}

func parseSort(v interface{}) ([]model.Order, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, model.InvalidType("body."+fieldSort, v, "Array")
	}
	out := make([]model.Order, 0, len(list))
	for i, item := range list {
		name := fmt.Sprintf("body.%s[%d]", fieldSort, i)
		switch o := item.(type) {
		case string:
			out = append(out, model.Order{Field: o, Direction: "asc"})
		case map[string]interface{}:
			field, _ := o["field"].(string)
			if field == "" {
				return nil, model.MissingArgument(name + ".field")
			}
			dir, _ := o["direction"].(string)
			switch dir {
			case "":
				dir = "asc"
			case "asc", "desc":
			default:
				return nil, model.InvalidType(name+".direction", dir, `"asc" or "desc"`)
			}
			out = append(out, model.Order{Field: field, Direction: dir})
		default:
			return nil, model.InvalidType(name, item, "object")
		}
	}
	return out, nil
}
