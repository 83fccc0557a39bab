package filter

import (
	"fmt"

	"github.com/syntrixbase/docflow/pkg/model"
)

// Parse reads a filter list as decoded from a JSON body: a list of
// {"field", "op", "value"} objects. A nil value is the empty list.
func Parse(v interface{}) (model.Filters, error) {
	switch list := v.(type) {
	case nil:
		return model.Filters{}, nil
	case model.Filters:
		return list, validate(list)
	case []model.Filter:
		return list, validate(list)
	case []interface{}:
		out := make(model.Filters, 0, len(list))
		for i, item := range list {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, model.InvalidType(fmt.Sprintf("filters[%d]", i), item, "object")
			}
			field, _ := obj["field"].(string)
			op, _ := obj["op"].(string)
			out = append(out, model.Filter{Field: field, Op: model.FilterOp(op), Value: obj["value"]})
		}
		return out, validate(out)
	default:
		return nil, model.InvalidType("filters", v, "Array")
	}
}

func validate(filters model.Filters) error {
	for i, f := range filters {
		if !f.Validate() {
			return model.NewError(model.KindBadRequest, "api.assert.invalid_filter",
				"invalid filter at position %d: field %q, operator %q", i, f.Field, f.Op)
		}
	}
	return nil
}
