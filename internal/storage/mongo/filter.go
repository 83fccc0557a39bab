package mongo

import (
	"strings"

	"github.com/syntrixbase/docflow/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
)

func makeFilterBSON(index, collection string, filters model.Filters) (bson.M, error) {
	bsonFilter := bson.M{"index": index, "collection": collection}

	var conds bson.A
	for _, f := range filters {
		if !f.Validate() {
			return nil, model.NewError(model.KindBadRequest, "api.assert.invalid_filter",
				"invalid filter: field %q, operator %q", f.Field, f.Op)
		}
		conds = append(conds, bson.M{mapField(f.Field): bson.M{mapOp(f.Op): f.Value}})
	}
	if len(conds) > 0 {
		bsonFilter["$and"] = conds
	}
	return bsonFilter, nil
}

func mapField(field string) string {
	switch field {
	case "_id":
		return "doc_id"
	case "_version":
		return "version"
	default:
		return dataField + "." + field
	}
}

func mapOp(op model.FilterOp) string {
	switch op {
	case model.OpEq, model.OpContains:
		// equality against an array field matches its elements
		return "$eq"
	case model.OpNe:
		return "$ne"
	case model.OpGt:
		return "$gt"
	case model.OpGte:
		return "$gte"
	case model.OpLt:
		return "$lt"
	case model.OpLte:
		return "$lte"
	case model.OpIn:
		return "$in"
	default:
		return ""
	}
}

func makeSort(orderBy []model.Order) bson.D {
	sort := bson.D{}
	for _, o := range orderBy {
		dir := 1
		if o.Direction == "desc" {
			dir = -1
		}
		sort = append(sort, bson.E{Key: mapField(o.Field), Value: dir})
	}
	// stable pages
	return append(sort, bson.E{Key: "doc_id", Value: 1})
}

// flatten turns nested changes into dotted $set paths so updates merge
// objects instead of replacing them.
func flatten(prefix string, changes map[string]interface{}, out bson.M) bson.M {
	for k, v := range changes {
		path := prefix + "." + k
		if sub, ok := asMap(v); ok && len(sub) > 0 {
			flatten(path, sub, out)
			continue
		}
		out[path] = v
	}
	return out
}

// withoutConflicts drops the default paths overlapping a change path,
// since one update cannot both $set and $setOnInsert the same field.
func withoutConflicts(defaults, changes bson.M) bson.M {
	out := bson.M{}
	for d, v := range defaults {
		conflict := false
		for c := range changes {
			if d == c || strings.HasPrefix(d, c+".") || strings.HasPrefix(c, d+".") {
				conflict = true
				break
			}
		}
		if !conflict {
			out[d] = v
		}
	}
	return out
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case model.Document:
		return m, true
	}
	return nil, false
}
