package extractor

import (
	"sort"

	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

// RequestPhase is the request-side pair of an adapter. A family without
// documents in its requests yields a RequestPhase that is not eligible.
type RequestPhase struct {
	adapter RequestAdapter
}

// Eligible reports whether the request phase is supported.
func (p RequestPhase) Eligible() bool {
	return p.adapter != nil
}

// Adapter is the immutable shape adapter of one action.
type Adapter struct {
	Action  string
	Family  Family
	Request RequestPhase
}

func newAdapter(action string, f Family) Adapter {
	a := Adapter{Action: action, Family: f}
	if ra, ok := f.(RequestAdapter); ok {
		a.Request = RequestPhase{adapter: ra}
	}
	return a
}

// registry is built once at package initialization and only read afterwards.
var registry = buildRegistry(map[Family][]string{
	singletonByID{}: {
		request.ActionGet,
		request.ActionDelete,
	},
	singletonWithBody{}: {
		request.ActionCreate,
		request.ActionCreateOrReplace,
		request.ActionReplace,
		request.ActionUpdate,
	},
	singletonUpsert{}: {
		request.ActionUpsert,
	},
	batchByIDs{}: {
		request.ActionMGet,
		request.ActionMDelete,
	},
	batchWithBodies{}: {
		request.ActionMCreate,
		request.ActionMCreateOrReplace,
		request.ActionMReplace,
		request.ActionMUpdate,
		request.ActionUpdateByQuery,
	},
	queryBased{}: {
		request.ActionSearch,
		request.ActionDeleteByQuery,
	},
})

func buildRegistry(families map[Family][]string) map[string]Adapter {
	r := make(map[string]Adapter)
	for f, actions := range families {
		for _, action := range actions {
			if _, dup := r[action]; dup {
				panic("extractor: action registered twice: " + action)
			}
			r[action] = newAdapter(action, f)
		}
	}
	return r
}

// Lookup returns the adapter registered for action. A missing adapter is an
// integration defect and is reported as an internal assertion failure.
func Lookup(action string) (Adapter, error) {
	a, ok := registry[action]
	if !ok {
		return Adapter{}, &model.Error{
			Kind:    model.KindInternal,
			ID:      "core.fatal.assertion_failed",
			Message: "no generic documents extractor for " + action,
			Err:     ErrNoAdapter,
		}
	}
	return a, nil
}

// Supports reports whether action has a registered adapter.
func Supports(action string) bool {
	_, ok := registry[action]
	return ok
}

// Actions lists every registered action, sorted.
func Actions() []string {
	out := make([]string, 0, len(registry))
	for action := range registry {
		out = append(out, action)
	}
	sort.Strings(out)
	return out
}
