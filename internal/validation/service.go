package validation

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

// ErrIDInvalidDocument identifies documents rejected by their collection spec.
const ErrIDInvalidDocument = "validation.assert.invalid_document"

// Report is the outcome of a non-failing validation check.
type Report struct {
	Valid   bool     `json:"valid"`
	Details []string `json:"details"`
}

type registry map[string]map[string]*compiledSpec

// Service validates documents. Specs can be swapped at any time; readers
// always see a complete set.
type Service struct {
	specs  atomic.Pointer[registry]
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a service without specifications: every document is valid.
func New(opts ...Option) *Service {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "validation")
	s.specs.Store(&registry{})
	return s
}

// Load compiles specs and replaces the current set. On error the current
// set stays in place.
func (s *Service) Load(specs Specs) error {
	if err := specs.Validate(); err != nil {
		return err
	}
	reg := registry{}
	count := 0
	for index, collections := range specs {
		reg[index] = map[string]*compiledSpec{}
		for collection, spec := range collections {
			c, err := compile(index, collection, spec)
			if err != nil {
				return err
			}
			reg[index][collection] = c
			count++
		}
	}
	s.specs.Store(&reg)
	s.logger.Info("Validation specs loaded", "collections", count)
	return nil
}

// LoadFile loads the specs of filename.
func (s *Service) LoadFile(filename string) error {
	specs, err := LoadFile(filename)
	if err != nil {
		return err
	}
	return s.Load(specs)
}

func (s *Service) lookup(index, collection string) *compiledSpec {
	reg := *s.specs.Load()
	return reg[index][collection]
}

// Errors returns the violations of doc for index/collection.
func (s *Service) Errors(index, collection string, doc model.Document, partial bool) []string {
	c := s.lookup(index, collection)
	if c == nil {
		return nil
	}
	return c.check(doc, partial)
}

// ValidateDocument returns a BadRequest error when doc violates its spec.
func (s *Service) ValidateDocument(index, collection string, doc model.Document, partial bool) error {
	details := s.Errors(index, collection, doc, partial)
	if len(details) == 0 {
		return nil
	}
	return invalidDocument(index, collection, details, true)
}

// Validate checks the body of req and returns a copy of req when valid.
// Verbose errors list every violation instead of the first one.
func (s *Service) Validate(_ context.Context, req *request.Request, verbose bool) (*request.Request, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	if details := s.Errors(index, collection, body, false); len(details) > 0 {
		return nil, invalidDocument(index, collection, details, verbose)
	}
	return req.Clone(), nil
}

// Check reports whether the body of req is valid without failing.
func (s *Service) Check(_ context.Context, req *request.Request) (*Report, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	details := s.Errors(index, collection, body, false)
	if details == nil {
		details = []string{}
	}
	return &Report{Valid: len(details) == 0, Details: details}, nil
}

func invalidDocument(index, collection string, details []string, verbose bool) error {
	msg := details[0]
	if verbose {
		msg = strings.Join(details, "; ")
	}
	return model.NewError(model.KindBadRequest, ErrIDInvalidDocument,
		"document rejected by %s/%s: %s", index, collection, msg)
}
