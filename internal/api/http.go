package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/schema"

	"github.com/syntrixbase/docflow/internal/identity"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/internal/server"
	"github.com/syntrixbase/docflow/pkg/model"
)

// Default body size limits
const (
	DefaultMaxBodySize = 1 << 20  // 1MB
	LargeMaxBodySize   = 10 << 20 // 10MB for batch and query requests
)

// DefaultRequestTimeout bounds one HTTP request.
const DefaultRequestTimeout = 30 * time.Second

// Executor runs requests, such as a Funnel.
type Executor interface {
	Execute(ctx context.Context, req *request.Request) error
}

// HTTPHandler exposes the funnel over HTTP.
type HTTPHandler struct {
	executor Executor
	decoder  *schema.Decoder
	timeout  time.Duration
	logger   *slog.Logger
}

// NewHTTPHandler creates the HTTP endpoint of executor.
func NewHTTPHandler(executor Executor, timeout time.Duration, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &HTTPHandler{
		executor: executor,
		decoder:  decoder,
		timeout:  timeout,
		logger:   logger.With("component", "http-api"),
	}
}

// RegisterRoutes mounts the endpoints on mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /_query", withTimeout(maxBodySize(h.handleQuery, LargeMaxBodySize), h.timeout))

	mux.HandleFunc("POST /{index}/{collection}", withTimeout(maxBodySize(h.rest(request.ActionCreate), DefaultMaxBodySize), h.timeout))
	mux.HandleFunc("POST /{index}/{collection}/_search", withTimeout(maxBodySize(h.rest(request.ActionSearch), DefaultMaxBodySize), h.timeout))
	mux.HandleFunc("GET /{index}/{collection}/{id}", withTimeout(h.rest(request.ActionGet), h.timeout))
	mux.HandleFunc("POST /{index}/{collection}/{id}", withTimeout(maxBodySize(h.rest(request.ActionCreate), DefaultMaxBodySize), h.timeout))
	mux.HandleFunc("PUT /{index}/{collection}/{id}", withTimeout(maxBodySize(h.rest(request.ActionCreateOrReplace), DefaultMaxBodySize), h.timeout))
	mux.HandleFunc("PUT /{index}/{collection}/{id}/_update", withTimeout(maxBodySize(h.rest(request.ActionUpdate), DefaultMaxBodySize), h.timeout))
	mux.HandleFunc("PUT /{index}/{collection}/{id}/_replace", withTimeout(maxBodySize(h.rest(request.ActionReplace), DefaultMaxBodySize), h.timeout))
	mux.HandleFunc("DELETE /{index}/{collection}/{id}", withTimeout(h.rest(request.ActionDelete), h.timeout))
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuery runs a request payload: the controller, action, index,
// collection and body keys are read, every other key becomes an argument.
func (h *HTTPHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObject(r.Body, true)
	if err != nil {
		h.reply(w, r, nil, err)
		return
	}
	payload, err := PayloadFromMap(raw)
	if err != nil {
		h.reply(w, r, nil, err)
		return
	}
	if err := h.mergeQueryArgs(payload.Args, r.URL.Query()); err != nil {
		h.reply(w, r, nil, err)
		return
	}
	h.execute(w, r, payload)
}

// rest serves a document action addressed by its URL.
func (h *HTTPHandler) rest(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := request.Payload{
			Controller: request.ControllerDocument,
			Action:     action,
			Index:      r.PathValue("index"),
			Collection: r.PathValue("collection"),
			Args:       map[string]interface{}{},
		}
		if id := r.PathValue("id"); id != "" {
			payload.Args[request.ArgID] = id
		}
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			body, err := decodeObject(r.Body, action != request.ActionSearch)
			if err != nil {
				h.reply(w, r, nil, err)
				return
			}
			payload.Body = body
		}
		if err := h.mergeQueryArgs(payload.Args, r.URL.Query()); err != nil {
			h.reply(w, r, nil, err)
			return
		}
		h.execute(w, r, payload)
	}
}

func (h *HTTPHandler) execute(w http.ResponseWriter, r *http.Request, payload request.Payload) {
	req := request.New(payload, request.Context{
		Connection: request.Connection{
			ID:       server.GetRequestID(r.Context()),
			Protocol: request.ProtocolHTTP,
		},
		User: identity.UserFromContext(r.Context()),
	})
	err := h.executor.Execute(r.Context(), req)
	h.reply(w, r, req, err)
}

func (h *HTTPHandler) reply(w http.ResponseWriter, r *http.Request, req *request.Request, err error) {
	if req == nil {
		req = request.New(request.Payload{RequestID: server.GetRequestID(r.Context())}, request.Context{})
	}
	res := NewResponse(req, err)
	if err != nil {
		if model.IsCanceled(err) {
			w.WriteHeader(res.Status)
			return
		}
		if model.KindOf(err) != model.KindInternal {
			h.logger.Warn("Request rejected",
				"controller", req.Controller,
				"action", req.Action,
				"status", res.Status,
				"errorId", res.Error.ID,
				"error", err)
		}
	}
	writeJSON(w, res.Status, res)
}

// QueryArgs are the well-known arguments accepted in query strings.
type QueryArgs struct {
	ID        string `schema:"_id"`
	IDs       string `schema:"ids"`
	From      int    `schema:"from"`
	Size      int    `schema:"size"`
	Notify    bool   `schema:"notify"`
	Strict    bool   `schema:"strict"`
	Refresh   string `schema:"refresh"`
	Propagate bool   `schema:"propagate"`
}

// mergeQueryArgs decodes the query string into args. Only keys present in
// the query string are set, the payload keeps the others.
func (h *HTTPHandler) mergeQueryArgs(args map[string]interface{}, values url.Values) error {
	if len(values) == 0 {
		return nil
	}
	var qa QueryArgs
	if err := h.decoder.Decode(&qa, values); err != nil {
		return model.NewError(model.KindBadRequest, "api.assert.invalid_argument",
			"invalid query parameters: %v", err)
	}
	set := func(key string, v interface{}) {
		if values.Has(key) {
			args[key] = v
		}
	}
	set(request.ArgID, qa.ID)
	set(request.ArgIDs, qa.IDs)
	set(argFrom, qa.From)
	set(argSize, qa.Size)
	set(request.ArgNotify, qa.Notify || values.Get(request.ArgNotify) == "")
	set(request.ArgStrict, qa.Strict || values.Get(request.ArgStrict) == "")
	set(request.ArgRefresh, qa.Refresh)
	set(request.ArgPropagate, qa.Propagate)
	return nil
}

// PayloadFromMap splits a decoded JSON request into its payload fields and
// arguments.
func PayloadFromMap(raw map[string]interface{}) (request.Payload, error) {
	p := request.Payload{Args: map[string]interface{}{}}
	for key, v := range raw {
		var err error
		switch key {
		case "requestId":
			p.RequestID, err = stringField(key, v)
		case "controller":
			p.Controller, err = stringField(key, v)
		case "action":
			p.Action, err = stringField(key, v)
		case "index":
			p.Index, err = stringField(key, v)
		case "collection":
			p.Collection, err = stringField(key, v)
		case "body":
			if v == nil {
				continue
			}
			body, ok := v.(map[string]interface{})
			if !ok {
				return p, model.InvalidType("body", v, "object")
			}
			p.Body = body
		default:
			p.Args[key] = v
		}
		if err != nil {
			return p, err
		}
	}
	if p.Controller == "" {
		return p, model.MissingArgument("controller")
	}
	if p.Action == "" {
		return p, model.MissingArgument("action")
	}
	return p, nil
}

func stringField(name string, v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", model.InvalidType(name, v, "string")
	}
	return s, nil
}

// decodeObject reads a JSON object. An empty body is nil unless required.
func decodeObject(r io.Reader, required bool) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := json.NewDecoder(r).Decode(&out)
	switch {
	case errors.Is(err, io.EOF):
		if required {
			return nil, model.MissingArgument("body")
		}
		return nil, nil
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.NewError(model.KindBadRequest, "api.assert.body_too_large",
				"request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, model.NewError(model.KindBadRequest, "api.assert.invalid_json",
			"invalid JSON body: %v", err)
	}
	return out, nil
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

// maxBodySize wraps a handler with request body size limiting
func maxBodySize(next http.HandlerFunc, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next(w, r)
	}
}

// withTimeout wraps a handler with a context timeout
func withTimeout(next http.HandlerFunc, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}
