package api

import (
	"errors"
	"strings"

	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

// ErrorBody is the structured error of a response.
type ErrorBody struct {
	Code    string `json:"code"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Response is the reply to one request, shared by every transport.
type Response struct {
	RequestID  string      `json:"requestId"`
	Status     int         `json:"status"`
	Controller string      `json:"controller,omitempty"`
	Action     string      `json:"action,omitempty"`
	Index      string      `json:"index,omitempty"`
	Collection string      `json:"collection,omitempty"`
	Result     interface{} `json:"result"`
	Error      *ErrorBody  `json:"error"`
}

// NewResponse builds the response of req, failed with err when not nil.
func NewResponse(req *request.Request, err error) *Response {
	res := &Response{
		RequestID:  req.ID,
		Controller: req.Controller,
		Action:     req.Action,
		Index:      req.Index,
		Collection: req.Collection,
	}
	if err != nil {
		res.Status = model.StatusOf(err)
		res.Error = NewErrorBody(err)
		return res
	}
	res.Status = req.Status()
	res.Result = req.Result()
	return res
}

// NewErrorBody describes err for clients. Unclassified internal errors do
// not leak their message.
func NewErrorBody(err error) *ErrorBody {
	body := &ErrorBody{
		Code: strings.ToUpper(model.KindOf(err).String()),
		ID:   model.ErrorID(err),
	}
	var e *model.Error
	switch {
	case errors.As(err, &e):
		body.Message = e.Message
	case model.IsCanceled(err):
		body.Code = "CANCELED"
		body.Message = "Request canceled"
	case model.KindOf(err) == model.KindInternal:
		body.Message = "Internal server error"
	default:
		body.Message = err.Error()
	}
	return body
}
