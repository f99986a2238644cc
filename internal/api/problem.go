package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/iml1s/xmrigminer/internal/model"
	"github.com/iml1s/xmrigminer/internal/service"
)

const problemContentType = "application/problem+json"

// Problem types, stable across versions, so clients can map them back to errors.
const (
	TypeInvalidConfig   = "urn:xmrigminer:invalid-config"
	TypeAlreadyRunning  = "urn:xmrigminer:already-running"
	TypeNotRunning      = "urn:xmrigminer:not-running"
	TypeSpawnFailed     = "urn:xmrigminer:spawn-failed"
	TypeTerminateFailed = "urn:xmrigminer:terminate-failed"
	TypeBadRequest      = "urn:xmrigminer:bad-request"
	TypeInternal        = "urn:xmrigminer:internal"
)

// Problem is an RFC 9457 problem detail.
type Problem struct {
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Status int            `json:"status"`
	Detail string         `json:"detail,omitempty"`
	Fields []FieldProblem `json:"fields,omitempty"`
}

type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var sentinels = map[string]error{
	TypeAlreadyRunning:  service.ErrAlreadyRunning,
	TypeNotRunning:      service.ErrNotRunning,
	TypeSpawnFailed:     service.ErrSpawnFailed,
	TypeTerminateFailed: service.ErrTerminateFailed,
}

func (p *Problem) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", p.Title, p.Status, p.Detail)
	}
	return fmt.Sprintf("%s (HTTP %d)", p.Title, p.Status)
}

// Unwrap maps the problem type back to the service error it came from.
func (p *Problem) Unwrap() error {
	return sentinels[p.Type]
}

// problemOf classifies err for the HTTP response.
func problemOf(err error) Problem {
	var ce *model.ConfigError
	switch {
	case errors.As(err, &ce):
		p := Problem{
			Type:   TypeInvalidConfig,
			Title:  "invalid mining configuration",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		}
		for _, e := range configErrors(err) {
			p.Fields = append(p.Fields, FieldProblem{Field: e.Field, Message: e.Err.Error()})
		}
		return p
	case errors.Is(err, service.ErrAlreadyRunning):
		return Problem{Type: TypeAlreadyRunning, Title: "mining is already running", Status: http.StatusConflict}
	case errors.Is(err, service.ErrNotRunning):
		return Problem{Type: TypeNotRunning, Title: "mining is not running", Status: http.StatusConflict}
	case errors.Is(err, service.ErrSpawnFailed):
		return Problem{Type: TypeSpawnFailed, Title: "failed to start miner", Status: http.StatusInternalServerError, Detail: err.Error()}
	case errors.Is(err, service.ErrTerminateFailed):
		return Problem{Type: TypeTerminateFailed, Title: "failed to terminate miner", Status: http.StatusInternalServerError, Detail: err.Error()}
	default:
		return Problem{Type: TypeInternal, Title: "internal error", Status: http.StatusInternalServerError, Detail: err.Error()}
	}
}

// configErrors flattens the joined validation errors.
func configErrors(err error) []*model.ConfigError {
	var ret []*model.ConfigError
	var walk func(error)
	walk = func(err error) {
		if ce, ok := err.(*model.ConfigError); ok {
			ret = append(ret, ce)
			return
		}
		if j, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range j.Unwrap() {
				walk(e)
			}
			return
		}
		if u := errors.Unwrap(err); u != nil {
			walk(u)
		}
	}
	walk(err)
	return ret
}

func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
