package domain

import (
	"net/http"
	"strings"
	"time"
)

// Domain contains core models shared by the engine, the bridge and the CLI.

// Method is one of the HTTP verbs the engine accepts.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// ParseMethod normalizes s and reports whether it names a supported verb.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return m, true
	default:
		return "", false
	}
}

// AcceptsBody reports whether requests with this method may carry a body.
func (m Method) AcceptsBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch:
		return true
	default:
		return false
	}
}

func (m Method) String() string { return string(m) }

// RequestConfig is one fully validated request. It exists only for the
// duration of a single executor call.
type RequestConfig struct {
	ID      string
	Method  Method
	URL     string
	Headers map[string]string
	Body    []byte
	// Timeout of zero means no timeout.
	Timeout time.Duration
}

// Result is what a successful request hands back to the caller.
type Result struct {
	Handle uint64
	Length int64
	Status int
}
