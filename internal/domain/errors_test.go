package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "kind only",
			err:  &Error{Kind: KindNotFound},
			want: "not_found",
		},
		{
			name: "op and message",
			err:  &Error{Kind: KindInvalidArgument, Op: "read", Message: "buffer capacity must be positive"},
			want: "read: buffer capacity must be positive",
		},
		{
			name: "wrapped cause",
			err:  &Error{Kind: KindTransport, Op: "request", Message: "request failed", Err: errors.New("connection refused")},
			want: "request: request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", Errorf(KindTimeout, "request", "deadline of %s exceeded", "1s"))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("dial tcp: no such host")
	err := Wrap(KindTransport, "request", "request failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindNotFound, KindOf(ErrNotFound))
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in       string
		want     Method
		ok       bool
		withBody bool
	}{
		{in: "get", want: MethodGet, ok: true},
		{in: " POST ", want: MethodPost, ok: true, withBody: true},
		{in: "Put", want: MethodPut, ok: true, withBody: true},
		{in: "patch", want: MethodPatch, ok: true, withBody: true},
		{in: "DELETE", want: MethodDelete, ok: true},
		{in: "HEAD"},
		{in: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMethod(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.Equal(t, tt.withBody, got.AcceptsBody())
			}
		})
	}
}
