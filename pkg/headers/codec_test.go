package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr string
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "whitespace", raw: "  \n\t", want: map[string]string{}},
		{name: "empty object", raw: "{}", want: map[string]string{}},
		{
			name: "two headers",
			raw:  `{"authorization": "Bearer abc", "Accept": "application/json"}`,
			want: map[string]string{"Authorization": "Bearer abc", "Accept": "application/json"},
		},
		{
			name: "duplicate keys last wins",
			raw:  `{"X-Trace": "one", "x-trace": "two"}`,
			want: map[string]string{"X-Trace": "two"},
		},
		{name: "invalid json", raw: `{"a": `, wantErr: "not valid JSON"},
		{name: "array", raw: `["a", "b"]`, wantErr: "must be a JSON object"},
		{name: "number value", raw: `{"X-Count": 3}`, wantErr: `header value for "X-Count" must be a string`},
		{name: "null value", raw: `{"X-Null": null}`, wantErr: "must be a string"},
		{name: "bad name", raw: `{"Bad Name": "v"}`, wantErr: "invalid header name"},
		{name: "invalid utf8 value", raw: "{\"X-Bin\": \"\xff\"}", wantErr: "not valid UTF-8"},
		{name: "invalid utf8 name", raw: "{\"X-\xfe\": \"v\"}", wantErr: "not valid UTF-8"},
		{name: "crlf in value", raw: `{"X-Inject": "a\r\nSet-Cookie: b"}`, wantErr: "invalid header value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformed)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	in := map[string]string{"X-Quote": `say "hi"`, "Accept": "text/plain"}

	raw, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	raw, err = Encode(nil)
	require.NoError(t, err)
	assert.Empty(t, raw)

	_, err = Encode(map[string]string{"bad name": "x"})
	assert.ErrorIs(t, err, ErrMalformed)
}
