package apiclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name     string
		template string
		params   map[string]any
		want     string
	}{
		{
			name:     "no params",
			template: "/users",
			params:   nil,
			want:     "/users",
		},
		{
			name:     "single param",
			template: "/users/:id",
			params:   map[string]any{"id": 42},
			want:     "/users/42",
		},
		{
			name:     "multiple params",
			template: "/orgs/:org/users/:id",
			params:   map[string]any{"org": "acme", "id": 7},
			want:     "/orgs/acme/users/7",
		},
		{
			name:     "first occurrence only",
			template: "/users/:id/peers/:id",
			params:   map[string]any{"id": 1},
			want:     "/users/1/peers/:id",
		},
		{
			name:     "unsupplied placeholder is left untouched",
			template: "/users/:id",
			params:   map[string]any{},
			want:     "/users/:id",
		},
		{
			name:     "string value",
			template: "/users/:name",
			params:   map[string]any{"name": "bob"},
			want:     "/users/bob",
		},
		{
			name:     "value is path-escaped",
			template: "/files/:name",
			params:   map[string]any{"name": "a b"},
			want:     "/files/a%20b",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolvePath(tc.template, tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolvePathNilValue(t *testing.T) {
	_, err := resolvePath("/users/:id", map[string]any{"id": nil})
	require.Error(t, err)

	var missing *MissingPathParamError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "id", missing.Param)
	assert.Equal(t, `path parameter "id" was supplied with no value`, err.Error())
}

func TestEncodeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{
			name:  "empty",
			query: nil,
			want:  "",
		},
		{
			name:  "insertion order preserved",
			query: Query{}.With("b", 2).With("a", 1),
			want:  "b=2&a=1",
		},
		{
			name:  "nil values skipped",
			query: Query{}.With("a", 1).With("skip", nil).With("b", true),
			want:  "a=1&b=true",
		},
		{
			name:  "values are url-encoded",
			query: Query{}.With("q", "a b&c"),
			want:  "q=a+b%26c",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, encodeQuery(tc.query))
		})
	}
}

func TestPayloadQueryMap(t *testing.T) {
	q, err := payloadQuery(map[string]any{"b": 2, "a": "x"})
	require.NoError(t, err)

	assert.Equal(t, Query{{Key: "a", Value: "x"}, {Key: "b", Value: 2}}, q)
}

func TestPayloadQueryStruct(t *testing.T) {
	type listOpts struct {
		Scope string `url:"scope"`
		Limit int    `url:"limit,omitempty"`
	}

	q, err := payloadQuery(listOpts{Scope: "all", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "limit=10&scope=all", encodeQuery(q))
}

func TestPayloadQueryInvalid(t *testing.T) {
	_, err := payloadQuery(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding GET payload")
}

func TestRequestConfigDefaults(t *testing.T) {
	config := RequestConfig{}
	assert.Equal(t, 10*time.Second, config.timeout())
	assert.True(t, config.retryOnAuthFailure())

	no := false
	config = RequestConfig{Timeout: 2 * time.Second, RetryOnAuthFailure: &no}
	assert.Equal(t, 2*time.Second, config.timeout())
	assert.False(t, config.retryOnAuthFailure())
}
