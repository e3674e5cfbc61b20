package apiclient

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	qs "github.com/google/go-querystring/query"
)

const defaultTimeout = 10 * time.Second

var allowedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// RequestConfig describes one endpoint: where to send a request and how.
// Entries usually come from a Registry rather than being built at call sites.
type RequestConfig struct {
	// Endpoint is a path template; ":name" segments are replaced by path
	// parameters at submit time.
	Endpoint string
	Method   string
	// Timeout bounds each network call (the initial send and the replay
	// each get the full budget). Zero means 10s.
	Timeout     time.Duration
	Headers     map[string]string
	RequireAuth bool
	// RetryOnAuthFailure opts an endpoint out of the automatic token
	// refresh when set to false. Unset behaves as true.
	RetryOnAuthFailure *bool
}

func (rc RequestConfig) retryOnAuthFailure() bool {
	return rc.RetryOnAuthFailure == nil || *rc.RetryOnAuthFailure
}

func (rc RequestConfig) timeout() time.Duration {
	if rc.Timeout > 0 {
		return rc.Timeout
	}

	return defaultTimeout
}

type QueryParam struct {
	Key   string
	Value any
}

// Query preserves the insertion order of its entries; nil-valued entries are
// skipped at encoding time.
type Query []QueryParam

func (q Query) With(key string, value any) Query {
	return append(q, QueryParam{Key: key, Value: value})
}

// CallOptions carries the per-call inputs of Submit. All fields are optional.
type CallOptions struct {
	// Payload is sent as the JSON body for non-GET methods and merged into
	// the query string for GET.
	Payload    any
	PathParams map[string]any
	Query      Query
}

// resolvePath substitutes each supplied path parameter into the first
// occurrence of its ":key" placeholder. A placeholder with no supplied
// parameter is left in the path untouched.
func resolvePath(template string, params map[string]any) (string, error) {
	resolved := template

	for key, value := range params {
		if value == nil {
			return "", &MissingPathParamError{Param: key}
		}

		resolved = strings.Replace(resolved, ":"+key, url.PathEscape(fmt.Sprint(value)), 1)
	}

	return resolved, nil
}

func encodeQuery(q Query) string {
	var b strings.Builder

	for _, p := range q {
		if p.Value == nil {
			continue
		}

		if b.Len() > 0 {
			b.WriteByte('&')
		}

		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fmt.Sprint(p.Value)))
	}

	return b.String()
}

// payloadQuery converts a GET payload into query entries. Maps are appended
// key-sorted; anything else goes through go-querystring and must carry url
// tags.
func payloadQuery(payload any) (Query, error) {
	if m, ok := payload.(map[string]any); ok {
		q := make(Query, 0, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			q = append(q, QueryParam{Key: k, Value: m[k]})
		}

		return q, nil
	}

	vals, err := qs.Values(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding GET payload: %w", err)
	}

	q := make(Query, 0, len(vals))
	for _, k := range slices.Sorted(maps.Keys(vals)) {
		for _, v := range vals[k] {
			q = append(q, QueryParam{Key: k, Value: v})
		}
	}

	return q, nil
}
