package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietlxng28/apiclient/pkg/credstore"
)

func TestPostPayloadBody(t *testing.T) {
	ctx := t.Context()

	mux, urlx, teardown := setup()
	defer teardown()

	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		testMethod(t, r, "POST")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name": "alice"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 1}`)
	})

	client := newTestClient(t, urlx, credstore.NewMemStore("", ""))

	var created struct {
		ID int `json:"id"`
	}

	resp, err := client.Submit(ctx, RequestConfig{
		Endpoint: "/users",
		Method:   "POST",
	}, &CallOptions{
		Payload: map[string]any{"name": "alice"},
	}, &created)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.Response.StatusCode)
	assert.Equal(t, 1, created.ID)
}

func TestGetPayloadMergedIntoQuery(t *testing.T) {
	ctx := t.Context()

	mux, urlx, teardown := setup()
	defer teardown()

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		testMethod(t, r, "GET")
		// explicit query entries first, then the payload entries key-sorted
		assert.Equal(t, "page=2&limit=10&term=gopher", r.URL.RawQuery)
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, urlx, credstore.NewMemStore("", ""))

	_, err := client.Submit(ctx, RequestConfig{
		Endpoint: "/search",
		Method:   "GET",
	}, &CallOptions{
		Payload: map[string]any{"term": "gopher", "limit": 10},
		Query:   Query{}.With("page", 2),
	}, nil)
	require.NoError(t, err)
}

func TestBaseURLPrefixPreserved(t *testing.T) {
	ctx := t.Context()

	mux, urlx, teardown := setup()
	defer teardown()

	mux.HandleFunc("/v1/users/7", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	apiURL, err := url.Parse(urlx + "/v1/")
	require.NoError(t, err)

	client, err := NewClient(&Config{URL: apiURL})
	require.NoError(t, err)

	_, err = client.Submit(ctx, RequestConfig{
		Endpoint: "/users/:id",
		Method:   "GET",
	}, &CallOptions{
		PathParams: map[string]any{"id": 7},
	}, nil)
	require.NoError(t, err)
}

func TestMissingPathParamFailsFast(t *testing.T) {
	ctx := t.Context()

	mux, urlx, teardown := setup()
	defer teardown()

	calls := 0

	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, urlx, credstore.NewMemStore("", ""))

	_, err := client.Submit(ctx, RequestConfig{
		Endpoint: "/users/:id",
		Method:   "GET",
	}, &CallOptions{
		PathParams: map[string]any{"id": nil},
	}, nil)

	var missing *MissingPathParamError
	require.ErrorAs(t, err, &missing)

	// rejected before any network call
	assert.Equal(t, 0, calls)
}

func TestConfigHeadersSent(t *testing.T) {
	ctx := t.Context()

	mux, urlx, teardown := setup()
	defer teardown()

	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csv", r.Header.Get("Accept"))
		assert.Equal(t, "on", r.Header.Get("X-Custom"))
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, urlx, credstore.NewMemStore("", ""))

	_, err := client.Submit(ctx, RequestConfig{
		Endpoint: "/ping",
		Method:   "GET",
		Headers:  map[string]string{"Accept": "csv", "X-Custom": "on"},
	}, nil, nil)
	require.NoError(t, err)
}

func TestRequestHooksRunInOrder(t *testing.T) {
	ctx := t.Context()

	mux, urlx, teardown := setup()
	defer teardown()

	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "second", r.Header.Get("X-Order"))
		w.WriteHeader(http.StatusOK)
	})

	apiURL, err := url.Parse(urlx + "/")
	require.NoError(t, err)

	client, err := NewClient(&Config{
		URL: apiURL,
		RequestHooks: []RequestHook{
			func(req *http.Request) error {
				req.Header.Set("X-Order", "first")
				return nil
			},
			func(req *http.Request) error {
				req.Header.Set("X-Order", "second")
				return nil
			},
		},
	})
	require.NoError(t, err)

	_, err = client.Submit(ctx, RequestConfig{Endpoint: "/ping", Method: "GET"}, nil, nil)
	require.NoError(t, err)
}

func TestDecodeIntoWriter(t *testing.T) {
	ctx := t.Context()

	mux, urlx, teardown := setup()
	defer teardown()

	mux.HandleFunc("/raw", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "raw bytes, not json")
	})

	client := newTestClient(t, urlx, credstore.NewMemStore("", ""))

	var buf bytes.Buffer

	_, err := client.Submit(ctx, RequestConfig{Endpoint: "/raw", Method: "GET"}, nil, &buf)
	require.NoError(t, err)
	assert.Equal(t, "raw bytes, not json", buf.String())
}

func TestNilContext(t *testing.T) {
	client := newTestClient(t, "http://localhost", credstore.NewMemStore("", ""))

	//nolint:staticcheck
	_, err := client.Submit(nil, RequestConfig{Endpoint: "/x", Method: "GET"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context must be non-nil")
}
