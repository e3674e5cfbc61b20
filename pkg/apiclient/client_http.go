package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/httputil"
	"net/url"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
)

// RequestHook runs before every outbound send, including the post-refresh
// replay. Hooks run in registration order; the credential-injection hook
// always runs first.
type RequestHook func(req *http.Request) error

// request is the per-call descriptor: everything needed to send the call
// once, and to replay it at most once after a token refresh. Only the header
// map and the retried marker change after construction.
type request struct {
	config  RequestConfig
	url     *url.URL
	body    []byte
	headers map[string]string
	retried bool
}

func (r *request) authorize(token string) {
	if r.headers == nil {
		r.headers = map[string]string{}
	}

	r.headers["Authorization"] = "Bearer " + token
}

func (r *request) build(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.config.Method, r.url.String(), body)
	if err != nil {
		return nil, err
	}

	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// newRequest resolves the path template, places the payload and assembles the
// query string. It fails fast, before any network call, on a nil-valued path
// parameter or an unencodable payload.
func (c *ApiClient) newRequest(config RequestConfig, opts *CallOptions) (*request, error) {
	if opts == nil {
		opts = &CallOptions{}
	}

	if !slices.Contains(allowedMethods, config.Method) {
		return nil, fmt.Errorf("unsupported method %q", config.Method)
	}

	if !strings.HasSuffix(c.BaseURL.Path, "/") {
		return nil, fmt.Errorf("BaseURL must have a trailing slash, but %q does not", c.BaseURL)
	}

	resolved, err := resolvePath(config.Endpoint, opts.PathParams)
	if err != nil {
		return nil, err
	}

	u, err := c.BaseURL.Parse(strings.TrimPrefix(resolved, "/"))
	if err != nil {
		return nil, err
	}

	query := opts.Query

	var body []byte

	if opts.Payload != nil {
		if config.Method == http.MethodGet {
			pq, err := payloadQuery(opts.Payload)
			if err != nil {
				return nil, err
			}

			query = append(query, pq...)
		} else {
			buf := &bytes.Buffer{}
			enc := json.NewEncoder(buf)
			enc.SetEscapeHTML(false)

			if err := enc.Encode(opts.Payload); err != nil {
				return nil, fmt.Errorf("encoding request body: %w", err)
			}

			body = buf.Bytes()
		}
	}

	if encoded := encodeQuery(query); encoded != "" {
		if u.RawQuery != "" {
			u.RawQuery += "&" + encoded
		} else {
			u.RawQuery = encoded
		}
	}

	return &request{
		config:  config,
		url:     u,
		body:    body,
		headers: maps.Clone(config.Headers),
	}, nil
}

// Submit sends one request described by config and opts, decoding the JSON
// response body into v. On a 401 for an auth-required endpoint it consults
// the refresh coordinator and replays once with the new credential.
//
// A path placeholder with no supplied parameter is left unresolved in the
// URL; only supplied-but-nil parameters are rejected.
func (c *ApiClient) Submit(ctx context.Context, config RequestConfig, opts *CallOptions, v any) (*Response, error) {
	req, err := c.newRequest(config, opts)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, req, v)
}

// Call looks config up in the endpoint registry by name and submits it.
func (c *ApiClient) Call(ctx context.Context, name string, opts *CallOptions, v any) (*Response, error) {
	if c.endpoints == nil {
		return nil, errors.New("client has no endpoint registry")
	}

	config, err := c.endpoints.Lookup(name)
	if err != nil {
		return nil, err
	}

	return c.Submit(ctx, config, opts, v)
}

func (c *ApiClient) do(ctx context.Context, req *request, v any) (*Response, error) {
	if ctx == nil {
		return nil, errors.New("context must be non-nil")
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		return newResponse(resp), err
	}

	if resp.StatusCode == http.StatusUnauthorized && req.config.RequireAuth &&
		req.config.retryOnAuthFailure() && !req.retried {
		// the rejection body is consumed here; the coordinator either
		// hands back a fresh token or the error to surface
		origErr := CheckResponse(resp)
		resp.Body.Close()

		token, refreshErr := c.refresher.onAuthFailure(origErr)
		if refreshErr != nil {
			return newResponse(resp), refreshErr
		}

		log.Debugf("replaying %s %s with refreshed credential", req.config.Method, req.url)

		req.retried = true
		req.authorize(token)

		resp, err = c.send(ctx, req)
		if err != nil {
			return newResponse(resp), err
		}
	}

	defer resp.Body.Close()

	response := newResponse(resp)

	if err := CheckResponse(resp); err != nil {
		return response, err
	}

	if v != nil {
		if w, ok := v.(io.Writer); ok {
			_, copyErr := io.Copy(w, resp.Body)
			return response, copyErr
		}

		decErr := json.NewDecoder(resp.Body).Decode(v)
		if errors.Is(decErr, io.EOF) {
			decErr = nil // ignore EOF errors caused by empty response body
		}

		return response, decErr
	}

	return response, nil
}

// send performs one network call: pre-request hooks in fixed order, then the
// transport. The per-call timeout applies to each send separately, so a
// replay gets the full budget again.
func (c *ApiClient) send(ctx context.Context, req *request) (*http.Response, error) {
	httpReq, err := req.build(ctx)
	if err != nil {
		return nil, err
	}

	for _, hook := range c.preHooks {
		if err := hook(httpReq); err != nil {
			return nil, err
		}
	}

	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	log.Debugf("[URL] %s %s", httpReq.Method, httpReq.URL)

	if log.IsLevelEnabled(log.TraceLevel) {
		dump, err := httputil.DumpRequestOut(httpReq, true)
		if err == nil {
			log.Tracef("Request: %s", string(dump))
		}
	}

	client := *c.client
	client.Timeout = req.config.timeout()

	resp, err := client.Do(httpReq)
	if err != nil {
		// If we got an error, and the context has been canceled,
		// the context's error is probably more useful.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// If the error type is *url.Error, sanitize its URL before returning.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			if parsedURL, parseErr := url.Parse(urlErr.URL); parseErr == nil {
				urlErr.URL = parsedURL.String()
				return nil, urlErr
			}
		}

		return nil, err
	}

	if log.IsLevelEnabled(log.TraceLevel) {
		dump, err := httputil.DumpResponse(resp, true)
		if err == nil {
			log.Tracef("Response: %s", string(dump))
		}
	}

	return resp, nil
}
