package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vietlxng28/apiclient/pkg/credstore"
)

// Wire contract of the refresh endpoint.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type refreshOutcome struct {
	token string
	err   error
}

// refresher coordinates the single-flight token refresh. The first request
// failing with a 401 performs the refresh call; every request failing while
// that call is outstanding waits on its own buffered channel and is settled
// exactly once, in enqueue order, with the shared outcome.
//
// The flag check and the enqueue happen under the same mutex acquisition, so
// two refresh calls can never be in flight together.
type refresher struct {
	store     credstore.Store
	url       *url.URL
	path      string
	userAgent string
	// timeout bounds the refresh call itself; it is also the only bound on
	// how long queued waiters can stall. Zero means 10s.
	timeout time.Duration
	// transport used for the refresh call; the call bypasses the client's
	// hooks so a rejected refresh can never re-enter the coordinator.
	transport http.RoundTripper

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshOutcome
}

// onAuthFailure is the coordinator entry point, called once per auth-rejected
// response of a not-yet-retried request. origErr is the rejection that
// triggered it; it is returned unchanged when no refresh credential is
// stored.
func (r *refresher) onAuthFailure(origErr error) (string, error) {
	r.mu.Lock()

	if r.refreshing {
		ch := make(chan refreshOutcome, 1)
		r.waiters = append(r.waiters, ch)
		r.mu.Unlock()

		out := <-ch

		return out.token, out.err
	}

	refreshToken, err := r.store.RefreshToken()
	if err != nil || refreshToken == "" {
		r.mu.Unlock()

		if err != nil {
			log.Debugf("refresh credential unavailable: %s", err)
		}

		return "", origErr
	}

	r.refreshing = true
	r.mu.Unlock()

	out := refreshOutcome{}

	token, err := r.refresh(refreshToken)
	switch {
	case err != nil:
		out.err = err
	default:
		if err := r.store.SetAccessToken(token); err != nil {
			out.err = &RefreshError{Err: fmt.Errorf("persisting access token: %w", err)}
		} else {
			out.token = token
		}
	}

	r.settle(out)

	return out.token, out.err
}

// settle leaves the refreshing state and drains the waiters FIFO; the queue
// is empty again before any waiter can observe the outcome.
func (r *refresher) settle(out refreshOutcome) {
	r.mu.Lock()
	waiters := r.waiters
	r.waiters = nil
	r.refreshing = false
	r.mu.Unlock()

	for _, ch := range waiters {
		ch <- out
	}
}

// refresh performs the credential-refresh call. It deliberately does not go
// through the main client: the bearer hook and the 401 interception must not
// apply here. The call runs under its own timeout, detached from the
// triggering request's context, since queued waiters from other requests
// share its outcome.
func (r *refresher) refresh(refreshToken string) (string, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(refreshRequest{RefreshToken: refreshToken}); err != nil {
		return "", &RefreshError{Err: fmt.Errorf("encoding refresh body: %w", err)}
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url.JoinPath(r.path).String(), &buf)
	if err != nil {
		return "", &RefreshError{Err: fmt.Errorf("building refresh request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")

	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	log.Debugf("auth-refresh: %s %s", req.Method, req.URL)

	client := &http.Client{Transport: r.transport}

	resp, err := client.Do(req)
	if err != nil {
		return "", &RefreshError{Err: err}
	}
	defer resp.Body.Close()

	log.Debugf("auth-refresh: http %d", resp.StatusCode)

	if err := CheckResponse(resp); err != nil {
		return "", &RefreshError{Err: err}
	}

	var response refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", &RefreshError{Err: fmt.Errorf("decoding refresh response: %w", err)}
	}

	if response.AccessToken == "" {
		return "", &RefreshError{Err: errors.New("refresh response has no access token")}
	}

	return response.AccessToken, nil
}
