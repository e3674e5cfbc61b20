package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-openapi/strfmt"

	"github.com/vietlxng28/apiclient/pkg/credstore"
)

type Config struct {
	// URL is the API base; it must end with a trailing slash.
	URL *url.URL
	// RefreshPath is the credential-refresh endpoint, appended to URL.
	// Defaults to "/auth/refresh".
	RefreshPath string
	UserAgent   string
	// Store holds the access/refresh credential pair. Defaults to an
	// in-memory store seeded from AccessToken/RefreshToken.
	Store credstore.Store
	// AccessToken and RefreshToken optionally seed the store at
	// construction time.
	AccessToken  string
	RefreshToken strfmt.Password
	// Endpoints is the symbolic-name table consulted by Call.
	Endpoints *Registry
	// Transport is the underlying HTTP transport to use when making requests.
	// It will default to http.DefaultTransport if nil.
	Transport http.RoundTripper
	// RequestHooks run before every outbound send, after the
	// credential-injection hook.
	RequestHooks []RequestHook
}

type ApiClient struct {
	/*The http client used to make requests*/
	client *http.Client
	/*Reuse a single struct instead of allocating one for each service on the heap.*/
	common service
	/*config stuff*/
	BaseURL   *url.URL
	UserAgent string
	store     credstore.Store
	endpoints *Registry
	refresher *refresher
	preHooks  []RequestHook
	/*exposed Services*/
	Auth *AuthService
}

type service struct {
	client *ApiClient
}

func NewClient(config *Config) (*ApiClient, error) {
	if config.URL == nil {
		return nil, errors.New("config URL is required")
	}

	store := config.Store
	if store == nil {
		store = credstore.NewMemStore(config.AccessToken, config.RefreshToken.String())
	} else if config.AccessToken != "" || config.RefreshToken != "" {
		if err := store.SetTokens(config.AccessToken, config.RefreshToken.String()); err != nil {
			return nil, fmt.Errorf("seeding credential store: %w", err)
		}
	}

	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	refreshPath := config.RefreshPath
	if refreshPath == "" {
		refreshPath = "/auth/refresh"
	}

	c := &ApiClient{
		client:    &http.Client{Transport: transport},
		BaseURL:   config.URL,
		UserAgent: config.UserAgent,
		store:     store,
		endpoints: config.Endpoints,
		refresher: &refresher{
			store:     store,
			url:       config.URL,
			path:      refreshPath,
			userAgent: config.UserAgent,
			transport: transport,
		},
	}

	c.preHooks = append([]RequestHook{c.injectBearer}, config.RequestHooks...)
	c.common.client = c
	c.Auth = (*AuthService)(&c.common)

	return c, nil
}

type Response struct {
	Response *http.Response
}

func newResponse(r *http.Response) *Response {
	return &Response{Response: r}
}

// injectBearer is the first pre-request hook: it reads the access token from
// the credential store before every send, replay included.
func (c *ApiClient) injectBearer(req *http.Request) error {
	token, err := c.store.AccessToken()
	if err != nil {
		return fmt.Errorf("reading access token: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return nil
}
