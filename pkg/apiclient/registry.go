package apiclient

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry maps symbolic endpoint names to request configs, so call sites
// reference "getUser" instead of hardcoding paths and verbs.
type Registry struct {
	endpoints map[string]RequestConfig
}

func NewRegistry(endpoints map[string]RequestConfig) *Registry {
	return &Registry{endpoints: maps.Clone(endpoints)}
}

func (r *Registry) Lookup(name string) (RequestConfig, error) {
	config, ok := r.endpoints[name]
	if !ok {
		return RequestConfig{}, fmt.Errorf("no endpoint named %q", name)
	}

	return config, nil
}

func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.endpoints))
}

type registryFile struct {
	Endpoints map[string]RequestConfig `yaml:"endpoints"`
}

// LoadRegistry reads an endpoint table from a YAML file:
//
//	endpoints:
//	  getUser:
//	    endpoint: /users/:id
//	    method: GET
//	    require_auth: true
//	    timeout: 5s
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading endpoint table: %w", err)
	}

	var rf registryFile

	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing endpoint table %s: %w", path, err)
	}

	if len(rf.Endpoints) == 0 {
		return nil, fmt.Errorf("endpoint table %s has no endpoints", path)
	}

	for name, config := range rf.Endpoints {
		if !slices.Contains(allowedMethods, config.Method) {
			return nil, fmt.Errorf("endpoint %q: unsupported method %q", name, config.Method)
		}
	}

	return &Registry{endpoints: rf.Endpoints}, nil
}

func (rc *RequestConfig) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Endpoint           string            `yaml:"endpoint"`
		Method             string            `yaml:"method"`
		Timeout            string            `yaml:"timeout"`
		Headers            map[string]string `yaml:"headers"`
		RequireAuth        bool              `yaml:"require_auth"`
		RetryOnAuthFailure *bool             `yaml:"retry_on_auth_failure"`
	}

	if err := value.Decode(&aux); err != nil {
		return err
	}

	rc.Endpoint = aux.Endpoint
	rc.Method = strings.ToUpper(aux.Method)
	rc.Headers = aux.Headers
	rc.RequireAuth = aux.RequireAuth
	rc.RetryOnAuthFailure = aux.RetryOnAuthFailure

	if aux.Timeout != "" {
		d, err := time.ParseDuration(aux.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", aux.Timeout, err)
		}

		rc.Timeout = d
	}

	return nil
}
