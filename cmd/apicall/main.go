package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vietlxng28/apiclient/pkg/apiclient"
	"github.com/vietlxng28/apiclient/pkg/credstore"
)

var (
	endpointsFile   string
	baseURL         string
	refreshPath     string
	credentialsFile string
	dbgLvl, trcLvl  bool
)

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "credentials.json"
	}

	return filepath.Join(dir, "apicall", "credentials.json")
}

func newAPIClient() (*apiclient.ApiClient, error) {
	registry, err := apiclient.LoadRegistry(endpointsFile)
	if err != nil {
		return nil, err
	}

	if baseURL == "" {
		return nil, fmt.Errorf("--url is required")
	}

	apiURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}

	if !strings.HasSuffix(apiURL.Path, "/") {
		apiURL.Path += "/"
	}

	return apiclient.NewClient(&apiclient.Config{
		URL:         apiURL,
		RefreshPath: refreshPath,
		UserAgent:   "apicall/" + version,
		Store:       credstore.NewFileStore(credentialsFile),
		Endpoints:   registry,
	})
}

func keyValues(pairs []string, flag string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid %s %q, expected key=value", flag, pair)
		}

		out[k] = v
	}

	return out, nil
}

func newCallCmd() *cobra.Command {
	var (
		params []string
		query  []string
		data   string
	)

	cmd := &cobra.Command{
		Use:     "call <endpoint>",
		Short:   "Invoke a named endpoint from the table",
		Example: `apicall call getUser -p id=42 -q active=true`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}

			opts := &apiclient.CallOptions{}

			opts.PathParams, err = keyValues(params, "--param")
			if err != nil {
				return err
			}

			for _, pair := range query {
				k, v, ok := strings.Cut(pair, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid --query %q, expected key=value", pair)
				}

				opts.Query = opts.Query.With(k, v)
			}

			if data != "" {
				var payload any
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("parsing --data: %w", err)
				}

				opts.Payload = payload
			}

			var out json.RawMessage

			if _, err := client.Call(cmd.Context(), args[0], opts, &out); err != nil {
				return err
			}

			if len(out) > 0 {
				fmt.Println(string(out))
			}

			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "path parameter (key=value, repeatable)")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter (key=value, repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request payload")

	return cmd
}

func newEndpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the endpoints defined in the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := apiclient.LoadRegistry(endpointsFile)
			if err != nil {
				return err
			}

			for _, name := range registry.Names() {
				fmt.Println(name)
			}

			return nil
		},
	}
}

func newLoginCmd() *cobra.Command {
	var access, refresh string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a credential pair for later calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh == "" {
				return fmt.Errorf("--refresh-token is required")
			}

			store := credstore.NewFileStore(credentialsFile)
			if err := store.SetTokens(access, refresh); err != nil {
				return err
			}

			log.Infof("credentials written to %s", credentialsFile)

			return nil
		},
	}

	cmd.Flags().StringVar(&access, "access-token", "", "initial access token")
	cmd.Flags().StringVar(&refresh, "refresh-token", "", "refresh token")

	return cmd
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "apicall",
		Short:         "Call HTTP endpoints from a declarative table, with automatic token refresh",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if trcLvl {
				log.SetLevel(log.TraceLevel)
			} else if dbgLvl {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&endpointsFile, "endpoints", "e", "endpoints.yaml", "endpoint table file")
	pf.StringVarP(&baseURL, "url", "u", os.Getenv("APICALL_URL"), "API base URL")
	pf.StringVar(&refreshPath, "refresh-path", "/auth/refresh", "token refresh endpoint path")
	pf.StringVar(&credentialsFile, "credentials", defaultCredentialsPath(), "credential file")
	pf.BoolVar(&dbgLvl, "debug", false, "debug logging")
	pf.BoolVar(&trcLvl, "trace", false, "trace logging (dumps requests and responses)")

	cmd.AddCommand(newCallCmd(), newEndpointsCmd(), newLoginCmd())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
