// Command fetchctl exercises the data-fetching layer from the terminal:
// ad-hoc aggregate queries against a dataset and data-file uploads.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modaops/retailfetch/client"
	"github.com/modaops/retailfetch/config"
	"github.com/modaops/retailfetch/observe"
	"github.com/modaops/retailfetch/query"
	"github.com/modaops/retailfetch/scope"
	"github.com/modaops/retailfetch/store"
	"github.com/modaops/retailfetch/upload"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	var baseURL string

	root := &cobra.Command{
		Use:           "fetchctl",
		Short:         "Retail dashboard data-fetching CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "backend base URL (overrides config)")

	loadConfig := func() (config.Config, error) {
		var cfg config.Config
		var err error
		if cfgPath != "" {
			cfg, err = config.Load(cfgPath)
		} else {
			cfg, err = config.FromEnv()
		}
		if err != nil {
			return config.Config{}, err
		}
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		return cfg, cfg.Validate()
	}

	root.AddCommand(newQueryCmd(loadConfig))
	root.AddCommand(newUploadCmd(loadConfig))

	return root
}

// app is the wired stack shared by the subcommands.
type app struct {
	observer *observe.Observer
	metrics  *observe.QueryMetrics
	client   *client.Client
	store    *store.Store
	scope    *scope.Scope
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	observer, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return nil, err
	}

	metrics, err := observe.NewQueryMetrics(observer.Meter())
	if err != nil {
		observer.Shutdown(ctx)
		return nil, err
	}

	opts := []client.Option{client.WithTimeout(cfg.Timeout)}
	if cfg.AuthToken != "" {
		opts = append(opts, client.WithToken(cfg.AuthToken))
	}

	return &app{
		observer: observer,
		metrics:  metrics,
		client:   client.New(cfg.BaseURL, opts...),
		store:    store.New(store.WithMetrics(metrics)),
		scope:    scope.New(),
	}, nil
}

func newQueryCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var datasetID string
	var filters []string
	var soft401 bool

	cmd := &cobra.Command{
		Use:   "query <endpoint>",
		Short: "Fetch one aggregate endpoint for a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.observer.Shutdown(ctx)

			a.scope.SetDatasetID(datasetID)
			parsed, err := parseFilters(filters)
			if err != nil {
				return err
			}
			a.scope.SetFilters(parsed)

			key, err := a.scope.KeyFor(args[0])
			if err != nil {
				return err
			}
			identity, _ := key.Identity()

			ctx, span := observe.StartQuerySpan(ctx, a.observer.Tracer(), observe.QueryMeta{
				Endpoint: args[0],
				Identity: identity,
			})

			var getOpts []store.GetOption
			if soft401 {
				getOpts = append(getOpts, store.WithSoftUnauthorized())
			}
			raw, err := a.store.Get(ctx, key, a.client, getOpts...)
			observe.EndSpan(span, err)
			if err != nil {
				return err
			}
			if raw == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "null")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetID, "dataset", "", "dataset identifier")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as key=value or key=v1,v2")
	cmd.Flags().BoolVar(&soft401, "soft-401", false, "treat unauthorized as a null result")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func newUploadCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a data file and print the new dataset id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.observer.Shutdown(ctx)

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			controller := upload.New(a.client, a.scope,
				upload.WithEndpoint(cfg.UploadEndpoint),
				upload.WithLogger(a.observer.Logger()),
			)

			result, err := controller.Upload(ctx, file.Name(), file)
			a.metrics.RecordUpload(ctx, err)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "dataset:", result.DatasetID)
			for entity, count := range result.RecordCounts {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d records\n", entity, count)
			}
			return nil
		},
	}
}

// parseFilters turns repeated key=value flags into query params. A value with
// commas becomes a repeated parameter.
func parseFilters(raw []string) (query.Params, error) {
	params := query.Params{}
	for _, f := range raw {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", f)
		}
		if strings.Contains(value, ",") {
			params[key] = strings.Split(value, ",")
		} else {
			params[key] = value
		}
	}
	return params, nil
}
