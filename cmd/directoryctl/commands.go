package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/octobees/provider-directory/internal/catalog"
	"github.com/octobees/provider-directory/internal/client"
	"github.com/octobees/provider-directory/internal/database"
	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/entity"
	"github.com/octobees/provider-directory/internal/handler"
	"github.com/octobees/provider-directory/internal/repository"
)

const defaultBaseURL = "http://localhost:8080"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "directoryctl",
		Short:         "Query and seed the provider directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("base-url", envOr("DIRECTORY_BASE_URL", defaultBaseURL), "directory API base URL")
	root.PersistentFlags().Duration("timeout", 10*time.Second, "request timeout")

	root.AddCommand(newSearchCmd(), newWatchCmd(), newProviderCmd(), newFiltersCmd(), newValidateSeedCmd(), newSeedCmd())
	return root
}

func newSearchCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a directory search and print the result page",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := searchParams(args, params)
			if err != nil {
				return err
			}
			filters, ignored := handler.ParseSearchFilters(values)
			if len(ignored) > 0 {
				return fmt.Errorf("invalid search parameters: %s", strings.Join(ignored, ", "))
			}

			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Search(cmd.Context(), filters)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Result)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "search parameter as key=value, e.g. -p city=Patna -p sortBy=rating")
	return cmd
}

// watchResult is one committed search printed by the watch command.
type watchResult struct {
	Seq uint64 `json:"seq"`
	dto.SearchResult
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run one search per input line and print results as they land",
		Long: `Reads searches from stdin, one per line: free text is the query and
key=value tokens are extra parameters, e.g. "surveyor city=Patna sortBy=rating".
Each line is sent as soon as it is read. A response that arrives after a
newer search has been printed is dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}

			var (
				latest   client.Latest[dto.SearchResult]
				wg       sync.WaitGroup
				mu       sync.Mutex
				printed  uint64
				firstErr error
			)
			enc := json.NewEncoder(cmd.OutOrStdout())

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				filters, err := lineFilters(line)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %q: %v\n", line, err)
					continue
				}

				wg.Add(1)
				go func() {
					defer wg.Done()
					kept, err := c.SearchLatest(cmd.Context(), filters, &latest)

					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						if firstErr == nil {
							firstErr = err
						}
						return
					}
					if !kept {
						return
					}
					// A newer commit may already have been printed by another goroutine.
					result, seq, ok := latest.Value()
					if !ok || seq <= printed {
						return
					}
					printed = seq
					if err := enc.Encode(watchResult{Seq: seq, SearchResult: result}); err != nil && firstErr == nil {
						firstErr = err
					}
				}()
			}
			wg.Wait()

			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return firstErr
		},
	}
}

// lineFilters splits a watch line into a query and key=value parameters.
func lineFilters(line string) (dto.SearchFilters, error) {
	var words, pairs []string
	for _, field := range strings.Fields(line) {
		if strings.Contains(field, "=") {
			pairs = append(pairs, field)
			continue
		}
		words = append(words, field)
	}
	var args []string
	if len(words) > 0 {
		args = []string{strings.Join(words, " ")}
	}
	values, err := searchParams(args, pairs)
	if err != nil {
		return dto.SearchFilters{}, err
	}
	filters, ignored := handler.ParseSearchFilters(values)
	if len(ignored) > 0 {
		return dto.SearchFilters{}, fmt.Errorf("invalid search parameters: %s", strings.Join(ignored, ", "))
	}
	return filters, nil
}

func newProviderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provider <id>",
		Short: "Print a single provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			provider, err := c.Provider(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), provider)
		},
	}
}

func newFiltersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "Print the available filter values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := apiClient(cmd)
			if err != nil {
				return err
			}
			facets, err := c.Facets(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), facets)
		},
	}
}

func newValidateSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-seed <file>",
		Short: "Check a YAML seed file without loading it anywhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, err := loadSeed(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d providers ok\n", args[0], len(providers))
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Upsert a YAML seed file into the providers table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return errors.New("DATABASE_URL or --database-url is required")
			}
			providers, err := loadSeed(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			pool, err := database.Connect(ctx, dsn)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			result, err := repository.NewPGXProvidersRepository(pool).BulkUpsert(ctx, providers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d updated=%d total=%d\n", result.Inserted, result.Updated, result.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
	return cmd
}

func loadSeed(path string) ([]entity.Provider, error) {
	providers, err := catalog.LoadSeedFile(path)
	if err != nil {
		return nil, err
	}
	if err := catalog.Validate(providers); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return providers, nil
}

// searchParams merges an optional positional query with key=value pairs.
func searchParams(args, pairs []string) (url.Values, error) {
	values := url.Values{}
	if len(args) == 1 {
		values.Set("query", args[0])
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q must be key=value", pair)
		}
		values.Set(key, strings.TrimSpace(value))
	}
	return values, nil
}

func apiClient(cmd *cobra.Command) (*client.Client, error) {
	baseURL, err := cmd.Flags().GetString("base-url")
	if err != nil {
		return nil, err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	return client.New(&http.Client{Timeout: timeout}, baseURL)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
