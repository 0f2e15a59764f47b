package handlers

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"parkintel/internal/config"
	"parkintel/internal/core"
	"parkintel/internal/ingest"
	"parkintel/internal/logger"
	"parkintel/internal/sources"
)

// NewCollectCmd creates the collect command, which fetches every enabled
// source and pushes the results through the ingest gate.
func NewCollectCmd() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch articles from enabled sources and ingest them",
		Long: `Collect runs every enabled source adapter concurrently, then feeds
the fetched records through the dedup gate. Records already in the
database are skipped, not overwritten.

Examples:
  parkintel collect
  parkintel collect --source hackernews --source xueqiu`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := setup(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			registry := buildRegistry(cfg)
			names := only
			if len(names) == 0 {
				names = registry.Names()
			}
			if len(names) == 0 {
				return fmt.Errorf("no sources enabled; check the sources section of the config")
			}

			ctx := cmd.Context()
			records, failed, err := fetchAll(ctx, registry, names)
			if err != nil {
				return err
			}

			gate := ingest.NewGate(st, logger.Get())
			inserted, skipped, err := gate.IngestAll(ctx, records)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("collected %d records: %d inserted, %d skipped", len(records), inserted, skipped)
			if failed > 0 {
				fmt.Printf(", %d sources failed", failed)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&only, "source", nil, "fetch only the named source (repeatable)")
	return cmd
}

// fetchAll runs the named adapters concurrently. A failing adapter is
// logged and counted; it never aborts the other fetches. An unknown name
// does abort, since that is an operator typo.
func fetchAll(ctx context.Context, registry *sources.Registry, names []string) ([]core.RawRecord, int, error) {
	adapters := make([]sources.Adapter, 0, len(names))
	for _, name := range names {
		a, err := registry.Resolve(name)
		if err != nil {
			return nil, 0, err
		}
		adapters = append(adapters, a)
	}

	var (
		mu      sync.Mutex
		records []core.RawRecord
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range adapters {
		adapter := adapter
		g.Go(func() error {
			recs, err := adapter.Fetch(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("source fetch failed", "source", adapter.Name(), "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			logger.Info("source fetched", "source", adapter.Name(), "records", len(recs))
			mu.Lock()
			records = append(records, recs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failed, err
	}
	return records, failed, nil
}

func buildRegistry(cfg *config.Config) *sources.Registry {
	registry := sources.NewRegistry()
	log := logger.Get()
	if cfg.Sources.HackerNews.Enabled {
		registry.Register(sources.NewHackerNews(cfg.Sources.HackerNews, nil, log))
	}
	if cfg.Sources.Substack.Enabled {
		registry.Register(sources.NewSubstack(cfg.Sources.Substack, nil, log))
	}
	if cfg.Sources.YouTube.Enabled {
		registry.Register(sources.NewYouTube(cfg.Sources.YouTube, nil, log))
	}
	if cfg.Sources.Xueqiu.Enabled {
		registry.Register(sources.NewXueqiu(cfg.Sources.Xueqiu, nil, log))
	}
	return registry
}
