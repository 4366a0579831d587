// Command crawler is the catalog crawler's process entrypoint. It bootstraps
// the category tree, runs the enumerate → fetch cards → normalize → persist
// pipeline, and serves the read-only API and Prometheus metrics while it does
// so.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wbparser/catalog-crawler/internal/api"
	"github.com/wbparser/catalog-crawler/internal/cards"
	"github.com/wbparser/catalog-crawler/internal/categories"
	"github.com/wbparser/catalog-crawler/internal/config"
	"github.com/wbparser/catalog-crawler/internal/enumerate"
	"github.com/wbparser/catalog-crawler/internal/fetch"
	"github.com/wbparser/catalog-crawler/internal/metrics"
	"github.com/wbparser/catalog-crawler/internal/persist"
	"github.com/wbparser/catalog-crawler/internal/pipeline"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "start":
		fs := flag.NewFlagSet("start", flag.ExitOnError)
		categoriesOnly := fs.Bool("categories", false, "bootstrap the category tree, then exit without crawling")
		itemsOnly := fs.Bool("items", false, "crawl items against the already-stored category tree, skipping bootstrap")
		metricsAddr := fs.String("metrics-addr", ":9090", "address to serve /metrics on")
		if err := fs.Parse(os.Args[2:]); err != nil {
			os.Exit(2)
		}
		if err := runStart(*categoriesOnly, *itemsOnly, *metricsAddr); err != nil {
			log := logger.New()
			log.Error("crawler: fatal", "err", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: crawler start [--categories] [--items] [--metrics-addr addr]")
}

func runStart(categoriesOnly, itemsOnly bool, metricsAddr string) error {
	ctx := context.Background()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbPool.Close()

	if _, err := dbPool.Exec(ctx, persist.Schema()); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	httpClient := fetch.New(cfg.Fetch, log)
	reader := persist.NewReader(dbPool)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("crawler: serving metrics", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Error("crawler: metrics server stopped", "err", err)
		}
	}()

	staleness := api.NewStalenessCache(redisClient, 24*time.Hour)
	readAPI := api.New(reader, staleness, log)
	go func() {
		log.Info("crawler: serving read api", "addr", cfg.APIAddr)
		if err := readAPI.Listen(cfg.APIAddr); err != nil {
			log.Error("crawler: api server stopped", "err", err)
		}
	}()

	if !itemsOnly {
		loader := categories.New(httpClient, cfg.Endpoints.CategoriesURL, reader, log)
		if err := loader.Load(ctx); err != nil {
			return fmt.Errorf("bootstrap categories: %w", err)
		}
		log.Info("crawler: category bootstrap complete")
	}

	if categoriesOnly {
		return nil
	}

	cats, err := reader.Categories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	if len(cats) == 0 {
		return fmt.Errorf("no categories stored; run with --categories first")
	}

	enumerator := enumerate.New(httpClient, cfg.Enumerate, cfg.Endpoints, log)
	cardFetcher := cards.New(httpClient, cfg.Endpoints, log)
	persister := persist.New(dbPool, log)
	supervisor := pipeline.New(cfg.Pipeline, enumerator, cardFetcher, persister, log)

	start := time.Now()
	runErr := supervisor.Run(ctx, cats)
	elapsed := time.Since(start)
	metrics.CrawlDurationSeconds.Observe(elapsed.Seconds())

	if runErr != nil {
		return fmt.Errorf("crawl: %w", runErr)
	}

	if err := staleness.RecordCrawlCompleted(ctx, time.Now()); err != nil {
		log.Warn("crawler: failed to record crawl staleness", "err", err)
	}

	log.Info("crawler: crawl complete", "categories", len(cats), "elapsed", elapsed.String())
	select {}
}
