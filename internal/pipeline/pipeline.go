// Package pipeline implements the Pipeline Supervisor: it wires the four
// stages (categories → ids → cards → persisted) into bounded worker pools,
// detects quiescence via an in-flight unit counter, and cancels the whole
// crawl on the first fatal error.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wbparser/catalog-crawler/internal/cards"
	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/internal/config"
	"github.com/wbparser/catalog-crawler/internal/metrics"
	"github.com/wbparser/catalog-crawler/internal/normalize"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

// Enumerator is the subset of enumerate.Enumerator the Supervisor needs.
type Enumerator interface {
	Enumerate(ctx context.Context, cat catalog.Category, out chan<- []int) error
}

// CardFetcher is the subset of cards.Client the Supervisor needs.
type CardFetcher interface {
	FetchCards(ctx context.Context, batch cards.IDBatch) (cards.Batch, bool, error)
}

// Persister is the subset of persist.Persister the Supervisor needs.
type Persister interface {
	PersistCard(ctx context.Context, card catalog.Card) error
}

// Supervisor wires the four pipeline stages together.
type Supervisor struct {
	cfg         config.Pipeline
	enumerator  Enumerator
	cardFetcher CardFetcher
	persister   Persister
	log         *logger.Logger
	now         func() time.Time
}

// New builds a Supervisor. now defaults to time.Now; tests may override it.
func New(cfg config.Pipeline, enumerator Enumerator, cardFetcher CardFetcher, persister Persister, log *logger.Logger) *Supervisor {
	return &Supervisor{cfg: cfg, enumerator: enumerator, cardFetcher: cardFetcher, persister: persister, log: log, now: time.Now}
}

// Run crawls every category in categories to completion: it returns once
// every category has been enumerated, every resulting id batch has been
// resolved into cards, and every card has been normalized and persisted (or
// dropped as invalid) — or returns the first fatal error encountered,
// having cancelled every other worker.
func (s *Supervisor) Run(ctx context.Context, categories []catalog.Category) error {
	eg, ctx := errgroup.WithContext(ctx)
	crawlTS := s.now() // shared by every ArticleHistory row of this crawl

	categoriesCh := make(chan catalog.Category, s.cfg.CategoryQueue)
	idsCh := make(chan cards.IDBatch, s.cfg.IDsQueue)
	cardsCh := make(chan cards.Batch, s.cfg.CardsQueue)
	dbCh := make(chan catalog.Card, s.cfg.DBQueue)

	crawlable := make([]catalog.Category, 0, len(categories))
	for _, cat := range categories {
		if !cat.Crawlable() {
			s.log.Warn("pipeline: skipping uncrawlable category", "id", cat.ID, "shard", cat.Shard)
			continue
		}
		crawlable = append(crawlable, cat)
	}

	var pending atomic.Int64
	pending.Add(int64(len(crawlable)))

	go func() {
		defer close(categoriesCh)
		for _, cat := range crawlable {
			select {
			case categoriesCh <- cat:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < s.cfg.WorkerCount; i++ {
		eg.Go(func() error { return s.enumerateWorker(ctx, categoriesCh, idsCh, &pending) })
	}
	for i := 0; i < s.cfg.WorkerCount; i++ {
		eg.Go(func() error { return s.cardWorker(ctx, idsCh, cardsCh, &pending) })
	}
	for i := 0; i < s.cfg.WorkerCount; i++ {
		eg.Go(func() error { return s.normalizeWorker(ctx, cardsCh, dbCh, crawlTS, &pending) })
	}
	for i := 0; i < s.cfg.WorkerCount; i++ {
		eg.Go(func() error { return s.persistWorker(ctx, dbCh, &pending) })
	}

	eg.Go(func() error { return s.waitForQuiescence(ctx, &pending, categoriesCh, idsCh, cardsCh, dbCh) })

	return eg.Wait()
}

func (s *Supervisor) enumerateWorker(ctx context.Context, in <-chan catalog.Category, out chan<- cards.IDBatch, pending *atomic.Int64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cat, ok := <-in:
			if !ok {
				return nil
			}
			if err := s.enumerateOne(ctx, cat, out, pending); err != nil {
				return err
			}
		}
	}
}

func (s *Supervisor) enumerateOne(ctx context.Context, cat catalog.Category, out chan<- cards.IDBatch, pending *atomic.Int64) error {
	local := make(chan []int)
	done := make(chan error, 1)

	go func() {
		done <- s.enumerator.Enumerate(ctx, cat, local)
		close(local)
	}()

	var forwardErr error
	for ids := range local {
		pending.Add(1)
		select {
		case out <- cards.IDBatch{CategoryID: cat.ID, IDs: ids}:
		case <-ctx.Done():
			forwardErr = ctx.Err()
		}
		if forwardErr != nil {
			break
		}
	}
	// Drain any remaining sends after a cancellation so the goroutine above
	// never blocks forever on local <- ids.
	for range local {
	}

	enumErr := <-done
	pending.Add(-1) // the category task itself is now fully resolved

	if enumErr != nil {
		return enumErr
	}
	return forwardErr
}

func (s *Supervisor) cardWorker(ctx context.Context, in <-chan cards.IDBatch, out chan<- cards.Batch, pending *atomic.Int64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			result, got, err := s.cardFetcher.FetchCards(ctx, batch)
			if err != nil {
				pending.Add(-1)
				return err
			}
			if !got {
				pending.Add(-1)
				continue
			}

			pending.Add(int64(len(result.Products)))
			select {
			case out <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
			pending.Add(-1) // the id batch task is resolved; its products are now tracked individually
		}
	}
}

// normalizeWorker turns each card-batch's raw products into normalized
// catalog.Cards for the db queue. A card that fails validation is logged
// and dropped; it does not fail the crawl.
func (s *Supervisor) normalizeWorker(ctx context.Context, in <-chan cards.Batch, out chan<- catalog.Card, crawlTS time.Time, pending *atomic.Int64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			for _, product := range batch.Products {
				card, err := normalize.Normalize(batch.CategoryID, product, crawlTS)
				if err != nil {
					s.log.Warn("pipeline: dropping invalid card", "item", product.ID, "err", err)
					pending.Add(-1)
					continue
				}
				metrics.CardsNormalizedTotal.Inc()
				select {
				case out <- card:
				case <-ctx.Done():
					pending.Add(-1)
					return ctx.Err()
				}
			}
		}
	}
}

func (s *Supervisor) persistWorker(ctx context.Context, in <-chan catalog.Card, pending *atomic.Int64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case card, ok := <-in:
			if !ok {
				return nil
			}
			if err := s.persister.PersistCard(ctx, card); err != nil {
				pending.Add(-1)
				return err
			}
			pending.Add(-1)
		}
	}
}

// waitForQuiescence polls pending until it reaches zero, meaning every
// category has been enumerated, every id batch resolved, and every card
// persisted or dropped, then closes the downstream queues so the remaining
// idle workers return.
func (s *Supervisor) waitForQuiescence(ctx context.Context, pending *atomic.Int64, categoriesCh <-chan catalog.Category, idsCh chan cards.IDBatch, cardsCh chan cards.Batch, dbCh chan catalog.Card) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			metrics.QueueDepth.WithLabelValues("ids").Set(float64(len(idsCh)))
			metrics.QueueDepth.WithLabelValues("cards").Set(float64(len(cardsCh)))
			metrics.QueueDepth.WithLabelValues("categories").Set(float64(len(categoriesCh)))
			metrics.QueueDepth.WithLabelValues("db").Set(float64(len(dbCh)))

			if pending.Load() == 0 {
				close(idsCh)
				close(cardsCh)
				close(dbCh)
				return nil
			}
		}
	}
}
