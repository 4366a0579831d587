// Package config loads crawler configuration from the environment,
// following the same getEnv/getEnvInt pattern the rest of this codebase's
// lineage uses for process bootstrap.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Fetch holds HTTP-fetcher tuning: concurrency cap, retry budget, and
// transport security.
type Fetch struct {
	RequestLimit       int
	AttemptsCounter    int
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Enumerate holds the constants the Identifier Enumerator's recursive
// partitioning algorithm is built around.
type Enumerate struct {
	MaxPage                int
	LastPageThreshold      int
	MaxItemsInRequest      int
	MaxItemsInBrandsFilter int
	MaxBrandsInRequest     int
	MinPriceRange          int
}

// Pipeline holds queue buffer sizes and worker counts for the Supervisor.
type Pipeline struct {
	WorkerCount   int
	CategoryQueue int
	IDsQueue      int
	CardsQueue    int
	DBQueue       int
}

// Endpoints holds the upstream URL templates named in spec.md §6.
type Endpoints struct {
	BaseURL       string
	CardURL       string
	QueryParams   string
	CategoriesURL string
}

// Config is the full set of crawler knobs, loaded once at process start.
type Config struct {
	Fetch       Fetch
	Enumerate   Enumerate
	Pipeline    Pipeline
	Endpoints   Endpoints
	DatabaseURL string
	RedisURL    string
	APIAddr     string
}

// Defaults returns the bit-exact constants from spec.md §6, before any
// environment overrides are applied.
func Defaults() Config {
	return Config{
		Fetch: Fetch{
			RequestLimit:       200,
			AttemptsCounter:    10,
			Timeout:            30 * time.Second,
			InsecureSkipVerify: false,
		},
		Enumerate: Enumerate{
			MaxPage:                100,
			LastPageThreshold:      95,
			MaxItemsInRequest:      750,
			MaxItemsInBrandsFilter: 500,
			MaxBrandsInRequest:     20,
			MinPriceRange:          20000,
		},
		Pipeline: Pipeline{
			WorkerCount:   100,
			CategoryQueue: 1000,
			IDsQueue:      1000,
			CardsQueue:    1000,
			DBQueue:       1000,
		},
		Endpoints: Endpoints{
			BaseURL:       "https://catalog.wb.ru/catalog/",
			CardURL:       "https://card.wb.ru/cards/detail?spp=30&appType=1&dest=-1029256,-102269,-1304596,-1281263&nm=",
			QueryParams:   "&appType=1&dest=-1029256,-102269,-1304596,-1281263",
			CategoriesURL: "https://static-basket-01.wb.ru/vol0/data/main-menu-ru-ru-v2.json",
		},
		DatabaseURL: "postgres://localhost:5432/catalog",
		RedisURL:    "redis://localhost:6379/0",
		APIAddr:     ":8080",
	}
}

// Load returns Defaults() with every field overridable via environment
// variables, matching the teacher's getEnv/getEnvInt bootstrap style.
func Load() (Config, error) {
	cfg := Defaults()

	cfg.Fetch.RequestLimit = getEnvInt("FETCH_REQUEST_LIMIT", cfg.Fetch.RequestLimit)
	cfg.Fetch.AttemptsCounter = getEnvInt("FETCH_ATTEMPTS_COUNTER", cfg.Fetch.AttemptsCounter)
	cfg.Fetch.Timeout = getEnvDuration("FETCH_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.InsecureSkipVerify = getEnvBool("FETCH_INSECURE_SKIP_VERIFY", cfg.Fetch.InsecureSkipVerify)

	cfg.Enumerate.MaxPage = getEnvInt("ENUMERATE_MAX_PAGE", cfg.Enumerate.MaxPage)
	cfg.Enumerate.LastPageThreshold = getEnvInt("ENUMERATE_LAST_PAGE_THRESHOLD", cfg.Enumerate.LastPageThreshold)
	cfg.Enumerate.MaxItemsInRequest = getEnvInt("ENUMERATE_MAX_ITEMS_IN_REQUEST", cfg.Enumerate.MaxItemsInRequest)
	cfg.Enumerate.MaxItemsInBrandsFilter = getEnvInt("ENUMERATE_MAX_ITEMS_IN_BRANDS_FILTER", cfg.Enumerate.MaxItemsInBrandsFilter)
	cfg.Enumerate.MaxBrandsInRequest = getEnvInt("ENUMERATE_MAX_BRANDS_IN_REQUEST", cfg.Enumerate.MaxBrandsInRequest)
	cfg.Enumerate.MinPriceRange = getEnvInt("ENUMERATE_MIN_PRICE_RANGE", cfg.Enumerate.MinPriceRange)

	cfg.Pipeline.WorkerCount = getEnvInt("PIPELINE_WORKER_COUNT", cfg.Pipeline.WorkerCount)
	cfg.Pipeline.CategoryQueue = getEnvInt("PIPELINE_CATEGORY_QUEUE", cfg.Pipeline.CategoryQueue)
	cfg.Pipeline.IDsQueue = getEnvInt("PIPELINE_IDS_QUEUE", cfg.Pipeline.IDsQueue)
	cfg.Pipeline.CardsQueue = getEnvInt("PIPELINE_CARDS_QUEUE", cfg.Pipeline.CardsQueue)
	cfg.Pipeline.DBQueue = getEnvInt("PIPELINE_DB_QUEUE", cfg.Pipeline.DBQueue)

	cfg.Endpoints.BaseURL = getEnv("ENDPOINTS_BASE_URL", cfg.Endpoints.BaseURL)
	cfg.Endpoints.CardURL = getEnv("ENDPOINTS_CARD_URL", cfg.Endpoints.CardURL)
	cfg.Endpoints.QueryParams = getEnv("ENDPOINTS_QUERY_PARAMS", cfg.Endpoints.QueryParams)
	cfg.Endpoints.CategoriesURL = getEnv("ENDPOINTS_CATEGORIES_URL", cfg.Endpoints.CategoriesURL)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.APIAddr = getEnv("API_ADDR", cfg.APIAddr)

	if cfg.Fetch.RequestLimit <= 0 {
		return cfg, fmt.Errorf("config: FETCH_REQUEST_LIMIT must be positive, got %d", cfg.Fetch.RequestLimit)
	}
	if cfg.Pipeline.WorkerCount <= 0 {
		return cfg, fmt.Errorf("config: PIPELINE_WORKER_COUNT must be positive, got %d", cfg.Pipeline.WorkerCount)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
