// README: Smoke-check cases: environment, schema, booking flow, driver
// surface, concurrency, and load.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type Check struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	checks := r.checks()
	results := make([]Result, 0, len(checks))

	for _, c := range checks {
		res := c.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, c.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) checks() []Check {
	base := r.cfg.BaseURL
	pickupAt := time.Now().Add(48 * time.Hour).Format(time.RFC3339)
	validBooking := map[string]any{
		"rider_id":            "bench-rider",
		"pickup_address":      "Rossio, Lisboa",
		"dropoff_address":     "Belém, Lisboa",
		"pickup_at":           pickupAt,
		"wheelchair_required": true,
	}

	return []Check{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "FAIL", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, stmt := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, stmt); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		r.httpCheck("API: health", http.MethodGet, base+"/health", nil, 200),
		r.httpCheck("API: metrics exposed", http.MethodGet, base+"/metrics", nil, 200),

		r.httpCheck("Booking: create (valid)", http.MethodPost, base+"/api/bookings", validBooking, 201),
		r.httpCheck("Booking: create (missing fields -> 400)", http.MethodPost, base+"/api/bookings",
			map[string]any{"rider_id": "bench-rider"}, 400),
		r.httpCheck("Booking: create (too soon -> 400)", http.MethodPost, base+"/api/bookings", map[string]any{
			"rider_id":        "bench-rider",
			"pickup_address":  "Rossio, Lisboa",
			"dropoff_address": "Belém, Lisboa",
			"pickup_at":       time.Now().Add(30 * time.Minute).Format(time.RFC3339),
		}, 400),
		r.httpCheck("Booking: unknown id -> 404", http.MethodGet, base+"/api/bookings/bench-missing", nil, 404),

		r.httpCheck("Driver: availability upsert", http.MethodPut, base+"/api/drivers/bench-driver/availability",
			map[string]any{
				"date":   time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
				"start":  "08:00",
				"end":    "18:00",
				"status": "available",
			}, 200),
		r.httpCheck("Driver: availability bad window -> 400", http.MethodPut, base+"/api/drivers/bench-driver/availability",
			map[string]any{
				"date":  time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
				"start": "18:00",
				"end":   "08:00",
			}, 400),
		r.httpCheck("Driver: location update", http.MethodPut, base+"/api/drivers/bench-driver/location",
			map[string]any{"lat": 38.7139, "lng": -9.1394}, 200),
		r.httpCheck("Driver: offers inbox", http.MethodGet, base+"/api/drivers/bench-driver/offers", nil, 200),

		r.httpCheck("Geo: address suggest", http.MethodGet, base+"/api/geo/suggest?q=Ross", nil, 200),

		{
			Name: "Concurrency: duplicate accepts settle to one winner",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentRespond(ctx, r, base+"/api/offers/bench-offer/respond")
			},
		},
		{
			Name: "Load: location update throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return load(ctx, r, http.MethodPut, base+"/api/drivers/bench-driver/location",
					map[string]any{"lat": 38.7139, "lng": -9.1394})
			},
		},
		{
			Name: "Load: booking create throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return load(ctx, r, http.MethodPost, base+"/api/bookings", validBooking)
			},
		},
	}
}

func (r *Runner) httpCheck(name, method, url string, body any, want int) Check {
	return Check{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			start := time.Now()
			status, err := r.do(ctx, method, url, body)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			latency := time.Since(start)
			if status != want {
				return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d want=%d", status, want)}
			}
			return Result{Status: "PASS", Latency: latency}
		},
	}
}

func (r *Runner) do(ctx context.Context, method, url string, body any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", r.cfg.APIKey)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

// concurrentRespond fires parallel accepts at one offer. At most one may win;
// the rest must settle as losses, not errors.
func concurrentRespond(ctx context.Context, r *Runner, url string) Result {
	payload := map[string]any{"driver_id": "bench-driver", "accept": true}
	var mu sync.Mutex
	wins, missing := 0, 0
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := r.do(ctx, http.MethodPost, url, payload)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch status {
			case http.StatusOK:
				wins++
			case http.StatusNotFound:
				missing++
			}
		}()
	}
	wg.Wait()

	if missing == r.cfg.Concurrency {
		return Result{Status: "SKIP", Note: "seed an offer named bench-offer to run this check"}
	}
	if wins <= 1 {
		return Result{Status: "PASS", Note: fmt.Sprintf("wins=%d", wins)}
	}
	return Result{Status: "FAIL", Note: fmt.Sprintf("wins=%d", wins)}
}

func load(ctx context.Context, r *Runner, method, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var mu sync.Mutex
	var count, errCount int64
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				if _, err := r.do(ctx, method, url, payload); err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+(?:if\s+not\s+exists\s+)?([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
