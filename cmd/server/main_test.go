package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/cbledger/internal/infrastructure/config"
	"github.com/iho/cbledger/internal/infrastructure/metrics"
	"github.com/iho/cbledger/internal/usecase"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreDriver:    config.StoreMemory,
		CacheTTL:       time.Minute,
		IdempotencyTTL: time.Hour,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}
}

func TestNewApp_MemoryStore(t *testing.T) {
	cfg := memoryConfig()
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	st, err := openStorage(context.Background(), cfg, zerolog.Nop(), m)
	if err != nil {
		t.Fatalf("openStorage: %v", err)
	}
	defer st.close()

	a := newApp(cfg, zerolog.Nop(), st, m)
	if a.rateLimiter == nil {
		t.Fatalf("expected rate limiter to be configured")
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/compliance/cb", strings.NewReader(`{"shipId":"S1","year":2025,"cb":10}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}

	report, err := a.reconciliation.ReconcileYear(context.Background(), 2025)
	if err != nil || !report.Consistent() || report.Records != 1 {
		t.Fatalf("unexpected reconciliation %+v, %v", report, err)
	}
}

type reconcilerFunc func(ctx context.Context, year int) (*usecase.ReconciliationReport, error)

func (f reconcilerFunc) ReconcileYear(ctx context.Context, year int) (*usecase.ReconciliationReport, error) {
	return f(ctx, year)
}

func TestReconcileJob(t *testing.T) {
	now := func() time.Time { return time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC) }

	var got int
	ok := reconcilerFunc(func(_ context.Context, year int) (*usecase.ReconciliationReport, error) {
		got = year
		return &usecase.ReconciliationReport{Year: year, Discrepancies: []usecase.Discrepancy{{Subject: "S1/2027"}}}, nil
	})

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	if err := reconcileJob(ok, 0, now)(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2027 {
		t.Fatalf("expected current year 2027, got %d", got)
	}
	if !strings.Contains(buf.String(), `"discrepancies":1`) || !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected inconsistent report to be logged as error, got %s", buf.String())
	}

	if err := reconcileJob(ok, 2025, now)(ctx); err != nil || got != 2025 {
		t.Fatalf("expected configured year 2025, got %d (%v)", got, err)
	}

	failing := reconcilerFunc(func(context.Context, int) (*usecase.ReconciliationReport, error) {
		return nil, errors.New("connection refused")
	})
	if err := reconcileJob(failing, 2025, now)(ctx); err == nil {
		t.Fatalf("expected error to be returned")
	}
}
