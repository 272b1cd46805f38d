package handler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
	"github.com/kursadbilgin/order-pipeline/internal/repository"
)

type stubNotificationStore struct {
	listFn func(ctx context.Context, params repository.QueueListParams) ([]domain.QueueEntry, int64, error)
}

func (s *stubNotificationStore) List(ctx context.Context, params repository.QueueListParams) ([]domain.QueueEntry, int64, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, 0, nil
}

func newNotificationTestApp(t *testing.T, store NotificationStore) *fiber.App {
	t.Helper()

	app := newTestApp(t)
	if err := RegisterNotificationRoutes(app, store); err != nil {
		t.Fatalf("RegisterNotificationRoutes() error = %v", err)
	}
	return app
}

func TestNotificationIntegration_ListFilters(t *testing.T) {
	t.Parallel()

	orderID := "o-1"
	lastError := "gateway timeout"
	store := &stubNotificationStore{
		listFn: func(ctx context.Context, params repository.QueueListParams) ([]domain.QueueEntry, int64, error) {
			if params.Page != 1 || params.PageSize != 20 {
				t.Fatalf("pagination = %d/%d, want 1/20", params.Page, params.PageSize)
			}
			if params.Status == nil || *params.Status != domain.EntryFailed {
				t.Fatalf("status filter = %v, want FAILED", params.Status)
			}
			if params.Type == nil || *params.Type != domain.TypeOverdueAlert {
				t.Fatalf("type filter = %v, want OVERDUE_ALERT", params.Type)
			}
			if params.RecipientID == nil || *params.RecipientID != "user-1" {
				t.Fatalf("recipient filter = %v, want user-1", params.RecipientID)
			}

			return []domain.QueueEntry{
				{
					ID:             "e-1",
					RecipientID:    "user-1",
					Type:           domain.TypeOverdueAlert,
					DeliveryMethod: domain.MethodEmail,
					Priority:       domain.PriorityHigh,
					Subject:        "Order overdue",
					Status:         domain.EntryFailed,
					ScheduledAt:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
					RelatedOrderID: &orderID,
					AttemptCount:   5,
					MaxAttempts:    5,
					LastError:      &lastError,
				},
			}, 1, nil
		},
	}

	app := newNotificationTestApp(t, store)

	path := "/v1/notifications?page=1&pageSize=20&status=failed&type=overdue_alert&recipientId=user-1"
	resp, body := performRequest(t, app, http.MethodGet, path, "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Data []map[string]any `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Meta.Total != 1 || len(parsed.Data) != 1 {
		t.Fatalf("total = %d, data len = %d, want 1/1", parsed.Meta.Total, len(parsed.Data))
	}
	entry := parsed.Data[0]
	if entry["status"] != domain.EntryFailed.String() {
		t.Fatalf("status = %v, want FAILED", entry["status"])
	}
	if entry["lastError"] != "gateway timeout" {
		t.Fatalf("lastError = %v, want gateway timeout", entry["lastError"])
	}
	if entry["relatedOrderId"] != "o-1" {
		t.Fatalf("relatedOrderId = %v, want o-1", entry["relatedOrderId"])
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/notifications?status=lost", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown status", resp.StatusCode)
	}
}

func TestHealthIntegration_LivezAndReadyz(t *testing.T) {
	t.Parallel()

	t.Run("livez returns 200", func(t *testing.T) {
		t.Parallel()

		app := newTestApp(t)
		RegisterHealthRoutes(app, sql.OpenDB(stubConnector{}), newStubRedisClient(nil))

		resp, body := performRequest(t, app, http.MethodGet, "/livez", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 200 when dependencies healthy", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := newTestApp(t)
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 503 when dependencies down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{pingErr: errors.New("postgres down")})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(errors.New("redis down"))
		t.Cleanup(func() { _ = rdb.Close() })

		app := newTestApp(t)
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(body))
		}
	})
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") {
			if h.pingErr != nil {
				cmd.SetErr(h.pingErr)
				return h.pingErr
			}
			cmd.SetErr(nil)
			return nil
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
