package resilience

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// guardBreakerConfig returns a breaker-only Config so failing calls
// surface the raw database error without retry wrapping.
func guardBreakerConfig(threshold int) Config {
	return Config{
		Breaker: &BreakerConfig{
			FailureThreshold: threshold,
			ResetTimeout:     time.Minute,
			MonitoringPeriod: time.Minute,
		},
	}
}

func TestNewDBGuard(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	guard := NewDBGuard(mgr, db, "primary-db", Config{})

	if guard == nil {
		t.Fatal("expected non-nil DBGuard")
	}

	// A zero config falls back to the database profile.
	if guard.cfg.Timeout == nil || guard.cfg.Retry == nil || guard.cfg.Breaker == nil {
		t.Error("expected zero config to fall back to DatabaseProfile")
	}

	// The breaker is registered eagerly.
	st, ok := guard.Status()
	if !ok {
		t.Fatal("Status() ok = false, want true before any call")
	}
	if st.State != StateClosed {
		t.Errorf("initial State = %v, want %v", st.State, StateClosed)
	}
	if guard.IsOpen() {
		t.Error("IsOpen() = true for a fresh guard, want false")
	}
}

func TestDBGuard_QueryContext_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	guard := NewDBGuard(mgr, db, "articles-db", guardBreakerConfig(5))
	ctx := context.Background()

	// Setup mock expectation
	rows := sqlmock.NewRows([]string{"id", "title"}).
		AddRow(1, "go concurrency patterns")
	mock.ExpectQuery("SELECT (.+) FROM articles").WillReturnRows(rows)

	result, err := guard.QueryContext(ctx, "SELECT id, title FROM articles WHERE id = ?", 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = result.Close() }()

	if !result.Next() {
		t.Fatal("expected at least one row")
	}

	var id int
	var title string
	if err := result.Scan(&id, &title); err != nil {
		t.Fatalf("failed to scan row: %v", err)
	}

	if id != 1 || title != "go concurrency patterns" {
		t.Errorf("expected id=1, title=go concurrency patterns, got id=%d, title=%s", id, title)
	}

	if guard.IsOpen() {
		t.Error("expected circuit to remain closed after success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBGuard_QueryContext_Failure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	guard := NewDBGuard(mgr, db, "articles-db", guardBreakerConfig(5))
	ctx := context.Background()

	expectedErr := errors.New("database connection failed")
	mock.ExpectQuery("SELECT (.+) FROM articles").WillReturnError(expectedErr)

	_, err = guard.QueryContext(ctx, "SELECT id, title FROM articles")
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected %v, got %v", expectedErr, err)
	}

	if guard.IsOpen() {
		t.Error("circuit should not be open after a single failure")
	}

	st, _ := guard.Status()
	if st.Failures != 1 {
		t.Errorf("Failures = %d, want 1", st.Failures)
	}
}

func TestDBGuard_CircuitOpens_AfterConsecutiveFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	guard := NewDBGuard(mgr, db, "flaky-db", guardBreakerConfig(3))
	ctx := context.Background()

	expectedErr := errors.New("database connection failed")
	for i := 0; i < 3; i++ {
		mock.ExpectQuery("SELECT (.+)").WillReturnError(expectedErr)
	}

	for i := 0; i < 3; i++ {
		if _, err := guard.QueryContext(ctx, "SELECT * FROM articles"); err == nil {
			t.Errorf("attempt %d: expected error, got nil", i+1)
		}
	}

	if !guard.IsOpen() {
		t.Fatal("expected circuit to be open after 3 consecutive failures")
	}

	// The next request fails fast without hitting the database.
	_, err = guard.QueryContext(ctx, "SELECT * FROM articles")
	var cbErr *CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("expected *CircuitBreakerError, got %v", err)
	}
	if cbErr.Name != "flaky-db" {
		t.Errorf("Name = %q, want %q", cbErr.Name, "flaky-db")
	}

	// No unmet expectations: the rejected call never reached the mock.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBGuard_ExecContext_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	guard := NewDBGuard(mgr, db, "articles-db", Config{})
	ctx := context.Background()

	// Setup mock expectation
	mock.ExpectExec("INSERT INTO articles").
		WithArgs("breaking changes in go 1.25").
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := guard.ExecContext(ctx, "INSERT INTO articles (title) VALUES (?)", "breaking changes in go 1.25")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		t.Fatalf("failed to get rows affected: %v", err)
	}
	if rowsAffected != 1 {
		t.Errorf("expected 1 row affected, got %d", rowsAffected)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBGuard_ExecContext_RetriesTransientErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	retry := fastRetryConfig(2)
	guard := NewDBGuard(mgr, db, "articles-db", Config{Retry: &retry})
	ctx := context.Background()

	// First attempt fails with a transient network error, the retry
	// succeeds.
	mock.ExpectExec("UPDATE articles").WillReturnError(syscall.ECONNREFUSED)
	mock.ExpectExec("UPDATE articles").WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := guard.ExecContext(ctx, "UPDATE articles SET read = true"); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBGuard_QueryRowContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	guard := NewDBGuard(mgr, db, "articles-db", Config{})
	ctx := context.Background()

	// Setup mock expectation
	rows := sqlmock.NewRows([]string{"id", "title"}).
		AddRow(1, "test")
	mock.ExpectQuery("SELECT (.+) FROM articles WHERE id = ?").
		WithArgs(1).
		WillReturnRows(rows)

	row := guard.QueryRowContext(ctx, "SELECT id, title FROM articles WHERE id = ?", 1)

	var id int
	var title string
	if err := row.Scan(&id, &title); err != nil {
		t.Fatalf("failed to scan row: %v", err)
	}

	if id != 1 || title != "test" {
		t.Errorf("expected id=1, title=test, got id=%d, title=%s", id, title)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBGuard_PingContext(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	guard := NewDBGuard(mgr, db, "articles-db", guardBreakerConfig(5))

	mock.ExpectPing()

	if err := guard.PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext() error = %v, want nil", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBGuard_StatusWithoutBreaker(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	retry := fastRetryConfig(1)
	guard := NewDBGuard(mgr, db, "no-breaker-db", Config{Retry: &retry})

	if _, ok := guard.Status(); ok {
		t.Error("Status() ok = true without a breaker, want false")
	}
	if guard.IsOpen() {
		t.Error("IsOpen() = true without a breaker, want false")
	}
}

func TestDBGuard_DB(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mgr := newTestManager(t)
	guard := NewDBGuard(mgr, db, "articles-db", Config{})

	if guard.DB() != db {
		t.Error("expected DB() to return underlying database connection")
	}
}
