package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type recordedStatement struct {
	sql  string
	vars []interface{}
}

// sqlRecorder keeps every statement gorm builds. ParamsFilter sees the raw
// SQL with $n placeholders before the dialector inlines the vars.
type sqlRecorder struct {
	mu         sync.Mutex
	statements []recordedStatement
}

func (r *sqlRecorder) LogMode(gormlogger.LogLevel) gormlogger.Interface { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{})     {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})     {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{})    {}

func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	fc()
}

func (r *sqlRecorder) ParamsFilter(_ context.Context, sql string, params ...interface{}) (string, []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, recordedStatement{sql: sql, vars: append([]interface{}(nil), params...)})
	return sql, params
}

func (r *sqlRecorder) find(t *testing.T, prefix string) recordedStatement {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stmt := range r.statements {
		if strings.HasPrefix(stmt.sql, prefix) {
			return stmt
		}
	}
	t.Fatalf("no statement starting with %q in %d recorded", prefix, len(r.statements))
	return recordedStatement{}
}

type dryRunDatabase struct {
	db      *gorm.DB
	mu      sync.Mutex
	handled []error
}

func (d *dryRunDatabase) DB(ctx context.Context) (*gorm.DB, error) {
	return d.db.WithContext(ctx), nil
}

func (d *dryRunDatabase) HandleError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handled = append(d.handled, err)
}

// newDryRunRepository builds statements with the postgres dialector without
// connecting anywhere. DryRun skips execution so RowsAffected stays 0, and the
// default transaction is off because BeginTx would dial.
func newDryRunRepository(t *testing.T) (*ImageRepository, *dryRunDatabase, *sqlRecorder) {
	t.Helper()
	recorder := &sqlRecorder{}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=5432 user=gallery dbname=gallery sslmode=disable",
	}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 recorder,
	})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	database := &dryRunDatabase{db: db}
	return NewImageRepository(database), database, recorder
}

func hasVar(vars []interface{}, want interface{}) bool {
	for _, v := range vars {
		if wt, ok := want.(time.Time); ok {
			if vt, ok := v.(time.Time); ok && vt.Equal(wt) {
				return true
			}
			continue
		}
		if v == want {
			return true
		}
	}
	return false
}

func TestImageRepositoryCreate(t *testing.T) {
	t.Parallel()

	repo, _, recorder := newDryRunRepository(t)
	image := &entity.Image{
		ID:           uuid.New(),
		OwnerSubject: "user-1",
		StorageKey:   "images/x",
		Title:        "Sunset",
		Status:       entity.ImageStatusPending,
	}

	if err := repo.Create(context.Background(), image); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if image.CreatedAt.IsZero() || image.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want a UTC timestamp", image.CreatedAt)
	}
	if image.CreatedAt.Nanosecond()%int(time.Microsecond) != 0 {
		t.Errorf("CreatedAt = %v, want microsecond precision", image.CreatedAt)
	}

	stmt := recorder.find(t, `INSERT INTO "images"`)
	for _, want := range []interface{}{image.ID, entity.ImageStatusPending, "user-1", "Sunset", image.CreatedAt} {
		if !hasVar(stmt.vars, want) {
			t.Errorf("insert vars %v missing %v", stmt.vars, want)
		}
	}
}

func TestImageRepositoryListConfirmed(t *testing.T) {
	t.Parallel()

	t.Run("first page", func(t *testing.T) {
		t.Parallel()
		repo, _, recorder := newDryRunRepository(t)

		if _, err := repo.ListConfirmed(context.Background(), 21, nil); err != nil {
			t.Fatalf("ListConfirmed() error = %v", err)
		}

		stmt := recorder.find(t, `SELECT * FROM "images"`)
		for _, want := range []string{
			"WHERE status = $1",
			"ORDER BY created_at DESC,id DESC",
			"LIMIT $2",
		} {
			if !strings.Contains(stmt.sql, want) {
				t.Errorf("sql = %q, want it to contain %q", stmt.sql, want)
			}
		}
		if strings.Contains(stmt.sql, "created_at <") {
			t.Errorf("sql = %q, first page must not carry a keyset predicate", stmt.sql)
		}
		if len(stmt.vars) != 2 || stmt.vars[0] != entity.ImageStatusConfirmed || stmt.vars[1] != 21 {
			t.Errorf("vars = %v, want [CONFIRMED 21]", stmt.vars)
		}
	})

	t.Run("after cursor", func(t *testing.T) {
		t.Parallel()
		repo, _, recorder := newDryRunRepository(t)
		cursor := &Cursor{
			CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC),
			ID:        uuid.New(),
		}

		if _, err := repo.ListConfirmed(context.Background(), 6, cursor); err != nil {
			t.Fatalf("ListConfirmed() error = %v", err)
		}

		stmt := recorder.find(t, `SELECT * FROM "images"`)
		for _, want := range []string{
			"WHERE status = $1 AND ",
			"created_at < $2 OR (created_at = $3 AND id < $4)",
			"ORDER BY created_at DESC,id DESC",
			"LIMIT $5",
		} {
			if !strings.Contains(stmt.sql, want) {
				t.Errorf("sql = %q, want it to contain %q", stmt.sql, want)
			}
		}
		if len(stmt.vars) != 5 {
			t.Fatalf("vars = %v, want 5 values", stmt.vars)
		}
		if stmt.vars[0] != entity.ImageStatusConfirmed {
			t.Errorf("status var = %v, want CONFIRMED", stmt.vars[0])
		}
		for i := 1; i <= 2; i++ {
			if at, ok := stmt.vars[i].(time.Time); !ok || !at.Equal(cursor.CreatedAt) {
				t.Errorf("vars[%d] = %v, want %v", i, stmt.vars[i], cursor.CreatedAt)
			}
		}
		if stmt.vars[3] != cursor.ID {
			t.Errorf("id var = %v, want %s", stmt.vars[3], cursor.ID)
		}
		if stmt.vars[4] != 6 {
			t.Errorf("limit var = %v, want 6", stmt.vars[4])
		}
	})
}

func TestImageRepositoryConfirm(t *testing.T) {
	t.Parallel()

	repo, _, recorder := newDryRunRepository(t)
	id := uuid.New()
	at := time.Date(2026, 5, 6, 7, 8, 9, 987654321, time.FixedZone("X", 3600))

	if _, _, err := repo.Confirm(context.Background(), id, at); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	stmt := recorder.find(t, `UPDATE "images" SET`)
	for _, want := range []string{`"status"=`, `"confirmed_at"=`, "WHERE id = $", " AND status = $"} {
		if !strings.Contains(stmt.sql, want) {
			t.Errorf("sql = %q, want it to contain %q", stmt.sql, want)
		}
	}
	where := stmt.sql[strings.Index(stmt.sql, "WHERE"):]
	if strings.Contains(where, "OR") {
		t.Errorf("where = %q, want a plain conjunction", where)
	}
	wantAt := at.UTC().Truncate(time.Microsecond)
	for _, want := range []interface{}{id, entity.ImageStatusPending, entity.ImageStatusConfirmed, wantAt} {
		if !hasVar(stmt.vars, want) {
			t.Errorf("update vars %v missing %v", stmt.vars, want)
		}
	}
	if got := stmt.vars[len(stmt.vars)-1]; got != entity.ImageStatusPending {
		t.Errorf("last var = %v, want the PENDING guard", got)
	}

	lookup := recorder.find(t, `SELECT * FROM "images" WHERE id = $1`)
	if !hasVar(lookup.vars, id) {
		t.Errorf("lookup vars %v missing %s", lookup.vars, id)
	}
}

func TestImageRepositoryErrors(t *testing.T) {
	t.Parallel()

	failQuery := func(t *testing.T, database *dryRunDatabase, err error) {
		t.Helper()
		if regErr := database.db.Callback().Query().Before("gorm:query").Register("test:fail", func(tx *gorm.DB) {
			_ = tx.AddError(err)
		}); regErr != nil {
			t.Fatalf("Register() error = %v", regErr)
		}
	}

	t.Run("missing row is not found", func(t *testing.T) {
		t.Parallel()
		repo, database, _ := newDryRunRepository(t)
		failQuery(t, database, gorm.ErrRecordNotFound)

		_, err := repo.FindByID(context.Background(), uuid.New())
		if utils.KindOf(err) != utils.KindNotFound {
			t.Errorf("FindByID() err = %v, want NotFoundError", err)
		}
		if len(database.handled) != 0 {
			t.Errorf("HandleError called %d times, want 0", len(database.handled))
		}
	})

	t.Run("driver failure is reported", func(t *testing.T) {
		t.Parallel()
		repo, database, _ := newDryRunRepository(t)
		boom := errors.New("connection reset")
		failQuery(t, database, boom)

		_, err := repo.ListConfirmed(context.Background(), 5, nil)
		if utils.KindOf(err) != utils.KindPersistence {
			t.Errorf("ListConfirmed() err = %v, want PersistenceError", err)
		}
		if len(database.handled) != 1 || !errors.Is(database.handled[0], boom) {
			t.Errorf("handled = %v, want [%v]", database.handled, boom)
		}
	})
}
