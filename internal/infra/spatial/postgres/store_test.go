package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

type call struct {
	query string
	args  []driver.Value
}

type stubConn struct {
	execs    []call
	queries  []call
	rowQueue []*stubRows
	affected int64
}

type stubDriver struct{ conn *stubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Ping(context.Context) error          { return nil }

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, call{query: query, args: values(args)})
	return driver.RowsAffected(c.affected), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.queries = append(c.queries, call{query: query, args: values(args)})
	if len(c.rowQueue) == 0 {
		return &stubRows{}, nil
	}
	rows := c.rowQueue[0]
	c.rowQueue = c.rowQueue[1:]
	return rows, nil
}

func values(named []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(named))
	for i, nv := range named {
		out[i] = nv.Value
	}
	return out
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	i    int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }
func (r *stubRows) Next(dest []driver.Value) error {
	if r.i >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.i])
	r.i++
	return nil
}

func newStubStore(t *testing.T) (*Store, *stubConn) {
	t.Helper()
	conn := &stubConn{affected: 1}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)

	store, err := NewStore("", 0)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	conn.execs = nil
	return store, conn
}

func TestNewStoreAppliesDDL(t *testing.T) {
	conn := &stubConn{affected: 1}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore("", 0); err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if len(conn.execs) != len(domain.Collections()) {
		t.Fatalf("exec count = %d, want one DDL per collection", len(conn.execs))
	}
	var sawSpheres bool
	for _, c := range conn.execs {
		if !strings.Contains(c.query, "geometry(POINTZ, 4979)") {
			t.Fatalf("DDL missing typed geometry column: %s", c.query)
		}
		if strings.Contains(c.query, "spatial_mental_spheres") {
			sawSpheres = true
		}
	}
	if !sawSpheres {
		t.Fatalf("no DDL for spatial_mental_spheres in %v", conn.execs)
	}
}

func TestCreateSendsEWKTAndReturnsServerID(t *testing.T) {
	store, conn := newStubStore(t)
	conn.rowQueue = append(conn.rowQueue, &stubRows{
		cols: []string{"id"},
		rows: [][]driver.Value{{int64(7)}},
	})

	pos := domain.Vec3{X: 1, Y: 2, Z: 3}
	id, err := store.Create(context.Background(), domain.CollectionMentalSpheres, domain.SpatialPatch{Position: &pos})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 7 {
		t.Fatalf("id = %d, want server-assigned 7", id)
	}

	last := conn.queries[len(conn.queries)-1]
	if !strings.Contains(last.query, "ST_GeomFromEWKT($1)") || !strings.Contains(last.query, "RETURNING id") {
		t.Fatalf("unexpected insert: %s", last.query)
	}
	if got := last.args[0]; got != "SRID=4979;POINT Z (1 2 3)" {
		t.Fatalf("position arg = %v", got)
	}
	// Absent components fall back to defaults on the way in.
	if got := last.args[2]; got != "SRID=4979;POINT Z (1 1 1)" {
		t.Fatalf("scale arg = %v, want uniform default", got)
	}
}

func TestGetDecodesEWKT(t *testing.T) {
	store, conn := newStubStore(t)
	now := time.Now().UTC()
	conn.rowQueue = append(conn.rowQueue, &stubRows{
		cols: []string{"pos", "rot", "scale", "created_at", "updated_at"},
		rows: [][]driver.Value{{
			"SRID=4979;POINT Z(1.5 2.5 3.5)",
			"SRID=4979;POINT Z(0 90 0)",
			"SRID=4979;POINT Z(2 2 2)",
			now, now,
		}},
	})

	rec, err := store.Get(context.Background(), domain.CollectionHomes, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := domain.Vec3{X: 1.5, Y: 2.5, Z: 3.5}
	if rec.Position != want {
		t.Fatalf("position = %+v, want %+v", rec.Position, want)
	}
	if rec.Scale != domain.UniformScale(2) {
		t.Fatalf("scale = %+v", rec.Scale)
	}
}

func TestGetAbsentIDIsNotFound(t *testing.T) {
	store, _ := newStubStore(t)
	_, err := store.Get(context.Background(), domain.CollectionMinds, 404)
	if !domain.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestUpdateCoalescesAndAppendsHistory(t *testing.T) {
	store, conn := newStubStore(t)

	pos := domain.Vec3{X: 9, Y: 9, Z: 9}
	scale := domain.UniformScale(3)
	ok, err := store.Update(context.Background(), domain.CollectionDeployedItems, 5,
		domain.SpatialPatch{Position: &pos, Scale: &scale})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !ok {
		t.Fatalf("expected affected row")
	}

	last := conn.execs[len(conn.execs)-1]
	if !strings.Contains(last.query, "position_history = position_history ||") {
		t.Fatalf("position update must append history: %s", last.query)
	}
	if strings.Contains(last.query, "rotation =") {
		t.Fatalf("rotation set without a rotation patch: %s", last.query)
	}
	if got := last.args[0]; got != "SRID=4979;POINT Z (9 9 9)" {
		t.Fatalf("position arg = %v", got)
	}
}

func TestUpdateAbsentIDReportsFalse(t *testing.T) {
	store, conn := newStubStore(t)
	conn.affected = 0

	rot := domain.Vec3{Y: 45}
	ok, err := store.Update(context.Background(), domain.CollectionHomes, 404, domain.SpatialPatch{Rotation: &rot})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Fatalf("update of absent id reported true")
	}
}
