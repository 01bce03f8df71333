package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"testing"

	"obsingest/internal/infra/repo"
	"obsingest/pkg/caom"
)

// stubConn is a minimal database/sql driver backing the store with an
// in-memory bucket table, so the snapshot round trip can be exercised
// without a server.
type stubConn struct {
	state map[string][]byte
	execs []string
}

type stubConnector struct{ conn *stubConn }

func (c *stubConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c *stubConnector) Driver() driver.Driver                        { return stubDriver{c.conn} }

type stubDriver struct{ conn *stubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c *stubConn) Ping(context.Context) error          { return nil }

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	if strings.HasPrefix(strings.TrimSpace(query), "INSERT") {
		bucket := args[0].Value.(string)
		payload := append([]byte(nil), args[1].Value.([]byte)...)
		c.state[bucket] = payload
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(query, "SELECT payload") {
		return nil, errors.New("unexpected query: " + query)
	}
	bucket := args[0].Value.(string)
	payload, ok := c.state[bucket]
	return &stubRows{payload: payload, available: ok}, nil
}

type stubRows struct {
	payload   []byte
	available bool
	done      bool
}

func (r *stubRows) Columns() []string { return []string{"payload"} }
func (r *stubRows) Close() error      { return nil }
func (r *stubRows) Next(dest []driver.Value) error {
	if !r.available || r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.payload
	return nil
}

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{state: map[string][]byte{}}
	return sql.OpenDB(&stubConnector{conn: conn}), conn
}

func testObservation(observationID string) *caom.Observation {
	obs := caom.NewObservation("JCMT", observationID, caom.AlgorithmExposure)
	plane := obs.Plane("reduced-850um")
	plane.Calibration = caom.CalibrationCalibrated
	plane.EnsureProvenance().RunID = "R"
	return obs
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore(""); err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	var sawDDL bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL, got execs: %v", conn.execs)
	}
}

func TestMutationsPersistSnapshot(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()
	obs := testObservation("obs1")
	if err := store.Put(ctx, obs.URI(), obs); err != nil {
		t.Fatalf("put: %v", err)
	}
	payload, ok := conn.state[stateBucket]
	if !ok || !strings.Contains(string(payload), "obs1") {
		t.Fatalf("snapshot not persisted: %q", payload)
	}

	// A second store opened over the same stub hydrates from the snapshot.
	reopened, err := NewStore("ignored")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, obs.URI())
	if err != nil {
		t.Fatalf("get after hydrate: %v", err)
	}
	if got.Planes["reduced-850um"].Provenance.RunID != "R" {
		t.Fatalf("hydrated state incomplete: %+v", got)
	}
}

func TestDryRunProcessSkipsPersist(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	uri := caom.ObservationURI{Collection: "JCMT", ObservationID: "obs1"}
	err = store.Process(context.Background(), uri, repo.ProcessOptions{DryRun: true}, func(*caom.Observation) (*caom.Observation, error) {
		return testObservation("obs1"), nil
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, ok := conn.state[stateBucket]; ok {
		t.Fatal("dry run must not snapshot")
	}
}
