// Package store persists diagonalization runs in sqlite, so that sweeps can resume where they stopped.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/fumin/localham/exactdiag"
)

const (
	tableRuns        = "runs"
	tableEigenvalues = "eigenvalues"
	tableHistory     = "history"
	tableAmplitudes  = "amplitudes"

	timeout = 3 * time.Second
)

// Key identifies a run. Runs with the same key produce the same spectrum.
type Key struct {
	Model    string
	Lattice  exactdiag.Lattice
	Seed     uint64
	NumEigen int
	// Precision is stored as exactdiag.Double when empty.
	Precision exactdiag.Precision
}

// Run is a stored diagonalization.
type Run struct {
	ID int64
	Key
	MatVecs  int
	Restarts int
	Duration time.Duration
	// Exact is the closed form ground state energy, valid when HasExact is true.
	Exact       float64
	HasExact    bool
	Eigenvalues []float64
	// History is the lowest Ritz value after each restart.
	History []float64
	Created time.Time
}

// Store is a sqlite database of runs.
type Store struct {
	Path string

	db *sql.DB
}

// Open opens the database at path, creating its tables if needed.
func Open(path string) (*Store, error) {
	s := &Store{Path: path}
	var err error
	s.db, err = newDB(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores r, replacing any run with the same key, and returns its id.
func (s *Store) SaveRun(ctx context.Context, r Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	defer tx.Rollback()

	old, ok, err := find(ctx, tx, r.Key)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	if ok {
		if err := deleteRun(ctx, tx, old); err != nil {
			return -1, errors.Wrap(err, "")
		}
	}

	var exact any
	if r.HasExact {
		exact = r.Exact
	}
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	sqlStr := fmt.Sprintf(`INSERT INTO %s (model, num_sites, local_dim, interaction_length, periodic, seed, num_eigen, precision, matvecs, restarts, duration, exact, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, tableRuns)
	args := []any{r.Model, r.Lattice.NumSites, r.Lattice.LocalDim, r.Lattice.InteractionLength, boolInt(r.Lattice.Periodic), int64(r.Seed), r.NumEigen, precision(r.Key),
		r.MatVecs, r.Restarts, r.Duration.Seconds(), exact, r.Created.UTC().Format(time.RFC3339Nano)}
	res, err := tx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return -1, errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return -1, errors.Wrap(err, "")
	}

	for k, v := range r.Eigenvalues {
		sqlStr := fmt.Sprintf(`INSERT INTO %s (run, k, val) VALUES (?, ?, ?)`, tableEigenvalues)
		if _, err := tx.ExecContext(ctx, sqlStr, id, k, v); err != nil {
			return -1, errors.Wrap(err, "")
		}
	}
	for i, v := range r.History {
		sqlStr := fmt.Sprintf(`INSERT INTO %s (run, restart, ritz) VALUES (?, ?, ?)`, tableHistory)
		if _, err := tx.ExecContext(ctx, sqlStr, id, i, v); err != nil {
			return -1, errors.Wrap(err, "")
		}
	}

	if err := tx.Commit(); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return id, nil
}

// Find returns the run stored under key, and whether it exists.
func (s *Store) Find(ctx context.Context, key Key) (Run, bool, error) {
	id, ok, err := find(ctx, s.db, key)
	if err != nil || !ok {
		return Run{}, ok, errors.Wrap(err, "")
	}
	r, err := s.Run(ctx, id)
	if err != nil {
		return Run{}, false, errors.Wrap(err, "")
	}
	return r, true, nil
}

// Run returns the run with id.
func (s *Store) Run(ctx context.Context, id int64) (Run, error) {
	runs, err := s.query(ctx, `WHERE id=?`, id)
	if err != nil {
		return Run{}, errors.Wrap(err, "")
	}
	if len(runs) == 0 {
		return Run{}, errors.Errorf("run %d not found", id)
	}
	return runs[0], nil
}

// Runs returns the runs of model, or of all models if model is empty,
// ordered by model, boundary condition and lattice size.
func (s *Store) Runs(ctx context.Context, model string) ([]Run, error) {
	var where string
	var args []any
	if model != "" {
		where, args = `WHERE model=?`, []any{model}
	}
	runs, err := s.query(ctx, where, args...)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return runs, nil
}

// SaveVector stores the k-th eigenvector of run id.
func (s *Store) SaveVector(ctx context.Context, id int64, k int, vec []complex128) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()

	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE run=? AND k=?`, tableAmplitudes)
	if _, err := tx.ExecContext(ctx, sqlStr, id, k); err != nil {
		return errors.Wrap(err, "")
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (run, k, i, re, im) VALUES (?, ?, ?, ?, ?)`, tableAmplitudes))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer stmt.Close()
	for i, v := range vec {
		if v == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, k, i, real(v), imag(v)); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d %d %d", id, k, i))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Vector returns the k-th eigenvector of run id.
func (s *Store) Vector(ctx context.Context, id int64, k int) ([]complex128, error) {
	r, err := s.Run(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	vec := make([]complex128, r.Lattice.Dim())

	sqlStr := fmt.Sprintf(`SELECT i, re, im FROM %s WHERE run=? AND k=? ORDER BY i`, tableAmplitudes)
	rows, err := s.db.QueryContext(ctx, sqlStr, id, k)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	var n int
	for rows.Next() {
		var i int
		var re, im float64
		if err := rows.Scan(&i, &re, &im); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if i < 0 || i >= len(vec) {
			return nil, errors.Errorf("index %d out of %d", i, len(vec))
		}
		vec[i] = complex(re, im)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if n == 0 {
		return nil, errors.Errorf("no vector %d for run %d", k, id)
	}
	return vec, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]Run, error) {
	sqlStr := fmt.Sprintf(`SELECT id, model, num_sites, local_dim, interaction_length, periodic, seed, num_eigen, precision, matvecs, restarts, duration, exact, created
		FROM %s %s ORDER BY model, periodic, num_sites, id`, tableRuns, where)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, sqlStr)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		var periodic int
		var seed int64
		var duration float64
		var exact sql.NullFloat64
		var created, prec string
		if err := rows.Scan(&r.ID, &r.Model, &r.Lattice.NumSites, &r.Lattice.LocalDim, &r.Lattice.InteractionLength, &periodic, &seed, &r.NumEigen, &prec,
			&r.MatVecs, &r.Restarts, &duration, &exact, &created); err != nil {
			return nil, errors.Wrap(err, "")
		}
		r.Lattice.Periodic = periodic != 0
		r.Precision = exactdiag.Precision(prec)
		r.Seed = uint64(seed)
		r.Duration = time.Duration(duration * float64(time.Second))
		r.Exact, r.HasExact = exact.Float64, exact.Valid
		r.Created, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	rows.Close()

	for i := range runs {
		if runs[i].Eigenvalues, err = floats(ctx, s.db, tableEigenvalues, "val", "k", runs[i].ID); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if runs[i].History, err = floats(ctx, s.db, tableHistory, "ritz", "restart", runs[i].ID); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	return runs, nil
}

// floats returns column col of table for run, in order of the index column.
func floats(ctx context.Context, q querier, table, col, index string, run int64) ([]float64, error) {
	sqlStr := fmt.Sprintf(`SELECT %s FROM %s WHERE run=? ORDER BY %s`, col, table, index)
	rows, err := q.QueryContext(ctx, sqlStr, run)
	if err != nil {
		return nil, errors.Wrap(err, sqlStr)
	}
	defer rows.Close()

	vs := make([]float64, 0)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "")
		}
		vs = append(vs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return vs, nil
}

func find(ctx context.Context, q querier, key Key) (int64, bool, error) {
	sqlStr := fmt.Sprintf(`SELECT id FROM %s WHERE model=? AND num_sites=? AND local_dim=? AND interaction_length=? AND periodic=? AND seed=? AND num_eigen=? AND precision=?`, tableRuns)
	args := []any{key.Model, key.Lattice.NumSites, key.Lattice.LocalDim, key.Lattice.InteractionLength, boolInt(key.Lattice.Periodic), int64(key.Seed), key.NumEigen, precision(key)}
	var id int64
	err := q.QueryRowContext(ctx, sqlStr, args...).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		return -1, false, nil
	case err != nil:
		return -1, false, errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	default:
		return id, true, nil
	}
}

func deleteRun(ctx context.Context, tx *sql.Tx, id int64) error {
	for _, table := range []string{tableAmplitudes, tableHistory, tableEigenvalues} {
		sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE run=?`, table)
		if _, err := tx.ExecContext(ctx, sqlStr, id); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE id=?`, tableRuns)
	if _, err := tx.ExecContext(ctx, sqlStr, id); err != nil {
		return errors.Wrap(err, sqlStr)
	}
	return nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			model TEXT NOT NULL,
			num_sites INTEGER NOT NULL,
			local_dim INTEGER NOT NULL,
			interaction_length INTEGER NOT NULL,
			periodic INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			num_eigen INTEGER NOT NULL,
			precision TEXT NOT NULL,
			matvecs INTEGER NOT NULL,
			restarts INTEGER NOT NULL,
			duration REAL NOT NULL,
			exact REAL,
			created TEXT NOT NULL,
			UNIQUE (model, num_sites, local_dim, interaction_length, periodic, seed, num_eigen, precision)) STRICT`, tableRuns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run INTEGER, k INTEGER, val REAL, PRIMARY KEY (run, k)) STRICT`, tableEigenvalues),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run INTEGER, restart INTEGER, ritz REAL, PRIMARY KEY (run, restart)) STRICT`, tableHistory),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run INTEGER, k INTEGER, i INTEGER, re REAL, im REAL, PRIMARY KEY (run, k, i)) STRICT`, tableAmplitudes),
	}
	for _, sqlStr := range stmts {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, strings.Join(strings.Fields(sqlStr), " "))
		}
	}
	return nil
}

func precision(key Key) string {
	if key.Precision == "" {
		return string(exactdiag.Double)
	}
	return string(key.Precision)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
