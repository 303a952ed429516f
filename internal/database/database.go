// Package database backs the sql_open/sql_query/sql_exec builtins
// (SPEC_FULL.md §4.9): a process-wide handle table over database/sql,
// fronting the three drivers sentra-language-sentra/internal/database
// wires by name (sqlite3, mysql, postgres), trimmed from that file's
// full connection-scanning/security-auditing surface to the handle
// open/query/exec protocol the builtins need. A handle is an opaque
// int64 the VM stores as an Int Value, never a raw *sql.DB - the same
// pointer-stability discipline the Heap gives every other Value.
package database

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Result is one sql_query response: column names in select order, plus
// each row's values in that same order.
type Result struct {
	Columns []string
	Rows    [][]interface{}
}

// Manager owns every open handle for one VM's lifetime.
type Manager struct {
	mu      sync.RWMutex
	conns   map[int64]*sql.DB
	counter int64
}

func NewManager() *Manager {
	return &Manager{conns: map[int64]*sql.DB{}}
}

// Open opens driver (one of "sqlite3", "mysql", "postgres") against dsn
// and returns a new handle.
func (m *Manager) Open(driver, dsn string) (int64, error) {
	if driver == "postgres" || driver == "postgresql" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return 0, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return 0, err
	}
	h := atomic.AddInt64(&m.counter, 1)
	m.mu.Lock()
	m.conns[h] = db
	m.mu.Unlock()
	return h, nil
}

func (m *Manager) get(handle int64) (*sql.DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	db, ok := m.conns[handle]
	if !ok {
		return nil, fmt.Errorf("sql: unknown handle %d", handle)
	}
	return db, nil
}

// Query runs a SELECT and returns every row in column-select order.
func (m *Manager) Query(handle int64, query string) (*Result, error) {
	db, err := m.get(handle)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, vals)
	}
	return out, rows.Err()
}

// Exec runs a non-SELECT statement and returns rows affected.
func (m *Manager) Exec(handle int64, statement string) (int64, error) {
	db, err := m.get(handle)
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(statement)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases a handle's underlying connection.
func (m *Manager) Close(handle int64) error {
	m.mu.Lock()
	db, ok := m.conns[handle]
	if ok {
		delete(m.conns, handle)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("sql: unknown handle %d", handle)
	}
	return db.Close()
}
