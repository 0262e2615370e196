// Package adapter provides database adapters for the environments being
// compared. Each comparison side (old/new) gets its own adapter instance.
package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Type specifies the database type (e.g., "duckdb", "postgres")
	Type string

	// Path is the file path for file-based databases (DuckDB).
	// Use ":memory:" for an in-memory database.
	Path string

	// Host is the hostname for network-based databases
	Host string

	// Port is the port number for network-based databases
	Port int

	// Database is the database name
	Database string

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Schema is the default schema to use
	Schema string
}

// Column represents a column in a database table, as reported by the
// engine's catalog.
type Column struct {
	// Name is the column name
	Name string

	// Type is the data type of the column
	Type string

	// Nullable indicates whether the column allows NULL values
	Nullable bool

	// Position is the ordinal position of the column in the table
	Position int
}

// Rows wraps sql.Rows to provide a consistent interface across adapters.
type Rows struct {
	*sql.Rows
}

// NotFoundError indicates a relation does not exist in the target
// environment. Callers skip that model's contribution rather than aborting.
type NotFoundError struct {
	Relation string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("relation not found: %s", e.Relation)
}

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// GetColumns retrieves catalog column metadata for a relation, ordered
	// by ordinal position. Returns *NotFoundError when the relation does
	// not exist.
	GetColumns(ctx context.Context, relation string) ([]Column, error)

	// QuoteIdent quotes an identifier for this adapter's dialect.
	QuoteIdent(name string) string
}

// Factory creates a new adapter instance.
type Factory func() Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an adapter type available by name. Called from adapter
// init functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New creates an adapter for the given type name.
func New(name string) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownAdapterError{Type: name, Available: List()}
	}
	return factory(), nil
}

// IsRegistered reports whether an adapter type is available.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// List returns the registered adapter type names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownAdapterError is returned when an unregistered adapter type is
// requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %v)", e.Type, e.Available)
}
