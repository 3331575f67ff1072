// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite implements the Driver Contract for the Embedded engine
// kind, backing single-file deployments and tests that do not warrant a
// networked database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"securedb/platform/connectors/base"
)

// SQLiteConnector implements the Connector interface over a single SQLite
// file. Its pool is intentionally small: SQLite serializes writers at the
// file level, so more than a handful of open connections only adds
// contention.
type SQLiteConnector struct {
	config *base.ConnectorConfig
	db     *sql.DB
	logger *log.Logger
}

// NewSQLiteConnector creates a new SQLite connector instance.
func NewSQLiteConnector() *SQLiteConnector {
	return &SQLiteConnector{
		logger: log.New(os.Stdout, "[MCP_SQLITE] ", log.LstdFlags),
	}
}

// Connect opens the SQLite file named by config.ConnectionURL (a path, or
// "file::memory:?cache=shared" for in-memory use).
func (c *SQLiteConnector) Connect(ctx context.Context, config *base.ConnectorConfig) error {
	c.config = config

	db, err := sql.Open("sqlite3", config.ConnectionURL)
	if err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to open connection", err)
	}

	// SQLite has a single writer; keep the pool small regardless of config.
	maxOpenConns := 4
	if val, ok := config.Options["max_open_conns"].(int); ok && val < maxOpenConns {
		maxOpenConns = val
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return base.NewConnectorError(config.Name, "Connect", "failed to ping database", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		c.logger.Printf("Warning: could not enable foreign_keys pragma: %v", err)
	}

	c.db = db
	c.logger.Printf("Connected to SQLite: %s (max_conns=%d)", config.Name, maxOpenConns)
	return nil
}

// Disconnect closes the database file.
func (c *SQLiteConnector) Disconnect(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return base.NewConnectorError(c.config.Name, "Disconnect", "failed to close connection", err)
	}
	c.logger.Printf("Disconnected from SQLite: %s", c.config.Name)
	return nil
}

// HealthCheck verifies the database file is reachable.
func (c *SQLiteConnector) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	if c.db == nil {
		return &base.HealthStatus{Healthy: false, Error: "database not connected"}, nil
	}
	start := time.Now()
	err := c.db.PingContext(ctx)
	latency := time.Since(start)
	if err != nil {
		return &base.HealthStatus{Healthy: false, Latency: latency, Timestamp: time.Now(), Error: err.Error()}, nil
	}
	stats := c.db.Stats()
	return &base.HealthStatus{
		Healthy: true,
		Latency: latency,
		Details: map[string]string{
			"open_connections": fmt.Sprintf("%d", stats.OpenConnections),
		},
		Timestamp: time.Now(),
	}, nil
}

// Query executes a SELECT statement.
func (c *SQLiteConnector) Query(ctx context.Context, query *base.Query) (*base.QueryResult, error) {
	if c.db == nil {
		return nil, base.NewConnectorError(c.config.Name, "Query", "database not connected", nil)
	}
	timeout := query.Timeout
	if timeout == 0 {
		timeout = c.config.Timeout
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := make([]interface{}, 0, len(query.Parameters))
	for _, v := range query.Parameters {
		args = append(args, v)
	}

	start := time.Now()
	rows, err := c.db.QueryContext(queryCtx, query.Statement, args...)
	if err != nil {
		return nil, base.NewConnectorError(c.config.Name, "Query", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, base.NewConnectorError(c.config.Name, "Query", "failed to get columns", err)
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		if query.Limit > 0 && len(results) >= query.Limit {
			break
		}
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, base.NewConnectorError(c.config.Name, "Query", "failed to scan row", err)
		}
		row := make(map[string]interface{})
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, base.NewConnectorError(c.config.Name, "Query", "error during row iteration", err)
	}

	return &base.QueryResult{
		Rows:      results,
		RowCount:  len(results),
		Duration:  time.Since(start),
		Connector: c.config.Name,
	}, nil
}

// Execute runs INSERT, UPDATE, DELETE statements.
func (c *SQLiteConnector) Execute(ctx context.Context, cmd *base.Command) (*base.CommandResult, error) {
	if c.db == nil {
		return nil, base.NewConnectorError(c.config.Name, "Execute", "database not connected", nil)
	}
	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = c.config.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := make([]interface{}, 0, len(cmd.Parameters))
	for _, v := range cmd.Parameters {
		args = append(args, v)
	}

	start := time.Now()
	result, err := c.db.ExecContext(execCtx, cmd.Statement, args...)
	if err != nil {
		return nil, base.NewConnectorError(c.config.Name, "Execute", "command execution failed", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		rowsAffected = 0
	}
	return &base.CommandResult{
		Success:      true,
		RowsAffected: int(rowsAffected),
		Duration:     time.Since(start),
		Message:      fmt.Sprintf("%s executed successfully", cmd.Action),
		Connector:    c.config.Name,
	}, nil
}

// BeginTx opens a SQLite transaction.
func (c *SQLiteConnector) BeginTx(ctx context.Context) (base.Transaction, error) {
	if c.db == nil {
		return nil, base.NewConnectorError(c.config.Name, "BeginTx", "database not connected", nil)
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, base.NewConnectorError(c.config.Name, "BeginTx", "failed to begin transaction", err)
	}
	return &sqliteTx{tx: tx, connector: c.config.Name}, nil
}

// Describe introspects columns via PRAGMA table_info.
func (c *SQLiteConnector) Describe(ctx context.Context, target string) (*base.SchemaInfo, error) {
	if c.db == nil {
		return nil, base.NewConnectorError(c.config.Name, "Describe", "database not connected", nil)
	}
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", target))
	if err != nil {
		return nil, base.NewConnectorError(c.config.Name, "Describe", "schema query failed", err)
	}
	defer func() { _ = rows.Close() }()

	info := &base.SchemaInfo{Target: target}
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var dfltValue interface{}
		var pk int
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return nil, base.NewConnectorError(c.config.Name, "Describe", "failed to scan column", err)
		}
		info.Columns = append(info.Columns, base.ColumnInfo{Name: name, DataType: dataType, Nullable: notNull == 0})
	}
	return info, nil
}

// Name returns the connector instance name.
func (c *SQLiteConnector) Name() string {
	if c.config == nil {
		return "sqlite"
	}
	return c.config.Name
}

// Type returns the connector type.
func (c *SQLiteConnector) Type() string { return "sqlite" }

// Kind returns the broad engine family this connector belongs to.
func (c *SQLiteConnector) Kind() base.EngineKind { return base.EngineEmbedded }

// Version returns the connector version.
func (c *SQLiteConnector) Version() string { return "1.0.0" }

// Capabilities returns the list of supported capabilities.
func (c *SQLiteConnector) Capabilities() []string {
	return []string{"query", "execute", "transactions", "embedded"}
}

// sqliteTx adapts *sql.Tx to the base.Transaction contract.
type sqliteTx struct {
	tx        *sql.Tx
	connector string
}

func (t *sqliteTx) Query(ctx context.Context, query *base.Query) (*base.QueryResult, error) {
	start := time.Now()
	rows, err := t.tx.QueryContext(ctx, query.Statement)
	if err != nil {
		return nil, base.NewConnectorError(t.connector, "Tx.Query", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, base.NewConnectorError(t.connector, "Tx.Query", "failed to get columns", err)
	}
	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, base.NewConnectorError(t.connector, "Tx.Query", "failed to scan row", err)
		}
		row := make(map[string]interface{})
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return &base.QueryResult{Rows: results, RowCount: len(results), Duration: time.Since(start), Connector: t.connector}, nil
}

func (t *sqliteTx) Execute(ctx context.Context, cmd *base.Command) (*base.CommandResult, error) {
	start := time.Now()
	result, err := t.tx.ExecContext(ctx, cmd.Statement)
	if err != nil {
		return nil, base.NewConnectorError(t.connector, "Tx.Execute", "command execution failed", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return &base.CommandResult{Success: true, RowsAffected: int(rowsAffected), Duration: time.Since(start), Connector: t.connector}, nil
}

func (t *sqliteTx) Commit(ctx context.Context) error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback(ctx context.Context) error { return t.tx.Rollback() }
