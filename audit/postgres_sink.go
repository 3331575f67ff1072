// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresSink persists Entries to a durable table, the external-storage
// integration §4.E alludes to ("integrations export to external storage
// if retention is required"). Grounded on
// connectors/registry/postgres_storage.go's schema-init/insert pattern.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens dbURL and ensures the audit_log table exists.
func NewPostgresSink(dbURL string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("audit: open sink: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("audit: ping sink: %w", err)
	}

	s := &PostgresSink{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) initSchema() error {
	const query = `
	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		kind VARCHAR(64) NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		session_id VARCHAR(255),
		tenant_id VARCHAR(255),
		actor VARCHAR(255),
		decision VARCHAR(64),
		reason TEXT,
		rule_name VARCHAR(255),
		column_name VARCHAR(255),
		details JSONB NOT NULL DEFAULT '{}'::jsonb
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_tenant ON audit_log(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_kind ON audit_log(kind);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// Write implements Sink, inserting entry with the same exponential-backoff
// retry as the teacher's execWithRetry.
func (s *PostgresSink) Write(entry Entry) error {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("audit: marshal details: %w", err)
	}

	const query = `
		INSERT INTO audit_log
			(kind, occurred_at, session_id, tenant_id, actor, decision, reason, rule_name, column_name, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	return execWithRetry(s.db, query,
		string(entry.Kind),
		entry.Timestamp,
		entry.SessionID,
		entry.TenantID,
		entry.Actor,
		entry.Decision,
		entry.Reason,
		entry.RuleName,
		entry.ColumnName,
		detailsJSON,
	)
}

// Close releases the underlying database connection.
func (s *PostgresSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
