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

package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"securedb/platform/shared/coreerr"
)

// PostgresStore is the durable Store implementation, grounded on
// connectors/registry/postgres_storage.go's PostgreSQLStorage (schema
// init, ON CONFLICT upsert, $N-parameterized queries via lib/pq).
type PostgresStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewPostgresStore opens dbURL and ensures the sessions table exists.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("session: open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("session: ping store: %w", err)
	}

	s := &PostgresStore{db: db, logger: log.New(log.Writer(), "[SessionStore] ", log.LstdFlags)}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	const query = `
	CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(255) PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		state VARCHAR(50) NOT NULL,
		security_level VARCHAR(50) NOT NULL,
		data JSONB NOT NULL DEFAULT '{}'::jsonb,
		last_accessed TIMESTAMPTZ NOT NULL,
		request_count BIGINT NOT NULL DEFAULT 0,
		bytes_transferred BIGINT NOT NULL DEFAULT 0,
		ip_address VARCHAR(64),
		user_agent TEXT,
		security_violations INT NOT NULL DEFAULT 0,
		max_violations INT NOT NULL DEFAULT 5,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("session: init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(sess Session) error {
	dataJSON, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("session: marshal data: %w", err)
	}

	const query = `
		INSERT INTO sessions
			(id, user_id, state, security_level, data, last_accessed, request_count,
			 bytes_transferred, ip_address, user_agent, security_violations, max_violations,
			 created_at, updated_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	_, err = s.db.Exec(query,
		sess.ID, sess.UserID, string(sess.State), string(sess.SecurityLevel), dataJSON,
		sess.Metadata.LastAccessed, sess.Metadata.RequestCount, sess.Metadata.BytesTransferred,
		sess.Metadata.IPAddress, sess.Metadata.UserAgent, sess.SecurityViolations, sess.MaxViolations,
		sess.CreatedAt, sess.UpdatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(id string) (Session, bool, error) {
	const query = `
		SELECT id, user_id, state, security_level, data, last_accessed, request_count,
			bytes_transferred, ip_address, user_agent, security_violations, max_violations,
			created_at, updated_at, expires_at
		FROM sessions WHERE id = $1
	`
	row := s.db.QueryRow(query, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("session: get: %w", err)
	}
	return sess, true, nil
}

func (s *PostgresStore) Update(sess Session) error {
	dataJSON, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("session: marshal data: %w", err)
	}
	sess.UpdatedAt = time.Now()

	const query = `
		UPDATE sessions SET
			user_id=$2, state=$3, security_level=$4, data=$5, last_accessed=$6,
			request_count=$7, bytes_transferred=$8, ip_address=$9, user_agent=$10,
			security_violations=$11, max_violations=$12, updated_at=$13, expires_at=$14
		WHERE id=$1
	`
	result, err := s.db.Exec(query,
		sess.ID, sess.UserID, string(sess.State), string(sess.SecurityLevel), dataJSON,
		sess.Metadata.LastAccessed, sess.Metadata.RequestCount, sess.Metadata.BytesTransferred,
		sess.Metadata.IPAddress, sess.Metadata.UserAgent, sess.SecurityViolations, sess.MaxViolations,
		sess.UpdatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("session: update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("session: update rows affected: %w", err)
	}
	if rows == 0 {
		return coreerr.New(coreerr.NotFound, "session.Update", "session not found: "+sess.ID)
	}
	return nil
}

func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("session: delete rows affected: %w", err)
	}
	if rows == 0 {
		return coreerr.New(coreerr.NotFound, "session.Delete", "session not found: "+id)
	}
	return nil
}

func (s *PostgresStore) Find(filter Filter) ([]Session, error) {
	query := `
		SELECT id, user_id, state, security_level, data, last_accessed, request_count,
			bytes_transferred, ip_address, user_agent, security_violations, max_violations,
			created_at, updated_at, expires_at
		FROM sessions WHERE 1=1
	`
	var args []interface{}
	argN := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argN)
		args = append(args, filter.UserID)
		argN++
	}
	if filter.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argN)
		args = append(args, string(filter.State))
		argN++
	}
	if !filter.ExpiredBefore.IsZero() {
		query += fmt.Sprintf(" AND expires_at < $%d", argN)
		args = append(args, filter.ExpiredBefore)
		argN++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(" AND created_at > $%d", argN)
		args = append(args, filter.CreatedAfter)
		argN++
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("session: find: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("session: scan: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CleanupExpired(now time.Time) (int, error) {
	const query = `
		DELETE FROM sessions
		WHERE state IN ('expired', 'invalidated') AND expires_at < $1
	`
	result, err := s.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("session: cleanup expired: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: cleanup rows affected: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) Stats(now time.Time) (Stats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE state = 'active'),
			COUNT(*) FILTER (WHERE expires_at < $1),
			COUNT(*) FILTER (WHERE created_at >= date_trunc('day', $1::timestamptz)),
			COALESCE(AVG(EXTRACT(EPOCH FROM (updated_at - created_at))), 0),
			COALESCE(SUM(bytes_transferred), 0)
		FROM sessions
	`
	var stats Stats
	err := s.db.QueryRow(query, now).Scan(
		&stats.Total, &stats.Active, &stats.Expired, &stats.CreatedToday,
		&stats.AvgDurationSecs, &stats.TotalBytes,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("session: stats: %w", err)
	}
	return stats, nil
}

// Close releases the underlying database connection.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which expose
// Scan with an identical signature.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var state, securityLevel string
	var dataJSON []byte
	var ipAddress, userAgent sql.NullString

	err := row.Scan(
		&sess.ID, &sess.UserID, &state, &securityLevel, &dataJSON,
		&sess.Metadata.LastAccessed, &sess.Metadata.RequestCount, &sess.Metadata.BytesTransferred,
		&ipAddress, &userAgent, &sess.SecurityViolations, &sess.MaxViolations,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.ExpiresAt,
	)
	if err != nil {
		return Session{}, err
	}

	sess.State = State(state)
	sess.SecurityLevel = SecurityLevel(securityLevel)
	sess.Metadata.IPAddress = ipAddress.String
	sess.Metadata.UserAgent = userAgent.String

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &sess.Data); err != nil {
			return Session{}, fmt.Errorf("unmarshal data: %w", err)
		}
	}
	return sess, nil
}
