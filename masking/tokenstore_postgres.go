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

package masking

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"fmt"
	"io"
	"log"

	_ "github.com/lib/pq"
	"golang.org/x/crypto/hkdf"
)

// PostgresTokenStore persists the Token masker's value<->token map across
// process restarts, satisfying the masking.token_map_store=postgres Open
// Question decision. Values are stored AES-GCM sealed at rest under a key
// derived from the configured master secret via HKDF, so a dump of the
// token_map table alone never reveals the original sensitive values.
// Grounded on connectors/registry/postgres_storage.go's PostgreSQLStorage.
type PostgresTokenStore struct {
	db     *sql.DB
	aead   cipher.AEAD
	logger *log.Logger
}

// NewPostgresTokenStore opens dbURL, derives the at-rest sealing key from
// masterSecret via HKDF-SHA256 (salt-less, info-bound to the table name so
// a key reused elsewhere for a different purpose can't silently decrypt
// these rows), and ensures the token_map table exists.
func NewPostgresTokenStore(dbURL string, masterSecret []byte) (*PostgresTokenStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("masking: open token store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("masking: ping token store: %w", err)
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, masterSecret, nil, []byte("masking.token_map.v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("masking: derive token store key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("masking: init token store cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("masking: init token store aead: %w", err)
	}

	s := &PostgresTokenStore{
		db:     db,
		aead:   aead,
		logger: log.New(log.Writer(), "[TokenStore] ", log.LstdFlags),
	}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresTokenStore) initSchema() error {
	const query = `
	CREATE TABLE IF NOT EXISTS masking_token_map (
		token TEXT PRIMARY KEY,
		sealed_value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("masking: init token_map schema: %w", err)
	}
	return nil
}

// seal encrypts value under a fresh random nonce, returning nonce||ciphertext
// base64-encoded so it round-trips cleanly through a TEXT column.
func (s *PostgresTokenStore) seal(value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *PostgresTokenStore) open(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return "", fmt.Errorf("masking: sealed value too short")
	}
	plain, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Get looks up the token previously minted for value. The table is keyed
// by token, not value, since the value is never stored in the clear or in
// an indexable form -- Get scans sealed rows and opens each until one
// decrypts to value. This trades lookup cost for the at-rest guarantee;
// callers already hold an in-process cache (Formatter.tokenMap) in front
// of this store, so the scan only happens once per distinct value per
// process lifetime.
func (s *PostgresTokenStore) Get(value string) (string, bool) {
	rows, err := s.db.Query(`SELECT token, sealed_value FROM masking_token_map`)
	if err != nil {
		s.logger.Printf("Get query failed: %v", err)
		return "", false
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var token, sealedValue string
		if err := rows.Scan(&token, &sealedValue); err != nil {
			continue
		}
		plain, err := s.open(sealedValue)
		if err != nil {
			continue
		}
		if plain == value {
			return token, true
		}
	}
	return "", false
}

// Put persists the value->token mapping, sealing value before it is
// written. A conflict on token (re-minting) overwrites the sealed value.
func (s *PostgresTokenStore) Put(value, token string) {
	sealed, err := s.seal(value)
	if err != nil {
		s.logger.Printf("Put seal failed for token %s: %v", token, err)
		return
	}
	const query = `
		INSERT INTO masking_token_map (token, sealed_value)
		VALUES ($1, $2)
		ON CONFLICT (token) DO UPDATE SET sealed_value = EXCLUDED.sealed_value
	`
	if _, err := s.db.Exec(query, token, sealed); err != nil {
		s.logger.Printf("Put failed for token %s: %v", token, err)
	}
}

// Close releases the underlying database connection.
func (s *PostgresTokenStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
