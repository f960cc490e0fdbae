package resonance

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// Store wraps a SQLite connection holding the entity registry and the
// offer/evolution journal. The scoring pipeline never touches it; entities
// are loaded into memory, scored there, and written back by the Engine.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database and runs migrations.
func NewStore(path string) (*Store, error) {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("resonance: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("resonance: open db: %w", err)
	}

	// Single connection avoids write contention for our scale
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("resonance: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	// Version tracking
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return err
	}

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS creators (
				id                    TEXT PRIMARY KEY,
				expectation_profile   BLOB NOT NULL,
				feedback_loop_enabled INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE IF NOT EXISTS receivers (
				id                  TEXT PRIMARY KEY,
				value_vector        BLOB NOT NULL,
				sentiment_profile   TEXT NOT NULL DEFAULT '[]',
				reputation_score    REAL NOT NULL DEFAULT 0,
				interaction_history TEXT NOT NULL DEFAULT '[]'
			);

			CREATE TABLE IF NOT EXISTS artifacts (
				id            TEXT PRIMARY KEY,
				creator_id    TEXT NOT NULL REFERENCES creators(id),
				quality_score REAL NOT NULL DEFAULT 0,
				vector        BLOB NOT NULL,
				themes        TEXT NOT NULL DEFAULT '[]',
				created_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX IF NOT EXISTS idx_artifacts_creator ON artifacts(creator_id);

			CREATE TABLE IF NOT EXISTS offers (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				event_id    TEXT NOT NULL,
				artifact_id TEXT NOT NULL,
				receiver_id TEXT NOT NULL,
				score       REAL NOT NULL,
				occurred_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_offers_artifact ON offers(artifact_id);

			CREATE TABLE IF NOT EXISTS evolutions (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				event_id    TEXT NOT NULL,
				artifact_id TEXT NOT NULL,
				applied_tag TEXT NOT NULL,
				occurred_at TEXT NOT NULL
			);

			PRAGMA foreign_keys = ON;
		`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`); err != nil {
			return err
		}
	}

	return nil
}

// --- Vector encoding ---

// EncodeVector converts a float64 slice to a little-endian byte blob.
func EncodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

// DecodeVector converts a little-endian byte blob back to a float64 slice.
func DecodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// encodeTags and decodeTags round-trip string lists through JSON text
// columns. Order and duplicates are preserved; both matter to scoring.
func encodeTags(tags []string) string {
	if tags == nil {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeTags(text string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(text), &tags); err != nil {
		return nil
	}
	return tags
}

// --- Creator CRUD ---

// UpsertCreator stores or replaces a creator row. Artifact history is not
// written here; it is derived from the artifacts table on load.
func (s *Store) UpsertCreator(c *Creator) error {
	enabled := 0
	if c.FeedbackLoopEnabled {
		enabled = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO creators (id, expectation_profile, feedback_loop_enabled)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			expectation_profile = excluded.expectation_profile,
			feedback_loop_enabled = excluded.feedback_loop_enabled`,
		c.ID, EncodeVector(c.ExpectationProfile), enabled,
	)
	return err
}

// GetCreator loads a creator along with its artifact history, oldest first.
func (s *Store) GetCreator(id string) (*Creator, error) {
	var profileBlob []byte
	var enabled int
	err := s.db.QueryRow(`
		SELECT expectation_profile, feedback_loop_enabled
		FROM creators WHERE id = ?`, id,
	).Scan(&profileBlob, &enabled)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("creator %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	c := &Creator{
		ID:                  id,
		ExpectationProfile:  DecodeVector(profileBlob),
		FeedbackLoopEnabled: enabled != 0,
	}

	history, err := s.GetArtifactsByCreator(id)
	if err != nil {
		return nil, err
	}
	c.ArtifactHistory = history
	return c, nil
}

// --- Receiver CRUD ---

// UpsertReceiver stores or replaces a receiver row.
func (s *Store) UpsertReceiver(r *Receiver) error {
	_, err := s.db.Exec(`
		INSERT INTO receivers (id, value_vector, sentiment_profile, reputation_score, interaction_history)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value_vector = excluded.value_vector,
			sentiment_profile = excluded.sentiment_profile,
			reputation_score = excluded.reputation_score,
			interaction_history = excluded.interaction_history`,
		r.ID, EncodeVector(r.ValueVector), encodeTags(r.SentimentProfile),
		r.ReputationScore, encodeTags(r.InteractionHistory),
	)
	return err
}

// GetReceiver loads a single receiver by ID.
func (s *Store) GetReceiver(id string) (*Receiver, error) {
	row := s.db.QueryRow(`
		SELECT id, value_vector, sentiment_profile, reputation_score, interaction_history
		FROM receivers WHERE id = ?`, id)
	r, err := scanReceiver(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("receiver %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListReceivers loads the whole receiver pool in registration order.
// At our scale (tens to low thousands) scoring the full pool in Go is fine.
func (s *Store) ListReceivers() ([]*Receiver, error) {
	rows, err := s.db.Query(`
		SELECT id, value_vector, sentiment_profile, reputation_score, interaction_history
		FROM receivers ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pool []*Receiver
	for rows.Next() {
		r, err := scanReceiver(rows)
		if err != nil {
			return nil, err
		}
		pool = append(pool, r)
	}
	return pool, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceiver(row rowScanner) (*Receiver, error) {
	var r Receiver
	var vecBlob []byte
	var sentiment, history string
	if err := row.Scan(&r.ID, &vecBlob, &sentiment, &r.ReputationScore, &history); err != nil {
		return nil, err
	}
	r.ValueVector = DecodeVector(vecBlob)
	r.SentimentProfile = decodeTags(sentiment)
	r.InteractionHistory = decodeTags(history)
	return &r, nil
}

// --- Artifact CRUD ---

// InsertArtifact stores a new artifact under a creator.
func (s *Store) InsertArtifact(creatorID string, a *Artifact) error {
	_, err := s.db.Exec(`
		INSERT INTO artifacts (id, creator_id, quality_score, vector, themes)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, creatorID, a.QualityScore, EncodeVector(a.Vector), encodeTags(a.Themes),
	)
	return err
}

// GetArtifact loads an artifact by ID.
func (s *Store) GetArtifact(id string) (*Artifact, error) {
	var a Artifact
	var vecBlob []byte
	var themes, created string
	err := s.db.QueryRow(`
		SELECT id, quality_score, vector, themes, created_at
		FROM artifacts WHERE id = ?`, id,
	).Scan(&a.ID, &a.QualityScore, &vecBlob, &themes, &created)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artifact %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	a.Vector = DecodeVector(vecBlob)
	a.Themes = decodeTags(themes)
	a.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
	return &a, nil
}

// GetArtifactsByCreator returns a creator's artifacts, oldest first.
func (s *Store) GetArtifactsByCreator(creatorID string) ([]*Artifact, error) {
	rows, err := s.db.Query(`
		SELECT id, quality_score, vector, themes, created_at
		FROM artifacts
		WHERE creator_id = ?
		ORDER BY created_at ASC, rowid ASC`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		var a Artifact
		var vecBlob []byte
		var themes, created string
		if err := rows.Scan(&a.ID, &a.QualityScore, &vecBlob, &themes, &created); err != nil {
			return nil, err
		}
		a.Vector = DecodeVector(vecBlob)
		a.Themes = decodeTags(themes)
		a.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

// SaveArtifactThemes persists an artifact's grown theme list after feedback.
func (s *Store) SaveArtifactThemes(id string, themes []string) error {
	_, err := s.db.Exec(`UPDATE artifacts SET themes = ? WHERE id = ?`, encodeTags(themes), id)
	return err
}

// SaveExpectationProfile persists a creator's decayed expectation profile.
func (s *Store) SaveExpectationProfile(id string, profile []float64) error {
	_, err := s.db.Exec(`UPDATE creators SET expectation_profile = ? WHERE id = ?`, EncodeVector(profile), id)
	return err
}

// --- Journal ---

// InsertOffer appends an offer event to the journal.
func (s *Store) InsertOffer(ev OfferEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO offers (event_id, artifact_id, receiver_id, score, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.EventID, ev.ArtifactID, ev.ReceiverID, ev.Score,
		ev.OccurredAt.UTC().Format(sqliteTimeLayout),
	)
	return err
}

// InsertEvolution appends an evolution event to the journal.
func (s *Store) InsertEvolution(ev EvolutionEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO evolutions (event_id, artifact_id, applied_tag, occurred_at)
		VALUES (?, ?, ?, ?)`,
		ev.EventID, ev.ArtifactID, ev.AppliedTag,
		ev.OccurredAt.UTC().Format(sqliteTimeLayout),
	)
	return err
}

// ListOffers returns the most recent journal entries, newest first.
func (s *Store) ListOffers(limit int) ([]Offer, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT artifact_id, receiver_id, score
		FROM offers ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []Offer
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.ArtifactID, &o.ReceiverID, &o.Score); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// TrimJournal deletes the oldest journal rows beyond maxRows per table.
// Returns the number of rows removed.
func (s *Store) TrimJournal(maxRows int) (int, error) {
	trimmed := 0
	for _, table := range []string{"offers", "evolutions"} {
		res, err := s.db.Exec(`
			DELETE FROM `+table+` WHERE id IN (
				SELECT id FROM `+table+`
				ORDER BY id DESC LIMIT -1 OFFSET ?
			)`, maxRows)
		if err != nil {
			return trimmed, err
		}
		n, _ := res.RowsAffected()
		trimmed += int(n)
	}
	return trimmed, nil
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Journal sink ---

// JournalSink persists events to the store. Write failures are logged and
// dropped; the engine never blocks on the journal.
type JournalSink struct {
	store *Store
}

// NewJournalSink wraps a store as an EventSink.
func NewJournalSink(store *Store) *JournalSink {
	return &JournalSink{store: store}
}

func (j *JournalSink) OfferMade(ev OfferEvent) {
	if err := j.store.InsertOffer(ev); err != nil {
		log.Printf("[resonance] Journal offer failed: %v", err)
	}
}

func (j *JournalSink) ArtifactEvolved(ev EvolutionEvent) {
	if err := j.store.InsertEvolution(ev); err != nil {
		log.Printf("[resonance] Journal evolution failed: %v", err)
	}
}
