// Package index implements the Index Store: the durable relational catalog
// of directories, tracks, and lyric state. It is grounded on the teacher's
// state.Manager (connection open, PRAGMA configuration, schema migration)
// and on its scanner's transaction-per-batch upsert idiom.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/corvidae/lyricsync/internal/db"
)

const appName = "lyricsync"

// Sentinel errors for add_directory per spec §4.1.
var (
	ErrDuplicateDirectory = errors.New("directory already registered")
	ErrNestedDirectory    = errors.New("directory overlaps an existing one")
)

// LyricState is the enum attached to each Track. Transitions are monotonic
// upgrades enforced by SetLyricState.
type LyricState string

const (
	StateUnknown       LyricState = "unknown"
	StateSyncedPresent LyricState = "synced_present"
	StatePlainPresent  LyricState = "plain_present"
	StateInstrumental  LyricState = "instrumental"
	StateNotFound      LyricState = "not_found"
	StateFailed        LyricState = "failed"
)

// presentRank orders the states that carry an actual sidecar on disk, per
// §3's lattice: PlainPresent may still upgrade to SyncedPresent, but once a
// track has a present/terminal result (Plain, Synced, or Instrumental) it
// must never silently fall back to Unknown/NotFound/Failed — that would
// leave a stale sidecar on disk contradicting the recorded state (§8).
// States absent from this map (Unknown, NotFound, Failed) carry no sidecar
// yet, so any transition out of them is a lateral move or an upgrade.
var presentRank = map[LyricState]int{
	StatePlainPresent:  1,
	StateInstrumental:  2,
	StateSyncedPresent: 2,
}

// Terminal reports whether state is terminal absent --force, per §3:
// SyncedPresent is terminal; Instrumental/NotFound/Failed are resting states
// that a plain --force re-run may revisit.
func (s LyricState) Terminal() bool {
	return s == StateSyncedPresent
}

// Track mirrors the spec §3 Track entity.
type Track struct {
	ID            int64
	DirectoryID   int64
	RelativePath  string
	Title         string
	Artist        string
	Album         string
	AlbumArtist   string
	DurationSecs  float64
	FileMtime     time.Time
	LastScannedAt time.Time
	LyricState    LyricState
	LyricReason   string
}

// TagFields is what the Metadata Probe hands the Scanner for an upsert.
type TagFields struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Duration    float64
}

// Filter is a conjunction of list_tracks predicates (§4.1).
type Filter struct {
	MissingLyrics bool
	Artist        string
	Album         string
	DirectoryID   int64 // 0 means "any"
	IDs           []int64
}

// Store is the Index Store. Each mutation runs in its own transaction
// (db.WithTx); concurrent writers are serialized by SQLite's write lock,
// waited on via busy_timeout. Readers may run concurrently against the
// same *sql.DB.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the XDG-standard database path, matching the teacher's
// xdg.DataFile convention.
func DefaultPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, "library.db"))
}

// Open opens (creating if absent) the index database at path and applies
// schema migrations. Empty path uses DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if err := ensureSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &Store{db: conn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying connection for components (catalog search
// reuse, tests) that need direct SQL access.
func (s *Store) DB() *sql.DB { return s.db }

// Directory mirrors the spec §3 Directory entity.
type Directory struct {
	ID        int64
	Path      string
	CreatedAt time.Time
}

// DirectoryPath resolves a directory id to its canonical absolute path, so
// callers (Orchestrator, Scanner) can join it with a track's relative path.
func (s *Store) DirectoryPath(id int64) (string, error) {
	var path string
	err := s.db.QueryRow(`SELECT path FROM directories WHERE id = ?`, id).Scan(&path)
	return path, err
}

// ListDirectories returns every registered library root.
func (s *Store) ListDirectories() ([]Directory, error) {
	rows, err := s.db.Query(`SELECT id, path, created_at FROM directories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []Directory
	for rows.Next() {
		var d Directory
		var created int64
		if err := rows.Scan(&d.ID, &d.Path, &created); err != nil {
			return nil, err
		}
		d.CreatedAt = time.Unix(created, 0)
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// AddDirectory registers an absolute path as a library root.
func (s *Store) AddDirectory(path string) (int64, error) {
	canon, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	canon = filepath.Clean(canon)

	var id int64
	err = db.WithTx(s.db, func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT id, path FROM directories`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var existingID int64
			var existingPath string
			if err := rows.Scan(&existingID, &existingPath); err != nil {
				return err
			}
			if existingPath == canon {
				return ErrDuplicateDirectory
			}
			if isPrefixDir(existingPath, canon) || isPrefixDir(canon, existingPath) {
				return ErrNestedDirectory
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}

		res, err := tx.Exec(`INSERT INTO directories (path, created_at) VALUES (?, ?)`, canon, time.Now().Unix())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func isPrefixDir(parent, child string) bool {
	if parent == child {
		return false
	}
	prefix := parent
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// UpsertTrack inserts or updates a track. It only applies the update when
// mtime differs from the recorded value (or the row is new), per §4.1.
func (s *Store) UpsertTrack(dirID int64, relPath string, tags TagFields, mtime time.Time) (id int64, wasNew bool, err error) {
	err = db.WithTx(s.db, func(tx *sql.Tx) error {
		var existingID int64
		var existingMtime int64
		scanErr := tx.QueryRow(
			`SELECT id, file_mtime FROM tracks WHERE directory_id = ? AND relative_path = ?`,
			dirID, relPath,
		).Scan(&existingID, &existingMtime)

		now := time.Now().Unix()

		title, artist := tags.Title, tags.Artist
		if title == "" {
			title = filepath.Base(relPath)
		}
		if artist == "" {
			artist = "Unknown Artist"
		}

		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
			res, err := tx.Exec(`
				INSERT INTO tracks (directory_id, relative_path, title, artist, album, album_artist,
					duration_secs, file_mtime, last_scanned_at, lyric_state)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				dirID, relPath, title, artist, tags.Album, tags.AlbumArtist,
				round2(tags.Duration), mtime.Unix(), now, StateUnknown,
			)
			if err != nil {
				return err
			}
			id, err = res.LastInsertId()
			wasNew = true
			return err
		case scanErr != nil:
			return scanErr
		default:
			id = existingID
			if existingMtime == mtime.Unix() {
				// unchanged; still bump last_scanned_at so reconciliation can tell
				// stale rows apart from actively-scanned ones.
				_, err := tx.Exec(`UPDATE tracks SET last_scanned_at = ? WHERE id = ?`, now, id)
				return err
			}
			_, err := tx.Exec(`
				UPDATE tracks SET title = ?, artist = ?, album = ?, album_artist = ?,
					duration_secs = ?, file_mtime = ?, last_scanned_at = ?
				WHERE id = ?`,
				title, artist, tags.Album, tags.AlbumArtist, round2(tags.Duration),
				mtime.Unix(), now, id,
			)
			return err
		}
	})
	return id, wasNew, err
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// DeleteTrack removes a row, used only under explicit --prune.
func (s *Store) DeleteTrack(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tracks WHERE id = ?`, id)
	return err
}

// GetTrack fetches a single track by id.
func (s *Store) GetTrack(id int64) (Track, error) {
	row := s.db.QueryRow(`
		SELECT id, directory_id, relative_path, title, artist, album, album_artist,
			duration_secs, file_mtime, last_scanned_at, lyric_state, lyric_reason
		FROM tracks WHERE id = ?`, id)
	return scanTrack(row)
}

// ListTracks applies the filter conjunction described in §4.1 and returns
// rows ordered stably by (artist, album, relative_path).
func (s *Store) ListTracks(f Filter) ([]Track, error) {
	var conds []string
	var args []any

	if f.MissingLyrics {
		conds = append(conds, "lyric_state IN (?, ?)")
		args = append(args, StateUnknown, StateNotFound)
	}
	if f.Artist != "" {
		conds = append(conds, "LOWER(artist) = LOWER(?)")
		args = append(args, f.Artist)
	}
	if f.Album != "" {
		conds = append(conds, "LOWER(album) = LOWER(?)")
		args = append(args, f.Album)
	}
	if f.DirectoryID != 0 {
		conds = append(conds, "directory_id = ?")
		args = append(args, f.DirectoryID)
	}
	if len(f.IDs) > 0 {
		placeholders := make([]string, len(f.IDs))
		for i, id := range f.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		conds = append(conds, fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ",")))
	}

	query := `
		SELECT id, directory_id, relative_path, title, artist, album, album_artist,
			duration_secs, file_mtime, last_scanned_at, lyric_state, lyric_reason
		FROM tracks`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY artist, album, relative_path"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (Track, error) {
	var t Track
	var mtime, scannedAt int64
	var state string
	err := row.Scan(&t.ID, &t.DirectoryID, &t.RelativePath, &t.Title, &t.Artist, &t.Album,
		&t.AlbumArtist, &t.DurationSecs, &mtime, &scannedAt, &state, &t.LyricReason)
	if err != nil {
		return Track{}, err
	}
	t.FileMtime = time.Unix(mtime, 0)
	t.LastScannedAt = time.Unix(scannedAt, 0)
	t.LyricState = LyricState(state)
	return t, nil
}

// SetLyricState atomically transitions a track's state, enforcing the
// monotonic upgrade lattice from §3, and returns the prior state. force
// bypasses the lattice entirely (e.g. SyncedPresent -> Unknown on --force).
func (s *Store) SetLyricState(trackID int64, newState LyricState, reason string, force bool) (prior LyricState, err error) {
	err = db.WithTx(s.db, func(tx *sql.Tx) error {
		var cur string
		if scanErr := tx.QueryRow(`SELECT lyric_state FROM tracks WHERE id = ?`, trackID).Scan(&cur); scanErr != nil {
			return scanErr
		}
		prior = LyricState(cur)

		if !force && !allowedTransition(prior, newState) {
			return fmt.Errorf("invariant violation: cannot transition %s -> %s without --force", prior, newState)
		}

		_, err := tx.Exec(`UPDATE tracks SET lyric_state = ?, lyric_reason = ? WHERE id = ?`, newState, reason, trackID)
		return err
	})
	return prior, err
}

func allowedTransition(from, to LyricState) bool {
	if from == to {
		return true
	}
	fromRank, fromPresent := presentRank[from]
	if !fromPresent {
		// Unknown, NotFound, Failed: no sidecar exists yet, so any
		// transition is a lateral move or an upgrade.
		return true
	}
	toRank, toPresent := presentRank[to]
	// Leaving a present state is only allowed as a strict upgrade to
	// another, higher-ranked present state (PlainPresent -> SyncedPresent).
	// Downgrading to a lower-ranked present state, or out to
	// Unknown/NotFound/Failed, requires --force.
	return toPresent && toRank > fromRank
}
