// Package codecache persists code images in a SQLite database. Images are
// stored zstd-compressed and keyed by their content hash.
package codecache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/bcgen/codeimage"
)

var log = commonlog.GetLogger("bcgen.codecache")

// ErrNotFound indicates the requested image is not cached.
var ErrNotFound = errors.New("codecache: image not found")

var (
	decoder *zstd.Decoder
	encoder *zstd.Encoder
)

func init() {
	var err error
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("codecache: failed to create zstd reader: %v", err))
	}
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("codecache: failed to create zstd writer: %v", err))
	}
}

const schema = `CREATE TABLE IF NOT EXISTS images (
	hash      TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	optimized INTEGER NOT NULL,
	size      INTEGER NOT NULL,
	data      BLOB NOT NULL,
	stored    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS images_name ON images (name, stored)`

// Entry describes one cached image without decoding it.
type Entry struct {
	Hash      [32]byte
	Name      string
	Optimized bool
	Size      int // encoded size before compression
	Stored    int // larger values were stored later
}

// Cache is a persistent image cache. Safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex // serializes writers
	seq  int
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if path == "" {
		return nil, errors.New("codecache: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	c := &Cache{db: db, path: path}
	if err := db.QueryRow("SELECT COALESCE(MAX(stored), 0) FROM images").Scan(&c.seq); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading cache sequence: %w", err)
	}
	log.Debugf("opened %s", path)
	return c, nil
}

// Path returns the database file.
func (c *Cache) Path() string { return c.path }

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores img and returns its hash. Re-storing an image marks it as the
// latest for its name.
func (c *Cache) Put(ctx context.Context, img *codeimage.Image) ([32]byte, error) {
	data, err := codeimage.Marshal(img)
	if err != nil {
		return [32]byte{}, fmt.Errorf("encoding %s: %w", img.Name, err)
	}
	h, err := codeimage.Hash(img)
	if err != nil {
		return [32]byte{}, err
	}
	blob := encoder.EncodeAll(data, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO images (hash, name, optimized, size, data, stored) VALUES (?, ?, ?, ?, ?, ?)",
		hex.EncodeToString(h[:]), img.Name, img.Optimized, len(data), blob, c.seq)
	if err != nil {
		return [32]byte{}, fmt.Errorf("storing %s: %w", img.Name, err)
	}
	log.Debugf("stored %s %s (%d -> %d bytes)", img.Name, codeimage.ShortHash(h), len(data), len(blob))
	return h, nil
}

// Get loads the image with hash h.
func (c *Cache) Get(ctx context.Context, h [32]byte) (*codeimage.Image, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, "SELECT data FROM images WHERE hash = ?", hex.EncodeToString(h[:])).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}
	return decode(blob)
}

// Lookup loads the image most recently stored under name.
func (c *Cache) Lookup(ctx context.Context, name string) (*codeimage.Image, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT data FROM images WHERE name = ? ORDER BY stored DESC LIMIT 1", name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return decode(blob)
}

// Resolve finds the entry whose hex hash starts with prefix.
func (c *Cache) Resolve(ctx context.Context, prefix string) ([32]byte, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT hash FROM images WHERE hash LIKE ? LIMIT 2", prefix+"%")
	if err != nil {
		return [32]byte{}, fmt.Errorf("resolving %s: %w", prefix, err)
	}
	defer rows.Close()
	var found []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return [32]byte{}, err
		}
		found = append(found, s)
	}
	if err := rows.Err(); err != nil {
		return [32]byte{}, err
	}
	switch len(found) {
	case 0:
		return [32]byte{}, ErrNotFound
	case 1:
		return parseHash(found[0])
	}
	return [32]byte{}, fmt.Errorf("codecache: hash prefix %s is ambiguous", prefix)
}

// List returns all entries, most recent first.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT hash, name, optimized, size, stored FROM images ORDER BY stored DESC")
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			hash string
		)
		if err := rows.Scan(&hash, &e.Name, &e.Optimized, &e.Size, &e.Stored); err != nil {
			return nil, err
		}
		if e.Hash, err = parseHash(hash); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the image with hash h.
func (c *Cache) Delete(ctx context.Context, h [32]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.ExecContext(ctx, "DELETE FROM images WHERE hash = ?", hex.EncodeToString(h[:]))
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func decode(blob []byte) (*codeimage.Image, error) {
	data, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("codecache: decompress: %w", err)
	}
	return codeimage.Unmarshal(data)
}

func parseHash(s string) ([32]byte, error) {
	var h [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(h) {
		return h, fmt.Errorf("codecache: malformed hash %q", s)
	}
	copy(h[:], b)
	return h, nil
}
