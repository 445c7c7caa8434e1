// Package store implements the contact record store: a single CSV file that
// is loaded fresh on every operation and rewritten whole on every submission.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kjk/common/atomicfile"
	"github.com/rs/zerolog"

	"github.com/smileynet/fiche/internal/contact"
)

// Defaults for the storage and export file names.
const (
	DefaultPath           = "donnees_proximite.csv"
	DefaultExportFilename = "contacts_proximite.csv"
	ExportContentType     = "text/csv"
)

// Collection is the ordered set of records backed by the storage file.
type Collection struct {
	Records []contact.Record
}

// Columns returns the fixed column schema. It is the same for an empty
// collection as for a loaded one.
func (c Collection) Columns() []string { return contact.Columns() }

// Len returns the number of records.
func (c Collection) Len() int { return len(c.Records) }

// Confirmation is returned by a successful Submit.
type Confirmation struct {
	Record      contact.Record
	DisplayName string
}

// Message returns the operator-facing success message.
func (c Confirmation) Message() string {
	return fmt.Sprintf("Profil de %s enregistré avec succès !", c.DisplayName)
}

// Snapshot is a point-in-time CSV export of the collection.
type Snapshot struct {
	Filename    string
	ContentType string
	Data        []byte
	Count       int
}

// Save writes the snapshot to dir under its Filename and returns the full
// path written.
func (sn Snapshot) Save(dir string) (string, error) {
	path := filepath.Join(dir, sn.Filename)
	if err := writeAtomic(path, sn.Data); err != nil {
		return "", &StorageWriteError{Path: path, Err: err}
	}
	return path, nil
}

// Store reads and writes the storage file. Operations hold no state between
// calls: each one re-derives the collection from disk.
//
// Writes from one process are serialized; writers in separate processes are
// not coordinated and the last one wins.
type Store struct {
	path           string
	exportFilename string
	now            func() time.Time
	log            zerolog.Logger

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp submissions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithExportFilename overrides the filename offered with snapshots.
func WithExportFilename(name string) Option {
	return func(s *Store) { s.exportFilename = name }
}

// New creates a Store backed by the CSV file at path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:           path,
		exportFilename: DefaultExportFilename,
		now:            time.Now,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "store").Str("path", path).Logger()
	return s
}

// Path returns the storage file path.
func (s *Store) Path() string { return s.path }

// Load reads the collection from disk. A missing or empty file yields an
// empty collection. A file whose header differs from the schema, or whose
// rows cannot be parsed, yields a *StorageReadError.
func (s *Store) Load() (Collection, error) {
	col, err := s.load()
	if err != nil {
		s.log.Error().Err(err).Msg("load failed")
		return Collection{}, err
	}
	s.log.Debug().Int("records", col.Len()).Msg("loaded")
	return col, nil
}

func (s *Store) load() (Collection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Collection{}, nil
		}
		return Collection{}, &StorageReadError{Path: s.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Collection{}, nil
	}
	records, err := decode(data)
	if err != nil {
		return Collection{}, &StorageReadError{Path: s.path, Err: err}
	}
	return Collection{Records: records}, nil
}

// Submit validates the candidate, normalizes it, appends it to a freshly
// loaded collection, and rewrites the storage file. A missing last name or
// phone yields a *contact.ValidationError and leaves the file untouched.
func (s *Store) Submit(c contact.Candidate) (Confirmation, error) {
	if err := c.Validate(); err != nil {
		s.log.Info().Err(err).Msg("submission rejected")
		return Confirmation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Stamped under the lock so file order matches timestamp order.
	rec := c.Normalize(s.now())

	col, err := s.load()
	if err != nil {
		s.log.Error().Err(err).Msg("submit: load failed")
		return Confirmation{}, err
	}
	col.Records = append(col.Records, rec)
	if err := s.persist(col); err != nil {
		s.log.Error().Err(err).Msg("submit: persist failed")
		return Confirmation{}, err
	}

	s.log.Info().
		Str("entered_at", rec.EnteredAt).
		Int("records", col.Len()).
		Msg("record submitted")
	return Confirmation{Record: rec, DisplayName: rec.DisplayName()}, nil
}

// Persist rewrites the storage file with the whole collection. The new
// content is written to a temporary file in the same directory and renamed
// over the old one, so a crash leaves either the old or the new file.
func (s *Store) Persist(col Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(col); err != nil {
		s.log.Error().Err(err).Msg("persist failed")
		return err
	}
	return nil
}

func (s *Store) persist(col Collection) error {
	data, err := encode(col.Records)
	if err != nil {
		return &StorageWriteError{Path: s.path, Err: err}
	}
	if err := writeAtomic(s.path, data); err != nil {
		return &StorageWriteError{Path: s.path, Err: err}
	}
	return nil
}

// writeAtomic replaces path with data via a temporary file in the same
// directory, creating missing parent directories.
func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}

	f, err := atomicfile.New(path)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()

	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Close()
}

// ExportSnapshot loads the collection and returns it as a downloadable CSV
// payload in the storage format. It has no side effects.
func (s *Store) ExportSnapshot() (Snapshot, error) {
	col, err := s.load()
	if err != nil {
		s.log.Error().Err(err).Msg("export: load failed")
		return Snapshot{}, err
	}
	data, err := encode(col.Records)
	if err != nil {
		return Snapshot{}, &StorageReadError{Path: s.path, Err: err}
	}
	s.log.Debug().Int("records", col.Len()).Msg("snapshot exported")
	return Snapshot{
		Filename:    s.exportFilename,
		ContentType: ExportContentType,
		Data:        data,
		Count:       col.Len(),
	}, nil
}
