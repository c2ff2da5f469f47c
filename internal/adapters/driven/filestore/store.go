// Package filestore persists the corpus as a pair of files in a data
// directory: a binary vector index and a JSON document metadata file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
)

const (
	IndexFileName = "corpus.index"
	MetaFileName  = "corpus.meta.json"

	backupSuffix = ".bak"
	tempSuffix   = ".tmp"

	formatVersion = 1
)

var _ driven.CorpusStore = (*Store)(nil)

// Store implements driven.CorpusStore on the local filesystem.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex

	// liveValid is false after Load recovered from the backup pair or a
	// Save failed mid-install; the backup pair is then the last good state
	// and must not be overwritten by the live files.
	liveValid bool
}

// metaFile is the JSON layout of corpus.meta.json
type metaFile struct {
	FormatVersion int                   `json:"format_version"`
	Generation    uint64                `json:"generation"`
	Dimensions    int                   `json:"dimensions"`
	Metric        domain.DistanceMetric `json:"metric"`
	IndexRecords  int                   `json:"index_records"`
	Documents     []*domain.Document    `json:"documents"`
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: data directory is required", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) indexPath() string { return filepath.Join(s.dir, IndexFileName) }
func (s *Store) metaPath() string  { return filepath.Join(s.dir, MetaFileName) }

// Load reads and cross-checks both files. When the live pair is missing or
// inconsistent it falls back to the backup pair kept by the previous Save.
func (s *Store) Load(ctx context.Context) (*domain.CorpusImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := loadPair(s.indexPath(), s.metaPath())
	if err == nil {
		s.liveValid = true
		return img, nil
	}
	if !errors.Is(err, errNoPair) && !errors.Is(err, domain.ErrCorruptPersistedState) {
		return nil, err
	}

	backup, bakErr := loadPair(s.indexPath()+backupSuffix, s.metaPath()+backupSuffix)
	switch {
	case bakErr == nil:
		s.logger.Warn("live corpus files unusable, recovered from backup",
			"dir", s.dir, "generation", backup.Generation, "error", err)
		s.liveValid = false
		return backup, nil
	case errors.Is(err, errNoPair) && errors.Is(bakErr, errNoPair):
		s.liveValid = true
		return &domain.CorpusImage{}, nil
	case errors.Is(err, errNoPair):
		return nil, bakErr
	default:
		return nil, err
	}
}

// errNoPair means neither file of a pair exists.
var errNoPair = errors.New("no corpus files")

func loadPair(indexPath, metaPath string) (*domain.CorpusImage, error) {
	indexExists, err := exists(indexPath)
	if err != nil {
		return nil, err
	}
	metaExists, err := exists(metaPath)
	if err != nil {
		return nil, err
	}

	switch {
	case !indexExists && !metaExists:
		return nil, errNoPair
	case indexExists != metaExists:
		return nil, fmt.Errorf("%w: only one of %s and %s exists",
			domain.ErrCorruptPersistedState, filepath.Base(indexPath), filepath.Base(metaPath))
	}

	idx, err := readIndexFile(indexPath)
	if err != nil {
		return nil, err
	}
	meta, err := readMetaFile(metaPath)
	if err != nil {
		return nil, err
	}

	if err := crossCheck(idx, meta); err != nil {
		return nil, err
	}

	return &domain.CorpusImage{
		Generation: meta.Generation,
		Dimensions: idx.dims,
		Metric:     idx.metric,
		Documents:  meta.Documents,
		Vectors:    idx.records,
	}, nil
}

func crossCheck(idx *indexFile, meta *metaFile) error {
	if idx.generation != meta.Generation {
		return fmt.Errorf("%w: index generation %d, metadata generation %d",
			domain.ErrCorruptPersistedState, idx.generation, meta.Generation)
	}
	if meta.IndexRecords != len(idx.records) {
		return fmt.Errorf("%w: metadata expects %d index records, index has %d",
			domain.ErrCorruptPersistedState, meta.IndexRecords, len(idx.records))
	}
	if meta.Dimensions != idx.dims || meta.Metric != idx.metric {
		return fmt.Errorf("%w: index is %d/%s, metadata says %d/%s",
			domain.ErrCorruptPersistedState, idx.dims, idx.metric, meta.Dimensions, meta.Metric)
	}

	current := make(map[string]bool)
	for _, doc := range meta.Documents {
		if doc != nil && doc.IsCurrent() {
			current[doc.ID] = true
		}
	}
	if len(current) != len(idx.records) {
		return fmt.Errorf("%w: %d current documents, %d vectors",
			domain.ErrCorruptPersistedState, len(current), len(idx.records))
	}
	for _, rec := range idx.records {
		if !current[rec.ID] {
			return fmt.Errorf("%w: vector %s has no current document",
				domain.ErrCorruptPersistedState, rec.ID)
		}
	}
	return nil
}

// Save writes both files to temporaries and syncs them, copies the live
// pair to .bak, then renames the new pair over the live one. The live pair
// is never removed, so a crash at any point leaves either it or the backup
// pair loadable.
func (s *Store) Save(ctx context.Context, image *domain.CorpusImage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := 0
	for _, doc := range image.Documents {
		if doc.IsCurrent() {
			current++
		}
	}
	if current != len(image.Vectors) {
		return fmt.Errorf("%w: %d current documents, %d vectors", domain.ErrInvalidInput, current, len(image.Vectors))
	}

	indexTmp := s.indexPath() + tempSuffix
	metaTmp := s.metaPath() + tempSuffix

	idx := &indexFile{
		generation: image.Generation,
		dims:       image.Dimensions,
		metric:     image.Metric,
		records:    image.Vectors,
	}
	if err := writeSynced(indexTmp, idx.encode); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	meta := &metaFile{
		FormatVersion: formatVersion,
		Generation:    image.Generation,
		Dimensions:    image.Dimensions,
		Metric:        image.Metric,
		IndexRecords:  len(image.Vectors),
		Documents:     image.Documents,
	}
	if err := writeSynced(metaTmp, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		_ = os.Remove(indexTmp)
		return fmt.Errorf("write metadata: %w", err)
	}

	if s.liveValid || !s.backupExists() {
		for _, path := range []string{s.indexPath(), s.metaPath()} {
			if err := copySynced(path, path+backupSuffix); err != nil {
				_ = os.Remove(indexTmp)
				_ = os.Remove(metaTmp)
				return fmt.Errorf("backup %s: %w", filepath.Base(path), err)
			}
		}
	}

	// Between these renames the live pair is torn; Load then uses the backup.
	s.liveValid = false
	if err := os.Rename(indexTmp, s.indexPath()); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("install index: %w", err)
	}
	if err := os.Rename(metaTmp, s.metaPath()); err != nil {
		return fmt.Errorf("install metadata: %w", err)
	}
	s.liveValid = true
	if err := syncDir(s.dir); err != nil {
		s.logger.Warn("failed to sync data directory", "dir", s.dir, "error", err)
	}

	s.logger.Debug("corpus saved",
		"generation", image.Generation,
		"documents", len(image.Documents),
		"vectors", len(image.Vectors),
	)
	return nil
}

// Generation returns the generation Load would return. It reads the index
// header and the metadata generation; a torn live pair reports the backup.
func (s *Store) Generation(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen, err := headerGeneration(s.indexPath())
	if err != nil {
		return 0, err
	}
	metaGen, err := metaGeneration(s.metaPath())
	if err != nil {
		return 0, err
	}
	if gen == metaGen {
		return gen, nil
	}
	return headerGeneration(s.indexPath() + backupSuffix)
}

func headerGeneration(path string) (uint64, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h, err := readHeader(f)
	if err != nil {
		return 0, err
	}
	return h.generation, nil
}

func metaGeneration(path string) (uint64, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var head struct {
		Generation uint64 `json:"generation"`
	}
	if err := json.NewDecoder(f).Decode(&head); err != nil {
		return 0, fmt.Errorf("%w: decode %s: %v", domain.ErrCorruptPersistedState, filepath.Base(path), err)
	}
	return head.Generation, nil
}

func readMetaFile(path string) (*metaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta metaFile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrCorruptPersistedState, MetaFileName, err)
	}
	if meta.FormatVersion != formatVersion {
		return nil, fmt.Errorf("%w: unsupported metadata format %d",
			domain.ErrCorruptPersistedState, meta.FormatVersion)
	}
	return &meta, nil
}

func writeSynced(path string, write func(f *os.File) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (s *Store) backupExists() bool {
	ok, err := exists(s.indexPath() + backupSuffix)
	return err == nil && ok
}

// copySynced replaces dst with a synced copy of src through a temporary
// file. A missing src is not an error.
func copySynced(src, dst string) error {
	in, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + tempSuffix
	if err := writeSynced(tmp, func(f *os.File) error {
		_, err := io.Copy(f, in)
		return err
	}); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
