package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/capitol/internal/database"
	"github.com/aristath/capitol/internal/events"
	"github.com/rs/zerolog"
)

// WorkTypeBackup is the work queue ID of a backup pass.
const WorkTypeBackup = "maintenance:backup"

const (
	archivePrefix     = "capitol-backup-"
	archiveSuffix     = ".tar.gz"
	archiveTimeLayout = "2006-01-02-150405"
	metadataFilename  = "backup-metadata.json"
	minBackupsToKeep  = 3
	formatVersion     = "1"
)

// Emitter publishes backup events.
type Emitter interface {
	EmitTyped(module string, data events.EventData)
}

// BackupMetadata contains metadata about a backup
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata contains metadata about a single database in the backup
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo describes one archive, local or remote.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupResult summarizes one Run.
type BackupResult struct {
	Archive      string `json:"archive"`
	SizeBytes    int64  `json:"size_bytes"`
	Uploaded     bool   `json:"uploaded"`
	PrunedLocal  int    `json:"pruned_local"`
	PrunedRemote int    `json:"pruned_remote"`
}

// BackupService snapshots the databases into tar.gz archives under backupDir and,
// when a remote store is configured, uploads and rotates them off-site.
type BackupService struct {
	databases     []*database.DB
	backupDir     string
	remote        ObjectStore
	retentionDays int
	minFreeBytes  uint64
	emitter       Emitter
	log           zerolog.Logger
	now           func() time.Time
}

// NewBackupService creates a backup service. remote and emitter may be nil.
// retentionDays <= 0 keeps every archive.
func NewBackupService(
	databases []*database.DB,
	backupDir string,
	remote ObjectStore,
	retentionDays int,
	emitter Emitter,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases:     databases,
		backupDir:     backupDir,
		remote:        remote,
		retentionDays: retentionDays,
		minFreeBytes:  MinFreeDiskBytes,
		emitter:       emitter,
		log:           log.With().Str("service", "backup").Logger(),
		now:           time.Now,
	}
}

// Run performs a full backup pass: pre-flight checks, archive, verification, upload and
// rotation. Upload and rotation failures are returned after the local archive is kept.
func (s *BackupService) Run(ctx context.Context) (*BackupResult, error) {
	start := s.now()
	s.log.Info().Msg("Starting backup")

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := CheckDiskSpace(s.backupDir, s.minFreeBytes, s.log); err != nil {
		return nil, err
	}
	if err := CheckDatabases(ctx, s.databases, s.log); err != nil {
		return nil, err
	}

	archivePath, err := s.CreateBackup(ctx)
	if err != nil {
		return nil, err
	}
	if err := VerifyBackup(archivePath); err != nil {
		_ = os.Remove(archivePath)
		return nil, fmt.Errorf("failed to verify backup: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	result := &BackupResult{Archive: filepath.Base(archivePath), SizeBytes: info.Size()}

	var remoteErr error
	if s.remote != nil {
		if remoteErr = s.upload(ctx, archivePath, info.Size()); remoteErr == nil {
			result.Uploaded = true
			if result.PrunedRemote, err = s.RotateRemote(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Remote rotation failed")
			}
		}
	}

	if result.PrunedLocal, err = s.PruneLocal(); err != nil {
		s.log.Warn().Err(err).Msg("Local rotation failed")
	}

	if s.emitter != nil {
		s.emitter.EmitTyped("reliability", &events.BackupCompletedData{
			Archive:   result.Archive,
			SizeBytes: result.SizeBytes,
			Uploaded:  result.Uploaded,
		})
	}

	s.log.Info().
		Str("archive", result.Archive).
		Int64("size_bytes", result.SizeBytes).
		Bool("uploaded", result.Uploaded).
		Dur("duration_ms", time.Since(start)).
		Msg("Backup completed")

	if remoteErr != nil {
		return result, fmt.Errorf("failed to upload backup: %w", remoteErr)
	}
	return result, nil
}

// CreateBackup writes a consistent snapshot of every database into a new archive and
// returns its path.
func (s *BackupService) CreateBackup(ctx context.Context) (string, error) {
	stagingDir, err := os.MkdirTemp(s.backupDir, "staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	metadata := BackupMetadata{
		Timestamp: s.now().UTC(),
		Version:   formatVersion,
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}
	files := make([]string, 0, len(s.databases)+1)

	for _, db := range s.databases {
		filename := db.Name() + ".db"
		dest := filepath.Join(stagingDir, filename)

		if err := db.VacuumInto(ctx, dest); err != nil {
			return "", fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
		}

		info, err := os.Stat(dest)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s snapshot: %w", db.Name(), err)
		}
		checksum, err := fileChecksum(dest)
		if err != nil {
			return "", fmt.Errorf("failed to calculate checksum for %s: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		files = append(files, filename)
	}

	if err := writeMetadata(filepath.Join(stagingDir, metadataFilename), metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	files = append(files, metadataFilename)

	archivePath := filepath.Join(s.backupDir, archiveName(metadata.Timestamp))
	if err := createArchive(archivePath, stagingDir, files); err != nil {
		_ = os.Remove(archivePath)
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	return archivePath, nil
}

func (s *BackupService) upload(ctx context.Context, archivePath string, size int64) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.remote.Upload(ctx, filepath.Base(archivePath), f, size)
}

// ListLocal returns the local archives, newest first.
func (s *BackupService) ListLocal() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, ok := parseArchiveName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{Filename: e.Name(), Timestamp: ts, SizeBytes: info.Size()})
	}
	sortNewestFirst(backups)
	return backups, nil
}

// ListRemote returns the archives in the remote store, newest first.
func (s *BackupService) ListRemote(ctx context.Context) ([]BackupInfo, error) {
	if s.remote == nil {
		return nil, nil
	}
	objects, err := s.remote.List(ctx, archivePrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := parseArchiveName(obj.Key)
		if !ok {
			s.log.Warn().Str("key", obj.Key).Msg("Skipping object with unexpected name")
			continue
		}
		backups = append(backups, BackupInfo{Filename: obj.Key, Timestamp: ts, SizeBytes: obj.SizeBytes})
	}
	sortNewestFirst(backups)
	return backups, nil
}

// PruneLocal deletes local archives older than the retention period, always keeping the
// newest three. It returns the number deleted.
func (s *BackupService) PruneLocal() (int, error) {
	backups, err := s.ListLocal()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, b := range s.expired(backups) {
		if err := os.Remove(filepath.Join(s.backupDir, b.Filename)); err != nil {
			s.log.Error().Err(err).Str("filename", b.Filename).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// RotateRemote applies the same retention to the remote store.
func (s *BackupService) RotateRemote(ctx context.Context) (int, error) {
	backups, err := s.ListRemote(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, b := range s.expired(backups) {
		if err := s.remote.Delete(ctx, b.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", b.Filename).Msg("Failed to delete old remote backup")
			continue
		}
		s.log.Info().Str("filename", b.Filename).Time("timestamp", b.Timestamp).Msg("Deleted old remote backup")
		deleted++
	}
	return deleted, nil
}

// expired expects backups newest first.
func (s *BackupService) expired(backups []BackupInfo) []BackupInfo {
	if s.retentionDays <= 0 || len(backups) <= minBackupsToKeep {
		return nil
	}
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)

	var out []BackupInfo
	for _, b := range backups[minBackupsToKeep:] {
		if b.Timestamp.Before(cutoff) {
			out = append(out, b)
		}
	}
	return out
}

// VerifyBackup re-reads an archive and checks every database against its recorded checksum.
func VerifyBackup(archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	var metadata *BackupMetadata
	checksums := make(map[string]string)

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		if hdr.Name == metadataFilename {
			metadata = &BackupMetadata{}
			if err := json.NewDecoder(tr).Decode(metadata); err != nil {
				return fmt.Errorf("failed to decode metadata: %w", err)
			}
			continue
		}

		h := sha256.New()
		if _, err := io.Copy(h, tr); err != nil {
			return fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		checksums[hdr.Name] = formatChecksum(h)
	}

	if metadata == nil {
		return fmt.Errorf("archive has no %s", metadataFilename)
	}
	for _, db := range metadata.Databases {
		got, ok := checksums[db.Filename]
		if !ok {
			return fmt.Errorf("archive is missing %s", db.Filename)
		}
		if got != db.Checksum {
			return fmt.Errorf("checksum mismatch for %s", db.Filename)
		}
	}
	return nil
}

func archiveName(ts time.Time) string {
	return archivePrefix + ts.UTC().Format(archiveTimeLayout) + archiveSuffix
}

func parseArchiveName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	ts, err := time.Parse(archiveTimeLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func sortNewestFirst(backups []BackupInfo) {
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return formatChecksum(h), nil
}

func formatChecksum(h hash.Hash) string {
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func writeMetadata(path string, metadata BackupMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(metadata)
}

// createArchive writes files from sourceDir into a tar.gz at archivePath.
func createArchive(archivePath, sourceDir string, files []string) (err error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, name := range files {
		if err := addFileToArchive(tw, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func addFileToArchive(tw *tar.Writer, path, nameInArchive string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if err := tw.WriteHeader(&tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}
