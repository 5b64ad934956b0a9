package database

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const (
	backupTimeLayout = "20060102_150405"
	backupSuffix     = "_gasquota.db.zip"
)

var backupNameRe = regexp.MustCompile(`^(\d{8}_\d{6})_gasquota\.db\.zip$`)

func (d *Database) BackupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes a zipped snapshot of the database into BackupDir.
func (d *Database) Backup(ctx context.Context) error {
	_, err := d.backupAt(ctx, time.Now())
	return err
}

func (d *Database) backupAt(ctx context.Context, now time.Time) (string, error) {
	dir := d.BackupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	zipPath := filepath.Join(dir, now.Format(backupTimeLayout)+backupSuffix)
	snapshot := zipPath + ".tmp"
	defer os.Remove(snapshot)

	// VACUUM INTO gives a consistent copy while the service keeps writing
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return "", fmt.Errorf("snapshot database into %s: %w", snapshot, err)
	}
	if err := zipFile(snapshot, zipPath, filepath.Base(d.path)); err != nil {
		os.Remove(zipPath)
		return "", err
	}

	d.logger.Info("database backup complete", slog.String("filename", zipPath))
	return zipPath, nil
}

// zipFile compresses src into a new archive at dst holding a single entry.
func zipFile(src, dst, entry string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = entry
	header.Method = zip.Deflate

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	zw := zip.NewWriter(out)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write zip entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return nil
}

// PurgeBackups removes backups older than retentionDays. Files in the backup
// directory that were not written by Backup are left alone.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	n, err := d.purgeBackupsBefore(ctx, time.Now().AddDate(0, 0, -retentionDays))
	if err != nil {
		return err
	}
	d.logger.Info("backup purge complete", slog.Int("removed", n))
	return nil
}

func (d *Database) purgeBackupsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	dir := d.BackupDir()
	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		m := backupNameRe.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		taken, err := time.ParseInLocation(backupTimeLayout, m[1], time.Local)
		if err != nil {
			d.logger.Debug("skipping backup with bad timestamp", slog.String("filename", f.Name()))
			continue
		}
		if !taken.Before(cutoff) {
			continue
		}
		p := filepath.Join(dir, f.Name())
		if err := os.Remove(p); err != nil {
			return removed, fmt.Errorf("remove old backup %s: %w", p, err)
		}
		d.logger.Debug("deleted old backup", slog.String("path", p))
		removed++
	}
	return removed, nil
}
