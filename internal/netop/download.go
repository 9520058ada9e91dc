package netop

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// DownloadOperation writes the response body to a temporary file and, on
// success, moves it to the location chosen by the request's DestinationFunc.
// Its result is the final path.
type DownloadOperation = Operation[string]

// downloadDirPerms is used when creating the destination's parent directory.
const downloadDirPerms = 0o700

// errNoDestination is returned when a DownloadRequest has no DestinationFunc.
var errNoDestination = errors.New("netop: download request has no destination")

// filePayload owns the temporary file the download streams into. The file is
// created lazily on the first chunk (or at completion for empty bodies).
type filePayload struct {
	tempDir string
	dest    DestinationFunc
	f       *os.File
}

func (fp *filePayload) open() error {
	if fp.f != nil {
		return nil
	}

	f, err := os.CreateTemp(fp.tempDir, "pcloud-download-*.partial")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	fp.f = f

	return nil
}

func (fp *filePayload) append(p []byte) error {
	if err := fp.open(); err != nil {
		return err
	}

	_, err := fp.f.Write(p)

	return err
}

func (fp *filePayload) build() (string, error) {
	if fp.dest == nil {
		fp.discard()
		return "", errNoDestination
	}

	if err := fp.open(); err != nil {
		return "", fmt.Errorf("netop: %w", err)
	}

	tempPath := fp.f.Name()

	// Flush before handing the path out so the destination function and the
	// rename both see the complete payload.
	if err := fp.f.Sync(); err != nil {
		fp.discard()
		return "", fmt.Errorf("netop: syncing download: %w", err)
	}

	if err := fp.f.Close(); err != nil {
		fp.f = nil
		os.Remove(tempPath)

		return "", fmt.Errorf("netop: closing download: %w", err)
	}

	fp.f = nil

	finalPath, err := fp.dest(tempPath)
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("netop: choosing download destination: %w", err)
	}

	if err := moveIntoPlace(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", err
	}

	if _, err := os.Stat(finalPath); err != nil {
		return "", fmt.Errorf("netop: verifying download at %s: %w", finalPath, err)
	}

	return finalPath, nil
}

func (fp *filePayload) discard() {
	if fp.f == nil {
		return
	}

	name := fp.f.Name()
	fp.f.Close()
	os.Remove(name)
	fp.f = nil
}

// NewDownload creates a suspended DownloadOperation bound through bind.
func NewDownload(req DownloadRequest, bind Binder, logger *slog.Logger) *DownloadOperation {
	label := "download"
	if req.Address != nil {
		// Download addresses are pre-authenticated; only the host is logged.
		label = req.Address.Host
	}

	return newOperation[string]("download", label, &filePayload{
		tempDir: req.TempDir,
		dest:    req.Destination,
	}, bind, logger)
}

// moveIntoPlace renames src to dst. When the rename fails (typically because
// the temp dir is on another filesystem), the payload is copied into a
// sibling temp file of dst, synced, and renamed over dst, so dst is never
// observed half-written.
func moveIntoPlace(src, dst string) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, downloadDirPerms); err != nil {
		return fmt.Errorf("netop: creating directory %s: %w", dir, err)
	}

	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}

	if err := copyIntoPlace(src, dst); err != nil {
		return fmt.Errorf("netop: moving download to %s: %w", dst, errors.Join(renameErr, err))
	}

	os.Remove(src)

	return nil
}

func copyIntoPlace(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-*.partial")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return err
	}

	success = true

	return nil
}
