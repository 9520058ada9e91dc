package main

import (
	"context"
	"crypto/sha1" //nolint:gosec // the service reports SHA-1; integrity check only
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/tonimelisma/pcloud-go/internal/api"
	"github.com/tonimelisma/pcloud-go/internal/task"
)

// errChecksumMismatch is returned when a downloaded file does not match the
// server's digest.
var errChecksumMismatch = errors.New("checksum mismatch")

// verifyDownload compares local against the server checksum of remote,
// preferring SHA-256 when the region reports it.
func verifyDownload(ctx context.Context, sess *Session, remote, local string) error {
	sums, err := task.Call[api.Checksums](sess.Ctrl, api.ChecksumFile{Path: remote}, "").Run(ctx)
	if err != nil {
		return fmt.Errorf("fetching checksum of %q: %w", remote, err)
	}

	want, h := sums.SHA256, sha256.New()
	if want == "" {
		want, h = sums.SHA1, sha1.New() //nolint:gosec // see import
	}

	got, err := hashFile(local, h)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, want) {
		return fmt.Errorf("%s: %w (local %s, remote %s)", local, errChecksumMismatch, got, want)
	}

	return nil
}

// hashFile returns the hex digest of the file at path.
func hashFile(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
