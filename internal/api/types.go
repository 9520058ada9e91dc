package api

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// timeLayout is the service's timestamp format.
const timeLayout = time.RFC1123Z

// Time is a service timestamp. It decodes from the RFC 1123 form the service
// uses; an empty string decodes to the zero time.
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		return fmt.Errorf("api: parsing timestamp %q: %w", s, err)
	}

	t.Time = parsed.UTC()

	return nil
}

// Metadata describes a file or folder. Contents is only populated by
// ListFolder.
type Metadata struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Path           string      `json:"path"`
	IsFolder       bool        `json:"isfolder"`
	FolderID       uint64      `json:"folderid"`
	FileID         uint64      `json:"fileid"`
	ParentFolderID uint64      `json:"parentfolderid"`
	Size           int64       `json:"size"`
	ContentType    string      `json:"contenttype"`
	Hash           uint64      `json:"hash"`
	Created        Time        `json:"created"`
	Modified       Time        `json:"modified"`
	Contents       []*Metadata `json:"contents"`
}

// User is the authenticated account.
type User struct {
	UserID        uint64 `json:"userid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailverified"`
	Premium       bool   `json:"premium"`
	Quota         int64  `json:"quota"`
	UsedQuota     int64  `json:"usedquota"`
	Language      string `json:"language"`
}

// FileLink is a short-lived download address for a file, served from any of
// Hosts. NEVER log it: the address is pre-authenticated.
type FileLink struct {
	Hosts   []string `json:"hosts"`
	Path    string   `json:"path"`
	Expires Time     `json:"expires"`
}

// URL returns the download address on the first host. An empty scheme means
// https.
func (l FileLink) URL(scheme string) (*url.URL, error) {
	if len(l.Hosts) == 0 {
		return nil, fmt.Errorf("api: file link has no hosts")
	}

	if l.Path == "" {
		return nil, fmt.Errorf("api: file link has no path")
	}

	if scheme == "" {
		scheme = "https"
	}

	return &url.URL{Scheme: scheme, Host: l.Hosts[0], Path: l.Path}, nil
}

// DeleteStats counts what a recursive folder delete removed.
type DeleteStats struct {
	Files   int `json:"deletedfiles"`
	Folders int `json:"deletedfolders"`
}

// Checksums holds the digests checksumfile reports, hex encoded.
type Checksums struct {
	SHA1     string    `json:"sha1"`
	SHA256   string    `json:"sha256"`
	MD5      string    `json:"md5"`
	Metadata *Metadata `json:"metadata"`
}
