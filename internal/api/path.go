package api

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath returns p as an absolute, cleaned, NFC-normalized remote
// path. Names are compared byte-wise remotely.
func NormalizePath(p string) string {
	p = norm.NFC.String(strings.TrimSpace(p))

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return path.Clean(p)
}
