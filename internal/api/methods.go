package api

import (
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/pcloud-go/internal/netop"
	"github.com/tonimelisma/pcloud-go/internal/task"
)

// Compile-time checks that every method satisfies task.Method.
var (
	_ task.Method[User]        = UserInfo{}
	_ task.Method[*Metadata]   = ListFolder{}
	_ task.Method[*Metadata]   = CreateFolder{}
	_ task.Method[*Metadata]   = DeleteFile{}
	_ task.Method[*Metadata]   = DeleteFolder{}
	_ task.Method[DeleteStats] = DeleteFolderRecursive{}
	_ task.Method[*Metadata]   = Stat{}
	_ task.Method[[]*Metadata] = UploadFile{}
	_ task.Method[FileLink]    = GetFileLink{}
	_ task.Method[Checksums]   = ChecksumFile{}
)

type metadataResponse struct {
	Metadata *Metadata `json:"metadata"`
}

func parseMetadata(doc netop.Document) (*Metadata, error) {
	var resp metadataResponse
	if err := decode(doc, &resp); err != nil {
		return nil, err
	}

	if resp.Metadata == nil {
		return nil, &netop.ParseError{Size: len(doc.Raw()), Err: errMissing("metadata")}
	}

	return resp.Metadata, nil
}

// UserInfo returns the authenticated account.
type UserInfo struct{}

func (UserInfo) Command() netop.Command { return netop.NewCommand("userinfo") }

func (UserInfo) RequiresAuth() bool { return true }

func (UserInfo) Parse(doc netop.Document) (User, error) {
	var u User
	if err := decode(doc, &u); err != nil {
		return User{}, err
	}

	return u, nil
}

// ListFolder lists a folder. The result's Contents holds the children (and,
// when Recursive, their descendants).
type ListFolder struct {
	Path      string
	Recursive bool
}

func (m ListFolder) Command() netop.Command {
	cmd := netop.NewCommand("listfolder", netop.String("path", NormalizePath(m.Path)))
	if m.Recursive {
		cmd = cmd.With(netop.Bool("recursive", true))
	}

	return cmd
}

func (ListFolder) RequiresAuth() bool { return true }

func (ListFolder) Parse(doc netop.Document) (*Metadata, error) {
	return parseMetadata(doc)
}

// CreateFolder creates a folder. With IfNotExists an existing folder is
// returned instead of failing with ErrAlreadyExists.
type CreateFolder struct {
	Path        string
	IfNotExists bool
}

func (m CreateFolder) Command() netop.Command {
	method := "createfolder"
	if m.IfNotExists {
		method = "createfolderifnotexists"
	}

	return netop.NewCommand(method, netop.String("path", NormalizePath(m.Path)))
}

func (CreateFolder) RequiresAuth() bool { return true }

func (CreateFolder) Parse(doc netop.Document) (*Metadata, error) {
	return parseMetadata(doc)
}

// DeleteFile deletes a file and returns its last metadata.
type DeleteFile struct {
	Path string
}

func (m DeleteFile) Command() netop.Command {
	return netop.NewCommand("deletefile", netop.String("path", NormalizePath(m.Path)))
}

func (DeleteFile) RequiresAuth() bool { return true }

func (DeleteFile) Parse(doc netop.Document) (*Metadata, error) {
	return parseMetadata(doc)
}

// DeleteFolder deletes an empty folder.
type DeleteFolder struct {
	Path string
}

func (m DeleteFolder) Command() netop.Command {
	return netop.NewCommand("deletefolder", netop.String("path", NormalizePath(m.Path)))
}

func (DeleteFolder) RequiresAuth() bool { return true }

func (DeleteFolder) Parse(doc netop.Document) (*Metadata, error) {
	return parseMetadata(doc)
}

// DeleteFolderRecursive deletes a folder and everything below it.
type DeleteFolderRecursive struct {
	Path string
}

func (m DeleteFolderRecursive) Command() netop.Command {
	return netop.NewCommand("deletefolderrecursive", netop.String("path", NormalizePath(m.Path)))
}

func (DeleteFolderRecursive) RequiresAuth() bool { return true }

func (DeleteFolderRecursive) Parse(doc netop.Document) (DeleteStats, error) {
	var st DeleteStats
	if err := decode(doc, &st); err != nil {
		return DeleteStats{}, err
	}

	return st, nil
}

// Stat returns the metadata of a file or folder.
type Stat struct {
	Path string
}

func (m Stat) Command() netop.Command {
	return netop.NewCommand("stat", netop.String("path", NormalizePath(m.Path)))
}

func (Stat) RequiresAuth() bool { return true }

func (Stat) Parse(doc netop.Document) (*Metadata, error) {
	return parseMetadata(doc)
}

// UploadFile stores the request body as Filename inside Folder. NoPartial
// keeps an interrupted upload from leaving a truncated file behind;
// RenameIfExists picks a fresh name instead of overwriting.
type UploadFile struct {
	Folder         string
	Filename       string
	NoPartial      bool
	RenameIfExists bool
}

func (m UploadFile) Command() netop.Command {
	cmd := netop.NewCommand("uploadfile",
		netop.String("path", NormalizePath(m.Folder)),
		netop.String("filename", norm.NFC.String(m.Filename)),
	)

	if m.NoPartial {
		cmd = cmd.With(netop.Bool("nopartial", true))
	}

	if m.RenameIfExists {
		cmd = cmd.With(netop.Bool("renameifexists", true))
	}

	return cmd
}

func (UploadFile) RequiresAuth() bool { return true }

type uploadResponse struct {
	FileIDs  []uint64    `json:"fileids"`
	Metadata []*Metadata `json:"metadata"`
}

func (UploadFile) Parse(doc netop.Document) ([]*Metadata, error) {
	var resp uploadResponse
	if err := decode(doc, &resp); err != nil {
		return nil, err
	}

	return resp.Metadata, nil
}

// GetFileLink returns a download address for a file.
type GetFileLink struct {
	Path          string
	ForceDownload bool
}

func (m GetFileLink) Command() netop.Command {
	cmd := netop.NewCommand("getfilelink", netop.String("path", NormalizePath(m.Path)))
	if m.ForceDownload {
		cmd = cmd.With(netop.Bool("forcedownload", true))
	}

	return cmd
}

func (GetFileLink) RequiresAuth() bool { return true }

func (GetFileLink) Parse(doc netop.Document) (FileLink, error) {
	var l FileLink
	if err := decode(doc, &l); err != nil {
		return FileLink{}, err
	}

	return l, nil
}

// ChecksumFile returns the server-side digests of a file. Which digests are
// present depends on the data region.
type ChecksumFile struct {
	Path string
}

func (m ChecksumFile) Command() netop.Command {
	return netop.NewCommand("checksumfile", netop.String("path", NormalizePath(m.Path)))
}

func (ChecksumFile) RequiresAuth() bool { return true }

func (ChecksumFile) Parse(doc netop.Document) (Checksums, error) {
	var c Checksums
	if err := decode(doc, &c); err != nil {
		return Checksums{}, err
	}

	if c.SHA1 == "" && c.SHA256 == "" {
		return Checksums{}, &netop.ParseError{Size: len(doc.Raw()), Err: errMissing("sha1")}
	}

	return c, nil
}
