package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/pcloud-go/internal/api"
	"github.com/tonimelisma/pcloud-go/internal/netop"
	"github.com/tonimelisma/pcloud-go/internal/task"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List files and folders",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}

	cmd.Flags().BoolP("recursive", "R", false, "list subfolders recursively")

	return cmd
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <remote-path>... <local-dir>",
		Short: "Download files into a local directory",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runGet,
	}

	cmd.Flags().Bool("verify", false, "compare each download against the server checksum")

	return cmd
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path>... <remote-folder>",
		Short: "Upload files into a remote folder",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runPut,
	}

	cmd.Flags().Bool("rename", false, "keep both files when the name is taken")

	return cmd
}

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or folder",
		Long: `Delete a file or folder on pCloud. Deleted items go to the pCloud trash.

Folder deletion is recursive: all contents will be deleted.
Use --recursive (-r) to confirm intent when deleting folders.`,
		Args: cobra.ExactArgs(1),
		RunE: runRm,
	}

	cmd.Flags().BoolP("recursive", "r", false, "confirm recursive folder deletion")

	return cmd
}

func newMkdirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}

	cmd.Flags().BoolP("parents", "p", false, "create missing parents; no error if the folder exists")

	return cmd
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Display file or folder metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

// withSession opens a session for the command, runs fn, then closes it.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, cc *CLIContext, sess *Session) error) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	sess, err := openSession(ctx, cc)
	if err != nil {
		return err
	}
	defer sess.Close()

	return fn(ctx, cc, sess)
}

// itemJSON is the JSON schema for one entry of `ls --json` and `stat --json`.
type itemJSON struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Path        string     `json:"path,omitempty"`
	IsFolder    bool       `json:"is_folder"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type,omitempty"`
	Created     string     `json:"created,omitempty"`
	Modified    string     `json:"modified,omitempty"`
	Contents    []itemJSON `json:"contents,omitempty"`
}

func toItemJSON(m *api.Metadata) itemJSON {
	out := itemJSON{
		ID:          m.ID,
		Name:        m.Name,
		Path:        m.Path,
		IsFolder:    m.IsFolder,
		Size:        m.Size,
		ContentType: m.ContentType,
		Created:     formatISO(m.Created.Time),
		Modified:    formatISO(m.Modified.Time),
	}

	for _, c := range m.Contents {
		out.Contents = append(out.Contents, toItemJSON(c))
	}

	return out
}

func formatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

// sortEntries orders folders before files, then by name.
func sortEntries(items []*api.Metadata) {
	slices.SortFunc(items, func(a, b *api.Metadata) int {
		if a.IsFolder != b.IsFolder {
			if a.IsFolder {
				return -1
			}

			return 1
		}

		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}

func runLs(cmd *cobra.Command, args []string) error {
	remotePath := "/"
	if len(args) > 0 {
		remotePath = args[0]
	}

	recursive, err := cmd.Flags().GetBool("recursive")
	if err != nil {
		return err
	}

	return withSession(cmd, func(ctx context.Context, cc *CLIContext, sess *Session) error {
		cc.Logger.Debug("ls", "path", remotePath, "recursive", recursive)

		folder, err := task.Call[*api.Metadata](sess.Ctrl, api.ListFolder{Path: remotePath, Recursive: recursive}, "").Run(ctx)
		if err != nil {
			return fmt.Errorf("listing %q: %w", remotePath, err)
		}

		if cc.Flags.JSON {
			entries := make([]itemJSON, 0, len(folder.Contents))
			for _, c := range folder.Contents {
				entries = append(entries, toItemJSON(c))
			}

			return printJSON(cc.Out, entries)
		}

		var rows [][]string

		appendRows(&rows, folder.Contents, "", time.Now())
		printTable(cc.Out, []string{"NAME", "SIZE", "MODIFIED"}, rows)

		return nil
	})
}

// appendRows flattens a listing into table rows, prefixing nested entries
// with their folder path.
func appendRows(rows *[][]string, items []*api.Metadata, prefix string, now time.Time) {
	sortEntries(items)

	for _, it := range items {
		name := prefix + it.Name
		size := formatSize(it.Size)

		if it.IsFolder {
			name += "/"
			size = "-"
		}

		*rows = append(*rows, []string{name, size, formatTime(it.Modified.Time, now)})

		if it.IsFolder && len(it.Contents) > 0 {
			appendRows(rows, it.Contents, name, now)
		}
	}
}

func runStat(cmd *cobra.Command, args []string) error {
	remotePath := args[0]

	return withSession(cmd, func(ctx context.Context, cc *CLIContext, sess *Session) error {
		cc.Logger.Debug("stat", "path", remotePath)

		m, err := task.Call[*api.Metadata](sess.Ctrl, api.Stat{Path: remotePath}, "").Run(ctx)
		if err != nil {
			return fmt.Errorf("stat %q: %w", remotePath, err)
		}

		if cc.Flags.JSON {
			return printJSON(cc.Out, toItemJSON(m))
		}

		itemType := "file"
		if m.IsFolder {
			itemType = "folder"
		}

		fmt.Fprintf(cc.Out, "Name:     %s\n", m.Name)
		fmt.Fprintf(cc.Out, "Type:     %s\n", itemType)

		if !m.IsFolder {
			fmt.Fprintf(cc.Out, "Size:     %s (%d bytes)\n", formatSize(m.Size), m.Size)
		}

		fmt.Fprintf(cc.Out, "Modified: %s\n", m.Modified.Format("2006-01-02 15:04:05 UTC"))
		fmt.Fprintf(cc.Out, "Created:  %s\n", m.Created.Format("2006-01-02 15:04:05 UTC"))
		fmt.Fprintf(cc.Out, "ID:       %s\n", m.ID)

		if m.ContentType != "" {
			fmt.Fprintf(cc.Out, "MIME:     %s\n", m.ContentType)
		}

		return nil
	})
}

// mkdirJSONOutput is the JSON output schema for the mkdir command.
type mkdirJSONOutput struct {
	Created string `json:"created"`
	ID      string `json:"id"`
}

func runMkdir(cmd *cobra.Command, args []string) error {
	remotePath := api.NormalizePath(args[0])
	if remotePath == "/" {
		return usageError{msg: "cannot create the root folder"}
	}

	parents, err := cmd.Flags().GetBool("parents")
	if err != nil {
		return err
	}

	return withSession(cmd, func(ctx context.Context, cc *CLIContext, sess *Session) error {
		cc.Logger.Debug("mkdir", "path", remotePath, "parents", parents)

		var m *api.Metadata

		if parents {
			m, err = mkdirAll(ctx, sess.Ctrl, remotePath)
		} else {
			m, err = task.Call[*api.Metadata](sess.Ctrl, api.CreateFolder{Path: remotePath}, "").Run(ctx)
		}

		if err != nil {
			return fmt.Errorf("creating folder %q: %w", remotePath, err)
		}

		if cc.Flags.JSON {
			return printJSON(cc.Out, mkdirJSONOutput{Created: remotePath, ID: m.ID})
		}

		cc.Statusf("Created %s\n", remotePath)

		return nil
	})
}

// mkdirAll creates every segment of p that does not exist yet and returns
// the metadata of the last one.
func mkdirAll(ctx context.Context, ctrl *task.Controller, p string) (*api.Metadata, error) {
	var (
		built string
		m     *api.Metadata
		err   error
	)

	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		built += "/" + seg

		m, err = task.Call[*api.Metadata](ctrl, api.CreateFolder{Path: built, IfNotExists: true}, "").Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating %q: %w", built, err)
		}
	}

	return m, nil
}

// rmJSONOutput is the JSON output schema for the rm command.
type rmJSONOutput struct {
	Deleted        string `json:"deleted"`
	DeletedFiles   int    `json:"deleted_files,omitempty"`
	DeletedFolders int    `json:"deleted_folders,omitempty"`
}

func runRm(cmd *cobra.Command, args []string) error {
	remotePath := api.NormalizePath(args[0])
	if remotePath == "/" {
		return usageError{msg: "refusing to delete the root folder"}
	}

	recursive, err := cmd.Flags().GetBool("recursive")
	if err != nil {
		return err
	}

	return withSession(cmd, func(ctx context.Context, cc *CLIContext, sess *Session) error {
		cc.Logger.Debug("rm", "path", remotePath)

		item, err := task.Call[*api.Metadata](sess.Ctrl, api.Stat{Path: remotePath}, "").Run(ctx)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", remotePath, err)
		}

		if item.IsFolder && !recursive {
			return fmt.Errorf("cannot delete folder %q without --recursive (-r) flag", remotePath)
		}

		out := rmJSONOutput{Deleted: remotePath}

		if item.IsFolder {
			stats, err := task.Call[api.DeleteStats](sess.Ctrl, api.DeleteFolderRecursive{Path: remotePath}, "").Run(ctx)
			if err != nil {
				return fmt.Errorf("deleting %q: %w", remotePath, err)
			}

			out.DeletedFiles, out.DeletedFolders = stats.Files, stats.Folders
		} else {
			if _, err := task.Call[*api.Metadata](sess.Ctrl, api.DeleteFile{Path: remotePath}, "").Run(ctx); err != nil {
				return fmt.Errorf("deleting %q: %w", remotePath, err)
			}

			out.DeletedFiles = 1
		}

		cc.Logger.Debug("delete complete", "path", remotePath,
			"files", out.DeletedFiles, "folders", out.DeletedFolders)

		if cc.Flags.JSON {
			return printJSON(cc.Out, out)
		}

		cc.Statusf("Deleted %s\n", remotePath)

		return nil
	})
}

// transferError summarizes a batch where some transfers failed.
type transferError struct {
	verb   string
	failed int64
	total  int
}

func (e *transferError) Error() string {
	return fmt.Sprintf("%s failed for %d of %d files", e.verb, e.failed, e.total)
}

// runBatch runs fn for every item with at most limit in flight. A failed
// item is reported and does not stop the others.
func runBatch(
	ctx context.Context, cc *CLIContext, verb string, items []string, limit int,
	fn func(ctx context.Context, i int, item string) error,
) error {
	var (
		g      errgroup.Group
		failed atomic.Int64
	)

	g.SetLimit(max(limit, 1))

	for i, item := range items {
		g.Go(func() error {
			if err := fn(ctx, i, item); err != nil {
				failed.Add(1)
				cc.Logger.Warn(verb+" failed", "item", item, "error", err)
				cc.Statusf("%s %s: %v\n", verb, item, err)
			}

			return nil
		})
	}

	_ = g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if n := failed.Load(); n > 0 {
		return &transferError{verb: verb, failed: n, total: len(items)}
	}

	return nil
}

// getJSONOutput is one entry of `get --json`.
type getJSONOutput struct {
	Remote string `json:"remote"`
	Local  string `json:"local"`
	Size   int64  `json:"size"`
}

func runGet(cmd *cobra.Command, args []string) error {
	outDir := args[len(args)-1]
	args = args[:len(args)-1]

	verify, err := cmd.Flags().GetBool("verify")
	if err != nil {
		return err
	}

	if fi, err := os.Stat(outDir); err != nil || !fi.IsDir() {
		return usageError{msg: fmt.Sprintf("output directory %q does not exist", outDir)}
	}

	return withSession(cmd, func(ctx context.Context, cc *CLIContext, sess *Session) error {
		results := make([]getJSONOutput, len(args))

		err := runBatch(ctx, cc, "download", args, cc.Cfg.Transfers.Parallel, func(ctx context.Context, i int, remote string) error {
			local, size, err := downloadOne(ctx, cc, sess, remote, outDir, verify)
			if err != nil {
				return err
			}

			results[i] = getJSONOutput{Remote: remote, Local: local, Size: size}

			return nil
		})

		if cc.Flags.JSON {
			done := slices.DeleteFunc(results, func(r getJSONOutput) bool { return r.Local == "" })
			if jsonErr := printJSON(cc.Out, done); jsonErr != nil {
				return jsonErr
			}
		}

		return err
	})
}

// downloadOne resolves remote to a file link and streams it into outDir.
// With verify the file is removed again if its digest does not match.
func downloadOne(ctx context.Context, cc *CLIContext, sess *Session, remote, outDir string, verify bool) (string, int64, error) {
	name := path.Base(api.NormalizePath(remote))
	if name == "/" {
		return "", 0, errors.New("cannot download the root folder")
	}

	target := filepath.Join(outDir, name)

	cc.Logger.Debug("get", "remote_path", remote, "local_path", target)

	dt := sess.Ctrl.Download(
		api.FileLinkAddress(sess.Ctrl, remote, sess.Scheme),
		func(string) (string, error) { return target, nil },
	)

	local, err := dt.Run(ctx)
	if err != nil {
		return "", 0, err
	}

	if verify {
		if err := verifyDownload(ctx, sess, remote, local); err != nil {
			if rmErr := os.Remove(local); rmErr != nil {
				cc.Logger.Warn("removing unverified download", "local_path", local, "error", rmErr)
			}

			return "", 0, err
		}
	}

	fi, err := os.Stat(local)
	if err != nil {
		return "", 0, fmt.Errorf("stat after download: %w", err)
	}

	cc.Logger.Debug("download complete", "local_path", local, "bytes", fi.Size())
	cc.Statusf("Downloaded %s (%s)\n", local, formatSize(fi.Size()))

	return local, fi.Size(), nil
}

// putJSONOutput is one entry of `put --json`.
type putJSONOutput struct {
	Local  string `json:"local"`
	Remote string `json:"remote"`
	ID     string `json:"id"`
	Size   int64  `json:"size"`
}

func runPut(cmd *cobra.Command, args []string) error {
	folder := api.NormalizePath(args[len(args)-1])
	args = args[:len(args)-1]

	rename, err := cmd.Flags().GetBool("rename")
	if err != nil {
		return err
	}

	for _, local := range args {
		fi, err := os.Stat(local)
		if err != nil {
			return fmt.Errorf("stat %s: %w", local, err)
		}

		if fi.IsDir() {
			return usageError{msg: fmt.Sprintf("%s is a directory; only files can be uploaded", local)}
		}
	}

	return withSession(cmd, func(ctx context.Context, cc *CLIContext, sess *Session) error {
		results := make([]putJSONOutput, len(args))

		err := runBatch(ctx, cc, "upload", args, cc.Cfg.Transfers.Parallel, func(ctx context.Context, i int, local string) error {
			m, err := uploadOne(ctx, cc, sess, local, folder, rename)
			if err != nil {
				return err
			}

			results[i] = putJSONOutput{Local: local, Remote: path.Join(folder, m.Name), ID: m.ID, Size: m.Size}

			return nil
		})

		if cc.Flags.JSON {
			done := slices.DeleteFunc(results, func(r putJSONOutput) bool { return r.Remote == "" })
			if jsonErr := printJSON(cc.Out, done); jsonErr != nil {
				return jsonErr
			}
		}

		return err
	})
}

// uploadOne uploads a single local file into folder.
func uploadOne(ctx context.Context, cc *CLIContext, sess *Session, local, folder string, rename bool) (*api.Metadata, error) {
	name := filepath.Base(local)

	cc.Logger.Debug("put", "local_path", local, "folder", folder)

	method := api.UploadFile{Folder: folder, Filename: name, NoPartial: true, RenameIfExists: rename}

	items, err := task.Upload[[]*api.Metadata](sess.Ctrl, method, netop.FileBody(local), "").Run(ctx)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("upload of %s returned no metadata", local)
	}

	m := items[0]

	cc.Logger.Debug("upload complete", "remote_path", path.Join(folder, m.Name), "id", m.ID)
	cc.Statusf("Uploaded %s to %s (%s)\n", local, path.Join(folder, m.Name), formatSize(m.Size))

	return m, nil
}
