package api

import (
	"context"
	"net/url"

	"github.com/tonimelisma/pcloud-go/internal/task"
)

// FileLinkAddress returns an AddressProvider that resolves remotePath to a
// download address with a getfilelink call on c. The call is cancelled if
// the download task is cancelled while it is in flight. scheme selects the
// address scheme ("" means https).
func FileLinkAddress(c *task.Controller, remotePath, scheme string) task.AddressProvider {
	return func(ctx context.Context, resolved func(*url.URL, error)) {
		t := task.Call[FileLink](c, GetFileLink{Path: remotePath, ForceDownload: true}, "")

		stop := context.AfterFunc(ctx, t.Cancel)

		t.SetCompletionHandler(nil, func(l FileLink, err error) {
			stop()

			if err != nil {
				resolved(nil, err)
				return
			}

			resolved(l.URL(scheme))
		})

		t.Start()
	}
}
