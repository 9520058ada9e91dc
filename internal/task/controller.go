package task

import (
	"log/slog"

	"github.com/tonimelisma/pcloud-go/internal/netop"
)

// Controller builds tasks. After construction it holds only configuration,
// so concurrent use needs no synchronization.
type Controller struct {
	hosts    HostProvider
	auth     Authenticator
	dispatch Dispatchers
	tempDir  string
	logger   *slog.Logger
}

// NewController creates a Controller. auth may be nil, in which case methods
// that require authentication fail with ErrUnauthenticated.
func NewController(hosts HostProvider, auth Authenticator, d Dispatchers, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		hosts:    hosts,
		auth:     auth,
		dispatch: d,
		logger:   logger,
	}
}

// WithTempDir returns a copy of c whose downloads stage into dir.
func (c *Controller) WithTempDir(dir string) *Controller {
	cp := *c
	cp.tempDir = dir

	return &cp
}

// WithAuth returns a copy of c using auth.
func (c *Controller) WithAuth(auth Authenticator) *Controller {
	cp := *c
	cp.auth = auth

	return &cp
}

// command builds the method's command, appending authentication parameters
// after the method's own when required.
func (c *Controller) command(cmd netop.Command, requiresAuth bool) (netop.Command, error) {
	if !requiresAuth {
		return cmd, nil
	}

	if c.auth == nil {
		return netop.Command{}, ErrUnauthenticated
	}

	return cmd.With(c.auth.AuthParams()...), nil
}

// host returns explicit if non-empty, else the provider's default.
func (c *Controller) host(explicit string) string {
	if explicit != "" || c.hosts == nil {
		return explicit
	}

	return c.hosts.DefaultHost()
}

// Call builds a task for a request/response method. host may be empty to
// use the Controller's default host. The task is not started.
func Call[T any](c *Controller, m Method[T], host string) *Task[T] {
	cmd, err := c.command(m.Command(), m.RequiresAuth())
	if err != nil {
		return failedTask[T](err)
	}

	op := c.dispatch.Call(netop.CallRequest{Command: cmd, Host: c.host(host)})

	c.logger.Debug("call task created",
		slog.String("method", cmd.Method),
		slog.String("op", op.ID().String()),
	)

	return newTask(op, m.Parse)
}

// Upload builds a task for a method whose request carries body.
func Upload[T any](c *Controller, m Method[T], body netop.Body, host string) *Task[T] {
	cmd, err := c.command(m.Command(), m.RequiresAuth())
	if err != nil {
		return failedTask[T](err)
	}

	op := c.dispatch.Upload(netop.UploadRequest{Command: cmd, Host: c.host(host), Body: body})

	c.logger.Debug("upload task created",
		slog.String("method", cmd.Method),
		slog.String("op", op.ID().String()),
	)

	return newTask(op, m.Parse)
}

// Download builds a task that resolves its address through addr and writes
// the file where dest says. The dispatcher is not invoked until the address
// resolves.
func (c *Controller) Download(addr AddressProvider, dest netop.DestinationFunc) *DownloadTask {
	return &DownloadTask{
		resolve:  addr,
		dest:     dest,
		tempDir:  c.tempDir,
		dispatch: c.dispatch.Download,
		logger:   c.logger,
	}
}
