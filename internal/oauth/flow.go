// Package oauth runs the implicit-grant authorization flow: it presents the
// authorization page through a View, intercepts the navigation to the
// registered redirect address, and turns the redirect into a Result.
package oauth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"sync"
)

// ErrAlreadyStarted is returned by Run on a Flow that was already started.
var ErrAlreadyStarted = errors.New("oauth: flow already started")

// View presents the authorization page. It reports every navigation the page
// attempts through onNavigate, which returns true when the Flow consumed the
// navigation and the page must not follow it. onCancel reports that the user
// closed the page. Dismiss is called exactly once when the Flow ends.
type View interface {
	PresentAuthorization(authURL string, onNavigate func(*url.URL) bool, onCancel func())
	Dismiss()
}

// TokenSaver persists a granted token before the Flow reports Success.
type TokenSaver func(token string, userID uint64) error

type flowState int

const (
	flowIdle flowState = iota
	flowAwaiting
	// flowInterpreting: a redirect has claimed the Flow and is being read.
	flowInterpreting
	flowDone
)

// Flow is a single-use authorization flow. It reports exactly one Result.
type Flow struct {
	clientID string
	authURL  string
	redirect *url.URL
	view     View
	save     TokenSaver
	logger   *slog.Logger

	mu         sync.Mutex
	state      flowState
	completion func(Result)
}

// NewFlow creates a Flow for clientID. save may be nil, in which case tokens
// are reported but not persisted.
func NewFlow(clientID string, view View, save TokenSaver, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}

	return &Flow{
		clientID: clientID,
		authURL:  AuthorizeURL(clientID),
		redirect: RedirectURL(clientID),
		view:     view,
		save:     save,
		logger:   logger,
	}
}

// AuthURL returns the address the Flow presents.
func (f *Flow) AuthURL() string {
	return f.authURL
}

// Start presents the authorization page. completion receives the Result,
// after the view has been dismissed. Reports false if the Flow was already
// started, in which case completion is dropped.
func (f *Flow) Start(completion func(Result)) bool {
	f.mu.Lock()
	if f.state != flowIdle {
		f.mu.Unlock()
		return false
	}

	f.state = flowAwaiting
	f.completion = completion
	f.mu.Unlock()

	f.logger.Info("presenting authorization page",
		slog.String("client_id", f.clientID),
		slog.String("redirect", f.redirect.String()),
	)

	f.view.PresentAuthorization(f.authURL, f.navigate, f.cancel)

	return true
}

// Run starts the Flow and blocks until it ends. If ctx is done first, the
// Flow is cancelled and ctx's error returned alongside Cancel.
func (f *Flow) Run(ctx context.Context) (Result, error) {
	ch := make(chan Result, 1)

	if !f.Start(func(r Result) { ch <- r }) {
		return nil, ErrAlreadyStarted
	}

	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		f.Cancel()
		return Cancel{}, ctx.Err()
	}
}

// Cancel ends an awaiting Flow with Cancel, as if the user closed the page.
// It does nothing once a redirect has been received or the Flow has ended.
func (f *Flow) Cancel() {
	f.cancel()
}

func (f *Flow) cancel() {
	if f.finish(flowAwaiting, Cancel{}) {
		f.logger.Info("authorization cancelled")
	}
}

// navigate inspects one navigation attempt. Navigations to anything but the
// redirect address pass through.
func (f *Flow) navigate(u *url.URL) bool {
	if !isRedirect(u, f.redirect) {
		f.logger.Debug("passing navigation through", slog.String("host", hostOf(u)))
		return false
	}

	f.mu.Lock()
	if f.state != flowAwaiting {
		f.mu.Unlock()
		f.logger.Debug("ignoring redirect, flow no longer awaiting")

		return true
	}

	f.state = flowInterpreting
	f.mu.Unlock()

	f.finish(flowInterpreting, f.interpret(u))

	return true
}

// interpret turns a redirect into a Result. A redirect with neither an error
// code nor a complete token panics with *ProtocolError.
func (f *Flow) interpret(u *url.URL) Result {
	raw := u.EscapedFragment()
	if raw == "" {
		f.logger.Info("redirect without fragment, treating as denial")
		return Failure{Code: CodeAccessDenied}
	}

	params := parseFragment(raw)

	if code, ok := params["error"]; ok {
		f.logger.Info("authorization refused", slog.String("error", code))
		return Failure{Code: ParseErrorCode(code)}
	}

	token, hasToken := params["access_token"]
	userid, hasUser := params["userid"]

	switch {
	case !hasToken || token == "":
		f.violation("missing access_token", params)
	case !hasUser:
		f.violation("missing userid", params)
	}

	id, err := strconv.ParseUint(userid, 10, 64)
	if err != nil {
		f.violation("userid is not an unsigned integer", params)
	}

	return Success{Token: token, UserID: id}
}

func (f *Flow) violation(reason string, params map[string]string) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	f.mu.Lock()
	f.state = flowDone
	f.mu.Unlock()

	err := &ProtocolError{Reason: reason, Keys: keys}
	f.logger.Error("authorization redirect broke protocol", slog.String("error", err.Error()))

	panic(err)
}

// finish moves the Flow from state from to its end: dismiss the view,
// persist a granted token, then report. Reports false, doing nothing, when
// the Flow is no longer in from.
func (f *Flow) finish(from flowState, r Result) bool {
	f.mu.Lock()
	if f.state != from {
		f.mu.Unlock()
		return false
	}

	f.state = flowDone
	completion := f.completion
	f.completion = nil
	f.mu.Unlock()

	f.view.Dismiss()

	if s, ok := r.(Success); ok {
		f.logger.Info("authorization succeeded", slog.Uint64("userid", s.UserID))
		f.persist(s)
	}

	if completion != nil {
		completion(r)
	}

	return true
}

func (f *Flow) persist(s Success) {
	if f.save == nil {
		return
	}

	if err := f.save(s.Token, s.UserID); err != nil {
		f.logger.Warn("saving token failed",
			slog.Uint64("userid", s.UserID),
			slog.String("error", err.Error()),
		)
	}
}

func hostOf(u *url.URL) string {
	if u == nil {
		return ""
	}

	return u.Host
}
