package oauth

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

// TerminalView presents the authorization page in the user's browser and
// reads the address the browser was redirected to from a terminal. An empty
// line or end of input cancels.
type TerminalView struct {
	in     io.Reader
	out    io.Writer
	open   func(string) error
	logger *slog.Logger

	mu        sync.Mutex
	dismissed bool
}

// NewTerminalView returns a TerminalView reading from in and prompting on
// out. open launches the browser; if it is nil or fails, the address is
// printed for the user to open.
func NewTerminalView(in io.Reader, out io.Writer, open func(string) error, logger *slog.Logger) *TerminalView {
	if logger == nil {
		logger = slog.Default()
	}

	return &TerminalView{in: in, out: out, open: open, logger: logger}
}

// PresentAuthorization implements View. Input is read on its own goroutine.
func (v *TerminalView) PresentAuthorization(authURL string, onNavigate func(*url.URL) bool, onCancel func()) {
	v.launch(authURL)

	fmt.Fprintln(v.out, "After approving access, paste the address your browser was sent to.")
	fmt.Fprintln(v.out, "Press Enter on an empty line to cancel.")

	go v.read(onNavigate, onCancel)
}

func (v *TerminalView) launch(authURL string) {
	if v.open != nil {
		err := v.open(authURL)
		if err == nil {
			fmt.Fprintln(v.out, "Opened the authorization page in your browser.")
			return
		}

		v.logger.Warn("failed to open browser, printing URL", slog.String("error", err.Error()))
	}

	fmt.Fprintf(v.out, "Open this URL in your browser:\n%s\n", authURL)
}

func (v *TerminalView) read(onNavigate func(*url.URL) bool, onCancel func()) {
	sc := bufio.NewScanner(v.in)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)

	for sc.Scan() {
		if v.isDismissed() {
			return
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			onCancel()
			return
		}

		u, err := url.Parse(line)
		if err != nil {
			fmt.Fprintln(v.out, "That is not a valid address, try again.")
			continue
		}

		if onNavigate(u) {
			return
		}

		fmt.Fprintln(v.out, "That is not the redirect address, try again.")
	}

	if err := sc.Err(); err != nil {
		v.logger.Warn("reading redirect address", slog.String("error", err.Error()))
	}

	if !v.isDismissed() {
		onCancel()
	}
}

// Dismiss implements View. A pending read returns after its next line.
func (v *TerminalView) Dismiss() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.dismissed = true
}

func (v *TerminalView) isDismissed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.dismissed
}
