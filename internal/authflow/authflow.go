// Package authflow runs the browser login handshake: a loopback HTTP
// server takes the token callback while the hosted login page drives the
// browser side. The server binds 127.0.0.1 only; the callback must come
// from a local browser.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const successPage = `<html><body style="font-family: system-ui; text-align: center; padding: 50px;">
<h1 style="color: #10b981;">Authentication Successful!</h1>
<p>You can close this window and return to the terminal.</p>
</body></html>`

const failurePage = `<html><body style="font-family: system-ui; text-align: center; padding: 50px;">
<h1 style="color: #ef4444;">Authentication Failed</h1>
<p>Invalid session or token. Please try again.</p>
</body></html>`

// Flow is one login attempt. The session code ties the callback to this
// process; a callback with any other session is rejected.
type Flow struct {
	session string
	log     *zap.SugaredLogger
	srv     *http.Server
	ln      net.Listener
	tokenCh chan string
}

func New(log *zap.SugaredLogger) *Flow {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Flow{
		session: uuid.NewString(),
		log:     log,
		tokenCh: make(chan string, 1),
	}
}

func (f *Flow) Session() string { return f.session }

// Start binds the callback server. Port 0 picks a free port.
func (f *Flow) Start(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("start login callback server: %w", err)
	}
	f.ln = ln

	r := chi.NewRouter()
	r.Get("/callback", f.handleCallback)
	f.srv = &http.Server{Handler: r}
	go func() {
		if err := f.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.log.Debugw("login callback server stopped", "err", err)
		}
	}()
	return nil
}

// Port reports the bound callback port.
func (f *Flow) Port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

// AuthURL is the hosted login page that will redirect back to us.
func (f *Flow) AuthURL(base string) string {
	return fmt.Sprintf("%s/cli-auth?session=%s&port=%d", strings.TrimRight(base, "/"), f.session, f.Port())
}

func (f *Flow) handleCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	session := r.URL.Query().Get("session")

	w.Header().Set("Content-Type", "text/html")
	if token == "" || session != f.session {
		f.log.Warnw("login callback rejected", "session_match", session == f.session)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, failurePage)
		return
	}
	_, _ = io.WriteString(w, successPage)
	select {
	case f.tokenCh <- token:
	default:
	}
}

// Wait blocks for the callback token. The caller bounds it with a context
// deadline; cancellation shuts the server down either way.
func (f *Flow) Wait(ctx context.Context) (string, error) {
	defer f.Close()
	select {
	case token := <-f.tokenCh:
		// Let the success page finish flushing before the server dies.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.srv.Shutdown(shutdownCtx)
		return token, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.New("authentication timed out")
		}
		return "", ctx.Err()
	}
}

// Close tears the callback server down. Safe to call more than once.
func (f *Flow) Close() {
	if f.srv != nil {
		_ = f.srv.Close()
	}
}
