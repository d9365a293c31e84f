package flow

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"authkit/pkg/oauth"
)

// successHTML is shown in the browser after a callback was captured.
const successHTML = `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
  <h1>Authentication Successful</h1>
  <p>You can close this window and return to the terminal.</p>
</body>
</html>`

// errorHTML is shown when the callback carried an error response.
const errorHTML = `<!DOCTYPE html>
<html>
<head><title>Authentication Failed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
  <h1>Authentication Failed</h1>
  <p>%s</p>
  <p>You can close this window and return to the terminal.</p>
</body>
</html>`

// fragmentRelayHTML converts a fragment response into a query request so the
// loopback server can observe it. Browsers never transmit the fragment, so a
// bare GET on the callback path re-submits location.hash as a query string.
const fragmentRelayHTML = `<!DOCTYPE html>
<html>
<head><title>Completing Authentication</title></head>
<body>
  <script>
    var h = window.location.hash;
    if (h && h.length > 1) {
      window.location.replace(window.location.pathname + "?" + h.substring(1));
    } else {
      document.body.innerText = "No authorization response received.";
    }
  </script>
</body>
</html>`

// callbackOutcome is what the loopback receiver observed: the full request
// URL for redirect (GET) responses, or the posted form for form_post.
type callbackOutcome struct {
	requestURL *url.URL
	form       url.Values
}

// CallbackServer is a single-shot loopback HTTP receiver for authorization
// responses. It accepts the redirect (GET) and form_post (POST) bindings on
// the redirect URI's path and delivers exactly one outcome.
type CallbackServer struct {
	addr string
	path string

	listener net.Listener
	server   *http.Server
	logger   *slog.Logger

	resultCh chan *callbackOutcome
	once     sync.Once
}

// NewCallbackServer creates a receiver for the given redirect URI. The URI's
// host, port and path determine where the server listens and which requests
// it treats as callbacks.
func NewCallbackServer(redirectURI string, logger *slog.Logger) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("redirect URI %q has no host", redirectURI)
	}

	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &CallbackServer{
		addr:     net.JoinHostPort(u.Hostname(), port),
		path:     path,
		logger:   logger,
		resultCh: make(chan *callbackOutcome, 1),
	}, nil
}

// Start binds the listener and begins serving. It must be called before the
// user agent is sent to the authorization endpoint, so the redirect cannot
// race the receiver.
func (s *CallbackServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Callback server failed", "error", err)
		}
	}()

	s.logger.Debug("Callback server listening", "addr", listener.Addr().String(), "path", s.path)
	return nil
}

// Addr returns the bound listen address, useful when the redirect URI used
// port 0.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// handleCallback processes one authorization response. Later requests after
// the first delivered outcome get the success page but are otherwise ignored.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}
		s.deliver(&callbackOutcome{form: r.PostForm})
		// form_post gets an empty 200; the POST comes from the server's
		// auto-submitting page, not from a page the user is looking at.
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		if r.URL.RawQuery == "" {
			// Possibly a fragment response. Serve the relay page that
			// re-submits location.hash as a query string.
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, fragmentRelayHTML)
			return
		}

		s.deliver(&callbackOutcome{requestURL: r.URL})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if errCode := r.URL.Query().Get("error"); errCode != "" {
			desc := r.URL.Query().Get("error_description")
			if desc == "" {
				desc = errCode
			}
			fmt.Fprintf(w, errorHTML, htmlEscape(desc))
			return
		}
		fmt.Fprint(w, successHTML)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// deliver hands the outcome to the waiter exactly once.
func (s *CallbackServer) deliver(outcome *callbackOutcome) {
	s.once.Do(func() {
		s.resultCh <- outcome
	})
}

// Wait blocks until an outcome arrives, the timeout elapses, or the context
// is canceled. A timeout surfaces as *oauth.TimeoutError.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (*callbackOutcome, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-s.resultCh:
		return outcome, nil
	case <-timer.C:
		return nil, &oauth.TimeoutError{Operation: "authorization callback"}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts the server down, giving in-flight responses a short grace
// period.
func (s *CallbackServer) Stop(ctx context.Context) {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Debug("Callback server shutdown", "error", err)
	}
}

// htmlEscape escapes the characters that matter inside the error page body.
func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
