package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// CallbackResult carries the authorization response delivered to the
// redirect URI. On denial, Code is empty and ErrorCode/ErrorDescription hold
// the provider's error fields.
type CallbackResult struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// CallbackServer is a loopback HTTP server that receives the OAuth redirect
// during CLI-driven flows. Web deployments carry the redirect themselves;
// this exists so a headless operator can complete a flow locally.
type CallbackServer struct {
	server  *http.Server
	results chan CallbackResult
	addr    net.Addr
}

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Complete</title></head>
<body>
  <p>Authorization complete. You can close this window and return to the terminal.</p>
</body>
</html>
`

// StartCallbackServer listens on localhost:port (port 0 picks a free one)
// and waits for a single authorization callback on /callback.
func StartCallbackServer(port int) (*CallbackServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("listening for OAuth callback: %w", err)
	}

	s := &CallbackServer{
		results: make(chan CallbackResult, 1),
		addr:    listener.Addr(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// The listener was bound before we got here, so this only fires
			// on shutdown races. Nothing useful to do with it.
			_ = err
		}
	}()

	return s, nil
}

// RedirectURI returns the redirect URI to register and authorize with.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://%s/callback", s.addr.String())
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		http.Error(w, fmt.Sprintf("authorization failed: %s - %s", errCode, query.Get("error_description")), http.StatusBadRequest)
		select {
		case s.results <- CallbackResult{ErrorCode: errCode, ErrorDescription: query.Get("error_description")}:
		default:
		}
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	select {
	case s.results <- CallbackResult{Code: code, State: query.Get("state")}:
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, callbackPage)
	default:
		http.Error(w, "authorization flow already completed", http.StatusConflict)
	}
}

// Wait blocks until the callback arrives, the timeout passes, or the context
// is cancelled. The result's state must be checked against the state issued
// at StartFlow time by the caller.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (CallbackResult, error) {
	select {
	case result := <-s.results:
		if result.Code == "" {
			if result.ErrorCode != "" {
				return CallbackResult{}, fmt.Errorf("authorization was denied: %s (%s)", result.ErrorCode, result.ErrorDescription)
			}
			return CallbackResult{}, errors.New("authorization was denied")
		}
		return result, nil
	case <-time.After(timeout):
		return CallbackResult{}, fmt.Errorf("timed out after %v waiting for the OAuth callback", timeout)
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	}
}

// Close shuts the callback server down.
func (s *CallbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
