package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

// callbackPort is the fixed local port the approval redirect lands on.
const callbackPort = 9847

// BrowserAuthorizer opens the approval page in the user's browser and
// receives the redirect on a short-lived local HTTP server.
type BrowserAuthorizer struct {
	// Timeout bounds how long Authorize waits for the redirect. Zero means
	// 5 minutes.
	Timeout time.Duration
}

func (b *BrowserAuthorizer) CallbackURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", callbackPort)
}

// Authorize opens authURL in the default browser and blocks until the
// approval redirect arrives, the timeout elapses, or ctx ends.
func (b *BrowserAuthorizer) Authorize(ctx context.Context, authURL string) (string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", callbackPort))
	if err != nil {
		return "", fmt.Errorf("listen on port %d: %w", callbackPort, err)
	}

	tokenChan := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")

		w.Header().Set("Content-Type", "text/html")
		if token != "" {
			fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Wake - Last.fm Authorization</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>Authorization Successful!</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)
		} else {
			fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Wake - Last.fm Authorization</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>Authorization Failed</h1>
<p>No token received. Please try again.</p>
</body>
</html>`)
		}

		select {
		case tokenChan <- token:
		default:
		}
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		_ = server.Serve(listener)
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(sctx)
	}()

	if err := openBrowser(authURL); err != nil {
		fmt.Printf("Open this URL in your browser to authorize:\n\n  %s\n\n", authURL)
	}

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	select {
	case token := <-tokenChan:
		// An empty token means the redirect carried no query parameters; the
		// caller falls back to the token it requested.
		return token, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("timed out waiting for authorization")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
