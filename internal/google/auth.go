package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/roach88/classprep/internal/fsutil"
)

// ErrNoCredentials means no usable credentials could be obtained: there was
// no valid cached token and the consent flow could not complete.
var ErrNoCredentials = errors.New("no credentials")

// DefaultConsentTimeout bounds the interactive consent flow.
const DefaultConsentTimeout = 5 * time.Minute

// Authorizer obtains authorized HTTP clients, caching tokens on disk.
type Authorizer struct {
	// Prompt receives the consent instructions. Defaults to os.Stdout.
	Prompt io.Writer
	// OpenURL presents the consent URL to the operator. Defaults to
	// printing it to Prompt.
	OpenURL func(url string) error
	// RedirectPort is the loopback port for the consent redirect; 0 picks one.
	RedirectPort int
	// ConsentTimeout bounds the wait for the operator. Defaults to
	// DefaultConsentTimeout.
	ConsentTimeout time.Duration
	Logger         *slog.Logger
}

// Obtain returns a client authorized for scopes.
//
// A cached token at tokenPath is used and refreshed when possible.
// Otherwise the client secret at secretPath starts the consent flow and the
// resulting token is cached. Every refreshed token is written back.
// Errors wrap ErrNoCredentials.
func (a *Authorizer) Obtain(ctx context.Context, scopes []string, tokenPath, secretPath string) (*http.Client, error) {
	logger := a.logger()

	secret, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read client secret: %v", ErrNoCredentials, err)
	}
	conf, err := googleoauth.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parse client secret %s: %v", ErrNoCredentials, secretPath, err)
	}

	tok, err := readToken(tokenPath)
	switch {
	case err == nil:
		src := &cachingSource{base: conf.TokenSource(ctx, tok), path: tokenPath, last: tok}
		if _, err := src.Token(); err != nil {
			logger.Warn("cached token unusable, requesting consent", "path", tokenPath, "error", err)
			break
		}
		logger.Debug("using cached token", "path", tokenPath)
		return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, src)), nil
	case !errors.Is(err, os.ErrNotExist):
		logger.Warn("cached token unreadable, requesting consent", "path", tokenPath, "error", err)
	}

	tok, err = a.consent(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}
	if err := writeToken(tokenPath, tok); err != nil {
		return nil, fmt.Errorf("%w: cache token: %v", ErrNoCredentials, err)
	}

	src := &cachingSource{base: conf.TokenSource(ctx, tok), path: tokenPath, last: tok}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// consent runs the installed-app flow against a loopback listener.
func (a *Authorizer) consent(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", a.RedirectPort))
	if err != nil {
		return nil, fmt.Errorf("listen for consent redirect: %w", err)
	}
	defer ln.Close()

	cfg := *conf
	cfg.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())
	state := uuid.NewString()

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)
	var once sync.Once
	deliver := func(r result) { once.Do(func() { results <- r }) }

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			switch {
			case q.Get("state") != state:
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			case q.Get("error") != "":
				http.Error(w, "authorization denied", http.StatusForbidden)
				deliver(result{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
				return
			case q.Get("code") == "":
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Authorization complete. You can close this window.")
			deliver(result{code: q.Get("code")})
		}),
	}
	go srv.Serve(ln)
	defer srv.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if err := a.openURL(authURL); err != nil {
		return nil, fmt.Errorf("present consent url: %w", err)
	}

	timeout := a.ConsentTimeout
	if timeout <= 0 {
		timeout = DefaultConsentTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res result
	select {
	case res = <-results:
	case <-timer.C:
		return nil, fmt.Errorf("consent not completed within %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func (a *Authorizer) openURL(url string) error {
	if a.OpenURL != nil {
		return a.OpenURL(url)
	}
	w := a.Prompt
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintf(w, "Open this link in your browser to let classprep talk to Google:\n%s\n", url)
	return err
}

func (a *Authorizer) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// cachingSource writes every new token back to path.
type cachingSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *cachingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		if err := writeToken(s.path, tok); err != nil {
			return nil, fmt.Errorf("cache refreshed token: %w", err)
		}
		s.last = tok
	}
	return tok, nil
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	return fsutil.WriteJSONAtomic(path, tok, 0o600)
}
