// Package lastfm implements the audioscrobbler 2.0 request/response contract:
// form-encoded POSTs, MD5 request signing, JSON responses.
package lastfm

import (
	"context"
	"crypto/md5" //nolint:gosec // api_sig is defined as MD5 by the protocol
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"
	authBaseURL    = "https://www.last.fm/api/auth/"

	// BatchLimit is the maximum number of scrobbles per track.scrobble call.
	BatchLimit = 50
)

// Client speaks the Last.fm web service protocol.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
}

// New creates a client with the given API credentials.
func New(apiKey, apiSecret string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
	}
}

// SetBaseURL overrides the API endpoint. Used to point at a local server in
// tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// GetToken requests a one-time authorization token (unsigned call).
func (c *Client) GetToken(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("method", "auth.getToken")

	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, params, false, &out); err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("get token: %w", ErrInvalidResponse)
	}
	return out.Token, nil
}

// AuthURL returns the user authorization URL for a token. The callback URL is
// where the service redirects after the user approves access.
func (c *Client) AuthURL(token, callbackURL string) string {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("token", token)
	if callbackURL != "" {
		params.Set("cb", callbackURL)
	}
	return authBaseURL + "?" + params.Encode()
}

// GetSession exchanges an authorized token for a durable session (signed call).
func (c *Client) GetSession(ctx context.Context, token string) (Session, error) {
	params := url.Values{}
	params.Set("method", "auth.getSession")
	params.Set("token", token)

	var out struct {
		Session struct {
			Name string `json:"name"`
			Key  string `json:"key"`
		} `json:"session"`
	}
	if err := c.post(ctx, params, true, &out); err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if out.Session.Key == "" {
		return Session{}, fmt.Errorf("get session: %w", ErrInvalidResponse)
	}
	return Session{Name: out.Session.Name, Key: out.Session.Key}, nil
}

// UpdateNowPlaying sends a "now playing" notification (signed call).
func (c *Client) UpdateNowPlaying(ctx context.Context, sessionKey string, sub Submission) error {
	if sessionKey == "" {
		return ErrNotAuthenticated
	}

	params := url.Values{}
	params.Set("method", "track.updateNowPlaying")
	params.Set("sk", sessionKey)
	params.Set("artist", sub.Artist)
	params.Set("track", sub.Track)
	if sub.Album != "" {
		params.Set("album", sub.Album)
	}
	if sub.Duration > 0 {
		params.Set("duration", strconv.Itoa(int(sub.Duration.Seconds())))
	}

	if err := c.post(ctx, params, true, nil); err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	return nil
}

// Scrobble submits one or more plays in a single signed track.scrobble call,
// using indexed parameters (artist[0], track[0], ...). At most BatchLimit
// submissions are accepted per call.
func (c *Client) Scrobble(ctx context.Context, sessionKey string, subs []Submission) error {
	if sessionKey == "" {
		return ErrNotAuthenticated
	}
	if len(subs) == 0 {
		return nil
	}
	if len(subs) > BatchLimit {
		return fmt.Errorf("scrobble: batch of %d exceeds limit %d", len(subs), BatchLimit)
	}

	params := url.Values{}
	params.Set("method", "track.scrobble")
	params.Set("sk", sessionKey)
	for i, sub := range subs {
		idx := "[" + strconv.Itoa(i) + "]"
		params.Set("artist"+idx, sub.Artist)
		params.Set("track"+idx, sub.Track)
		params.Set("timestamp"+idx, strconv.FormatInt(sub.Timestamp.Unix(), 10))
		if sub.Album != "" {
			params.Set("album"+idx, sub.Album)
		}
		if sub.Duration > 0 {
			params.Set("duration"+idx, strconv.Itoa(int(sub.Duration.Seconds())))
		}
	}

	if err := c.post(ctx, params, true, nil); err != nil {
		return fmt.Errorf("scrobble: %w", err)
	}
	return nil
}

// sign computes api_sig: md5 of every key+value pair in sorted key order
// (format and callback excluded) followed by the shared secret, as a
// lowercase hex digest.
func (c *Client) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "format" || k == "callback" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	b.WriteString(c.apiSecret)

	sum := md5.Sum([]byte(b.String())) //nolint:gosec // protocol requirement
	return hex.EncodeToString(sum[:])
}

// post executes a form-encoded POST and decodes the JSON response into out
// (which may be nil when only the error envelope matters). The api_sig is
// added before format=json so that format never participates in signing.
func (c *Client) post(ctx context.Context, params url.Values, signed bool, out any) error {
	params.Set("api_key", c.apiKey)
	if signed {
		params.Set("api_sig", c.sign(params))
	}
	params.Set("format", "json")

	if _, err := url.Parse(c.baseURL); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.baseURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// The error envelope takes precedence over HTTP status: the service
	// reports API errors with both 200 and 4xx statuses.
	var envelope struct {
		Error   *int   `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return &APIError{Code: *envelope.Error, Message: envelope.Message}
	}

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{Status: resp.StatusCode}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	return nil
}
