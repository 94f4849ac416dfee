package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/go-go-golems/parley/pkg/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize bounds how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024
)

// Client talks REST/JSON to the chat service. It attaches the session token to
// every request and invalidates the session on 401. It never retries.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    session.Provider
	userAgent  string
}

var _ Gateway = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient builds a client rooted at baseURL (e.g. "http://localhost:8080/api/").
// A nil session sends unauthenticated requests.
func NewClient(baseURL string, sess session.Provider, options ...ClientOption) (*Client, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	ret := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		session:    sess,
		userAgent:  "parley",
	}
	for _, o := range options {
		o(ret)
	}
	return ret, nil
}

func parseBaseURL(baseURL string) (*url.URL, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base URL %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("base URL %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

func (c *Client) ListChats(ctx context.Context) ([]chat.Chat, error) {
	var env chatsEnvelope
	if err := c.do(ctx, http.MethodGet, nil, &env, "chats"); err != nil {
		return nil, err
	}
	return env.list(), nil
}

func (c *Client) CreateChat(ctx context.Context, req chat.CreateChatRequest) (*chat.Chat, error) {
	var env chatEnvelope
	if err := c.do(ctx, http.MethodPost, req, &env, "chats"); err != nil {
		return nil, err
	}
	created := env.chat()
	if created == nil {
		return nil, errors.Wrap(ErrEmptyResponse, "create chat returned no chat")
	}
	return created, nil
}

func (c *Client) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	var env messagesEnvelope
	if err := c.do(ctx, http.MethodGet, nil, &env, "chats", chatID, "messages"); err != nil {
		return nil, err
	}
	return env.list(), nil
}

func (c *Client) SendMessage(ctx context.Context, chatID string, content string) (*SendMessageResponse, error) {
	var env sendEnvelope
	if err := c.do(ctx, http.MethodPost, sendMessageRequest{Content: content}, &env, "chats", chatID, "messages"); err != nil {
		return nil, err
	}
	return &SendMessageResponse{
		Chat:     env.Chat,
		Messages: env.list(),
	}, nil
}

// do sends body as JSON to the path made of elems (relative to the base URL, each
// element escaped) and decodes the answer into out.
func (c *Client) do(ctx context.Context, method string, body interface{}, out interface{}, elems ...string) error {
	escaped := make([]string, len(elems))
	for i, e := range elems {
		// JoinPath drops empty segments and resolves dot segments
		if e == "" || e == "." || e == ".." {
			return errors.Wrapf(ErrInvalidID, "%q", e)
		}
		escaped[i] = url.PathEscape(e)
	}
	endpoint := c.baseURL.JoinPath(escaped...)
	path := strings.Join(escaped, "/")

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "could not encode request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return errors.Wrap(err, "could not create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.session != nil {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return errors.Wrapf(err, "could not read response of %s %s", method, path)
	}

	log.Debug().
		Str("component", "gateway").
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("chat service call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Path: path}
		var env errorEnvelope
		if err := json.Unmarshal(b, &env); err == nil {
			apiErr.Message = env.Message
			if apiErr.Message == "" {
				apiErr.Message = env.Error
			}
		}
		if resp.StatusCode == http.StatusUnauthorized && c.session != nil {
			log.Debug().Str("component", "gateway").Msg("session rejected, invalidating token")
			c.session.Invalidate()
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrapf(err, "could not decode response of %s %s", method, path)
	}
	return nil
}
