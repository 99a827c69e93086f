// Package api is the HTTP client for the chat server: authentication, the
// streaming chat endpoint and the conversation directory endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/longkey1/chatai/internal/chatai"
)

const (
	DefaultBaseURL = "http://localhost:8000/auth"
	DefaultTimeout = 30 * time.Second

	pathLogin         = "/login"
	pathRegister      = "/register"
	pathVerifyToken   = "/verify-token"
	pathChat          = "/chat"
	pathConversations = "/get-conversations-list"
	pathHistory       = "/get-chat"
	pathLatestID      = "/get-latest-id"

	maxErrorBody = 512
)

// CredentialSource supplies the bearer credential attached to requests.
type CredentialSource interface {
	Credential() (*chatai.Credential, error)
}

// StatusError is returned when the server answers with an unexpected
// HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// ChatRequest is the body of a streaming chat request.
type ChatRequest struct {
	Message        string    `json:"message"`
	ConversationID chatai.ID `json:"conversation_id,omitempty"`
	// RequestID is sent as X-Request-ID for log correlation.
	RequestID string `json:"-"`
}

// TokenInfo is the result of a token verification.
type TokenInfo struct {
	Valid        bool           `json:"valid"`
	DecodedToken map[string]any `json:"decoded_token"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type latestIDResponse struct {
	ID chatai.ID `json:"id"`
}

// Client talks to the chat server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	credentials  CredentialSource
	userAgent    string
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for non-streaming requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithStreamClient sets the client used for the streaming chat request.
// It should not carry a Timeout: a stream lasts as long as the reply.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) {
		c.streamClient = hc
	}
}

// WithTimeout sets the timeout of non-streaming requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithCredentials sets the source of the bearer credential.
func WithCredentials(src CredentialSource) Option {
	return func(c *Client) {
		c.credentials = src
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		streamClient: &http.Client{},
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges a username and password for a credential.
func (c *Client) Login(ctx context.Context, username, password string) (*chatai.Credential, error) {
	var cred chatai.Credential
	if err := c.do(ctx, http.MethodPost, pathLogin, nil, loginRequest{Username: username, Password: password}, false, &cred); err != nil {
		return nil, err
	}
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("login response has no access token")
	}
	return &cred, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, password string) (*chatai.Identity, error) {
	var id chatai.Identity
	if err := c.do(ctx, http.MethodPost, pathRegister, nil, loginRequest{Username: username, Password: password}, false, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// VerifyToken asks the server to validate the stored credential.
func (c *Client) VerifyToken(ctx context.Context) (*TokenInfo, error) {
	var info TokenInfo
	if err := c.do(ctx, http.MethodPost, pathVerifyToken, nil, nil, true, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Conversations lists the conversations of the authenticated user in
// server order.
func (c *Client) Conversations(ctx context.Context) ([]chatai.ConversationRef, error) {
	var refs []chatai.ConversationRef
	if err := c.do(ctx, http.MethodGet, pathConversations, nil, nil, true, &refs); err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []chatai.ConversationRef{}
	}
	return refs, nil
}

// History returns the transcript of a conversation, oldest first.
func (c *Client) History(ctx context.Context, userID, conversationID chatai.ID) ([]chatai.Message, error) {
	query := url.Values{}
	query.Set("user_id", userID.String())
	if conversationID != "" {
		query.Set("conversation_id", conversationID.String())
	}

	var messages []chatai.Message
	if err := c.do(ctx, http.MethodGet, pathHistory, query, nil, true, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []chatai.Message{}
	}
	return messages, nil
}

// LatestConversationID returns the most recently created conversation of the
// authenticated user, or an empty ID if there is none.
func (c *Client) LatestConversationID(ctx context.Context) (chatai.ID, error) {
	var resp *latestIDResponse
	if err := c.do(ctx, http.MethodGet, pathLatestID, nil, nil, true, &resp); err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}
	return resp.ID, nil
}

// Chat opens a streaming chat request and returns the response body.
// The caller must close it. Connection failures and unexpected statuses
// are returned as *chatai.StreamTransportError, a rejected credential as
// *chatai.AuthRejectedError.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, pathChat, nil, req, true)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}

	c.logger.Debug("opening stream", "url", httpReq.URL.String(), "request_id", req.RequestID, "conversation_id", req.ConversationID)
	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, chatai.NewStreamTransportError(fmt.Errorf("send request: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		err := statusError(resp)
		if chatai.IsAuthRejected(err) {
			return nil, err
		}
		return nil, chatai.NewStreamTransportError(err)
	}

	return resp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any, authenticated bool) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if authenticated {
		if c.credentials == nil {
			return nil, chatai.ErrNotLoggedIn
		}
		cred, err := c.credentials.Credential()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", cred.AuthorizationHeader())
	}

	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, authenticated bool, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body, authenticated)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request done", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w (body: %s)", err, truncate(string(data)))
	}
	return nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(data))
	if chatai.IsAuthStatus(resp.StatusCode) {
		return &chatai.AuthRejectedError{Status: resp.StatusCode, Body: body}
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: body}
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
