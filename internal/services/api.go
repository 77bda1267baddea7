// API service for making raw HTTP requests to a Music Assistant server
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/massctl/internal/shared"
	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// APIService provides methods for making raw HTTP requests to the server.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	header     http.Header
}

// NewAPIService creates a new API service instance for the server at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost:8095"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
		header:     http.Header{},
	}
}

// NoRedirectClient returns a copy of base that does not follow redirects.
func NoRedirectClient(base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	c := *base
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c
}

// BaseURL returns the server address requests are sent to.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// WithHeader returns a copy of the service that adds h to every request.
func (a *APIService) WithHeader(h http.Header) *APIService {
	merged := a.header.Clone()
	for k, vs := range h {
		for _, v := range vs {
			merged.Add(k, v)
		}
	}
	return &APIService{baseURL: a.baseURL, httpClient: a.httpClient, header: merged}
}

// WithToken returns a copy of the service that sends token as a bearer credential.
func (a *APIService) WithToken(ctx context.Context, token string) *APIService {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &APIService{baseURL: a.baseURL, httpClient: oauth2.NewClient(ctx, src), header: a.header.Clone()}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Cookies    []*http.Cookie
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return a.do(req)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

// PostJSON marshals body and posts it to path.
func (a *APIService) PostJSON(ctx context.Context, path string, body any) (*APIResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return a.Post(ctx, path, data)
}

// Command executes a server command through the HTTP /api endpoint.
func (a *APIService) Command(ctx context.Context, command string, args map[string]any) (*APIResponse, error) {
	return a.PostJSON(ctx, "/api", CommandRequest{Command: command, Args: args, MessageID: shared.GenerateID()})
}

func (a *APIService) do(req *http.Request) (*APIResponse, error) {
	for k, vs := range a.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Cookies:    resp.Cookies(),
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
