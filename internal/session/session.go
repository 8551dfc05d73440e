// Package session validates engine cloud access tokens.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single validation request.
const DefaultTimeout = 15 * time.Second

// InvalidTokenError reports that the cloud rejected the token.
type InvalidTokenError struct {
	StatusCode int
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid access token (HTTP %d)", e.StatusCode)
}

// NetworkError reports that the cloud could not be reached.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("failed to reach the cloud backend: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// User is the identity behind a token.
type User struct {
	Name        string `json:"name"`
	GithubLogin string `json:"githubLogin"`
}

// DisplayName prefers the user's name, then their login, then fallback.
func (u *User) DisplayName(fallback string) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.GithubLogin != "":
		return u.GithubLogin
	default:
		return fallback
	}
}

// Validator checks tokens against the cloud identity endpoint.
type Validator struct {
	baseURL    string
	httpClient *http.Client
}

func NewValidator(baseURL string) *Validator {
	return &Validator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Validate resolves token to its user. Rejections are *InvalidTokenError,
// transport failures *NetworkError.
func (v *Validator) Validate(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/api/user", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.pulumi+8")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &InvalidTokenError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("reading response: %w", err)}
	}

	var user User
	if len(body) > 0 {
		if err := json.Unmarshal(body, &user); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}
	return &user, nil
}
