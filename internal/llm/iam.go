package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultIAMEndpoint is the IBM Cloud IAM token endpoint.
const DefaultIAMEndpoint = "https://iam.cloud.ibm.com/identity/token"

// tokenExpirySlack is subtracted from the IAM-reported lifetime so a token
// is never used in the last seconds before it expires.
const tokenExpirySlack = 60 * time.Second

// iamTokenSource exchanges a long-lived API key for short-lived bearer
// tokens via the IAM apikey grant. Tokens are cached until shortly before
// their reported expiry; the cache is shared read-mostly state and must be
// invalidated explicitly when the provider rejects a token.
type iamTokenSource struct {
	// endpoint is the IAM token endpoint URL.
	endpoint string
	// apiKey is the long-lived credential exchanged for access tokens.
	apiKey string
	// client is the HTTP client used for the token exchange.
	client *http.Client

	// mu guards token and expiry.
	mu sync.Mutex
	// token is the cached bearer token, empty when none is held.
	token string
	// expiry is the time after which the cached token must not be used.
	expiry time.Time
}

// newIAMTokenSource constructs a token source for the given endpoint and key.
func newIAMTokenSource(endpoint, apiKey string, client *http.Client) *iamTokenSource {
	if endpoint == "" {
		endpoint = DefaultIAMEndpoint
	}
	return &iamTokenSource{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
	}
}

// iamTokenResponse is the JSON body returned by the IAM token endpoint.
type iamTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a valid bearer token, fetching a fresh one when the cache is
// empty or stale. Failures surface as *GenerationError since they fail the
// generation call they were made for.
func (s *iamTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiry) {
		return s.token, nil
	}

	form := url.Values{
		"grant_type": {"urn:ibm:params:oauth:grant-type:apikey"},
		"apikey":     {s.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &GenerationError{Reason: "create token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &GenerationError{Reason: "token request failed", Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &GenerationError{Reason: "read token response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &GenerationError{
			Reason: "token endpoint rejected credentials",
			Status: resp.StatusCode,
			Body:   string(body),
		}
	}

	var parsed iamTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
		return "", &GenerationError{Reason: "malformed token response", Body: string(body), Err: err}
	}

	s.token = parsed.AccessToken
	lifetime := time.Duration(parsed.ExpiresIn) * time.Second
	if lifetime <= tokenExpirySlack {
		// No usable lifetime reported: treat the token as single-use.
		s.expiry = time.Now()
	} else {
		s.expiry = time.Now().Add(lifetime - tokenExpirySlack)
	}

	return s.token, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
// Called when the generation endpoint answers 401 with a cached token.
func (s *iamTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiry = time.Time{}
}

// isTimeout reports whether err is a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
