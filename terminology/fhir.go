package terminology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const snomedSystemURI = "http://snomed.info/sct"

// expandPageSize caps the concepts requested per $expand call. Larger
// expansions are fetched page by page until the reported total is covered.
const expandPageSize = 1000

var snomedCodePattern = regexp.MustCompile(`^\d{6,18}$`)

// FHIRClientConfig configures the terminology server client.
type FHIRClientConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string

	// MaxRequestsPerSecond caps the outbound rate; <= 0 disables.
	MaxRequestsPerSecond int
	HTTPTimeout          time.Duration
	RetryMax             int
}

// FHIRClient talks to a FHIR terminology server using ECL expansions.
// Transient failures (timeouts, 5xx, 429) retry with bounded exponential
// backoff at the single-request level; an auth failure triggers one token
// invalidation and retry before giving up.
type FHIRClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenManager
	limiter    *RateLimiter
	log        zerolog.Logger
}

// NewFHIRClient creates a client. Defaults: 30s timeout, 3 retries,
// 10 requests per second.
func NewFHIRClient(config FHIRClientConfig, log zerolog.Logger) *FHIRClient {
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 30 * time.Second
	}
	if config.RetryMax == 0 {
		config.RetryMax = 3
	}
	if config.MaxRequestsPerSecond == 0 {
		config.MaxRequestsPerSecond = 10
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = config.RetryMax
	retryClient.Logger = nil
	retryClient.HTTPClient = &http.Client{Timeout: config.HTTPTimeout}
	standard := retryClient.StandardClient()

	return &FHIRClient{
		baseURL:    config.BaseURL,
		httpClient: standard,
		tokens:     NewTokenManager(config.TokenURL, config.ClientID, config.ClientSecret, standard, log),
		limiter:    NewRateLimiter(config.MaxRequestsPerSecond),
		log:        log,
	}
}

// Lookup returns the preferred display for a concept.
func (c *FHIRClient) Lookup(ctx context.Context, code string) (string, error) {
	if !snomedCodePattern.MatchString(code) {
		return "", NewServiceError(CategoryInvalidCodeFormat, fmt.Errorf("code %q is not a SNOMED identifier", code))
	}

	endpoint := fmt.Sprintf("%s/CodeSystem/$lookup?system=%s&code=%s",
		c.baseURL, url.QueryEscape(snomedSystemURI), url.QueryEscape(code))

	var params struct {
		Parameter []struct {
			Name        string `json:"name"`
			ValueString string `json:"valueString"`
		} `json:"parameter"`
	}
	if err := c.get(ctx, endpoint, &params); err != nil {
		return "", err
	}

	for _, p := range params.Parameter {
		if p.Name == "display" {
			return p.ValueString, nil
		}
	}
	return "", NewServiceError(CategoryCodeNotFound, fmt.Errorf("no display returned for code %s", code))
}

// Expand returns all descendants of a code via an ECL "<" expansion.
// An empty expansion is a leaf concept, not a failure.
func (c *FHIRClient) Expand(ctx context.Context, code string, includeInactive bool) (*ExpansionResult, error) {
	return c.expandECL(ctx, code, "<"+code, includeInactive)
}

// GetDirectChildren returns only the immediate children via ECL "<!".
func (c *FHIRClient) GetDirectChildren(ctx context.Context, code string, includeInactive bool) ([]Concept, error) {
	result, err := c.expandECL(ctx, code, "<!"+code, includeInactive)
	if err != nil {
		return nil, err
	}
	return result.Children, nil
}

func (c *FHIRClient) expandECL(ctx context.Context, code, ecl string, includeInactive bool) (*ExpansionResult, error) {
	if !snomedCodePattern.MatchString(code) {
		return nil, NewServiceError(CategoryInvalidCodeFormat, fmt.Errorf("code %q is not a SNOMED identifier", code))
	}

	valueSetURL := fmt.Sprintf("%s?fhir_vs=ecl/%s", snomedSystemURI, url.QueryEscape(ecl))

	result := &ExpansionResult{Code: code}
	for offset := 0; ; {
		endpoint := fmt.Sprintf("%s/ValueSet/$expand?url=%s&count=%d&offset=%d&activeOnly=%t",
			c.baseURL, url.QueryEscape(valueSetURL), expandPageSize, offset, !includeInactive)

		var valueSet struct {
			Expansion struct {
				Total    int `json:"total"`
				Contains []struct {
					Code     string `json:"code"`
					Display  string `json:"display"`
					System   string `json:"system"`
					Inactive bool   `json:"inactive"`
				} `json:"contains"`
			} `json:"expansion"`
		}
		if err := c.get(ctx, endpoint, &valueSet); err != nil {
			var svcErr *ServiceError
			// A not-found expansion is an empty result, not a failure.
			if offset == 0 && asServiceError(err, &svcErr) && svcErr.Category == CategoryCodeNotFound {
				return result, nil
			}
			return nil, err
		}

		result.TotalCount = valueSet.Expansion.Total
		for _, item := range valueSet.Expansion.Contains {
			result.Children = append(result.Children, Concept{
				Code:     item.Code,
				Display:  item.Display,
				System:   item.System,
				Inactive: item.Inactive,
			})
		}

		got := len(valueSet.Expansion.Contains)
		offset += got
		// An empty page guards against a server that over-reports total.
		if got == 0 || len(result.Children) >= result.TotalCount {
			break
		}
	}

	if result.TotalCount < len(result.Children) {
		result.TotalCount = len(result.Children)
	}
	return result, nil
}

// get performs an authenticated GET with rate limiting and one
// invalidate-and-retry on an auth failure.
func (c *FHIRClient) get(ctx context.Context, endpoint string, response any) error {
	err := c.doGet(ctx, endpoint, response)
	var svcErr *ServiceError
	if asServiceError(err, &svcErr) && svcErr.Category == CategoryAuthFailure && c.tokens.Configured() {
		c.log.Warn().Str("endpoint", endpoint).Msg("Auth failure, refreshing token and retrying once")
		c.tokens.Invalidate()
		return c.doGet(ctx, endpoint, response)
	}
	return err
}

func (c *FHIRClient) doGet(ctx context.Context, endpoint string, response any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/fhir+json")
	if err := c.signRequest(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewServiceError(CategorizeTransport(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return NewServiceError(CategorizeStatus(resp.StatusCode),
			fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body)))
	}

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return NewServiceError(CategoryUnknown, fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return nil
}

func (c *FHIRClient) signRequest(ctx context.Context, req *http.Request) error {
	if !c.tokens.Configured() {
		return ErrCredentialsNotConfigured
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func asServiceError(err error, target **ServiceError) bool {
	return err != nil && errors.As(err, target)
}

var _ Client = (*FHIRClient)(nil)
