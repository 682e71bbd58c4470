package terminology

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fhirServer bundles a token endpoint and a FHIR endpoint behind one mux.
type fhirServer struct {
	*httptest.Server
	tokenFetches int32
	handler      http.HandlerFunc
}

func newFHIRServer(handler http.HandlerFunc) *fhirServer {
	s := &fhirServer{handler: handler}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&s.tokenFetches, 1)
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, n)
	})
	mux.HandleFunc("/fhir/", func(w http.ResponseWriter, r *http.Request) {
		s.handler(w, r)
	})
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *fhirServer) client(retryMax int) *FHIRClient {
	return NewFHIRClient(FHIRClientConfig{
		BaseURL:      s.URL + "/fhir",
		TokenURL:     s.URL + "/token",
		ClientID:     "client",
		ClientSecret: "secret",
		RetryMax:     retryMax,
	}, zerolog.Nop())
}

func TestLookupRejectsMalformedCodes(t *testing.T) {
	client := NewFHIRClient(FHIRClientConfig{BaseURL: "http://unused"}, zerolog.Nop())

	for _, code := range []string{"abc", "12345", "123456789012345678901", "1955;DROP", ""} {
		_, err := client.Lookup(context.Background(), code)
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr, "code %q", code)
		assert.Equal(t, CategoryInvalidCodeFormat, svcErr.Category, "code %q", code)
	}
}

func TestLookupReturnsDisplay(t *testing.T) {
	server := newFHIRServer(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Path, "CodeSystem/$lookup")
		fmt.Fprint(w, `{"parameter":[{"name":"code","valueString":"195967001"},{"name":"display","valueString":"Asthma"}]}`)
	})
	defer server.Close()

	display, err := server.client(-1).Lookup(context.Background(), "195967001")
	require.NoError(t, err)
	assert.Equal(t, "Asthma", display)
}

func TestExpandParsesChildrenAndActiveFilter(t *testing.T) {
	var query url.Values
	server := newFHIRServer(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		fmt.Fprint(w, `{"expansion":{"total":2,"contains":[
			{"code":"233678006","display":"Childhood asthma","system":"http://snomed.info/sct"},
			{"code":"304527002","display":"Acute asthma","system":"http://snomed.info/sct","inactive":true}
		]}}`)
	})
	defer server.Close()

	result, err := server.client(-1).Expand(context.Background(), "195967001", false)
	require.NoError(t, err)

	assert.Equal(t, "true", query.Get("activeOnly"))
	assert.Contains(t, query.Get("url"), "ecl/")
	require.Len(t, result.Children, 2)
	assert.Equal(t, 2, result.TotalCount)
	assert.True(t, result.Children[1].Inactive)

	_, err = server.client(-1).Expand(context.Background(), "195967001", true)
	require.NoError(t, err)
	assert.Equal(t, "false", query.Get("activeOnly"))
}

func TestExpandPagesThroughLargeExpansions(t *testing.T) {
	var offsets []string
	server := newFHIRServer(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)
		if offset == "0" {
			fmt.Fprint(w, `{"expansion":{"total":3,"contains":[
				{"code":"100001","display":"First"},
				{"code":"100002","display":"Second"}
			]}}`)
			return
		}
		fmt.Fprint(w, `{"expansion":{"total":3,"contains":[{"code":"100003","display":"Third"}]}}`)
	})
	defer server.Close()

	result, err := server.client(-1).Expand(context.Background(), "195967001", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "2"}, offsets, "the second page resumes where the first ended")
	require.Len(t, result.Children, 3, "every reported concept is fetched, not just the first page")
	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, "100003", result.Children[2].Code)
}

func TestExpandStopsOnEmptyPage(t *testing.T) {
	// A server that over-reports total must not send the client into an
	// endless offset loop.
	var requests int32
	server := newFHIRServer(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			fmt.Fprint(w, `{"expansion":{"total":10,"contains":[{"code":"100001","display":"Only"}]}}`)
			return
		}
		fmt.Fprint(w, `{"expansion":{"total":10,"contains":[]}}`)
	})
	defer server.Close()

	result, err := server.client(-1).Expand(context.Background(), "195967001", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
	assert.Len(t, result.Children, 1)
}

func TestExpandNotFoundIsEmptyResult(t *testing.T) {
	server := newFHIRServer(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer server.Close()

	result, err := server.client(-1).Expand(context.Background(), "195967001", false)
	require.NoError(t, err, "an unexpandable code is a leaf, not a failure")
	assert.Empty(t, result.Children)
	assert.Zero(t, result.TotalCount)
}

func TestGetDirectChildrenUsesChildOnlyECL(t *testing.T) {
	var query url.Values
	server := newFHIRServer(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		fmt.Fprint(w, `{"expansion":{"contains":[{"code":"233678006","display":"Childhood asthma"}]}}`)
	})
	defer server.Close()

	children, err := server.client(-1).GetDirectChildren(context.Background(), "195967001", false)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Contains(t, query.Get("url"), url.QueryEscape("<!195967001"))
}

func TestAuthFailureTriggersOneTokenRefreshRetry(t *testing.T) {
	var attempts int32
	server := newFHIRServer(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"parameter":[{"name":"display","valueString":"Asthma"}]}`)
	})
	defer server.Close()

	display, err := server.client(-1).Lookup(context.Background(), "195967001")
	require.NoError(t, err)
	assert.Equal(t, "Asthma", display)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.Equal(t, int32(2), atomic.LoadInt32(&server.tokenFetches), "the retry carries a fresh token")
}

func TestPersistentAuthFailureSurfacesCategory(t *testing.T) {
	server := newFHIRServer(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	defer server.Close()

	_, err := server.client(-1).Lookup(context.Background(), "195967001")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, CategoryAuthFailure, svcErr.Category)
}

func TestMissingCredentialsFailBeforeAnyRequest(t *testing.T) {
	client := NewFHIRClient(FHIRClientConfig{BaseURL: "http://unreachable.invalid"}, zerolog.Nop())
	_, err := client.Lookup(context.Background(), "195967001")
	assert.ErrorIs(t, err, ErrCredentialsNotConfigured)
}

func TestRegistrySessionsAreIsolated(t *testing.T) {
	registry := NewRegistry(func() *Service {
		return NewService(newFakeClient(), ServiceConfig{}, zerolog.Nop())
	}, zerolog.Nop())

	id1, svc1 := registry.NewSession()
	id2, svc2 := registry.NewSession()
	assert.NotEqual(t, id1, id2)
	assert.NotSame(t, svc1, svc2)
	assert.NotSame(t, svc1.Cache(), svc2.Cache())

	assert.Same(t, svc1, registry.Session(id1), "the same id returns the same session")
	assert.Equal(t, 2, registry.Len())

	registry.Drop(id1)
	assert.Equal(t, 1, registry.Len())
	assert.NotSame(t, svc1, registry.Session(id1), "a dropped session id starts fresh")
}
