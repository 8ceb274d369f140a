package spotify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"playlistwatch/internal/core"
)

func TestClassify_SpotifyStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		kind   core.FetchErrorKind
	}{
		{401, core.FetchErrAuth},
		{403, core.FetchErrAuth},
		{404, core.FetchErrNotFound},
		{429, core.FetchErrNetwork},
		{500, core.FetchErrNetwork},
	}

	for _, tc := range cases {
		err := fmt.Errorf("wrapped: %w", spotify.Error{Message: "boom", Status: tc.status})
		fetchErr := classify(err)
		if fetchErr.Kind != tc.kind {
			t.Errorf("classify(status %d) = %s, expected %s", tc.status, fetchErr.Kind, tc.kind)
		}
		if !errors.As(fetchErr, new(*core.FetchError)) {
			t.Errorf("classify must return a FetchError")
		}
	}
}

func TestClassify_TokenRetrievalIsAuth(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &oauth2.RetrieveError{})
	if fetchErr := classify(err); fetchErr.Kind != core.FetchErrAuth {
		t.Errorf("Token retrieval failure should classify as auth, got %s", fetchErr.Kind)
	}
}

func TestClassify_PlainErrorIsNetwork(t *testing.T) {
	if fetchErr := classify(errors.New("connection reset")); fetchErr.Kind != core.FetchErrNetwork {
		t.Errorf("Plain error should classify as network, got %s", fetchErr.Kind)
	}
}

func TestCoverImage(t *testing.T) {
	if got := coverImage(nil); got != "" {
		t.Errorf("Expected empty URL for no images, got %q", got)
	}

	images := []spotify.Image{
		{URL: "https://img.example/640"},
		{URL: "https://img.example/300"},
		{URL: "https://img.example/64"},
	}
	if got := coverImage(images); got != "https://img.example/64" {
		t.Errorf("Expected the smallest (last) image, got %q", got)
	}
}

func TestClientFor_CachesPerConnection(t *testing.T) {
	client := NewClient(&core.SpotifyConfig{RequestsPerSecond: 5}, zap.NewNop())

	credsA := &core.Credentials{ID: 1, ClientID: "a", ClientSecret: "sa"}
	credsB := &core.Credentials{ID: 2, ClientID: "b", ClientSecret: "sb"}

	if client.clientFor(credsA) != client.clientFor(credsA) {
		t.Error("Expected the same cached client for the same connection")
	}
	if client.clientFor(credsA) == client.clientFor(credsB) {
		t.Error("Expected distinct clients for distinct connections")
	}
}
