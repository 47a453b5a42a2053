package ebird

import (
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/birdalert-go/internal/errors"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     "https://api.ebird.org/v2",
		Timeout:     5 * time.Second,
		CacheTTL:    time.Minute,
		RateLimitMS: 1,
	}, false)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

const nearbyURL = "https://api.ebird.org/v2/data/obs/geo/recent?lat=40.665535&lng=-73.969749&dist=1&back=1"

func nearbyResponder(status int, body string) {
	httpmock.RegisterResponder(http.MethodGet, nearbyURL,
		httpmock.NewStringResponder(status, body).HeaderSet(http.Header{
			"Content-Type": []string{"application/json"},
		}))
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, false)

	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestGetNearbyObservations(t *testing.T) {
	client := newTestClient(t)

	nearbyResponder(http.StatusOK, `[
		{"speciesCode":"amerob","comName":"American Robin","sciName":"Turdus migratorius",
		 "locId":"L109516","locName":"Prospect Park","obsDt":"2025-04-02 08:15","howMany":3},
		{"speciesCode":"norcar","comName":"Northern Cardinal","sciName":"Cardinalis cardinalis",
		 "locId":"L109516","locName":"Prospect Park","obsDt":"2025-04-02 07:50"}
	]`)

	obs, err := client.GetNearbyObservations(t.Context(), 40.665535, -73.969749, 1, 1)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, "Turdus migratorius", obs[0].ScientificName)
	assert.Equal(t, "3", obs[0].CountLabel())
	// Missing howMany maps to the "X" sentinel
	assert.Equal(t, "X", obs[1].CountLabel())
}

func TestGetNearbyObservations_Cached(t *testing.T) {
	client := newTestClient(t)

	nearbyResponder(http.StatusOK, `[{"comName":"American Robin","sciName":"Turdus migratorius"}]`)

	_, err := client.GetNearbyObservations(t.Context(), 40.665535, -73.969749, 1, 1)
	require.NoError(t, err)
	_, err = client.GetNearbyObservations(t.Context(), 40.665535, -73.969749, 1, 1)
	require.NoError(t, err)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+nearbyURL], "second call should hit the cache")
}

func TestGetNearbyObservations_AuthFailure(t *testing.T) {
	client := newTestClient(t)

	nearbyResponder(http.StatusForbidden, `{"title":"Forbidden","status":403,"detail":"API key is invalid"}`)

	_, err := client.GetNearbyObservations(t.Context(), 40.665535, -73.969749, 1, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAuthentication))
}

func TestGetNearbyObservations_MalformedJSON(t *testing.T) {
	client := newTestClient(t)

	nearbyResponder(http.StatusOK, `{not json`)

	_, err := client.GetNearbyObservations(t.Context(), 40.665535, -73.969749, 1, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
}

func TestGetNearbyObservations_NonJSONContentType(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, nearbyURL,
		httpmock.NewStringResponder(http.StatusOK, "<html>sign in</html>").HeaderSet(http.Header{
			"Content-Type": []string{"text/html"},
		}))

	_, err := client.GetNearbyObservations(t.Context(), 40.665535, -73.969749, 1, 1)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}
