package session

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/birdalert-go/internal/errors"
)

const (
	testLoginURL = "https://secure.birds.cornell.edu/cassso/login"
	testHomeURL  = "https://ebird.org/home"
)

const loginPageHTML = `<html><body>
<form method="post" action="/cassso/login">
  <input type="text" name="username"/>
  <input type="password" name="password"/>
  <input type="hidden" name="execution" value="e1s1-abcdef"/>
  <input type="hidden" name="_eventId" value="submit"/>
</form>
</body></html>`

const loginPageNoExecution = `<html><body>
<form method="post" action="/cassso/login">
  <input type="text" name="username"/>
  <input type="password" name="password"/>
</form>
</body></html>`

func newTestIssuer(t *testing.T) *CASIssuer {
	t.Helper()

	issuer, err := NewCASIssuer(Config{Timeout: 5 * time.Second})
	require.NoError(t, err)

	httpmock.ActivateNonDefault(issuer.client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return issuer
}

func TestLogin_Success(t *testing.T) {
	issuer := newTestIssuer(t)

	var submitted url.Values
	httpmock.RegisterResponder(http.MethodGet, testLoginURL,
		httpmock.NewStringResponder(http.StatusOK, loginPageHTML))
	httpmock.RegisterResponder(http.MethodPost, testLoginURL,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			submitted = req.PostForm
			return httpmock.NewStringResponse(http.StatusOK, "welcome"), nil
		})
	httpmock.RegisterResponder(http.MethodGet, testHomeURL,
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusOK, "home")
			resp.Header.Set("Set-Cookie", SessionCookieName+"=s3ssion; Path=/")
			return resp, nil
		})

	token, err := issuer.Login(t.Context(), "birder", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "s3ssion", token)

	require.NotNil(t, submitted)
	assert.Equal(t, "birder", submitted.Get("username"))
	assert.Equal(t, "hunter2", submitted.Get("password"))
	assert.Equal(t, "e1s1-abcdef", submitted.Get("execution"))
	assert.Equal(t, "submit", submitted.Get("_eventId"))
	assert.Equal(t, "on", submitted.Get("rememberMe"))
}

func TestLogin_MissingExecutionToken(t *testing.T) {
	issuer := newTestIssuer(t)

	httpmock.RegisterResponder(http.MethodGet, testLoginURL,
		httpmock.NewStringResponder(http.StatusOK, loginPageNoExecution))

	_, err := issuer.Login(t.Context(), "birder", "hunter2")
	require.Error(t, err)
	assert.True(t, errors.IsProtocol(err), "missing execution field is a protocol error")

	// No credential submission may happen when the form shape is unexpected.
	info := httpmock.GetCallCountInfo()
	assert.Zero(t, info["POST "+testLoginURL])
}

func TestLogin_MissingEventIDDefaults(t *testing.T) {
	issuer := newTestIssuer(t)

	noEventID := `<html><body><form>
<input type="hidden" name="execution" value="e1s1"/>
</form></body></html>`

	var submitted url.Values
	httpmock.RegisterResponder(http.MethodGet, testLoginURL,
		httpmock.NewStringResponder(http.StatusOK, noEventID))
	httpmock.RegisterResponder(http.MethodPost, testLoginURL,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			submitted = req.PostForm
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		})
	httpmock.RegisterResponder(http.MethodGet, testHomeURL,
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusOK, "home")
			resp.Header.Set("Set-Cookie", SessionCookieName+"=tok; Path=/")
			return resp, nil
		})

	_, err := issuer.Login(t.Context(), "birder", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "submit", submitted.Get("_eventId"))
}

func TestLogin_LoginPageUnavailable(t *testing.T) {
	issuer := newTestIssuer(t)

	httpmock.RegisterResponder(http.MethodGet, testLoginURL,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "maintenance"))

	_, err := issuer.Login(t.Context(), "birder", "hunter2")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func TestLogin_BadCredentials(t *testing.T) {
	issuer := newTestIssuer(t)

	httpmock.RegisterResponder(http.MethodGet, testLoginURL,
		httpmock.NewStringResponder(http.StatusOK, loginPageHTML))
	httpmock.RegisterResponder(http.MethodPost, testLoginURL,
		httpmock.NewStringResponder(http.StatusOK, "invalid credentials"))
	// Home page responds but never sets the session cookie.
	httpmock.RegisterResponder(http.MethodGet, testHomeURL,
		httpmock.NewStringResponder(http.StatusOK, "please sign in"))

	_, err := issuer.Login(t.Context(), "birder", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsAuthentication(err))
	assert.False(t, errors.IsProtocol(err))
}
