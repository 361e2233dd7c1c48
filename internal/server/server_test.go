package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stockstash/internal/app"
	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/forms"
	"github.com/bobmcallan/stockstash/internal/models"
	"github.com/bobmcallan/stockstash/internal/storage/sqlite"
	tcommon "github.com/bobmcallan/stockstash/tests/common"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []models.Mail
}

func (m *captureMailer) Send(_ context.Context, msg models.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last() models.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return models.Mail{}
	}
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	t      *testing.T
	app    *app.App
	srv    *httptest.Server
	client *http.Client
	market *tcommon.MockMarketDataClient
	mailer *captureMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := common.NewSilentLogger()

	config := common.NewDefaultConfig()
	config.Auth.JWTSecret = "server-test-secret"
	config.Auth.BcryptCost = 4

	store, err := sqlite.NewUserStore(ctx, sqlite.MemoryPath, logger)
	require.NoError(t, err)

	market := tcommon.NewMockMarketDataClient(map[string]float64{"AAPL": 150, "TSLA": 75})
	mailer := &captureMailer{}

	a, err := app.NewAppFromConfig(ctx, config, logger,
		app.WithStore(store), app.WithMarketData(market), app.WithMailer(mailer))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	srv := httptest.NewServer(NewServer(a).Handler())
	t.Cleanup(srv.Close)

	return &testEnv{t: t, app: a, srv: srv, client: newClient(t), market: market, mailer: mailer}
}

func newClient(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type pageResp struct {
	Page    string             `json:"page"`
	User    *PageUser          `json:"user"`
	Data    json.RawMessage    `json:"data"`
	Flashes []Flash            `json:"flashes"`
	Errors  []forms.FieldError `json:"errors"`
	Form    map[string]string  `json:"form"`
}

func (p pageResp) messages() []string {
	var out []string
	for _, f := range p.Flashes {
		out = append(out, f.Message)
	}
	return out
}

// post submits a form and returns the redirect target.
func (e *testEnv) post(path string, vals url.Values) string {
	e.t.Helper()
	resp, err := e.client.PostForm(e.srv.URL+path, vals)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	require.Equal(e.t, http.StatusSeeOther, resp.StatusCode, "POST %s", path)
	return resp.Header.Get("Location")
}

// get fetches path. Redirects are returned, not followed.
func (e *testEnv) get(path string) (*http.Response, pageResp) {
	e.t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var page pageResp
	if resp.StatusCode != http.StatusSeeOther {
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&page))
	}
	return resp, page
}

func (e *testEnv) page(path string) pageResp {
	e.t.Helper()
	resp, page := e.get(path)
	require.Equal(e.t, http.StatusOK, resp.StatusCode, "GET %s", path)
	return page
}

func (e *testEnv) register(username, password string) {
	e.t.Helper()
	loc := e.post("/register", url.Values{
		"username": {username}, "fname": {"Ada"}, "lname": {"Lovelace"},
		"password": {password}, "confirm_password": {password},
	})
	require.Equal(e.t, "/login", loc)
}

func (e *testEnv) login(username, password string) {
	e.t.Helper()
	loc := e.post("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(e.t, "/portfolio", loc)
}

func (e *testEnv) makeAdmin(username string) {
	e.t.Helper()
	ctx := context.Background()
	u, err := e.app.Store.GetUserByUsername(ctx, username)
	require.NoError(e.t, err)
	u.Admin = true
	require.NoError(e.t, e.app.Store.UpdateUser(ctx, u))
}

func TestRegisterLoginAddPortfolio(t *testing.T) {
	e := newTestEnv(t)

	e.register("ada@example.com", "secret1")
	login := e.page("/login")
	assert.Equal(t, "login", login.Page)
	assert.Contains(t, login.messages(), "Welcome to StockStash Ada! Please login with your new account.")

	e.login("ada@example.com", "secret1")

	loc := e.post("/portfolio", url.Values{"ticker": {"AAPL"}, "price": {"140"}, "quantity": {"10"}})
	assert.Equal(t, "/portfolio", loc)

	page := e.page("/portfolio")
	assert.Equal(t, "portfolio", page.Page)
	assert.Contains(t, page.messages(), "New stock added!")
	require.NotNil(t, page.User)
	assert.Equal(t, "ada@example.com", page.User.Username)

	var view struct {
		Rows []struct {
			Ticker       string `json:"ticker"`
			Quantity     int64  `json:"quantity"`
			Available    bool   `json:"available"`
			CurrentLabel string `json:"current_label"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(page.Data, &view))
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "AAPL", view.Rows[0].Ticker)
	assert.Equal(t, int64(10), view.Rows[0].Quantity)
	assert.True(t, view.Rows[0].Available)
	assert.Equal(t, "$150.00", view.Rows[0].CurrentLabel)

	// Flash is shown once.
	assert.Empty(t, e.page("/portfolio").Flashes)

	// Provider outage renders n/a instead of failing the page.
	e.market.Fail("AAPL", assert.AnError)
	require.NoError(t, json.Unmarshal(e.page("/portfolio").Data, &view))
	require.Len(t, view.Rows, 1)
	assert.False(t, view.Rows[0].Available)
	assert.Equal(t, "n/a", view.Rows[0].CurrentLabel)
}

func TestRegister_ValidationErrorsRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	e.register("ada@example.com", "secret1")

	loc := e.post("/register", url.Values{
		"username": {"ada@example.com"}, "fname": {"Eve"}, "lname": {"X"},
		"password": {"secret1"}, "confirm_password": {"secret1"},
	})
	assert.Equal(t, "/register", loc)

	page := e.page("/register")
	require.NotEmpty(t, page.Errors)
	assert.Equal(t, forms.FieldError{Field: "username", Message: forms.MsgUsernameTaken}, page.Errors[0])
	assert.Equal(t, "Eve", page.Form["fname"])
	assert.NotContains(t, page.Form, "password", "passwords are never echoed")
}

func TestLogin_Failures(t *testing.T) {
	e := newTestEnv(t)
	e.register("ada@example.com", "secret1")

	assert.Equal(t, "/login", e.post("/login", url.Values{"username": {"ada@example.com"}, "password": {"wrong"}}))
	assert.Contains(t, e.page("/login").messages(), msgLoginFailed)

	assert.Equal(t, "/login", e.post("/login", url.Values{"username": {"ghost@example.com"}, "password": {"x"}}))
	page := e.page("/login")
	assert.Equal(t, []string{forms.MsgEmailNotFound}, forms.Result{Errors: page.Errors}.For("username"))
}

func TestLogin_RememberSetsPersistentCookie(t *testing.T) {
	e := newTestEnv(t)
	e.register("ada@example.com", "secret1")

	for _, remember := range []bool{false, true} {
		vals := url.Values{"username": {"ada@example.com"}, "password": {"secret1"}}
		if remember {
			vals.Set("remember", "y")
		}
		resp, err := e.client.PostForm(e.srv.URL+"/login", vals)
		require.NoError(t, err)
		resp.Body.Close()

		var session *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == sessionCookie {
				session = c
			}
		}
		require.NotNil(t, session)
		assert.True(t, session.HttpOnly)
		assert.Equal(t, remember, session.MaxAge > 0, "remember=%v", remember)

		e.get("/logout")
	}
}

func TestGates(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/portfolio", "/watchlist", "/account", "/admin"} {
		resp, _ := e.get(path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}

	e.register("ada@example.com", "secret1")
	e.login("ada@example.com", "secret1")

	resp, _ := e.get("/admin")
	assert.Equal(t, "/", resp.Header.Get("Location"), "non-admins go home")
	assert.Equal(t, "/", e.post("/admin/ada@example.com/assign", nil))

	for _, path := range []string{"/login", "/register", "/reset_password"} {
		resp, _ := e.get(path)
		assert.Equal(t, "/portfolio", resp.Header.Get("Location"), path)
	}

	resp, _ = e.get("/logout")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	resp, _ = e.get("/portfolio")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestWatchlist_AddAndDelete(t *testing.T) {
	e := newTestEnv(t)
	e.register("ada@example.com", "secret1")
	e.login("ada@example.com", "secret1")

	e.post("/watchlist", url.Values{"ticker": {"TSLA"}, "lowprice": {"100"}, "highprice": {"50"}})
	page := e.page("/watchlist")
	assert.Equal(t, []string{forms.MsgLowAboveHigh}, forms.Result{Errors: page.Errors}.For("ticker"))
	assert.Equal(t, "TSLA", page.Form["ticker"])

	e.post("/watchlist", url.Values{"ticker": {"TSLA"}, "lowprice": {"50"}, "highprice": {"100"}})
	page = e.page("/watchlist")
	assert.Contains(t, page.messages(), "New stock added!")

	var view struct {
		Rows []struct {
			Ticker string `json:"ticker"`
			Signal string `json:"signal"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(page.Data, &view))
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "in_range", view.Rows[0].Signal)

	assert.Equal(t, "/watchlist", e.post("/watchlist/TSLA/delete", nil))
	page = e.page("/watchlist")
	assert.Contains(t, page.messages(), "TSLA has been deleted from your watchlist")
	require.NoError(t, json.Unmarshal(page.Data, &view))
	assert.Empty(t, view.Rows)
}

func TestPortfolio_DeleteMissingTickerIsNoop(t *testing.T) {
	e := newTestEnv(t)
	e.register("ada@example.com", "secret1")
	e.login("ada@example.com", "secret1")

	e.post("/portfolio", url.Values{"ticker": {"NOPE"}, "price": {"1"}, "quantity": {"1"}})
	page := e.page("/portfolio")
	assert.Equal(t, []string{forms.MsgInvalidTicker}, forms.Result{Errors: page.Errors}.For("ticker"))

	assert.Equal(t, "/portfolio", e.post("/portfolio/AAPL/delete", nil))
	assert.Contains(t, e.page("/portfolio").messages(), "AAPL has been deleted from your portfolio")
}

func TestAccount_UpdateAndSelfDelete(t *testing.T) {
	e := newTestEnv(t)
	e.register("ada@example.com", "secret1")
	e.register("bob@example.com", "secret1")
	e.login("ada@example.com", "secret1")

	page := e.page("/account")
	assert.Equal(t, "ada@example.com", page.Form["username"])

	e.post("/account", url.Values{"username": {"bob@example.com"}, "fname": {"Ada"}, "lname": {"L"}})
	page = e.page("/account")
	assert.Equal(t, []string{forms.MsgUsernameTaken}, forms.Result{Errors: page.Errors}.For("username"))

	e.post("/account", url.Values{"username": {"ada.l@example.com"}, "fname": {"Ada"}, "lname": {"L"}, "brokerage": {"Fidelity"}})
	page = e.page("/account")
	assert.Contains(t, page.messages(), "Updated Account!")
	assert.Equal(t, "ada.l@example.com", page.User.Username, "session follows the record id")

	assert.Equal(t, "/login", e.post("/account/delete", nil))
	resp, _ := e.get("/portfolio")
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	_, err := e.app.Directory.FindByIdentifier(context.Background(), "ada.l@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAdmin_ManageUsers(t *testing.T) {
	e := newTestEnv(t)
	e.register("root@example.com", "secret1")
	e.register("bob@example.com", "secret1")
	e.makeAdmin("root@example.com")
	e.login("root@example.com", "secret1")

	page := e.page("/admin")
	var panel AdminPanel
	require.NoError(t, json.Unmarshal(page.Data, &panel))
	assert.Equal(t, 2, panel.Count)
	assert.NotContains(t, string(page.Data), "password")

	assert.Equal(t, "/admin", e.post("/admin/bob@example.com/assign", nil))
	assert.Contains(t, e.page("/admin").messages(), "bob@example.com has been assigned admin privledges")

	assert.Equal(t, "/admin", e.post("/admin/bob@example.com/remove", nil))
	assert.Contains(t, e.page("/admin").messages(), "bob@example.com admin privledges removed")

	assert.Equal(t, "/admin", e.post("/admin/bob@example.com/delete", nil))
	assert.Contains(t, e.page("/admin").messages(), "bob@example.com has been deleted from the system")

	assert.Equal(t, "/admin", e.post("/admin/ghost@example.com/delete", nil))
	assert.Contains(t, e.page("/admin").messages(), "ghost@example.com does not exist")
}

func TestAdmin_SelfDeleteEndsSession(t *testing.T) {
	e := newTestEnv(t)
	e.register("root@example.com", "secret1")
	e.makeAdmin("root@example.com")
	e.login("root@example.com", "secret1")

	base, _ := url.Parse(e.srv.URL)
	var stale *http.Cookie
	for _, c := range e.client.Jar.Cookies(base) {
		if c.Name == sessionCookie {
			stale = c
		}
	}
	require.NotNil(t, stale)

	assert.Equal(t, "/login", e.post("/admin/root@example.com/delete", nil))
	page := e.page("/login")
	assert.Nil(t, page.User)
	assert.Contains(t, page.messages(), "root@example.com has been deleted from the system.  Admin is no longer active")

	// Replaying the old cookie is anonymous because the user is gone.
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/admin", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: stale.Value})
	resp, err := newClient(t).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestAdmin_SelfRevokeEndsSession(t *testing.T) {
	e := newTestEnv(t)
	e.register("root@example.com", "secret1")
	e.makeAdmin("root@example.com")
	e.login("root@example.com", "secret1")

	assert.Equal(t, "/login", e.post("/admin/root@example.com/remove", nil))
	resp, _ := e.get("/portfolio")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestResetPasswordFlow(t *testing.T) {
	e := newTestEnv(t)
	e.register("ada@example.com", "secret1")

	e.post("/reset_password", url.Values{"username": {"ghost@example.com"}})
	page := e.page("/reset_password")
	assert.Equal(t, []string{"There is no account with that email."}, forms.Result{Errors: page.Errors}.For("username"))

	assert.Equal(t, "/login", e.post("/reset_password", url.Values{"username": {"ada@example.com"}}))
	mail := e.mailer.last()
	assert.Equal(t, "ada@example.com", mail.To)

	_, rest, ok := strings.Cut(mail.Body, "/reset_password/")
	require.True(t, ok, mail.Body)
	token, _, _ := strings.Cut(rest, "\n")
	path := "/reset_password/" + token

	assert.Equal(t, "reset_token", e.page(path).Page)

	assert.Equal(t, path, e.post(path, url.Values{"password": {"newpass1"}, "confirm_password": {"other"}}))
	e.page(path)

	assert.Equal(t, "/login", e.post(path, url.Values{"password": {"newpass1"}, "confirm_password": {"newpass1"}}))
	e.login("ada@example.com", "newpass1")
	e.get("/logout")

	// The token died with the old password.
	resp, _ := e.get(path)
	assert.Equal(t, "/reset_password", resp.Header.Get("Location"))

	resp, _ = e.get("/reset_password/garbage")
	assert.Equal(t, "/reset_password", resp.Header.Get("Location"))
}

func TestIndexAndHealth(t *testing.T) {
	e := newTestEnv(t)

	page := e.page("/")
	assert.Equal(t, "home", page.Page)
	var data map[string]string
	require.NoError(t, json.Unmarshal(page.Data, &data))
	assert.Contains(t, data["html"], "<h1>StockStash</h1>")

	resp, err := e.client.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(correlationHeader))

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp404, _ := e.get("/nowhere")
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)
}

func TestFlashCookie_GarbageIsIgnored(t *testing.T) {
	e := newTestEnv(t)
	s := NewServer(e.app)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: "!!!not-base64"})

	f := s.takeFlash(rr, req)
	assert.Empty(t, f.Messages)
	assert.Contains(t, rr.Header().Get("Set-Cookie"), flashCookie+"=;")
}

func TestFlashCookie_FollowsCookieSecure(t *testing.T) {
	e := newTestEnv(t)
	s := NewServer(e.app)
	req := httptest.NewRequest(http.MethodPost, "/portfolio", nil)

	rr := httptest.NewRecorder()
	s.redirectFlash(rr, req, "/portfolio", CategorySuccess, "ok")
	assert.NotContains(t, rr.Header().Get("Set-Cookie"), "Secure")

	e.app.Config.Server.CookieSecure = true
	rr = httptest.NewRecorder()
	s.redirectFlash(rr, req, "/portfolio", CategorySuccess, "ok")
	assert.Contains(t, rr.Header().Get("Set-Cookie"), "Secure")

	req.AddCookie(&http.Cookie{Name: flashCookie, Value: "x"})
	rr = httptest.NewRecorder()
	s.takeFlash(rr, req)
	assert.Contains(t, rr.Header().Get("Set-Cookie"), "Secure")
}

func TestFlashCookie_OversizedInputKeepsErrors(t *testing.T) {
	e := newTestEnv(t)

	vals := url.Values{
		"username": {"not-an-email"},
		"fname":    {strings.Repeat("é", 5000)},
		"lname":    {"L"},
		"password": {"secret1"}, "confirm_password": {"secret1"},
	}
	assert.Equal(t, "/register", e.post("/register", vals))
	page := e.page("/register")
	assert.Equal(t, []string{forms.MsgInvalidEmail}, forms.Result{Errors: page.Errors}.For("username"))
	assert.Equal(t, maxEchoRunes, len([]rune(page.Form["fname"])))

	for i := 0; i < 40; i++ {
		vals.Set(fmt.Sprintf("junk%02d", i), strings.Repeat("x", 150))
	}
	resp, err := e.client.PostForm(e.srv.URL+"/register", vals)
	require.NoError(t, err)
	resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.Name == flashCookie {
			assert.LessOrEqual(t, len(c.Value), maxFlashCookie)
		}
	}

	page = e.page("/register")
	assert.NotEmpty(t, forms.Result{Errors: page.Errors}.For("username"), "errors survive when the echo is dropped")
	assert.Empty(t, page.Form)
}
