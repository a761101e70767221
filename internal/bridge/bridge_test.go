package bridge

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

const testToken = "123456:TEST-TOKEN"

func signedPayload(t *testing.T, user string) string {
	t.Helper()
	params := url.Values{}
	params.Set("auth_date", "1700000000")
	params.Set("query_id", "AAE")
	if user != "" {
		params.Set("user", user)
	}
	return SignInitData(params, testToken)
}

func TestInitializeWithoutHostIsStandalone(t *testing.T) {
	h := Initialize(Source{})
	if h.IsHost() {
		t.Fatal("IsHost = true without a host object")
	}
	if _, ok := h.User(); ok {
		t.Fatal("standalone handle returned a user")
	}
	h.Ready()
	h.Expand()
	h.Close()
	if lc := h.Lifecycle(); lc != (Lifecycle{}) {
		t.Fatalf("Lifecycle = %+v, want zero", lc)
	}
	if h.MainButton() == nil {
		t.Fatal("standalone MainButton is nil")
	}
}

func TestInitializeWithHostSignalsReadyAndExpand(t *testing.T) {
	raw := signedPayload(t, `{"id":77,"first_name":"Abebe","username":"abebe"}`)
	h := Initialize(Source{Present: true, InitData: raw})

	if !h.IsHost() {
		t.Fatal("IsHost = false with a host object")
	}
	lc := h.Lifecycle()
	if !lc.Ready || !lc.Expanded || lc.Closed {
		t.Fatalf("Lifecycle = %+v, want ready and expanded", lc)
	}
	u, ok := h.User()
	if !ok || u.ID != 77 || u.Username != "abebe" {
		t.Fatalf("User = %+v, %v", u, ok)
	}
	if h.InitData() != raw {
		t.Fatal("InitData did not round-trip")
	}
	h.Close()
	if !h.Lifecycle().Closed {
		t.Fatal("Close was not recorded")
	}
}

func TestInitializeHostWithoutUser(t *testing.T) {
	h := Initialize(Source{Present: true, InitData: signedPayload(t, "")})
	if !h.IsHost() {
		t.Fatal("IsHost = false")
	}
	if _, ok := h.User(); ok {
		t.Fatal("expected no user")
	}
}

func TestInitializeHostWithGarbage(t *testing.T) {
	h := Initialize(Source{Present: true, InitData: "user=%7Bnot-json"})
	if !h.IsHost() {
		t.Fatal("IsHost = false")
	}
	if _, ok := h.User(); ok {
		t.Fatal("expected no user for malformed payload")
	}
}

func TestInitializeVerification(t *testing.T) {
	raw := signedPayload(t, `{"id":5,"first_name":"Sara"}`)

	if _, ok := Initialize(Source{Present: true, InitData: raw}, WithVerification(testToken)).User(); !ok {
		t.Fatal("valid signature rejected")
	}
	if _, ok := Initialize(Source{Present: true, InitData: raw}, WithVerification("other:token")).User(); ok {
		t.Fatal("payload signed with another token accepted")
	}
}

func TestVerifyInitData(t *testing.T) {
	raw := signedPayload(t, `{"id":5,"first_name":"Sara"}`)
	if err := VerifyInitData(raw, testToken, 0); err != nil {
		t.Fatalf("VerifyInitData: %v", err)
	}

	tampered, _ := url.ParseQuery(raw)
	tampered.Set("user", `{"id":6,"first_name":"Sara"}`)
	if err := VerifyInitData(tampered.Encode(), testToken, 0); err != ErrBadSignature {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
	if err := VerifyInitData("auth_date=1", testToken, 0); err != ErrNoHash {
		t.Fatalf("err = %v, want ErrNoHash", err)
	}
}

func TestVerifyInitDataMaxAge(t *testing.T) {
	fresh := SignInitData(url.Values{
		"auth_date": {strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)},
		"user":      {`{"id":5,"first_name":"Sara"}`},
	}, testToken)
	if err := VerifyInitData(fresh, testToken, time.Hour); err != nil {
		t.Fatalf("fresh payload: %v", err)
	}

	stale := signedPayload(t, `{"id":5,"first_name":"Sara"}`)
	if err := VerifyInitData(stale, testToken, time.Hour); err != ErrExpired {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
	if _, ok := Initialize(Source{Present: true, InitData: stale}, WithVerification(testToken), WithMaxAge(time.Hour)).User(); ok {
		t.Fatal("stale payload resolved a user")
	}

	undated := SignInitData(url.Values{"user": {`{"id":5,"first_name":"Sara"}`}}, testToken)
	if err := VerifyInitData(undated, testToken, time.Hour); err != ErrExpired {
		t.Fatalf("err = %v, want ErrExpired for missing auth_date", err)
	}
}

func TestParseInitData(t *testing.T) {
	d, err := ParseInitData(signedPayload(t, `{"id":9,"first_name":"Lidya","is_premium":true}`))
	if err != nil {
		t.Fatalf("ParseInitData: %v", err)
	}
	if d.User == nil || d.User.ID != 9 || !d.User.IsPremium {
		t.Fatalf("User = %+v", d.User)
	}
	if d.AuthDate.Unix() != 1700000000 {
		t.Fatalf("AuthDate = %v", d.AuthDate)
	}
	if d.QueryID != "AAE" || d.Hash == "" {
		t.Fatalf("QueryID = %q, Hash = %q", d.QueryID, d.Hash)
	}
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if src := FromRequest(req); src.Present {
		t.Fatalf("Present = true for a bare request")
	}

	req = httptest.NewRequest(http.MethodGet, "/?tg_init_data=a%3D1", nil)
	if src := FromRequest(req); !src.Present || src.InitData != "a=1" {
		t.Fatalf("query source = %+v", src)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderInitData, "b=2")
	req.AddCookie(&http.Cookie{Name: CookieInitData, Value: url.QueryEscape("c=3")})
	if src := FromRequest(req); src.InitData != "b=2" {
		t.Fatalf("header should win, got %+v", src)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieInitData, Value: url.QueryEscape("c=3")})
	if src := FromRequest(req); src.InitData != "c=3" {
		t.Fatalf("cookie source = %+v", src)
	}
}

func TestMainButtonSingleCallback(t *testing.T) {
	b := NewMainButton()
	first, second := 0, 0
	b.OnClick(func() { first++ })
	b.OnClick(func() { second++ })

	if b.Click() {
		t.Fatal("hidden button fired")
	}
	b.Show()
	if !b.Click() {
		t.Fatal("visible button did not fire")
	}
	if first != 0 || second != 1 {
		t.Fatalf("first = %d, second = %d; want only the latest callback", first, second)
	}

	b.Disable()
	if b.Click() {
		t.Fatal("disabled button fired")
	}
	b.Enable()
	b.OffClick()
	if b.Click() {
		t.Fatal("button fired after OffClick")
	}

	b.SetText("Register Now")
	b.SetColors("#000000", "")
	st := b.State()
	if st.Text != "Register Now" || st.Color != "#000000" || st.TextColor != DefaultButtonTextColor || !st.Visible || !st.Active {
		t.Fatalf("State = %+v", st)
	}
}
