package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"reboot-miniapp/internal/models"
)

type recorded struct {
	method string
	path   string
	body   string
}

func fakeSheets(t *testing.T) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{method: r.Method, path: r.URL.Path, body: string(b)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestExportUsers(t *testing.T) {
	srv, requests := fakeSheets(t)
	c, err := newClient(context.Background(), "sheet-1",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}

	users := []models.User{
		{MongoID: "u1", FullName: "Abebe Kebede", Email: "abebe@example.com", Age: 30,
			TelegramData: &models.Identity{ID: 7, Username: "abebe"}},
		{ID: "u2", FullName: "Sara Tesfaye"},
	}
	n, err := c.ExportUsers(context.Background(), users)
	if err != nil {
		t.Fatalf("ExportUsers: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}

	reqs := requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want clear then update", len(reqs))
	}
	if reqs[0].method != http.MethodPost || !strings.HasSuffix(reqs[0].path, ":clear") {
		t.Fatalf("first request = %s %s", reqs[0].method, reqs[0].path)
	}
	if reqs[1].method != http.MethodPut {
		t.Fatalf("second request method = %s", reqs[1].method)
	}

	var vr struct {
		Values [][]interface{} `json:"values"`
	}
	if err := json.Unmarshal([]byte(reqs[1].body), &vr); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(vr.Values) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(vr.Values))
	}
	if vr.Values[0][0] != "id" || vr.Values[1][0] != "u1" || vr.Values[2][0] != "u2" {
		t.Fatalf("rows = %v", vr.Values)
	}
	if vr.Values[1][9] != "7" {
		t.Fatalf("tg id column = %v", vr.Values[1][9])
	}
}

func TestNewMissingKeyFile(t *testing.T) {
	if _, err := New(context.Background(), "/nonexistent/key.json", "sheet-1"); err == nil {
		t.Fatal("expected error for missing key file")
	}
}
