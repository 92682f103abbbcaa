package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/kbukum/smokedb/config"
	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/logger"
	"github.com/kbukum/smokedb/server"
	"github.com/kbukum/smokedb/sse"
	"github.com/kbukum/smokedb/store"
	"github.com/kbukum/smokedb/store/memory"
)

const people = `[
	{"name": "ada", "age": 36, "team": "x"},
	{"name": "bob", "age": 17, "team": "y"},
	{"name": "cyd", "age": 52, "team": "x"},
	{"name": "dee", "age": 29, "team": "y", "admin": true}
]`

type listResponse struct {
	Data []store.Record[Document] `json:"data"`
	Meta *server.Meta             `json:"meta"`
}

func testConfig() config.HTTPConfig {
	return config.HTTPConfig{MaxTake: 100, MaxInFlight: 8, QueueWait: time.Second}
}

func newAPI(t *testing.T, cfg config.HTTPConfig, opts ...Option) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := store.NewDatabase("test", memory.New(), []string{"people", "empty"}, store.WithLogger(logger.Nop()))
	t.Cleanup(func() { _ = db.Stop(context.Background()) })

	h, err := New(db, cfg, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	r := gin.New()
	h.Register(r)
	return r, h
}

func do(r http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func seed(t *testing.T, r http.Handler) []string {
	t.Helper()
	w := do(r, http.MethodPost, "/stores/people/records", people)
	if w.Code != http.StatusCreated {
		t.Fatalf("seed: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Data struct {
			Keys []string `json:"keys"`
		} `json:"data"`
	}](t, w)
	return resp.Data.Keys
}

func names(records []store.Record[Document]) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i], _ = r.Value["name"].(string)
	}
	return out
}

func list(t *testing.T, r http.Handler, query string) listResponse {
	t.Helper()
	w := do(r, http.MethodGet, "/stores/people/records"+query, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list %s: expected 200, got %d: %s", query, w.Code, w.Body.String())
	}
	return decode[listResponse](t, w)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorCode {
	t.Helper()
	return decode[apperrors.ErrorResponse](t, w).Error.Code
}

func TestListStores(t *testing.T) {
	r, _ := newAPI(t, testConfig())
	w := do(r, http.MethodGet, "/stores", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[struct {
		Data []string `json:"data"`
	}](t, w)
	if !slices.Equal(resp.Data, []string{"empty", "people"}) {
		t.Errorf("unexpected stores %v", resp.Data)
	}
}

func TestInsertAndList(t *testing.T) {
	r, _ := newAPI(t, testConfig())
	keys := seed(t, r)
	if len(keys) != 4 {
		t.Fatalf("expected 4 keys, got %v", keys)
	}

	resp := list(t, r, "?order=age")
	if got := names(resp.Data); !slices.Equal(got, []string{"bob", "dee", "ada", "cyd"}) {
		t.Errorf("expected age order, got %v", got)
	}
	if resp.Meta == nil || resp.Meta.Count != 4 || resp.Meta.Take != 100 {
		t.Errorf("unexpected meta %+v", resp.Meta)
	}
}

func TestList_Pipeline(t *testing.T) {
	r, _ := newAPI(t, testConfig())
	seed(t, r)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"where and descending order", "?where=team:x&order=-age", []string{"cyd", "ada"}},
		{"numeric where", "?where=age:17", []string{"bob"}},
		{"boolean where", "?where=admin:true", []string{"dee"}},
		{"where is anded", "?where=team:y&where=age:29", []string{"dee"}},
		{"missing field matches null", "?where=admin:null&order=name", []string{"ada", "bob", "cyd"}},
		{"no match", "?where=team:z", []string{}},
		{"paging after order", "?order=name&skip=1&take=2", []string{"bob", "cyd"}},
		{"skip past end", "?skip=10", []string{}},
		{"missing fields sort first", "?order=-admin&take=1", []string{"dee"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := names(list(t, r, tc.query).Data); !slices.Equal(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestList_TakeCapped(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTake = 2
	r, _ := newAPI(t, cfg)
	seed(t, r)

	resp := list(t, r, "?take=10")
	if len(resp.Data) != 2 || resp.Meta.Take != 2 {
		t.Errorf("expected take capped at 2, got %d records, meta %+v", len(resp.Data), resp.Meta)
	}
}

func TestList_Distinct(t *testing.T) {
	r, _ := newAPI(t, testConfig())
	w := do(r, http.MethodPost, "/stores/people/records", `[{"name":"ada"},{"name":"ada"},{"name":"bob"}]`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if got := names(list(t, r, "?distinct=true&order=name").Data); !slices.Equal(got, []string{"ada", "bob"}) {
		t.Errorf("expected distinct values, got %v", got)
	}
	if got := list(t, r, "").Data; len(got) != 3 {
		t.Errorf("expected all 3 records without distinct, got %d", len(got))
	}
}

func TestList_InvalidParams(t *testing.T) {
	r, _ := newAPI(t, testConfig())
	for _, q := range []string{"?where=nocolon", "?where=:v", "?skip=-1", "?take=many", "?distinct=maybe", "?order=-"} {
		t.Run(q, func(t *testing.T) {
			w := do(r, http.MethodGet, "/stores/people/records"+q, "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if code := errorCode(t, w); code != apperrors.ErrCodeInvalidInput {
				t.Errorf("expected INVALID_INPUT, got %s", code)
			}
		})
	}
}

func TestRecordLifecycle(t *testing.T) {
	r, _ := newAPI(t, testConfig())
	key := seed(t, r)[0]
	target := "/stores/people/records/" + key

	w := do(r, http.MethodGet, target, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	got := decode[struct {
		Data store.Record[Document] `json:"data"`
	}](t, w)
	if got.Data.Key != key || got.Data.Value["name"] != "ada" {
		t.Errorf("unexpected record %+v", got.Data)
	}

	if w := do(r, http.MethodPut, target, `{"name":"ada","age":37}`); w.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := names(list(t, r, "?where=age:37").Data); !slices.Equal(got, []string{"ada"}) {
		t.Errorf("expected the updated record, got %v", got)
	}

	if w := do(r, http.MethodDelete, target, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	w = do(r, http.MethodGet, target, "")
	if w.Code != http.StatusNotFound || errorCode(t, w) != apperrors.ErrCodeRecordNotFound {
		t.Errorf("expected 404 RECORD_NOT_FOUND after delete, got %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPut, target, `{"name":"ghost"}`); w.Code != http.StatusNotFound {
		t.Errorf("put of a missing record: expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodDelete, target, ""); w.Code != http.StatusNotFound {
		t.Errorf("delete of a missing record: expected 404, got %d", w.Code)
	}
	if n := len(list(t, r, "").Data); n != 3 {
		t.Errorf("expected 3 records left, got %d", n)
	}
}

func TestCount(t *testing.T) {
	r, _ := newAPI(t, testConfig())
	seed(t, r)

	tests := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"?where=team:y", 2},
		{"?where=team:z", 0},
	}
	for _, tc := range tests {
		w := do(r, http.MethodGet, "/stores/people/count"+tc.query, "")
		if w.Code != http.StatusOK {
			t.Fatalf("count%s: expected 200, got %d", tc.query, w.Code)
		}
		resp := decode[struct {
			Data struct {
				Count int `json:"count"`
			} `json:"data"`
		}](t, w)
		if resp.Data.Count != tc.want {
			t.Errorf("count%s: expected %d, got %d", tc.query, tc.want, resp.Data.Count)
		}
	}
}

func TestStoreValidation(t *testing.T) {
	r, _ := newAPI(t, testConfig())

	w := do(r, http.MethodGet, "/stores/ghosts/records", "")
	if w.Code != http.StatusNotFound || errorCode(t, w) != apperrors.ErrCodeStoreNotFound {
		t.Errorf("expected 404 STORE_NOT_FOUND, got %d %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodGet, "/stores/9lives/records", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an invalid store name, got %d", w.Code)
	}
	w = do(r, http.MethodGet, "/stores/people/records/%20", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a blank key, got %d", w.Code)
	}
}

func TestInsert_Bodies(t *testing.T) {
	r, _ := newAPI(t, testConfig())

	tests := []struct {
		name string
		body string
		code int
	}{
		{"single object", `{"name":"ada"}`, http.StatusCreated},
		{"empty", ``, http.StatusBadRequest},
		{"not json", `nope`, http.StatusBadRequest},
		{"empty array", `[]`, http.StatusBadRequest},
		{"array of numbers", `[1, 2]`, http.StatusBadRequest},
		{"null element", `[null]`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if w := do(r, http.MethodPost, "/stores/people/records", tc.body); w.Code != tc.code {
				t.Errorf("expected %d, got %d: %s", tc.code, w.Code, w.Body.String())
			}
		})
	}
	if n := len(list(t, r, "").Data); n != 1 {
		t.Errorf("expected only the valid insert to land, got %d records", n)
	}
}

func TestWriteAuth(t *testing.T) {
	cfg := testConfig()
	cfg.AuthSecret = "0123456789abcdef0123"
	r, h := newAPI(t, cfg)

	if w := do(r, http.MethodPost, "/stores/people/records", `{"name":"ada"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}

	token, err := h.tokens.Issue("tester", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	w := do(r, http.MethodPost, "/stores/people/records", `{"name":"ada"}`, "Authorization", "Bearer "+token)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 with a token, got %d: %s", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodGet, "/stores/people/records", ""); w.Code != http.StatusOK {
		t.Errorf("reads must not need a token, got %d", w.Code)
	}
}

func TestNew_ShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.AuthSecret = "short"
	db := store.NewDatabase("test", memory.New(), nil, store.WithLogger(logger.Nop()))
	if _, err := New(db, cfg); err == nil {
		t.Error("expected an error for a short secret")
	}
}

func TestLimitRefusesWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInFlight = 1
	cfg.QueueWait = 0
	r, h := newAPI(t, cfg)

	release, err := h.limiter.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	w := do(r, http.MethodGet, "/stores/people/records", "")
	if w.Code != http.StatusServiceUnavailable || errorCode(t, w) != apperrors.ErrCodeBusy {
		t.Errorf("expected 503 BUSY, got %d %s", w.Code, w.Body.String())
	}
	release()

	if w := do(r, http.MethodGet, "/stores/people/records", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200 once the slot is free, got %d", w.Code)
	}
	if h.limiter.InUse() != 0 {
		t.Errorf("expected every slot released, %d in use", h.limiter.InUse())
	}
}

func TestChangeFeedPublishesCommittedWrites(t *testing.T) {
	hub := sse.NewHub(logger.Nop())
	go hub.Run()
	t.Cleanup(hub.Stop)
	r, _ := newAPI(t, testConfig(), WithChangeFeed(hub))

	client := sse.NewClient("watcher", "people", 8)
	if err := hub.Register(client); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	keys := seed(t, r)
	if w := do(r, http.MethodDelete, "/stores/people/records/"+keys[1], ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	// failed writes publish nothing
	do(r, http.MethodDelete, "/stores/people/records/"+keys[1], "")

	want := []struct {
		op   string
		keys []string
	}{
		{OpInsert, keys},
		{OpDelete, keys[1:2]},
	}
	for _, exp := range want {
		select {
		case ev := <-client.Events():
			var ch Change
			if err := json.Unmarshal(ev.Data, &ch); err != nil {
				t.Fatal(err)
			}
			if ev.Name != EventChange || ch.Store != "people" || ch.Op != exp.op || !slices.Equal(ch.Keys, exp.keys) {
				t.Errorf("unexpected change %s %+v", ev.Name, ch)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", exp.op)
		}
	}
	select {
	case ev := <-client.Events():
		t.Errorf("unexpected extra event %s", ev.Data)
	case <-time.After(50 * time.Millisecond):
	}
}
