package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/TrendingRelay/internal/scheduler"
	"github.com/LJTian/TrendingRelay/internal/storage"
)

type fakeStore struct {
	lastPlatform string
	lastLang     string
	lastLimit    int
}

func (f *fakeStore) ListPlatforms() ([]storage.Platform, error) {
	return []storage.Platform{{Code: "weibo", Name: "微博", Status: "active"}}, nil
}

func (f *fakeStore) ListTrending(platform string, limit int) ([]storage.TrendingItem, error) {
	f.lastPlatform, f.lastLimit = platform, limit
	return []storage.TrendingItem{{Platform: platform, Title: "标题", Rank: 1}}, nil
}

func (f *fakeStore) ListTranslations(lang, platform string, limit int) ([]storage.TrendingTranslation, error) {
	f.lastLang, f.lastPlatform, f.lastLimit = lang, platform, limit
	return []storage.TrendingTranslation{{Lang: lang, Platform: platform, TranslatedTitle: "Title"}}, nil
}

func (f *fakeStore) ListRecentBatchJobs(jobType string, limit int) ([]storage.BatchJob, error) {
	f.lastLimit = limit
	return []storage.BatchJob{{ID: "job-1", JobType: jobType, Status: storage.JobCompleted}}, nil
}

func (f *fakeStore) GetBatchJob(id string) (*storage.BatchJob, error) {
	if id != "job-1" {
		return nil, storage.ErrNotFound
	}
	return &storage.BatchJob{ID: id, Status: storage.JobInProgress}, nil
}

func (f *fakeStore) ListCollectionLogs(batchJobID string, limit int) ([]storage.CollectionLog, error) {
	return []storage.CollectionLog{{Platform: "weibo", Status: "success", BatchJobID: batchJobID}}, nil
}

type fakeTrigger struct {
	running bool
	calls   int
}

func (f *fakeTrigger) Trigger(jobType string) error {
	if f.running {
		return scheduler.ErrAlreadyRunning
	}
	f.calls++
	f.running = true
	return nil
}

func (f *fakeTrigger) Running() bool { return f.running }

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setup(opts RouterOptions) (*gin.Engine, *fakeStore, *fakeTrigger) {
	gin.SetMode(gin.TestMode)
	store := &fakeStore{}
	trig := &fakeTrigger{}
	return NewRouter(NewServer(store, trig), opts), store, trig
}

func do(r http.Handler, method, target string, auth ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return env
}

func TestHealth(t *testing.T) {
	r, _, _ := setup(RouterOptions{})
	w := do(r, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListTrendingPassesQuery(t *testing.T) {
	r, store, _ := setup(RouterOptions{})
	w := do(r, http.MethodGet, "/api/v1/trending?platform=weibo&limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	env := decode(t, w)
	if env.Code != "ok" {
		t.Fatalf("code = %q", env.Code)
	}
	var items []storage.TrendingItem
	if err := json.Unmarshal(env.Data, &items); err != nil || len(items) != 1 || items[0].Platform != "weibo" {
		t.Fatalf("data = %s (%v)", env.Data, err)
	}
	if store.lastPlatform != "weibo" || store.lastLimit != 5 {
		t.Fatalf("store got platform=%q limit=%d", store.lastPlatform, store.lastLimit)
	}

	do(r, http.MethodGet, "/api/v1/trending?limit=abc")
	if store.lastLimit != 50 {
		t.Fatalf("invalid limit should use default, got %d", store.lastLimit)
	}
}

func TestListTranslationsValidatesLang(t *testing.T) {
	r, store, _ := setup(RouterOptions{})

	if w := do(r, http.MethodGet, "/api/v1/translations"); w.Code != http.StatusBadRequest {
		t.Fatalf("missing lang status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/translations?lang=xx"); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown lang status = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/v1/translations?lang=ja&platform=baidu")
	if w.Code != http.StatusOK || store.lastLang != "ja" || store.lastPlatform != "baidu" {
		t.Fatalf("status=%d lang=%q platform=%q", w.Code, store.lastLang, store.lastPlatform)
	}

	// 语言代码按存储中的小写形式查询
	w = do(r, http.MethodGet, "/api/v1/translations?lang=%20EN%20")
	if w.Code != http.StatusOK || store.lastLang != "en" {
		t.Fatalf("status=%d lang=%q, want en", w.Code, store.lastLang)
	}
}

func TestBatchJobs(t *testing.T) {
	r, _, _ := setup(RouterOptions{})

	if w := do(r, http.MethodGet, "/api/v1/batch-jobs?type=manual_collection"); w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/v1/batch-jobs/job-1")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var data struct {
		Job  storage.BatchJob        `json:"job"`
		Logs []storage.CollectionLog `json:"logs"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &data); err != nil || data.Job.ID != "job-1" || len(data.Logs) != 1 {
		t.Fatalf("unexpected job payload: %+v (%v)", data, err)
	}

	w = do(r, http.MethodGet, "/api/v1/batch-jobs/missing")
	if w.Code != http.StatusNotFound || decode(t, w).Code != "not_found" {
		t.Fatalf("missing job status = %d", w.Code)
	}
}

func TestCollectTrigger(t *testing.T) {
	r, _, trig := setup(RouterOptions{})

	if w := do(r, http.MethodPost, "/api/v1/collect"); w.Code != http.StatusAccepted {
		t.Fatalf("first collect status = %d", w.Code)
	}
	w := do(r, http.MethodPost, "/api/v1/collect")
	if w.Code != http.StatusConflict || decode(t, w).Code != "conflict" {
		t.Fatalf("second collect status = %d", w.Code)
	}
	if trig.calls != 1 {
		t.Fatalf("trigger calls = %d", trig.calls)
	}
}

func TestBasicAuth(t *testing.T) {
	r, _, _ := setup(RouterOptions{BasicAuthUser: "admin", BasicAuthPass: "secret"})

	if w := do(r, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Fatalf("/health should skip auth, got %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/v1/platforms")
	if w.Code != http.StatusUnauthorized || w.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("missing credentials status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/platforms", "admin", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/platforms", "admin", "secret"); w.Code != http.StatusOK {
		t.Fatalf("valid credentials status = %d", w.Code)
	}
}
