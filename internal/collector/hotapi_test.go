package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseHotAPIResponseAliases(t *testing.T) {
	body := []byte(`{"succ":"ok","err":"","code":0,"data":[
		{"title":"标题一","desc":"简介","hot_val":"123万","icon":"i.png","pos":1,"to_url":"https://a.example/1","label":"新","is_top":1},
		{"title":"标题二","description":"d2","hotVal":4567,"position":2,"url":"https://a.example/2","lab":"热","isTop":false}
	]}`)

	items, err := parseHotAPIResponse(body)
	if err != nil {
		t.Fatalf("parseHotAPIResponse error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "标题一" || first.Desc != "简介" || first.HotVal != "123万" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.Pos != 1 || first.IsTop != 1 || first.URL != "https://a.example/1" || first.Label != "新" {
		t.Fatalf("unexpected first item fields: %+v", first)
	}

	second := items[1]
	if second.HotVal != "4567" {
		t.Fatalf("numeric hot value should become string, got %q", second.HotVal)
	}
	if second.Desc != "d2" || second.Pos != 2 || second.URL != "https://a.example/2" || second.Label != "热" {
		t.Fatalf("aliases not applied: %+v", second)
	}
	if second.IsTop != 0 {
		t.Fatalf("isTop=false should map to 0, got %d", second.IsTop)
	}
	if second.Origin != "api" {
		t.Fatalf("origin = %q, want api", second.Origin)
	}
}

func TestParseHotAPIResponseNoData(t *testing.T) {
	cases := map[string]string{
		"non zero code": `{"succ":"fail","err":"rate limited","code":500,"data":[]}`,
		"missing code":  `{"data":[{"title":"x"}]}`,
		"empty data":    `{"code":0,"data":[]}`,
		"object data":   `{"code":0,"data":{"title":"x"}}`,
	}
	for name, body := range cases {
		_, err := parseHotAPIResponse([]byte(body))
		if !errors.Is(err, ErrNoData) {
			t.Errorf("%s: expected ErrNoData, got %v", name, err)
		}
	}

	if _, err := parseHotAPIResponse([]byte("not json")); err == nil || errors.Is(err, ErrNoData) {
		t.Fatalf("invalid json should be a distinct error, got %v", err)
	}
}

func TestHotAPIFetcherRequestsPlatformPath(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":[{"title":"t","to_url":"https://x","pos":1}]}`))
	}))
	defer srv.Close()

	f := NewHotAPIFetcher(srv.URL+"/api/hot/", "zhihu", "zhihu/v2")
	items, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if gotPath != "/api/hot/zhihu/v2" {
		t.Fatalf("request path = %q", gotPath)
	}
	if gotUA != hotAPIUserAgent {
		t.Fatalf("user agent = %q", gotUA)
	}
}

func TestHotAPIFetcherNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHotAPIFetcher(srv.URL, "baidu", "")
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error on 502")
	}
}
