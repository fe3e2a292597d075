package http_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	handler "github.com/MyNameIsWhaaat/threadtree/internal/comment/handler/http"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/model"
	"github.com/MyNameIsWhaaat/threadtree/internal/comment/service"
	inm "github.com/MyNameIsWhaaat/threadtree/internal/comment/storage/inmemory"
	"github.com/MyNameIsWhaaat/threadtree/internal/platform/api"
	"github.com/MyNameIsWhaaat/threadtree/internal/platform/httpserver"
)

type threadBody struct {
	ThreadID string       `json:"thread_id"`
	Comments []model.Node `json:"comments"`
	Total    int          `json:"total"`
	Pending  int          `json:"pending"`
}

func newServer() *httptest.Server {
	svc := service.New(inm.New(), nil)
	h := handler.New(svc, nil)
	return httptest.NewServer(h.Routes(httpserver.RouterConfig{}))
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return res
}

func decode(t *testing.T, res *http.Response, want int, v any) {
	t.Helper()
	defer res.Body.Close()
	if res.StatusCode != want {
		b, _ := io.ReadAll(res.Body)
		t.Fatalf("expected %d, got %d: %s", want, res.StatusCode, b)
	}
	if v == nil {
		return
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func create(t *testing.T, srv *httptest.Server, thread string, parent model.ID, text string) model.Comment {
	t.Helper()
	var c model.Comment
	res := do(t, http.MethodPost, srv.URL+"/threads/"+thread+"/comments", map[string]any{"parent_id": parent, "text": text})
	decode(t, res, http.StatusCreated, &c)
	return c
}

func TestCreateGetDeleteComments(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	root := create(t, srv, "t1", "", "root")
	if root.ID == "" || root.ThreadID != "t1" {
		t.Fatalf("unexpected created comment: %+v", root)
	}
	child := create(t, srv, "t1", root.ID, "child")

	var th threadBody
	decode(t, do(t, http.MethodGet, srv.URL+"/threads/t1", nil), http.StatusOK, &th)
	if th.Total != 2 || len(th.Comments) != 1 {
		t.Fatalf("unexpected thread: %+v", th)
	}
	top := th.Comments[0]
	if top.Kind != model.KindComment || top.Comment.ID != root.ID || len(top.Comment.Replies) != 1 || top.Comment.Replies[0].Comment.ID != child.ID {
		t.Fatalf("unexpected nesting: %+v", top.Comment)
	}

	var flat struct {
		Items []model.Node `json:"items"`
	}
	decode(t, do(t, http.MethodGet, srv.URL+"/threads/t1/flat", nil), http.StatusOK, &flat)
	if len(flat.Items) != 2 || flat.Items[1].Comment.ID != child.ID {
		t.Fatalf("unexpected flat view: %+v", flat.Items)
	}

	var deleted map[string]int
	decode(t, do(t, http.MethodDelete, srv.URL+"/comments/"+root.ID.String(), nil), http.StatusOK, &deleted)
	if deleted["deleted"] != 2 {
		t.Fatalf("expected 2 deleted, got %v", deleted)
	}

	decode(t, do(t, http.MethodGet, srv.URL+"/threads/t1", nil), http.StatusOK, &th)
	if th.Total != 0 || len(th.Comments) != 0 {
		t.Fatalf("thread must be empty after delete: %+v", th)
	}
}

func TestVoteRemoveSoftDelete(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	root := create(t, srv, "t1", "", "root")
	base := srv.URL + "/threads/t1/comments/" + root.ID.String()

	var c model.Comment
	decode(t, do(t, http.MethodPost, base+"/vote", map[string]int{"delta": 1}), http.StatusOK, &c)
	if c.Score != 1 {
		t.Fatalf("expected score 1, got %d", c.Score)
	}
	decode(t, do(t, http.MethodPost, base+"/vote", map[string]int{"delta": 3}), http.StatusBadRequest, nil)

	decode(t, do(t, http.MethodPost, base+"/remove", nil), http.StatusOK, &c)
	if !c.Removed {
		t.Fatalf("expected removed flag: %+v", c)
	}
	decode(t, do(t, http.MethodDelete, base, nil), http.StatusOK, &c)
	if !c.Deleted {
		t.Fatalf("expected deleted flag: %+v", c)
	}

	var n model.Node
	decode(t, do(t, http.MethodGet, base, nil), http.StatusOK, &n)
	if n.Comment == nil || !n.Comment.Removed || !n.Comment.Deleted || n.Comment.Score != 1 {
		t.Fatalf("unexpected subtree: %+v", n.Comment)
	}
}

func TestPathAndSubtree(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	a := create(t, srv, "t1", "", "a")
	a1 := create(t, srv, "t1", a.ID, "a1")
	a1x := create(t, srv, "t1", a1.ID, "a1x")

	var path struct {
		Items []model.CommentPathItem `json:"items"`
	}
	decode(t, do(t, http.MethodGet, srv.URL+"/threads/t1/comments/"+a1x.ID.String()+"/path", nil), http.StatusOK, &path)
	if len(path.Items) != 3 || path.Items[0].ID != a.ID || path.Items[2].ID != a1x.ID {
		t.Fatalf("unexpected path: %+v", path.Items)
	}

	var n model.Node
	decode(t, do(t, http.MethodGet, srv.URL+"/threads/t1/comments/"+a1.ID.String(), nil), http.StatusOK, &n)
	if n.Comment.ID != a1.ID || len(n.Comment.Replies) != 1 {
		t.Fatalf("unexpected subtree: %+v", n.Comment)
	}

	decode(t, do(t, http.MethodGet, srv.URL+"/threads/t1/comments/404/path", nil), http.StatusNotFound, nil)
}

func TestExpandMore(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	for _, s := range []string{"a", "b", "c"} {
		create(t, srv, "t1", "", s)
	}

	var th threadBody
	decode(t, do(t, http.MethodGet, srv.URL+"/threads/t1?sort=created_at_asc&limit=2", nil), http.StatusOK, &th)
	if len(th.Comments) != 3 || th.Comments[2].Kind != model.KindMore || th.Pending != 1 {
		t.Fatalf("unexpected first page: %+v", th)
	}
	token := th.Comments[2].More.Token

	decode(t, do(t, http.MethodPost, srv.URL+"/threads/t1/more/"+token, nil), http.StatusOK, &th)
	if len(th.Comments) != 3 || th.Comments[2].Comment == nil || th.Comments[2].Comment.Text != "c" || th.Pending != 0 {
		t.Fatalf("unexpected expanded page: %+v", th)
	}

	decode(t, do(t, http.MethodPost, srv.URL+"/threads/t1/more/"+token, nil), http.StatusNotFound, nil)
	decode(t, do(t, http.MethodPost, srv.URL+"/threads/t1/more/garbage", nil), http.StatusBadRequest, nil)
}

func TestErrorResponses(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/threads/t1/comments", bytes.NewBufferString("{"))
	req.Header.Set(httpserver.RequestIDHeader, "rid-42")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var body api.ErrorResponse
	decode(t, res, http.StatusBadRequest, &body)
	if body.Error.Code != "BAD_JSON" || body.Error.RequestID != "rid-42" {
		t.Fatalf("unexpected error body: %+v", body)
	}

	decode(t, do(t, http.MethodPost, srv.URL+"/threads/t1/comments", map[string]any{"parent_id": "999", "text": "x"}), http.StatusNotFound, nil)
	decode(t, do(t, http.MethodPost, srv.URL+"/threads/t1/comments", map[string]any{"text": "  "}), http.StatusBadRequest, nil)
	decode(t, do(t, http.MethodGet, srv.URL+"/threads/t1?limit=abc", nil), http.StatusBadRequest, nil)
	decode(t, do(t, http.MethodGet, srv.URL+"/threads/t1?sort=rank_desc", nil), http.StatusBadRequest, nil)
	decode(t, do(t, http.MethodDelete, srv.URL+"/comments/abc", nil), http.StatusBadRequest, nil)
	decode(t, do(t, http.MethodDelete, srv.URL+"/comments/77", nil), http.StatusNotFound, nil)
}

func TestSearch(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	create(t, srv, "t1", "", "golang trees")
	create(t, srv, "t2", "", "nothing here")

	var page model.SearchPage
	decode(t, do(t, http.MethodGet, srv.URL+"/comments/search?q=golang&page=1&limit=10", nil), http.StatusOK, &page)
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ThreadID != "t1" {
		t.Fatalf("unexpected search page: %+v", page)
	}

	decode(t, do(t, http.MethodGet, srv.URL+"/comments/search?q=", nil), http.StatusBadRequest, nil)
}

func TestHealthz(t *testing.T) {
	srv := newServer()
	defer srv.Close()

	decode(t, do(t, http.MethodGet, srv.URL+"/healthz", nil), http.StatusOK, nil)
}
