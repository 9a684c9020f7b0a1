package adminhttp

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/frenchline/adminapi/internal/identity"
	"github.com/frenchline/adminapi/internal/media"
	"github.com/frenchline/adminapi/internal/pipeline"
	"github.com/frenchline/adminapi/internal/ratelimit"
	"github.com/frenchline/adminapi/internal/store"
)

type fakeCache struct {
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) GetJSON(_ context.Context, key string, dest any) error {
	raw, ok := f.data[key]
	if !ok {
		return io.EOF
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	f.sets++
	return nil
}

func (f *fakeCache) InvalidatePattern(_ context.Context, pattern string) (int, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var n int
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

type fakeMedia struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeMedia) Put(_ context.Context, filename, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := "generated" + filepath.Ext(filename)
	f.objects[key] = data
	f.types[key] = contentType
	return key, nil
}

func (f *fakeMedia) Get(_ context.Context, key string) (*media.Object, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, media.ErrNotFound
	}
	return &media.Object{
		Key:         key,
		ContentType: f.types[key],
		Size:        int64(len(data)),
		Body:        io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func (f *fakeMedia) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	delete(f.types, key)
	return nil
}

type harness struct {
	store *store.Store
	cache *fakeCache
	media *fakeMedia
	srv   *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := store.Open("file:" + filepath.Join(t.TempDir(), "api.db") + "?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	resolver := identity.ResolverFunc(func(_ context.Context, r *http.Request) (identity.Caller, error) {
		if r.Header.Get("Authorization") == "" {
			return identity.Caller{}, identity.ErrNoSession
		}
		return identity.Caller{ID: "admin-1", Email: "admin@example.com"}, nil
	})

	pipe := pipeline.New(ratelimit.NewWindowed(), resolver, nil, pipeline.Hooks{}, false)

	ca := newFakeCache()
	me := newFakeMedia()
	api := New(st, ca, me, pipe, nil)

	r := chi.NewRouter()
	api.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &harness{store: st, cache: ca, media: me, srv: srv}
}

// call performs an authenticated request and decodes the JSON body.
func (h *harness) call(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	decoded := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

const validCourseJSON = `{
	"title": "  Greetings  ",
	"description": "<p>Say hello.</p><script>alert(1)</script>",
	"level": "beginner"
}`

func TestCreateCourse(t *testing.T) {
	h := newHarness(t)

	status, body := h.call(t, http.MethodPost, "/api/courses", validCourseJSON)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["message"] != "Course created successfully" {
		t.Fatalf("message = %v", body["message"])
	}

	course := body["course"].(map[string]any)
	if course["title"] != "Greetings" {
		t.Fatalf("expected trimmed title, got %q", course["title"])
	}
	if desc := course["description"].(string); strings.Contains(desc, "script") || !strings.Contains(desc, "<p>") {
		t.Fatalf("expected sanitized description, got %q", desc)
	}
	if course["category"] != "general" {
		t.Fatalf("expected default category, got %q", course["category"])
	}
	if course["created_by"] != "admin-1" {
		t.Fatalf("expected creator from session, got %q", course["created_by"])
	}
}

func TestCreateCourseValidation(t *testing.T) {
	h := newHarness(t)

	status, body := h.call(t, http.MethodPost, "/api/courses", `{"title": "ab"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["error"] != "Validation failed" {
		t.Fatalf("error = %v", body["error"])
	}
	details := body["details"].([]any)
	if len(details) != 1 {
		t.Fatalf("expected exactly one detail, got %v", details)
	}
	d := details[0].(map[string]any)
	if d["path"] != "level" || d["message"] != "required" {
		t.Fatalf("unexpected detail: %v", d)
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/api/courses")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestListCourses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seed := []store.Course{
		{Title: "Greetings", Level: "beginner", Category: "conversation", IsPublished: true},
		{Title: "Subjunctive", Level: "advanced", Category: "grammar"},
	}
	for _, c := range seed {
		if _, err := h.store.CreateCourse(ctx, c); err != nil {
			t.Fatalf("CreateCourse: %v", err)
		}
	}

	status, body := h.call(t, http.MethodGet, "/api/courses?level=beginner", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	courses := body["courses"].([]any)
	if len(courses) != 1 {
		t.Fatalf("expected 1 course, got %v", courses)
	}

	pg := body["pagination"].(map[string]any)
	if pg["page"] != float64(1) || pg["limit"] != float64(10) || pg["total"] != float64(1) || pg["pages"] != float64(1) {
		t.Fatalf("unexpected pagination: %v", pg)
	}

	stats := body["stats"].(map[string]any)
	if stats["totalCourses"] != float64(2) || stats["publishedCourses"] != float64(1) {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestListCoursesBadQuery(t *testing.T) {
	h := newHarness(t)
	status, body := h.call(t, http.MethodGet, "/api/courses?page=zero", "")
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["error"] != "Invalid search parameters" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestGetUpdateDeleteCourse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := h.store.CreateCourse(ctx, store.Course{Title: "Greetings", Level: "beginner"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}

	status, body := h.call(t, http.MethodGet, "/api/courses/"+c.ID, "")
	if status != http.StatusOK {
		t.Fatalf("get status = %d, body = %v", status, body)
	}

	status, body = h.call(t, http.MethodPut, "/api/courses/"+c.ID,
		`{"title": "Greetings 2", "level": "intermediate", "is_published": true}`)
	if status != http.StatusOK {
		t.Fatalf("put status = %d, body = %v", status, body)
	}
	updated := body["course"].(map[string]any)
	if updated["title"] != "Greetings 2" || updated["is_published"] != true {
		t.Fatalf("unexpected course: %v", updated)
	}

	status, _ = h.call(t, http.MethodDelete, "/api/courses/"+c.ID, "")
	if status != http.StatusOK {
		t.Fatalf("delete status = %d", status)
	}

	status, body = h.call(t, http.MethodGet, "/api/courses/"+c.ID, "")
	if status != http.StatusNotFound || body["error"] != "Course not found" {
		t.Fatalf("status = %d, body = %v", status, body)
	}
}

func TestCreateUserMethodNotAllowed(t *testing.T) {
	h := newHarness(t)
	status, body := h.call(t, http.MethodPost, "/api/users", `{"email":"x@example.com"}`)
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["error"] != "Method not allowed" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestUpdateUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.store.CreateUser(ctx, store.User{Email: "marie@example.com"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	status, body := h.call(t, http.MethodPut, "/api/users/"+u.ID,
		`{"email": "marie@example.com", "current_level": "advanced", "total_points": 120}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	user := body["user"].(map[string]any)
	if user["current_level"] != "advanced" || user["total_points"] != float64(120) {
		t.Fatalf("unexpected user: %v", user)
	}
}

func TestUpdateUserEmailConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.store.CreateUser(ctx, store.User{Email: "a@example.com"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	b, err := h.store.CreateUser(ctx, store.User{Email: "b@example.com"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	status, body := h.call(t, http.MethodPut, "/api/users/"+b.ID, `{"email": "a@example.com"}`)
	if status != http.StatusConflict {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["error"] != "Email already in use" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestUpdateUserRejectsBadEmail(t *testing.T) {
	h := newHarness(t)
	status, body := h.call(t, http.MethodPut, "/api/users/any", `{"email": "not-an-email"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %v", status, body)
	}
}

func TestDashboardStatsCaching(t *testing.T) {
	h := newHarness(t)

	status, body := h.call(t, http.MethodGet, "/api/stats", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["cached"] != false {
		t.Fatalf("first read should miss, body = %v", body)
	}
	if h.cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", h.cache.sets)
	}

	status, body = h.call(t, http.MethodGet, "/api/stats", "")
	if status != http.StatusOK || body["cached"] != true {
		t.Fatalf("second read should hit, status = %d body = %v", status, body)
	}
}

func TestInvalidateCache(t *testing.T) {
	h := newHarness(t)

	// warm the stats entry
	if _, body := h.call(t, http.MethodGet, "/api/stats", ""); body["cached"] != false {
		t.Fatalf("expected cold cache, body = %v", body)
	}

	status, body := h.call(t, http.MethodPost, "/api/cache/invalidate", `{"pattern": "dashboard:*"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["deleted"] != float64(1) {
		t.Fatalf("deleted = %v", body["deleted"])
	}

	if _, body := h.call(t, http.MethodGet, "/api/stats", ""); body["cached"] != false {
		t.Fatalf("stats should recompute after invalidation, body = %v", body)
	}
}

func uploadRequest(t *testing.T, url, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	hdr["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestMediaUploadAndDownload(t *testing.T) {
	h := newHarness(t)

	req := uploadRequest(t, h.srv.URL+"/api/media", "file", "photo.png", "image/png", []byte("png-bytes"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var uploaded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	key := uploaded["key"].(string)
	if key != "generated.png" {
		t.Fatalf("key = %q", key)
	}

	get, err := http.NewRequest(http.MethodGet, h.srv.URL+"/api/media/"+key, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	get.Header.Set("Authorization", "Bearer test")
	dl, err := http.DefaultClient.Do(get)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", dl.StatusCode)
	}
	if ct := dl.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q", ct)
	}
	data, _ := io.ReadAll(dl.Body)
	if string(data) != "png-bytes" {
		t.Fatalf("body = %q", data)
	}
}

func TestMediaUploadRejectsUnsupportedType(t *testing.T) {
	h := newHarness(t)

	req := uploadRequest(t, h.srv.URL+"/api/media", "file", "app.exe", "application/octet-stream", []byte("x"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestMediaUploadRejectsOversizeBody(t *testing.T) {
	prev := maxUploadBytes
	maxUploadBytes = 1 << 10
	t.Cleanup(func() { maxUploadBytes = prev })

	h := newHarness(t)

	req := uploadRequest(t, h.srv.URL+"/api/media", "file", "big.mp3", "audio/mpeg",
		bytes.Repeat([]byte("a"), 4<<10))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Upload too large" {
		t.Fatalf("body = %v", body)
	}
}

func TestUploadExempt(t *testing.T) {
	up, _ := http.NewRequest(http.MethodPost, "/api/media", nil)
	if !UploadExempt(up) {
		t.Fatal("media upload not exempt")
	}
	course, _ := http.NewRequest(http.MethodPost, "/api/courses", nil)
	get, _ := http.NewRequest(http.MethodGet, "/api/media", nil)
	if UploadExempt(course) || UploadExempt(get) {
		t.Fatal("non-upload request exempt")
	}
}

func TestMediaNotFound(t *testing.T) {
	h := newHarness(t)
	status, body := h.call(t, http.MethodGet, "/api/media/missing.png", "")
	if status != http.StatusNotFound || body["error"] != "Media not found" {
		t.Fatalf("status = %d, body = %v", status, body)
	}
}
