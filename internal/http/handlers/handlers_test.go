package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/services"
	"github.com/growhub/instabulk/internal/storage"
)

//
// Scripted fakes for the handler service contracts.
//

type fakeAuthSvc struct {
	token    string
	loginErr error

	loggedOut []string
}

func (f *fakeAuthSvc) Login(_ context.Context, username, password string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.token, nil
}

func (f *fakeAuthSvc) Logout(_ context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	return nil
}

type fakePublishSvc struct {
	scheduled   []services.PostSpec
	published   []services.PostSpec
	post        *domain.ScheduledPost
	outcomes    []services.Outcome
	scheduleErr error
	publishErr  error
	runErr      error
	runCalls    int
}

func (f *fakePublishSvc) Schedule(_ context.Context, spec services.PostSpec) (*domain.ScheduledPost, error) {
	if f.scheduleErr != nil {
		return nil, f.scheduleErr
	}
	f.scheduled = append(f.scheduled, spec)
	return f.post, nil
}

func (f *fakePublishSvc) PublishNow(_ context.Context, spec services.PostSpec) ([]services.Outcome, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.published = append(f.published, spec)
	return f.outcomes, nil
}

func (f *fakePublishSvc) RunDuePosts(context.Context, time.Time) ([]services.Outcome, error) {
	f.runCalls++
	return f.outcomes, f.runErr
}

type fakePostStore struct {
	posts   []domain.ScheduledPost
	getPost *domain.ScheduledPost
	getErr  error
	delErr  error
	deleted []string
}

func (f *fakePostStore) List(context.Context, string) ([]domain.ScheduledPost, error) {
	return f.posts, nil
}

func (f *fakePostStore) Get(_ context.Context, id string) (*domain.ScheduledPost, error) {
	return f.getPost, f.getErr
}

func (f *fakePostStore) Delete(_ context.Context, id string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeGroupSvc struct {
	group      *domain.Group
	groups     []domain.Group
	createErr  error
	replaceErr error
	deleteErr  error
	replaced   map[string][]string
	deleted    []string
}

func (f *fakeGroupSvc) Create(_ context.Context, name string, accountIDs []string) (*domain.Group, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.group, nil
}

func (f *fakeGroupSvc) List(context.Context) ([]domain.Group, error) { return f.groups, nil }

func (f *fakeGroupSvc) Replace(_ context.Context, groupID string, accountIDs []string) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	if f.replaced == nil {
		f.replaced = map[string][]string{}
	}
	f.replaced[groupID] = accountIDs
	return nil
}

func (f *fakeGroupSvc) Delete(_ context.Context, groupID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, groupID)
	return nil
}

type fakeDirectorySvc struct {
	listing map[string]string
	err     error
	forced  bool
}

func (f *fakeDirectorySvc) List(_ context.Context, force bool) (map[string]string, error) {
	f.forced = force
	return f.listing, f.err
}

type fakeMediaStore struct {
	asset      *storage.Asset
	uploadErr  error
	destroyed  []string
	destroyErr error
}

func (f *fakeMediaStore) Upload(_ context.Context, r io.Reader, filename string) (*storage.Asset, error) {
	io.Copy(io.Discard, r)
	return f.asset, f.uploadErr
}

func (f *fakeMediaStore) Destroy(_ context.Context, publicID string, _ domain.MediaKind) error {
	f.destroyed = append(f.destroyed, publicID)
	return f.destroyErr
}

type fakeLogStore struct {
	total int64
	items []domain.PostLog
}

func (f *fakeLogStore) Count(context.Context, string) (int64, error) { return f.total, nil }

func (f *fakeLogStore) ListPage(context.Context, string, int, int) ([]domain.PostLog, error) {
	return f.items, nil
}

//
// Harness
//

type handlerFakes struct {
	auth    *fakeAuthSvc
	publish *fakePublishSvc
	posts   *fakePostStore
	groups  *fakeGroupSvc
	dir     *fakeDirectorySvc
	media   *fakeMediaStore
	logs    *fakeLogStore
}

func newTestHandlers() (*Handlers, *handlerFakes) {
	f := &handlerFakes{
		auth:    &fakeAuthSvc{token: "tok-1"},
		publish: &fakePublishSvc{},
		posts:   &fakePostStore{},
		groups:  &fakeGroupSvc{},
		dir:     &fakeDirectorySvc{},
		media:   &fakeMediaStore{asset: &storage.Asset{URL: "https://cdn.example.com/x.jpg", PublicID: "asset-1", Kind: domain.MediaImage}},
		logs:    &fakeLogStore{},
	}
	h := New(f.auth, f.publish, f.posts, f.groups, f.dir, f.media, f.logs)
	return h, f
}

func testRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.POST("/posts", h.ComposePost)
	r.GET("/posts", h.ListPosts)
	r.DELETE("/posts/:id", h.CancelPost)
	r.POST("/posts/run", h.RunDue)
	r.POST("/groups", h.CreateGroup)
	r.GET("/groups", h.ListGroups)
	r.PUT("/groups/:id/accounts", h.ReplaceGroupMembers)
	r.DELETE("/groups/:id", h.DeleteGroup)
	r.GET("/logs", h.ListLogs)
	r.GET("/accounts", h.ListAccounts)
	return r
}

// multipartBody builds a compose form with a small media file and the given
// extra fields.
func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "photo.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte("jpeg-bytes"))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}
