// Post HTTP handlers.
//
// This file exposes the publishing endpoints:
//   - POST   /posts       (compose: upload media, then publish now or schedule)
//   - GET    /posts       (list pending scheduled posts)
//   - DELETE /posts/{id}  (cancel a scheduled post and release its media)
//   - POST   /posts/run   (trigger one due-post scheduler pass)
//
// Composition is a multipart form because the media file travels with the
// post fields. The media is uploaded to storage first; only when the upload
// yields a public HTTPS URL is the post validated and dispatched.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/http/middleware"
	"github.com/growhub/instabulk/internal/repo"
	"github.com/growhub/instabulk/internal/services"
	"github.com/growhub/instabulk/internal/storage"
)

// ComposePostResponse is returned by POST /posts.
//
// Exactly one of Post and Outcomes is set: Post when the request carried a
// schedule time, Outcomes when the post was published immediately.
type ComposePostResponse struct {
	// Post is the stored scheduled post (schedule mode).
	Post *domain.ScheduledPost `json:"post,omitempty"`
	// Outcomes are the per-account publish results (immediate mode).
	Outcomes []services.Outcome `json:"outcomes,omitempty"`
}

// ListPostsResponse wraps the pending scheduled posts.
type ListPostsResponse struct {
	Posts []domain.ScheduledPost `json:"posts"`
}

// RunDueResponse wraps the outcomes of one scheduler pass.
type RunDueResponse struct {
	// Outcomes aggregates every processed post's per-account results. Empty
	// when nothing was due or another runner held the lock.
	Outcomes []services.Outcome `json:"outcomes"`
}

// ComposePost godoc
// @ID          composePost
// @Summary     Compose a post (publish now or schedule)
// @Description Uploads the media file, then either publishes immediately to all selected accounts or stores the post for the scheduler. Destinations are explicit account IDs plus expanded group members, deduplicated in first-seen order.
// @Tags        Posts
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       file          formData  file    true   "Media file (image or video)"
// @Param       caption       formData  string  false  "Shared caption"
// @Param       account_ids   formData  string  false  "Comma-separated destination account IDs"
// @Param       groups        formData  string  false  "Comma-separated group names to expand"
// @Param       scheduled_at  formData  string  false  "RFC 3339 execution time; omit to publish immediately"
//
// @Success     200  {object}  handlers.ComposePostResponse  "Published immediately"
// @Success     201  {object}  handlers.ComposePostResponse  "Scheduled"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown group"
// @Failure     500  {object}  handlers.ErrorResponse  "Upload or publish failure"
// @Router      /posts [post]
// @Security    BearerAuth
func (h *Handlers) ComposePost(c *gin.Context) {
	ctx := c.Request.Context()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "media file required")
		return
	}

	var scheduledAt time.Time
	schedule := false
	if raw := strings.TrimSpace(c.PostForm("scheduled_at")); raw != "" {
		scheduledAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "scheduled_at must be RFC 3339")
			return
		}
		schedule = true
	}

	f, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable media file")
		return
	}
	defer f.Close()

	asset, err := h.media.Upload(ctx, f, fileHeader.Filename)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, err.Error())
		return
	}

	spec := services.PostSpec{
		AccountIDs: splitList(c.PostForm("account_ids")),
		Groups:     splitList(c.PostForm("groups")),
		Caption:    c.PostForm("caption"),
		MediaURL:   asset.URL,
		StorageID:  asset.PublicID,
		Kind:       asset.Kind,
		At:         scheduledAt,
		Username:   username(c),
	}

	if schedule {
		post, err := h.publish.Schedule(ctx, spec)
		if err != nil {
			h.releaseAsset(c, asset)
			failCompose(c, err)
			return
		}
		ok(c, http.StatusCreated, ComposePostResponse{Post: post})
		return
	}

	outcomes, err := h.publish.PublishNow(ctx, spec)
	if err != nil {
		// Validation failures happen before any account is attempted; the
		// uploaded asset would otherwise be orphaned.
		h.releaseAsset(c, asset)
		failCompose(c, err)
		return
	}
	ok(c, http.StatusOK, ComposePostResponse{Outcomes: outcomes})
}

// ListPosts godoc
// @ID          listPosts
// @Summary     List pending scheduled posts
// @Description Returns scheduled posts that have not run yet, earliest first. Optionally scoped to the posts composed by one operator.
// @Tags        Posts
// @Produce     json
//
// @Param       username  query  string  false  "Scope to an operator"
//
// @Success     200  {object}  handlers.ListPostsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /posts [get]
// @Security    BearerAuth
func (h *Handlers) ListPosts(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context(), strings.TrimSpace(c.Query("username")))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if posts == nil {
		posts = []domain.ScheduledPost{}
	}
	ok(c, http.StatusOK, ListPostsResponse{Posts: posts})
}

// CancelPost godoc
// @ID          cancelPost
// @Summary     Cancel a scheduled post
// @Description Deletes a pending scheduled post and releases its uploaded media asset.
// @Tags        Posts
// @Produce     json
//
// @Param       id  path  string  true  "Post ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /posts/{id} [delete]
// @Security    BearerAuth
func (h *Handlers) CancelPost(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id must be a UUID")
		return
	}

	post, err := h.posts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if err := h.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	// The post will never run, so its media asset has no other owner.
	h.releaseAsset(c, &storage.Asset{PublicID: post.StorageID, Kind: post.MediaKind})
	noContent(c)
}

// RunDue godoc
// @ID          runDuePosts
// @Summary     Run one due-post scheduler pass
// @Description Claims and publishes every post whose schedule time has passed. Returns immediately with empty outcomes when the pass is rate-gated or another runner holds the lock.
// @Tags        Posts
// @Produce     json
//
// @Success     200  {object}  handlers.RunDueResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Pass failed before any post was claimed"
// @Router      /posts/run [post]
// @Security    BearerAuth
func (h *Handlers) RunDue(c *gin.Context) {
	outcomes, err := h.publish.RunDuePosts(c.Request.Context(), time.Now())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodePublishFailed, err.Error())
		return
	}
	if outcomes == nil {
		outcomes = []services.Outcome{}
	}
	ok(c, http.StatusOK, RunDueResponse{Outcomes: outcomes})
}

// releaseAsset destroys an uploaded asset, logging failures instead of
// overriding the response already chosen by the caller.
func (h *Handlers) releaseAsset(c *gin.Context, asset *storage.Asset) {
	if asset == nil || asset.PublicID == "" {
		return
	}
	if err := h.media.Destroy(c.Request.Context(), asset.PublicID, asset.Kind); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("storage_id", asset.PublicID).Msg("media asset release failed")
	}
}

// failCompose maps service validation errors to client responses.
func failCompose(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoAccounts):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "at least one destination account or group required")
	case errors.Is(err, services.ErrGroupNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown group in selection")
	case errors.Is(err, services.ErrInvalidMediaKind), errors.Is(err, services.ErrInvalidMediaURL):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodePublishFailed, err.Error())
	}
}

// splitList parses a comma-separated form value into trimmed entries.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
