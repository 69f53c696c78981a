// Group HTTP handlers.
//
// This file exposes REST endpoints for account groups:
//   - POST   /groups                (create)
//   - GET    /groups                (list, members preloaded in order)
//   - PUT    /groups/{id}/accounts  (replace full member list)
//   - DELETE /groups/{id}           (delete group and memberships)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/services"
)

// CreateGroupRequest is the JSON payload for creating a group.
type CreateGroupRequest struct {
	// Name is the unique group name.
	Name string `json:"name" binding:"required,min=1,max=255" example:"retail brands"`
	// AccountIDs are the member accounts, in presentation order.
	AccountIDs []string `json:"account_ids" example:"17841400000000001,17841400000000002"`
}

// ReplaceGroupMembersRequest is the JSON payload for swapping a group's members.
type ReplaceGroupMembersRequest struct {
	AccountIDs []string `json:"account_ids" binding:"required"`
}

// ListGroupsResponse wraps the group listing.
type ListGroupsResponse struct {
	Groups []domain.Group `json:"groups"`
}

// CreateGroup godoc
// @ID          createGroup
// @Summary     Create an account group
// @Description Creates a named group of destination accounts. Names are unique; members keep their given order.
// @Tags        Groups
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateGroupRequest  true  "Group payload"
//
// @Success     201  {object}  domain.Group
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Name already used"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups [post]
// @Security    BearerAuth
func (h *Handlers) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group name required")
		return
	}

	g, err := h.groups.Create(c.Request.Context(), req.Name, req.AccountIDs)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyGroupName):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group name required")
		case errors.Is(err, services.ErrGroupExists):
			fail(c, http.StatusConflict, ErrCodeConflict, "group name already used")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, g)
}

// ListGroups godoc
// @ID          listGroups
// @Summary     List account groups
// @Description Returns all groups sorted by name, with members in stored order.
// @Tags        Groups
// @Produce     json
//
// @Success     200  {object}  handlers.ListGroupsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups [get]
// @Security    BearerAuth
func (h *Handlers) ListGroups(c *gin.Context) {
	groups, err := h.groups.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	ok(c, http.StatusOK, ListGroupsResponse{Groups: groups})
}

// ReplaceGroupMembers godoc
// @ID          replaceGroupMembers
// @Summary     Replace a group's members
// @Description Swaps the full member list of a group; the new list's order is stored.
// @Tags        Groups
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Group ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ReplaceGroupMembersRequest  true  "New member list"
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Group not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id}/accounts [put]
// @Security    BearerAuth
func (h *Handlers) ReplaceGroupMembers(c *gin.Context) {
	groupID := c.Param("id")
	if _, err := uuid.Parse(groupID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group id must be a UUID")
		return
	}

	var req ReplaceGroupMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "account_ids required")
		return
	}

	if err := h.groups.Replace(c.Request.Context(), groupID, req.AccountIDs); err != nil {
		if errors.Is(err, services.ErrGroupNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "group not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// DeleteGroup godoc
// @ID          deleteGroup
// @Summary     Delete an account group
// @Description Removes a group and its memberships. Scheduled posts are unaffected: group expansion happens at composition time.
// @Tags        Groups
// @Produce     json
//
// @Param       id  path  string  true  "Group ID (UUID)"  format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Group not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /groups/{id} [delete]
// @Security    BearerAuth
func (h *Handlers) DeleteGroup(c *gin.Context) {
	groupID := c.Param("id")
	if _, err := uuid.Parse(groupID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group id must be a UUID")
		return
	}

	if err := h.groups.Delete(c.Request.Context(), groupID); err != nil {
		if errors.Is(err, services.ErrGroupNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "group not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}
