// Audit log and account directory HTTP handlers.
//
// This file exposes read-only endpoints:
//   - GET /logs      (paginated audit log, newest first)
//   - GET /accounts  (publishable destination accounts, cached)
package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/growhub/instabulk/internal/domain"
)

// ListLogsResponse wraps a page of audit rows and pagination information.
type ListLogsResponse struct {
	Logs       []domain.PostLog `json:"logs"`
	Pagination Pagination       `json:"pagination"`
}

// Account is one publishable destination in API responses.
type Account struct {
	ID   string `json:"id" example:"17841400000000001"`
	Name string `json:"name" example:"Brand A"`
}

// ListAccountsResponse wraps the destination account listing.
type ListAccountsResponse struct {
	Accounts []Account `json:"accounts"`
}

// ListLogs godoc
// @ID          listLogs
// @Summary     List audit log entries (paginated)
// @Description Returns completed publish runs, newest first. Optionally scoped to one operator's runs.
// @Tags        Logs
// @Produce     json
//
// @Param       username   query  string  false "Scope to an operator"
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListLogsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /logs [get]
// @Security    BearerAuth
func (h *Handlers) ListLogs(c *gin.Context) {
	ctx := c.Request.Context()
	scope := strings.TrimSpace(c.Query("username"))
	page, pageSize := clampPagination(c)

	total, err := h.logs.Count(ctx, scope)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	items, err := h.logs.ListPage(ctx, scope, (page-1)*pageSize, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.PostLog{}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListLogsResponse{
		Logs: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// ListAccounts godoc
// @ID          listAccounts
// @Summary     List publishable destination accounts
// @Description Returns the destination accounts reachable with the configured platform token. Served from a short-lived cache; pass refresh=true to force a platform round trip.
// @Tags        Accounts
// @Produce     json
//
// @Param       refresh  query  bool  false  "Bypass the cache"
//
// @Success     200  {object}  handlers.ListAccountsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Platform listing failed"
// @Router      /accounts [get]
// @Security    BearerAuth
func (h *Handlers) ListAccounts(c *gin.Context) {
	force := strings.EqualFold(c.Query("refresh"), "true")
	listing, err := h.directory.List(c.Request.Context(), force)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	accounts := make([]Account, 0, len(listing))
	for id, name := range listing {
		accounts = append(accounts, Account{ID: id, Name: name})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	ok(c, http.StatusOK, ListAccountsResponse{Accounts: accounts})
}
