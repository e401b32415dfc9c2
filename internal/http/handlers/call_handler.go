package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sos-backend/internal/domain"
)

// ListCallsResponse is a page of call records.
type ListCallsResponse struct {
	Calls      []domain.CallRecord `json:"calls"`
	Pagination Pagination          `json:"pagination"`
}

// ListCalls godoc
// @ID          listCalls
// @Summary     Call history (paginated)
// @Description Returns a page of the user's call records, newest first.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Calls
// @Produce     json
//
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListCallsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /calls [get]
func (h *Handlers) ListCalls(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, newest, err := h.calls.Stats(ctx, uid); err == nil {
		etag := fmt.Sprintf(`W/"calls:%s:%d:%d:%d:%d"`, uid, count, newest, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.calls.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.CallRecord{}
	}
	ok(c, http.StatusOK, ListCallsResponse{Calls: items, Pagination: newPagination(page, pageSize, total)})
}
