package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sos-backend/internal/domain"
)

// RecordingURLResponse is the playback address of one recording.
type RecordingURLResponse struct {
	Name string `json:"name" example:"1712345678901.m4a"`
	URL  string `json:"url"  example:"https://blobs.example.com/recordings/u1/1712345678901.m4a"`
}

// ListRecordings godoc
// @ID          listRecordings
// @Summary     List uploaded recordings
// @Description Newest first.
// @Tags        Recordings
// @Produce     json
// @Security    BearerAuth
// @Success     200  {array}   domain.RecordingObject
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /recordings [get]
func (h *Handlers) ListRecordings(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	items, err := h.recordings.List(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.RecordingObject{}
	}
	ok(c, http.StatusOK, items)
}

// RecordingURL godoc
// @ID          recordingURL
// @Summary     Playback URL of a recording
// @Tags        Recordings
// @Produce     json
// @Security    BearerAuth
// @Param       name  path      string  true  "Recording file name"
// @Success     200   {object}  handlers.RecordingURLResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /recordings/{name}/url [get]
func (h *Handlers) RecordingURL(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	name := c.Param("name")
	u, err := h.recordings.URL(c.Request.Context(), uid, name)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RecordingURLResponse{Name: name, URL: u})
}

// DeleteRecording godoc
// @ID          deleteRecording
// @Summary     Delete a recording
// @Tags        Recordings
// @Security    BearerAuth
// @Param       name  path  string  true  "Recording file name"
// @Success     204
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /recordings/{name} [delete]
func (h *Handlers) DeleteRecording(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	if err := h.recordings.Delete(c.Request.Context(), uid, c.Param("name")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
