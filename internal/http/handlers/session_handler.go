package handlers

import (
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/http/middleware"
)

// StartSessionRequest carries the microphone permission status the client
// obtained from its platform.
type StartSessionRequest struct {
	Permission string `json:"permission" example:"granted"`
}

// StopSessionResponse is returned by a synchronous stop (?wait=true).
type StopSessionResponse struct {
	Session   domain.SessionSnapshot `json:"session"`
	Recording domain.Recording       `json:"recording"`
	Upload    domain.UploadTask      `json:"upload"`
	Call      *domain.CallRecord     `json:"call,omitempty"`
}

// AppendAudioResponse reports how many bytes a PUT /session/audio took.
type AppendAudioResponse struct {
	Written int64 `json:"written"`
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// GetSession godoc
// @ID          getSession
// @Summary     Current recording session
// @Tags        Session
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.SessionSnapshot
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	ok(c, http.StatusOK, h.sessions.Snapshot(uid))
}

// StartSession godoc
// @ID          startSession
// @Summary     Start recording
// @Description Checks the reported microphone permission and opens a recording.
// @Description A denied permission answers 403 with the notice to show the user.
// @Tags        Session
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.StartSessionRequest  true  "Permission status"
// @Success     201   {object}  domain.SessionSnapshot
// @Failure     403   {object}  handlers.ErrorResponse  "Permission denied"
// @Failure     409   {object}  handlers.ErrorResponse  "Already recording or still uploading"
// @Router      /session/start [post]
func (h *Handlers) StartSession(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	snap, err := h.sessions.Start(c.Request.Context(), uid, capture.Reported(req.Permission))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, snap)
}

// AppendAudio godoc
// @ID          appendAudio
// @Summary     Stream audio into the running recording
// @Description The body is appended as is; call repeatedly while recording.
// @Tags        Session
// @Accept      application/octet-stream
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      string  true  "Encoded audio bytes"
// @Success     200   {object}  handlers.AppendAudioResponse
// @Failure     409   {object}  handlers.ErrorResponse  "Not recording"
// @Failure     413   {object}  handlers.ErrorResponse  "Recording too large"
// @Router      /session/audio [put]
func (h *Handlers) AppendAudio(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	n, err := h.sessions.Append(c.Request.Context(), uid, c.Request.Body)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AppendAudioResponse{Written: n})
}

// StopSession godoc
// @ID          stopSession
// @Summary     Stop recording, upload and notify
// @Description Finalizes the capture and starts the upload. By default it answers 202
// @Description and the upload runs in the background (follow GET /session or the websocket).
// @Description With wait=true it answers once the call record is written.
// @Description Retries with the same Idempotency-Key replay the first answer.
// @Tags        Session
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Key for safe retries"
// @Param       wait             query   bool    false  "Run the upload in the request"
// @Success     202  {object}  domain.SessionSnapshot
// @Success     200  {object}  handlers.StopSessionResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Not recording"
// @Failure     502  {object}  handlers.ErrorResponse  "Upload failed"
// @Router      /session/stop [post]
func (h *Handlers) StopSession(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	if h.replayed(c, uid, func(id string) any { return h.stopReplay(c, uid, id) }) {
		return
	}

	if wait, _ := parseBool(c.Query("wait")); wait {
		res, err := h.sessions.StopAndProcess(c.Request.Context(), uid)
		// A failed notify still answers 200: the audio is stored.
		if err != nil && res.Task.State != domain.UploadSucceeded {
			failErr(c, err)
			return
		}
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("key", res.Task.Key).Msg("call record not written")
		}
		resource := res.Task.Key
		if res.Call != nil {
			resource = res.Call.ID
		}
		h.remember(c, uid, resource, http.StatusOK)
		ok(c, http.StatusOK, StopSessionResponse{
			Session:   h.sessions.Snapshot(uid),
			Recording: res.Recording,
			Upload:    res.Task,
			Call:      res.Call,
		})
		return
	}

	snap, err := h.sessions.StopAsync(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err)
		return
	}
	h.remember(c, uid, "", http.StatusAccepted)
	ok(c, http.StatusAccepted, snap)
}

// stopReplay rebuilds the answer of a completed stop. An asynchronous stop
// stored no resource and replays the current snapshot. A synchronous one
// stored the call record id, or the upload key when no record was written.
func (h *Handlers) stopReplay(c *gin.Context, uid, resourceID string) any {
	ctx := c.Request.Context()
	snap := h.sessions.Snapshot(uid)
	if resourceID == "" {
		return snap
	}
	resp := StopSessionResponse{
		Session: snap,
		Upload:  domain.UploadTask{Progress: 1, State: domain.UploadSucceeded},
	}

	// Object keys always hold a "/"; call record ids never do.
	if !strings.Contains(resourceID, "/") {
		if h.calls == nil {
			return resp
		}
		call, err := h.calls.Get(ctx, uid, resourceID)
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("call_id", resourceID).Msg("replayed call record not found")
			return resp
		}
		resp.Call = call
		resp.Upload.Key = call.ObjectKey
		resp.Upload.URL = call.Audio
		return resp
	}

	resp.Upload.Key = resourceID
	if h.recordings != nil {
		if u, err := h.recordings.URL(ctx, uid, path.Base(resourceID)); err == nil {
			resp.Upload.URL = u
		}
	}
	return resp
}

// ResetSession godoc
// @ID          resetSession
// @Summary     Dismiss a finished session
// @Description Returns an uploaded or failed session to idle.
// @Tags        Session
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.SessionSnapshot
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /session [delete]
func (h *Handlers) ResetSession(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	snap, err := h.sessions.Reset(uid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// SessionStream godoc
// @ID          sessionStream
// @Summary     Live session updates
// @Description Upgrades to a websocket that receives a SessionSnapshot JSON
// @Description message on every state or progress change, starting with the current one.
// @Tags        Session
// @Security    BearerAuth
// @Success     101  {string}  string  "Switching Protocols"
// @Router      /session/ws [get]
func (h *Handlers) SessionStream(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		middleware.LoggerFrom(c).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.sessions.Subscribe(uid)
	defer cancel()

	// The read pump only handles control frames and notices the close.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case snap, open := <-updates:
			if !open {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// checkOrigin accepts requests without an Origin (native clients) and, when
// origins are configured, only those browser origins.
func (h *Handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.wsOrigins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, o := range h.wsOrigins {
		if o == "*" || strings.EqualFold(strings.TrimRight(o, "/"), u.Scheme+"://"+u.Host) {
			return true
		}
	}
	return false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
