package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/services"
)

// DispatchRequest is the position read once by the device.
type DispatchRequest struct {
	Latitude  *float64 `json:"latitude"  example:"-23.5505"`
	Longitude *float64 `json:"longitude" example:"-46.6333"`
}

// locator turns the posted coordinates into a single-read Locator. Missing
// coordinates mean the device had no fix.
func (r DispatchRequest) locator() capture.Locator {
	if r.Latitude == nil || r.Longitude == nil {
		return capture.LocatorFunc(func(context.Context) (capture.Location, error) {
			return capture.Location{}, capture.ErrNoFix
		})
	}
	return capture.Fixed{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

// DispatchLocation godoc
// @ID          dispatchLocation
// @Summary     Send the position to the emergency contact
// @Description Composes the map message for the first contact of the list and
// @Description returns the WhatsApp link that delivers it. There is no fallback channel.
// @Tags        Dispatch
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.DispatchRequest  true  "Current position"
// @Success     200   {object}  services.Dispatch
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     422   {object}  handlers.ErrorResponse  "No emergency contact or no location"
// @Router      /dispatch [post]
func (h *Handlers) DispatchLocation(c *gin.Context) {
	uid, okID := userID(c)
	if !okID {
		return
	}
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	d, err := h.dispatch.Dispatch(c.Request.Context(), uid, req.locator())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// EmergencyNumbers godoc
// @ID          emergencyNumbers
// @Summary     Emergency services directory
// @Tags        Dispatch
// @Produce     json
// @Success     200  {array}  domain.EmergencyNumber
// @Router      /emergency-numbers [get]
func (h *Handlers) EmergencyNumbers(c *gin.Context) {
	ok(c, http.StatusOK, services.EmergencyNumbers())
}
