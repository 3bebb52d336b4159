// sightings.go: sighting read and delete endpoints.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Reefey/Backend-sub000/internal/datastore"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/geometry"
)

const defaultSightingPageSize = 50

// SightingPhotoResponse is the JSON form of one photo on a sighting.
type SightingPhotoResponse struct {
	ID           uint                 `json:"id"`
	PhotoURL     string               `json:"photoUrl"`
	AnnotatedURL string               `json:"annotatedUrl,omitempty"`
	Box          geometry.BoundingBox `json:"box"`
	Confidence   float64              `json:"confidence"`
	DayPeriod    string               `json:"dayPeriod,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// SightingResponse is the JSON form of a sighting with its photos.
type SightingResponse struct {
	ID          uint                    `json:"id"`
	DeviceID    string                  `json:"deviceId"`
	SpeciesID   *uint                   `json:"speciesId,omitempty"`
	Status      string                  `json:"status"`
	FirstSeenAt time.Time               `json:"firstSeenAt"`
	LastSeenAt  time.Time               `json:"lastSeenAt"`
	Photos      []SightingPhotoResponse `json:"photos"`
}

func newSightingResponse(s *datastore.Sighting) SightingResponse {
	resp := SightingResponse{
		ID:          s.ID,
		DeviceID:    s.DeviceID,
		SpeciesID:   s.SpeciesID,
		Status:      s.Status,
		FirstSeenAt: s.FirstSeenAt,
		LastSeenAt:  s.LastSeenAt,
		Photos:      make([]SightingPhotoResponse, 0, len(s.Photos)),
	}
	for i := range s.Photos {
		p := &s.Photos[i]
		resp.Photos = append(resp.Photos, SightingPhotoResponse{
			ID:           p.ID,
			PhotoURL:     p.PhotoURL,
			AnnotatedURL: p.AnnotatedURL,
			Box:          p.Box(),
			Confidence:   p.Confidence,
			DayPeriod:    p.DayPeriod,
			CreatedAt:    p.CreatedAt,
		})
	}
	return resp
}

func (c *Controller) initSightingRoutes() {
	c.Group.GET("/sightings", c.GetSightings)
	c.Group.GET("/sightings/:id", c.GetSighting)
	c.Group.DELETE("/sightings/:id", c.DeleteSighting)
}

// GetSightings handles GET /api/v1/sightings?deviceId=&limit=&offset=.
func (c *Controller) GetSightings(ctx echo.Context) error {
	deviceID := ctx.QueryParam("deviceId")
	if deviceID == "" {
		return c.HandleError(ctx, errors.ValidationError("deviceId query parameter is required"),
			"deviceId query parameter is required", http.StatusBadRequest)
	}

	limit := queryInt(ctx, "limit", defaultSightingPageSize)
	offset := queryInt(ctx, "offset", 0)

	sightings, err := c.DS.GetSightings(deviceID, limit, offset)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list sightings", http.StatusInternalServerError)
	}

	resp := make([]SightingResponse, 0, len(sightings))
	for i := range sightings {
		resp = append(resp, newSightingResponse(&sightings[i]))
	}
	return ctx.JSON(http.StatusOK, resp)
}

// GetSighting handles GET /api/v1/sightings/:id.
func (c *Controller) GetSighting(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid sighting ID", http.StatusBadRequest)
	}

	sighting, err := c.DS.GetSighting(id)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Sighting not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get sighting", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, newSightingResponse(&sighting))
}

// DeleteSighting handles DELETE /api/v1/sightings/:id?deviceId=. Only the
// owning device may delete its sighting; photos are removed with it.
func (c *Controller) DeleteSighting(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid sighting ID", http.StatusBadRequest)
	}

	deviceID := ctx.QueryParam("deviceId")
	if deviceID == "" {
		return c.HandleError(ctx, errors.ValidationError("deviceId is required"),
			"deviceId is required", http.StatusBadRequest)
	}

	if err := c.DS.DeleteSighting(id, deviceID); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Sighting not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete sighting", http.StatusInternalServerError)
	}

	return ctx.NoContent(http.StatusNoContent)
}

func pathID(ctx echo.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return 0, errors.ValidationError("id must be a positive integer")
	}
	return uint(id), nil
}

func queryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
