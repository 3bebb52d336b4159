// quota.go: read-only quota status endpoint.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Reefey/Backend-sub000/internal/errors"
)

func (c *Controller) initQuotaRoutes() {
	c.Group.GET("/quota/:deviceId", c.GetQuotaStatus)
}

// GetQuotaStatus handles GET /api/v1/quota/:deviceId. The lookup never
// consumes quota. When the quota gate is disabled there is no usage to
// report and the endpoint answers not-found.
func (c *Controller) GetQuotaStatus(ctx echo.Context) error {
	deviceID := ctx.Param("deviceId")
	if deviceID == "" {
		return c.HandleError(ctx, errors.ValidationError("deviceId is required"),
			"deviceId is required", http.StatusBadRequest)
	}

	if c.Gate == nil {
		return c.HandleError(ctx, errors.NewStd("quota tracking is disabled"),
			"Quota tracking is disabled", http.StatusNotFound)
	}

	return ctx.JSON(http.StatusOK, c.Gate.Status(deviceID))
}
