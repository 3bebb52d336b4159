// analyze.go: photo analysis endpoints.
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/pipeline"
)

// analyzeRequest carries the non-file form fields of an analysis request.
type analyzeRequest struct {
	DeviceID string `form:"deviceId" validate:"required,min=1,max=128"`
}

// QuotaExceededResponse extends the error body with usage numbers so
// clients can show a meaningful limit message.
type QuotaExceededResponse struct {
	ErrorResponse
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

func (c *Controller) initAnalyzeRoutes() {
	c.Group.POST("/analyze", c.AnalyzeImage)
	c.Group.POST("/analyze/batch", c.AnalyzeBatch)
}

// AnalyzeImage handles POST /api/v1/analyze.
func (c *Controller) AnalyzeImage(ctx echo.Context) error {
	req, err := c.bindAnalyzeRequest(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid analysis request", http.StatusBadRequest)
	}

	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		return c.HandleError(ctx, err, "An image file is required", http.StatusBadRequest)
	}
	img, err := readUpload(fileHeader)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read uploaded image", http.StatusBadRequest)
	}

	result, err := c.Pipeline.AnalyzeImage(ctx.Request().Context(), req.DeviceID, img)
	if err != nil {
		return c.handleAnalysisError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

// AnalyzeBatch handles POST /api/v1/analyze/batch.
func (c *Controller) AnalyzeBatch(ctx echo.Context) error {
	req, err := c.bindAnalyzeRequest(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid analysis request", http.StatusBadRequest)
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return c.HandleError(ctx, err, "Multipart form is required", http.StatusBadRequest)
	}
	files := form.File["images"]
	if len(files) == 0 {
		return c.HandleError(ctx, errors.ValidationError("at least one image is required"),
			"At least one image is required", http.StatusBadRequest)
	}
	if len(files) > conf.MaxBatchImages {
		return c.HandleError(ctx,
			errors.ValidationError(fmt.Sprintf("batch size %d exceeds maximum of %d", len(files), conf.MaxBatchImages)),
			"Too many images in batch", http.StatusBadRequest)
	}

	images := make([]pipeline.Image, 0, len(files))
	for _, fh := range files {
		img, err := readUpload(fh)
		if err != nil {
			return c.HandleError(ctx, err, "Failed to read uploaded image", http.StatusBadRequest)
		}
		images = append(images, img)
	}

	result, err := c.Pipeline.AnalyzeBatch(ctx.Request().Context(), req.DeviceID, images)
	if err != nil {
		return c.handleAnalysisError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

func (c *Controller) bindAnalyzeRequest(ctx echo.Context) (*analyzeRequest, error) {
	var req analyzeRequest
	if err := ctx.Bind(&req); err != nil {
		return nil, err
	}
	if err := ctx.Validate(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func readUpload(fh *multipart.FileHeader) (pipeline.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return pipeline.Image{}, errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("operation", "open_upload").
			Context("filename", fh.Filename).
			Build()
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Image{}, errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("operation", "read_upload").
			Context("filename", fh.Filename).
			Build()
	}
	return pipeline.Image{Filename: fh.Filename, Data: data}, nil
}

// handleAnalysisError maps pipeline failures to HTTP status codes.
func (c *Controller) handleAnalysisError(ctx echo.Context, err error) error {
	switch {
	case errors.IsQuotaExceeded(err):
		used, limit, _ := errors.QuotaDetails(err)
		resp := QuotaExceededResponse{
			ErrorResponse: *NewErrorResponse(err, "Daily analysis limit reached", http.StatusTooManyRequests),
			Used:          used,
			Limit:         limit,
		}
		c.apiLogger.Warn("Quota exceeded",
			"correlation_id", resp.CorrelationID,
			"used", used,
			"limit", limit,
			"path", ctx.Request().URL.Path,
		)
		return ctx.JSON(http.StatusTooManyRequests, resp)
	case errors.IsParseError(err):
		return c.HandleError(ctx, err, "Vision model returned unreadable output", http.StatusUnprocessableEntity)
	case errors.IsModelUnavailable(err):
		return c.HandleError(ctx, err, "Vision model is unavailable", http.StatusServiceUnavailable)
	case errors.IsCategory(err, errors.CategoryValidation):
		return c.HandleError(ctx, err, "Invalid analysis request", http.StatusBadRequest)
	default:
		return c.HandleError(ctx, err, "Analysis failed", http.StatusInternalServerError)
	}
}
