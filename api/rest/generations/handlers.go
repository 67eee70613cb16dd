package generations

import (
	"errors"
	"net/http"
	"strconv"

	"codeberg.org/vestilook/server/internal/auth"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"codeberg.org/vestilook/server/internal/garment"
	"codeberg.org/vestilook/server/internal/generation"
	"codeberg.org/vestilook/server/internal/history"
	"codeberg.org/vestilook/server/vestilook/generations"
	"github.com/gin-gonic/gin"
)

// CreateHandler godoc
// @Summary Submit a generation
// @Description Validates the garment, charges one generation from the quota and queues the try-on job
// @Tags generations
// @Accept multipart/form-data
// @Produce json
// @Param consentVersion formData string true "Consent policy version the user accepted"
// @Param retainForHours formData int false "Hours to keep the result"
// @Param garment formData file true "Garment photo"
// @Success 202 {object} vton.Submission
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 413 {object} errors.ErrorResponse
// @Failure 415 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/vton/generations [post]
// @Security BearerAuth
func CreateHandler(svc Service, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		consentVersion := c.PostForm("consentVersion")
		if consentVersion == "" {
			apierrors.InvalidRequest(c, "consentVersion field is required.", nil)
			return
		}

		retain := 0
		if raw := c.PostForm("retainForHours"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				apierrors.InvalidRequest(c, "retainForHours must be an integer", nil)
				return
			}

			retain = n
		}

		// a missing file is reported by validation
		fh, _ := c.FormFile("garment") //nolint:errcheck // absence handled by validation

		file, err := garment.FromMultipart(fh, maxBytes)
		if err != nil {
			apierrors.InvalidRequest(c, "could not read garment upload", err)
			return
		}

		submission, err := svc.Create(c.Request.Context(), generation.CreateInput{
			UserID:         userID,
			ConsentVersion: consentVersion,
			RetainForHours: retain,
			Garment:        file,
		})
		if err != nil {
			respondError(c, err, "failed to submit generation")
			return
		}

		c.Header("Location", basePath+"/"+submission.ID)
		c.JSON(http.StatusAccepted, submission)
	}
}

// ListHandler godoc
// @Summary List generations
// @Description Returns the user's generations newest first, filtered by status and creation date
// @Tags generations
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param from query string false "RFC3339 lower bound, inclusive"
// @Param to query string false "RFC3339 upper bound, exclusive"
// @Param limit query int false "Page size (max 100)"
// @Param cursor query string false "Cursor from the previous page"
// @Success 200 {object} history.Page
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/vton/generations [get]
// @Security BearerAuth
func ListHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		filters, err := history.ParseQuery(c.Request.URL.Query())
		if err != nil {
			apierrors.InvalidRequest(c, "invalid history filters", err)
			return
		}

		page, err := svc.List(c.Request.Context(), userID, filters)
		if err != nil {
			respondError(c, err, "failed to list generations")
			return
		}

		c.JSON(http.StatusOK, page)
	}
}

// GetHandler godoc
// @Summary Get a generation
// @Tags generations
// @Produce json
// @Param id path string true "Generation ID"
// @Success 200 {object} vton.Job
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/vton/generations/{id} [get]
// @Security BearerAuth
func GetHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		id, ok := apierrors.ValidatePathUUID(c, "id")
		if !ok {
			return
		}

		job, err := svc.Get(c.Request.Context(), id, userID)
		if err != nil {
			respondError(c, err, "failed to load generation")
			return
		}

		c.JSON(http.StatusOK, job)
	}
}

// ViewHandler godoc
// @Summary Get a generation view
// @Description Returns the display model of a generation with signed asset URLs
// @Tags generations
// @Produce json
// @Param id path string true "Generation ID"
// @Success 200 {object} status.View
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/vton/generations/{id}/view [get]
// @Security BearerAuth
func ViewHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		id, ok := apierrors.ValidatePathUUID(c, "id")
		if !ok {
			return
		}

		view, err := svc.View(c.Request.Context(), id, userID)
		if err != nil {
			respondError(c, err, "failed to load generation")
			return
		}

		c.JSON(http.StatusOK, view)
	}
}

// RateHandler godoc
// @Summary Rate a generation
// @Tags generations
// @Accept json
// @Produce json
// @Param id path string true "Generation ID"
// @Param request body RateRequest true "Rating from 1 to 5"
// @Success 200 {object} vton.Job
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/vton/generations/{id}/rating [post]
// @Security BearerAuth
func RateHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		id, ok := apierrors.ValidatePathUUID(c, "id")
		if !ok {
			return
		}

		var req RateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.InvalidRequest(c, "rating is required", err)
			return
		}

		job, err := svc.Rate(c.Request.Context(), id, userID, req.Rating)
		if err != nil {
			respondError(c, err, "failed to rate generation")
			return
		}

		c.JSON(http.StatusOK, job)
	}
}

// translates domain errors into API responses
func respondError(c *gin.Context, err error, fallback string) {
	var vErr *garment.ValidationError
	if errors.As(err, &vErr) {
		apierrors.ValidationFailed(c, garment.HTTPStatus(vErr.Code), garment.ResponseCode(vErr.Code), vErr.Message)
		return
	}

	switch {
	case errors.Is(err, generation.ErrConsentOutdated),
		errors.Is(err, generation.ErrConsentRequired),
		errors.Is(err, generation.ErrPersonaMissing):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, generation.ErrInvalidRetention),
		errors.Is(err, generation.ErrInvalidRating):
		apierrors.InvalidRequest(c, err.Error(), nil)
	case errors.Is(err, history.ErrInvalidCursor):
		apierrors.InvalidRequest(c, "invalid cursor", nil)
	case errors.Is(err, generations.ErrQuotaExhausted):
		apierrors.QuotaExhausted(c, "")
	case errors.Is(err, generations.ErrNotRatable):
		apierrors.Conflict(c, "only finished, unexpired generations can be rated once")
	case errors.Is(err, generations.ErrNotFound):
		apierrors.NotFound(c, "generation")
	default:
		apierrors.InternalError(c, fallback, err)
	}
}
