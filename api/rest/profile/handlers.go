package profile

import (
	"errors"
	"net/http"

	"codeberg.org/vestilook/server/internal/account"
	"codeberg.org/vestilook/server/internal/auth"
	"codeberg.org/vestilook/server/internal/consent"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"codeberg.org/vestilook/server/internal/garment"
	"github.com/gin-gonic/gin"
)

// GetProfileHandler godoc
// @Summary Get the user's profile
// @Description Returns persona, consent state and quota. The profile is created on first access.
// @Tags profile
// @Produce json
// @Success 200 {object} vton.Profile
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/profile [get]
// @Security BearerAuth
func GetProfileHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		profile, err := svc.Profile(c.Request.Context(), userID)
		if err != nil {
			apierrors.InternalError(c, "failed to load profile", err)
			return
		}

		c.JSON(http.StatusOK, profile)
	}
}

// UploadPersonaHandler godoc
// @Summary Upload the persona photo
// @Tags profile
// @Accept multipart/form-data
// @Produce json
// @Param persona formData file true "Full body photo"
// @Success 200 {object} vton.Persona
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 413 {object} errors.ErrorResponse
// @Failure 415 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/profile/persona [put]
// @Security BearerAuth
func UploadPersonaHandler(svc Service, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		fh, _ := c.FormFile("persona") //nolint:errcheck // absence handled by validation

		file, err := garment.FromMultipart(fh, maxBytes)
		if err != nil {
			apierrors.InvalidRequest(c, "could not read persona upload", err)
			return
		}

		persona, err := svc.UploadPersona(c.Request.Context(), userID, file)
		if err != nil {
			var vErr *garment.ValidationError
			if errors.As(err, &vErr) {
				apierrors.ValidationFailed(c, garment.HTTPStatus(vErr.Code), garment.ResponseCode(vErr.Code), vErr.Message)
				return
			}

			apierrors.InternalError(c, "failed to save persona", err)
			return
		}

		c.JSON(http.StatusOK, persona)
	}
}

// GetConsentHandler godoc
// @Summary Get consent status
// @Description Returns the required and accepted policy versions with the policy text
// @Tags profile
// @Produce json
// @Success 200 {object} consent.Document
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/profile/consent [get]
// @Security BearerAuth
func GetConsentHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		doc, err := svc.Consent(c.Request.Context(), userID)
		if err != nil {
			apierrors.InternalError(c, "failed to load consent", err)
			return
		}

		c.JSON(http.StatusOK, doc)
	}
}

// AcceptConsentHandler godoc
// @Summary Accept the consent policy
// @Description Records acceptance of the current policy version. 201 on first acceptance, 200 afterwards.
// @Tags profile
// @Accept json
// @Produce json
// @Param request body consent.Acceptance true "Accepted version"
// @Success 200 {object} consent.Receipt
// @Success 201 {object} consent.Receipt
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/profile/consent [post]
// @Security BearerAuth
func AcceptConsentHandler(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.GetUserID(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		var req consent.Acceptance
		if err := c.ShouldBindJSON(&req); err != nil {
			apierrors.InvalidRequest(c, "invalid consent payload", err)
			return
		}

		receipt, err := svc.AcceptConsent(c.Request.Context(), userID, req)
		if err != nil {
			switch {
			case errors.Is(err, account.ErrVersionRequired),
				errors.Is(err, account.ErrConsentNotAccepted):
				apierrors.InvalidRequest(c, err.Error(), nil)
			case errors.Is(err, account.ErrConsentOutdated):
				apierrors.Conflict(c, err.Error())
			default:
				apierrors.InternalError(c, "failed to record consent", err)
			}
			return
		}

		c.JSON(receipt.HTTPStatus(), receipt)
	}
}
