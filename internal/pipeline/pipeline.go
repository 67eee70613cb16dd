package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"codeberg.org/vestilook/server/internal/client"
	"codeberg.org/vestilook/server/internal/consent"
	apierrors "codeberg.org/vestilook/server/internal/errors"
	"codeberg.org/vestilook/server/internal/logger"
	"codeberg.org/vestilook/server/internal/vton"
)

func New(consents ConsentAPI, generations GenerationAPI) *Pipeline {
	return &Pipeline{consent: consents, generations: generations}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// submits a generation for the selected garment.
//
// when the working profile is not consent compliant the current policy is
// accepted first, and the generation is only sent once that succeeded. the
// two requests never overlap. on success working is updated in place: the
// consent receipt is merged and one generation is counted against the
// quota until the next profile fetch replaces it. an accepted consent is
// kept even if the generation then fails.
func (p *Pipeline) Run(ctx context.Context, r Request, working *vton.Profile) (*Result, error) {
	if r.Garment == nil || r.Garment.File == nil {
		return nil, &Error{
			Code:  apierrors.CodeInvalidRequest,
			Stage: StageGeneration,
			Err:   errors.New("no garment selected"),
		}
	}

	if working.Consent.RequiredVersion == "" {
		return nil, &Error{
			Code:  apierrors.CodeInvalidRequest,
			Stage: StageConsent,
			Err:   errors.New("required consent version unknown"),
		}
	}

	result := &Result{}

	if !consent.IsCompliant(working.Consent.RequiredVersion, working.Consent.AcceptedVersion) {
		receipt, err := p.consent.AcceptConsent(ctx, working.Consent.RequiredVersion)
		if err != nil {
			return nil, classify(StageConsent, err)
		}

		working.Consent = working.Consent.Merge(*receipt)
		result.Consent = receipt

		logger.Debug("consent accepted before submission",
			"version", receipt.Version,
			"status", receipt.Status,
		)
	}

	submitted, err := p.generations.SubmitGeneration(ctx, client.Submission{
		GarmentName:    r.Garment.File.Name,
		GarmentData:    r.Garment.File.Data,
		ConsentVersion: working.Consent.RequiredVersion,
		RetainForHours: r.RetainForHours,
	})
	if err != nil {
		return nil, classify(StageGeneration, err)
	}

	working.Quota = working.Quota.Consume()

	result.JobID = submitted.ID
	result.Status = submitted.Status
	result.Location = submitted.Location
	result.ETASeconds = submitted.ETASeconds
	result.Quota = submitted.Quota

	return result, nil
}

// maps a request failure onto the pipeline taxonomy
func classify(stage Stage, err error) *Error {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &Error{Code: apierrors.CodeNetwork, Stage: stage, Retriable: true, Err: err}
		}

		return &Error{Code: apierrors.CodeServerError, Stage: stage, Retriable: true, Err: err}
	}

	out := &Error{Stage: stage, Retriable: apiErr.Retriable(), Err: err}

	switch {
	case apiErr.Status == 0:
		out.Code = apierrors.CodeNetwork
		out.Retriable = true
	case apiErr.Code == apierrors.CodeTooManyRequests:
		out.Code = apierrors.CodeTooManyRequests
	case apiErr.Code == apierrors.CodeQuotaExhausted, apiErr.Status == http.StatusTooManyRequests:
		out.Code = apierrors.CodeQuotaExhausted
		out.Retriable = false
	case apiErr.Status == http.StatusUnauthorized:
		out.Code = apierrors.CodeUnauthorized
	case apiErr.Status == http.StatusConflict:
		out.Code = apierrors.CodeConflict
	case apiErr.Status >= http.StatusInternalServerError:
		out.Code = apierrors.CodeServerError
	default:
		out.Code = apierrors.CodeInvalidRequest
	}

	return out
}
