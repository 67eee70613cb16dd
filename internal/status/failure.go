package status

import (
	"codeberg.org/vestilook/server/internal/vton"
)

type failureCategory int

const (
	categoryUnknown failureCategory = iota
	categoryGarment
	categoryTransient
)

type failureEntry struct {
	category    failureCategory
	title       string
	description string
	hint        string
}

// error code -> guidance. codes missing here are treated as unknown.
var failureCatalog = map[vton.ErrorCode]failureEntry{
	vton.CodeInvalidGarmentImage: {
		category:    categoryGarment,
		title:       "Garment photo was rejected",
		description: "The garment image could not be used for a try-on.",
		hint:        "Upload a well-lit photo of a single garment on a plain background.",
	},
	vton.CodeGarmentNotDetected: {
		category:    categoryGarment,
		title:       "No garment found",
		description: "We could not find a garment in the uploaded photo.",
		hint:        "Make sure the garment fills most of the frame.",
	},
	vton.CodeSafetyBlocked: {
		category:    categoryGarment,
		title:       "Image was blocked",
		description: "The image did not pass our content safety checks.",
		hint:        "Try a different garment photo.",
	},
	vton.CodeProviderTimeout: {
		category:    categoryTransient,
		title:       "Generation timed out",
		description: "The try-on service took too long to respond.",
		hint:        "This is usually temporary. Try again in a few minutes.",
	},
	vton.CodeProviderUnavailable: {
		category:    categoryTransient,
		title:       "Service unavailable",
		description: "The try-on service is temporarily unavailable.",
		hint:        "Try again in a few minutes.",
	},
	vton.CodeProviderQuota: {
		category:    categoryTransient,
		title:       "Service is busy",
		description: "The try-on service is handling too many requests.",
		hint:        "Try again shortly.",
	},
	vton.CodeProviderAuth: {
		category:    categoryTransient,
		title:       "Service misconfigured",
		description: "We could not reach the try-on service.",
		hint:        "Our team has been notified. Try again later.",
	},
	vton.CodeInternalError: {
		category:    categoryTransient,
		title:       "Something went wrong",
		description: "An internal error interrupted the generation.",
		hint:        "Try again. Contact support if it keeps happening.",
	},
}

var unknownFailure = failureEntry{
	category:    categoryUnknown,
	title:       "Generation failed",
	description: "The generation could not be completed.",
	hint:        "Try again, use another garment photo, or contact support.",
}

func (c failureCategory) actions() []FailureAction {
	switch c {
	case categoryGarment:
		return []FailureAction{ActionReuploadGarment}
	case categoryTransient:
		return []FailureAction{ActionRetry, ActionContactSupport}
	default:
		return []FailureAction{ActionRetry, ActionContactSupport, ActionReuploadGarment}
	}
}

// returns the suggested actions for an error code
func FailureActions(code string) []FailureAction {
	return lookupFailure(code).category.actions()
}

func lookupFailure(code string) failureEntry {
	if entry, ok := failureCatalog[vton.ErrorCode(code)]; ok {
		return entry
	}

	return unknownFailure
}

func buildFailure(job *vton.Job, supportURL string) *Failure {
	code := string(vton.CodeUnknown)
	if job.ErrorCode != nil && *job.ErrorCode != "" {
		code = *job.ErrorCode
	}

	entry := lookupFailure(code)

	description := entry.description
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		description = *job.ErrorMessage
	}

	return &Failure{
		Code:        code,
		Title:       entry.title,
		Description: description,
		Hint:        entry.hint,
		Actions:     entry.category.actions(),
		SupportURL:  supportURL,
	}
}
