package garment

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"net/http"
	"strings"

	apierrors "codeberg.org/vestilook/server/internal/errors"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMinWidth  = 1024
	DefaultMinHeight = 1024
	DefaultMaxBytes  = 10 * 1024 * 1024
	DefaultMaxPixels = 6000 * 6000
)

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// returns the constraints used when nothing is configured
func DefaultConstraints() Constraints {
	return Constraints{
		MinWidth:     DefaultMinWidth,
		MinHeight:    DefaultMinHeight,
		MaxBytes:     DefaultMaxBytes,
		MaxPixels:    DefaultMaxPixels,
		AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
	}
}

func (e *ValidationError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// extracts the validation code from an error chain
func CodeOf(err error) (Code, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Code, true
	}

	return "", false
}

// returns the HTTP status an upload rejected with this code answers with
func HTTPStatus(code Code) int {
	switch code {
	case CodeMissingFile:
		return http.StatusBadRequest
	case CodeUnsupportedMIME:
		return http.StatusUnsupportedMediaType
	case CodeExceedsMaxSize:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusUnprocessableEntity
	}
}

// returns the envelope code an upload rejected with this code answers with.
// a missing file is an ordinary malformed request.
func ResponseCode(code Code) string {
	if code == CodeMissingFile {
		return apierrors.CodeInvalidRequest
	}

	return string(code)
}

// ignores the declared content type and always sniffs the bytes
func SniffContent() Option {
	return func(v *Validator) {
		v.sniffOnly = true
	}
}

// sets the factory used by Select to build previews
func WithPreviews(f PreviewFactory) Option {
	return func(v *Validator) {
		v.previews = f
	}
}

func NewValidator(c Constraints, opts ...Option) *Validator {
	v := &Validator{
		constraints: c,
		previews:    TempPreviews{},
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// returns the active constraints
func (v *Validator) Constraints() Constraints {
	return v.constraints
}

// runs the checks in order and stops at the first failure:
// presence, content type, size, decodability, resolution. pixel dimensions
// are bounded from the header alone so an oversized image is never decoded.
func (v *Validator) Check(f *File) (*Image, error) {
	if f == nil || len(f.Data) == 0 {
		return nil, &ValidationError{Code: CodeMissingFile, Message: "no image was provided"}
	}

	contentType := v.contentType(f)
	if !lo.Contains(v.constraints.AllowedTypes, contentType) {
		return nil, &ValidationError{
			Code:    CodeUnsupportedMIME,
			Message: fmt.Sprintf("%s is not supported, use %s", displayType(contentType), v.allowedList()),
		}
	}

	if v.constraints.MaxBytes > 0 && int64(len(f.Data)) > v.constraints.MaxBytes {
		return nil, &ValidationError{
			Code:    CodeExceedsMaxSize,
			Message: fmt.Sprintf("image is larger than %d MB", v.constraints.MaxBytes/(1024*1024)),
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return nil, &ValidationError{Code: CodeDecodeError, Message: "image could not be decoded"}
	}

	if limit := v.constraints.MaxPixels; limit > 0 && cfg.Width*cfg.Height > limit {
		return nil, &ValidationError{
			Code: CodeExceedsMaxSize,
			Message: fmt.Sprintf("image is %dx%d, at most %d megapixels are allowed",
				cfg.Width, cfg.Height, limit/1_000_000),
		}
	}

	img, err := imaging.Decode(bytes.NewReader(f.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ValidationError{Code: CodeDecodeError, Message: "image could not be decoded"}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width < v.constraints.MinWidth || height < v.constraints.MinHeight {
		return nil, &ValidationError{
			Code: CodeBelowMinResolution,
			Message: fmt.Sprintf("image is %dx%d, at least %dx%d is required",
				width, height, v.constraints.MinWidth, v.constraints.MinHeight),
		}
	}

	return &Image{
		Width:       width,
		Height:      height,
		ContentType: contentType,
		Ext:         extensions[contentType],
	}, nil
}

func (v *Validator) contentType(f *File) string {
	if !v.sniffOnly && f.ContentType != "" {
		return normalizeType(f.ContentType)
	}

	return normalizeType(mimetype.Detect(f.Data).String())
}

func (v *Validator) allowedList() string {
	return strings.Join(lo.Map(v.constraints.AllowedTypes, func(t string, _ int) string {
		return displayType(t)
	}), ", ")
}

// strips parameters such as "; charset=binary"
func normalizeType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}

	return strings.ToLower(strings.TrimSpace(t))
}

func displayType(t string) string {
	if t == "" {
		return "unknown type"
	}

	return strings.ToUpper(strings.TrimPrefix(t, "image/"))
}

// validates a file and creates a preview for it
func (v *Validator) Select(f *File) (*Selection, error) {
	img, err := v.Check(f)
	if err != nil {
		return nil, err
	}

	preview, err := v.previews.Create(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview: %w", err)
	}

	return &Selection{
		File:       f,
		Image:      *img,
		PreviewURL: preview.URL(),
		preview:    preview,
	}, nil
}

// swaps the current selection for a new file. the previous preview is
// released only once the new file is accepted.
func (v *Validator) Replace(prev *Selection, f *File) (*Selection, error) {
	next, err := v.Select(f)
	if err != nil {
		return prev, err
	}

	if prev != nil {
		if err := prev.Release(); err != nil {
			return next, fmt.Errorf("failed to release previous preview: %w", err)
		}
	}

	return next, nil
}

// frees the preview; safe to call more than once
func (s *Selection) Release() error {
	var err error

	s.once.Do(func() {
		if s.preview != nil {
			err = s.preview.Release()
		}
	})

	return err
}
