package garment

import "sync"

// Code identifies which validation check rejected a file
type Code string

const (
	CodeMissingFile        Code = "missing_file"
	CodeUnsupportedMIME    Code = "unsupported_mime"
	CodeExceedsMaxSize     Code = "exceeds_max_size"
	CodeDecodeError        Code = "decode_error"
	CodeBelowMinResolution Code = "below_min_resolution"
)

type ValidationError struct {
	Code    Code
	Message string
}

type Constraints struct {
	MinWidth     int
	MinHeight    int
	MaxBytes     int64
	// upper bound on width*height, read from the header before decoding; 0 disables it
	MaxPixels    int
	AllowedTypes []string
}

// File is an image as picked by the user or received in a multipart upload
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Image describes a file that passed validation
type Image struct {
	Width       int
	Height      int
	ContentType string
	Ext         string
}

// Preview is a local, displayable copy of a selected file
type Preview interface {
	URL() string
	Release() error
}

type PreviewFactory interface {
	Create(f *File) (Preview, error)
}

// Selection is a validated file plus its preview
type Selection struct {
	File       *File
	Image      Image
	PreviewURL string

	preview Preview
	once    sync.Once
}

type Validator struct {
	constraints Constraints
	previews    PreviewFactory
	sniffOnly   bool
}

type Option func(*Validator)
