package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

// MediaKind identifies which kind of memorial media an upload is
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaQR    MediaKind = "qr"
)

// MediaRule is the size cap and accepted extensions for one media kind
type MediaRule struct {
	MaxSize     int64
	Extensions  map[string]string // extension -> content type
	Description string
}

var mediaRules = map[MediaKind]MediaRule{
	MediaPhoto: {
		MaxSize:     10 * 1024 * 1024,
		Description: ".png, .jpg, .jpeg, .webp, .gif",
		Extensions: map[string]string{
			".png":  "image/png",
			".jpg":  "image/jpeg",
			".jpeg": "image/jpeg",
			".webp": "image/webp",
			".gif":  "image/gif",
		},
	},
	MediaVideo: {
		MaxSize:     100 * 1024 * 1024,
		Description: ".mp4, .mov, .webm",
		Extensions: map[string]string{
			".mp4":  "video/mp4",
			".mov":  "video/quicktime",
			".webm": "video/webm",
		},
	},
	MediaAudio: {
		MaxSize:     20 * 1024 * 1024,
		Description: ".mp3, .wav, .m4a, .ogg",
		Extensions: map[string]string{
			".mp3": "audio/mpeg",
			".wav": "audio/wav",
			".m4a": "audio/mp4",
			".ogg": "audio/ogg",
		},
	},
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateMediaFile validates the uploaded file format and size for the given kind
// and returns the content type to store it with
func ValidateMediaFile(fileHeader *multipart.FileHeader, kind MediaKind) (string, error) {
	rule, ok := mediaRules[kind]
	if !ok {
		return "", &FileUploadError{
			Code:    "UNSUPPORTED_MEDIA_KIND",
			Message: fmt.Sprintf("Uploads of kind %q are not supported", kind),
		}
	}

	if fileHeader.Size > rule.MaxSize {
		return "", &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", rule.MaxSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, ok := rule.Extensions[ext]
	if !ok {
		return "", &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Only %s files are allowed", rule.Description),
		}
	}

	return contentType, nil
}

// ReadUploadedFile reads the whole multipart file into memory
func ReadUploadedFile(fileHeader *multipart.FileHeader) (data []byte, err error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close uploaded file: %w", closeErr)
		}
	}()

	data, err = io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return data, nil
}

// SafeFilename reduces a client supplied filename to a storage friendly base name
func SafeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := Slugify(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "file"
	}
	return stem + ext
}
