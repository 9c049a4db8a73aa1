package forms

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/siahsang/beatpost/models"
)

const (
	MaxPostImageBytes = 5 << 20
	MaxAvatarBytes    = 2 << 20
)

// CheckImage sniffs the upload and returns an error message, or "" when it is
// an image within max bytes. A missing content type is filled in from the sniff.
func CheckImage(upload *models.Upload, max int) string {
	if len(upload.Data) == 0 {
		return "must not be empty"
	}

	detected := mimetype.Detect(upload.Data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "must be an image file"
	}
	if upload.ContentType == "" {
		upload.ContentType = detected.String()
	}
	if len(upload.Data) > max {
		return fmt.Sprintf("must not exceed %s", humanize.IBytes(uint64(max)))
	}
	return ""
}
