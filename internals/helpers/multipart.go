// file: internals/helpers/multipart.go
package helper

import (
	"mime/multipart"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Field names accepted for uploaded files, in order of preference.
var defaultFileFieldCandidates = []string{"files", "files[]", "file"}

// IsMultipart reports whether the request body is multipart/form-data.
func IsMultipart(c *fiber.Ctx) bool {
	ct := strings.ToLower(strings.TrimSpace(c.Get(fiber.HeaderContentType)))
	return strings.HasPrefix(ct, fiber.MIMEMultipartForm)
}

// CollectUploadFiles gathers file headers from the preferred fields first,
// then from any other field, skipping parts without a filename.
func CollectUploadFiles(form *multipart.Form) []*multipart.FileHeader {
	if form == nil || form.File == nil {
		return nil
	}
	var out []*multipart.FileHeader
	seen := map[string]bool{}
	add := func(key string) {
		for _, fh := range form.File[key] {
			if fh != nil && fh.Filename != "" {
				out = append(out, fh)
			}
		}
		seen[key] = true
	}
	for _, key := range defaultFileFieldCandidates {
		add(key)
	}

	rest := make([]string, 0, len(form.File))
	for key := range form.File {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		add(key)
	}
	return out
}

// UploadLimits bound one multipart request.
type UploadLimits struct {
	MaxFiles     int
	MaxFileBytes int64
}

// CheckUploadLimits returns a 413 fiber error when a limit is exceeded.
func CheckUploadLimits(files []*multipart.FileHeader, lim UploadLimits) error {
	if lim.MaxFiles > 0 && len(files) > lim.MaxFiles {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "too many files in one request")
	}
	for _, fh := range files {
		if lim.MaxFileBytes > 0 && fh.Size > lim.MaxFileBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file "+fh.Filename+" exceeds the size limit")
		}
	}
	return nil
}

// FormValues returns every value of a multipart field, or nil.
func FormValues(form *multipart.Form, key string) []string {
	if form == nil || form.Value == nil {
		return nil
	}
	return form.Value[key]
}
