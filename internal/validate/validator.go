// Package validate gates candidate files before they reach a pipeline.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/spherical/xtox/internal/domain"
)

// Validate checks file against constraint. A nil file means nothing is
// selected and yields (nil, nil); callers must not treat that as a rejection.
//
// Size is checked before the extension, matching the order in which the
// upload form reports problems.
func Validate(file *domain.CandidateFile, constraint domain.ValidationConstraint) (*domain.CandidateFile, error) {
	if file == nil {
		return nil, nil
	}

	if constraint.MaxSize > 0 && file.Size > constraint.MaxSize {
		return nil, domain.RejectionError(fmt.Sprintf("File size exceeds %dMB limit", LimitMB(constraint.MaxSize)))
	}

	if !allowed(file.Extension(), constraint.AllowedExtensions) {
		return nil, domain.RejectionError(rejectType(constraint.AllowedExtensions))
	}

	return file, nil
}

// LimitMB renders a byte limit in whole megabytes, rounded.
func LimitMB(maxSize int64) int64 {
	return int64(math.Round(float64(maxSize) / 1024 / 1024))
}

func allowed(ext string, exts []string) bool {
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(ext, normalize(e)) {
			return true
		}
	}
	return false
}

func normalize(ext string) string {
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

func rejectType(exts []string) string {
	names := make([]string, len(exts))
	for i, e := range exts {
		names[i] = strings.ToLower(normalize(e))
	}
	if len(names) == 1 {
		return fmt.Sprintf("Please select a %s file", names[0])
	}
	return fmt.Sprintf("Please select a supported file (%s)", strings.Join(names, ", "))
}
