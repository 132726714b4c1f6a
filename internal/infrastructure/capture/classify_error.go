package capture

import (
	"fmt"
	"strings"

	"streamcast/internal/core/domain"
)

// classifyCaptureError maps capture subprocess stderr onto the error
// taxonomy. Unknown failures count as constraint failures so the
// acquirer still gets its single relaxed retry.
func classifyCaptureError(stderr string) error {
	lower := strings.ToLower(stderr)

	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "operation not permitted"):
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, firstLine(stderr))

	case strings.Contains(lower, "no such file"),
		strings.Contains(lower, "no such device"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "cannot find"),
		strings.Contains(lower, "could not find"):
		return fmt.Errorf("%w: %s", domain.ErrDeviceNotFound, firstLine(stderr))

	case strings.Contains(lower, "device or resource busy"),
		strings.Contains(lower, "in use"),
		strings.Contains(lower, "is busy"):
		return fmt.Errorf("%w: %s", domain.ErrDeviceBusy, firstLine(stderr))

	default:
		return fmt.Errorf("%w: %s", domain.ErrConstraintUnsatisfiable, firstLine(stderr))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
