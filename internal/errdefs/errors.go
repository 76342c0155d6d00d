package errdefs

import "errors"

var (
	ErrCollectorUnavailable = errors.New("runtime collector unavailable")
	ErrNotRunning           = errors.New("unit is not running")
	ErrUnitNotFound         = errors.New("server not found")
	ErrAlertNotFound        = errors.New("alert not found")
	ErrAutomationTimedOut   = errors.New("automation run timed out")
	ErrStoreUnavailable     = errors.New("alert store unavailable")
	ErrInvalidAction        = errors.New("invalid action")
	ErrBlobNotFound         = errors.New("blob key not found")
)

// IsNotFound reports whether err names an identifier that does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnitNotFound) || errors.Is(err, ErrAlertNotFound)
}
