package domain

import "errors"

var (
	ErrPermissionDenied        = errors.New("capture permission denied")
	ErrDeviceNotFound          = errors.New("device not found")
	ErrDeviceBusy              = errors.New("device busy")
	ErrConstraintUnsatisfiable = errors.New("capture constraints unsatisfiable")
	ErrScreenShareUnsupported  = errors.New("screen capture unsupported")
	ErrCodecUnsupported        = errors.New("no supported codec")
	ErrTransportTimeout        = errors.New("transport timed out")
	ErrTransportClosed         = errors.New("transport closed unexpectedly")
	ErrTransportUnsupported    = errors.New("transport mode not constructible")
	ErrProcessSpawn            = errors.New("encoder process failed to start")
	ErrProcessCrash            = errors.New("encoder process crashed")
	ErrSessionActive           = errors.New("a session is already active")
	ErrSessionNotFound         = errors.New("session not found")
	ErrCredentialRequired      = errors.New("stream key required")
)
