package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorError(t *testing.T) {
	err := NewAppError(ErrCodeDeviceBusy, "camera busy", http.StatusConflict)
	assert.Equal(t, "DEVICE_BUSY: camera busy", err.Error())

	wrapped := WrapError(errors.New("EBUSY"), ErrCodeDeviceBusy, "camera busy", http.StatusConflict)
	assert.Equal(t, "DEVICE_BUSY: camera busy (caused by: EBUSY)", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("socket reset")
	err := WrapError(cause, ErrCodeTransportClosed, "relay connection lost", http.StatusBadGateway)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestGetAppErrorThroughChain(t *testing.T) {
	inner := NewTransportTimeoutError("ice negotiation timed out")
	outer := fmt.Errorf("go live failed: %w", inner)

	got := GetAppError(outer)
	assert.NotNil(t, got)
	assert.Equal(t, ErrCodeTransportTimeout, got.Code)

	assert.Nil(t, GetAppError(nil))
	assert.Nil(t, GetAppError(errors.New("plain")))
}

func TestHTTPStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, HTTPStatusFor(NewSessionActiveError()))
	assert.Equal(t, http.StatusForbidden, HTTPStatusFor(NewPermissionDeniedError("mic denied")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFor(errors.New("unexpected")))
}

func TestWithContext(t *testing.T) {
	err := NewDeviceNotFoundError("mic-1").WithContext("requested_id", "mic-1")
	assert.Equal(t, "mic-1", err.Context["requested_id"])
}
