// internal/handler/errors.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dive-service/internal/session"
	"dive-service/internal/utils"
)

type errorMapping struct {
	kind   error
	status int
	code   string
}

var sessionErrorMappings = []errorMapping{
	{session.ErrTransportUnavailable, http.StatusServiceUnavailable, "TRANSPORT_UNAVAILABLE"},
	{session.ErrTransportDisabled, http.StatusServiceUnavailable, "TRANSPORT_DISABLED"},
	{session.ErrEndpointNotFound, http.StatusNotFound, "ENDPOINT_NOT_FOUND"},
	{session.ErrConnectFailed, http.StatusBadGateway, "CONNECT_FAILED"},
	{session.ErrNoActiveSession, http.StatusConflict, "NO_ACTIVE_SESSION"},
	{session.ErrInvalidWatermark, http.StatusBadRequest, "INVALID_WATERMARK"},
	{session.ErrDownloadFailed, http.StatusBadGateway, "DOWNLOAD_FAILED"},
	{session.ErrSessionBusy, http.StatusConflict, "SESSION_BUSY"},
	{session.ErrResourceReleaseFailed, http.StatusInternalServerError, "RESOURCE_RELEASE_FAILED"},
}

// statusForError maps a session error kind to its HTTP status and error code
func statusForError(err error) (int, string) {
	kind := session.KindOf(err)
	for _, m := range sessionErrorMappings {
		if errors.Is(kind, m.kind) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
}

func sessionErrorResponse(c *gin.Context, message string, err error) {
	status, code := statusForError(err)
	utils.CodedErrorResponse(c, status, code, message, err)
}
