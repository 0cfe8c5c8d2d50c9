package server

import (
	"net/http"

	"panorama-viewer/internal/logging"
	"panorama-viewer/internal/panorama"
)

// AuditAction names a state-changing operation.
type AuditAction string

const (
	auditPanoramaUpload AuditAction = "panorama_upload"
	auditPanoramaUpdate AuditAction = "panorama_update"
	auditPanoramaDelete AuditAction = "panorama_delete"
	auditAlbumCreate    AuditAction = "album_create"
	auditAlbumUpdate    AuditAction = "album_update"
	auditAlbumDelete    AuditAction = "album_delete"
)

// logAudit writes one audit line per state change attempt. Failed
// attempts are recorded with their public error code only.
func logAudit(r *http.Request, action AuditAction, resource string, err error) {
	ev := logging.Ctx(r.Context()).Info().
		Bool("audit", true).
		Str("action", string(action)).
		Str("resource", resource).
		Str("ip", clientIP(r)).
		Bool("success", err == nil)
	if err != nil {
		code, _ := panorama.Public(err)
		ev = ev.Str("error_code", code)
	}
	ev.Msg("audit")
}
