package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"panorama-viewer/internal/panorama"
)

const maxJSONBytes = 1 << 20

// panoramaSummary is the list item for GET /api/panoramas.
type panoramaSummary struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	FileSize    int64  `json:"file_size"`
}

// panoramaMetadata is the body of GET /api/panoramas/{id}.
type panoramaMetadata struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
	FileID      string `json:"file_id"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type"`
	CreatedAt   string `json:"created_at"`
}

// updateReq is the PUT body. A JSON null is the same as an absent field,
// so {"title":null} changes nothing and is rejected as no_fields_to_update.
// Stored titles and descriptions are never null.
type updateReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toSummaries(items []panorama.Summary) []panoramaSummary {
	out := make([]panoramaSummary, 0, len(items))
	for _, p := range items {
		out = append(out, panoramaSummary{
			ID:          p.ID.String(),
			Title:       p.Title,
			Description: p.Description,
			CreatedAt:   formatTime(p.CreatedAt),
			FileSize:    p.FileSize,
		})
	}
	return out
}

// decodeJSON reads a single JSON object from the request body. An empty,
// malformed or non-object body, or anything after the object, is
// ErrInvalidRequest.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return panorama.ErrInvalidRequest
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return panorama.ErrInvalidRequest
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return panorama.ErrInvalidRequest
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return panorama.ErrInvalidRequest
	}
	return nil
}

// adminSecret returns the X-Admin-Secret header, or nil when absent.
func adminSecret(r *http.Request) *string {
	v, ok := r.Header[http.CanonicalHeaderKey("X-Admin-Secret")]
	if !ok || len(v) == 0 {
		return nil
	}
	return &v[0]
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.List(r.Context())
	if err != nil {
		writeError(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaries(items))
}

func (s *Server) metadataHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.GetMetadata(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "get_metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, panoramaMetadata{
		ID:          rec.ID.String(),
		Title:       rec.Title,
		Description: rec.Description,
		Filename:    rec.Filename,
		FileID:      rec.BlobRef,
		FileSize:    rec.FileSize,
		ContentType: rec.ContentType,
		CreatedAt:   formatTime(rec.CreatedAt),
	})
}

func (s *Server) updateHandler(w http.ResponseWriter, r *http.Request) {
	var req updateReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update", err)
		return
	}

	id := chi.URLParam(r, "id")
	err := s.svc.Update(r.Context(), id, panorama.Patch{Title: req.Title, Description: req.Description})
	logAudit(r, auditPanoramaUpdate, id, err)
	if err != nil {
		writeError(w, r, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResp{Message: "panorama updated"})
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.svc.Delete(r.Context(), id, adminSecret(r))
	logAudit(r, auditPanoramaDelete, id, err)
	if err != nil {
		writeError(w, r, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResp{Message: "panorama deleted"})
}
