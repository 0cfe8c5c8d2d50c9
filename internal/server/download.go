package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// imageHandler handles GET /api/panoramas/{id}/image and writes the stored
// bytes with the recorded content type.
func (s *Server) imageHandler(w http.ResponseWriter, r *http.Request) {
	img, err := s.svc.GetImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "get_image", err)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
