package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"panorama-viewer/internal/panorama"
)

type albumSummary struct {
	ID            string `json:"_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	PanoramaCount int    `json:"panorama_count"`
	CreatedAt     string `json:"created_at"`
}

type albumDetail struct {
	ID          string            `json:"_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	PanoramaIDs []string          `json:"panorama_ids"`
	Panoramas   []panoramaSummary `json:"panoramas"`
	CreatedAt   string            `json:"created_at"`
}

type createAlbumReq struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PanoramaIDs []string `json:"panorama_ids"`
}

type updateAlbumReq struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	PanoramaIDs *[]string `json:"panorama_ids"`
}

func (s *Server) listAlbumsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.ListAlbums(r.Context())
	if err != nil {
		writeError(w, r, "list_albums", err)
		return
	}
	out := make([]albumSummary, 0, len(items))
	for _, a := range items {
		out = append(out, albumSummary{
			ID:            a.ID.String(),
			Title:         a.Title,
			Description:   a.Description,
			PanoramaCount: a.PanoramaCount,
			CreatedAt:     formatTime(a.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createAlbumHandler(w http.ResponseWriter, r *http.Request) {
	var req createAlbumReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "create_album", err)
		return
	}

	res, err := s.svc.CreateAlbum(r.Context(), panorama.AlbumInput{
		Title:       req.Title,
		Description: req.Description,
		PanoramaIDs: req.PanoramaIDs,
	})
	if err != nil {
		writeError(w, r, "create_album", err)
		return
	}
	logAudit(r, auditAlbumCreate, res.ID.String(), nil)
	writeJSON(w, http.StatusCreated, createdResp{
		Message: "album created",
		ID:      res.ID.String(),
		Title:   res.Title,
	})
}

func (s *Server) getAlbumHandler(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.GetAlbum(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "get_album", err)
		return
	}

	ids := make([]string, 0, len(a.PanoramaIDs))
	for _, id := range a.PanoramaIDs {
		ids = append(ids, id.String())
	}
	writeJSON(w, http.StatusOK, albumDetail{
		ID:          a.ID.String(),
		Title:       a.Title,
		Description: a.Description,
		PanoramaIDs: ids,
		Panoramas:   toSummaries(a.Panoramas),
		CreatedAt:   formatTime(a.CreatedAt),
	})
}

func (s *Server) updateAlbumHandler(w http.ResponseWriter, r *http.Request) {
	var req updateAlbumReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update_album", err)
		return
	}

	id := chi.URLParam(r, "id")
	err := s.svc.UpdateAlbum(r.Context(), id, panorama.AlbumPatch{
		Title:       req.Title,
		Description: req.Description,
		PanoramaIDs: req.PanoramaIDs,
	})
	logAudit(r, auditAlbumUpdate, id, err)
	if err != nil {
		writeError(w, r, "update_album", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResp{Message: "album updated"})
}

func (s *Server) deleteAlbumHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.svc.DeleteAlbum(r.Context(), id, adminSecret(r))
	logAudit(r, auditAlbumDelete, id, err)
	if err != nil {
		writeError(w, r, "delete_album", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResp{Message: "album deleted"})
}
