package server

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"panorama-viewer/internal/panorama"
)

const (
	// multipartOverhead allows for boundaries, part headers and the text
	// fields on top of the largest accepted image.
	multipartOverhead = 1 << 20
	maxFieldBytes     = 64 << 10
)

// partFilename returns the filename parameter of a part exactly as the
// client sent it. ok is false when the part carries no filename at all,
// i.e. it is a plain form field rather than a file.
func partFilename(p *multipart.Part) (name string, ok bool) {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	name, ok = params["filename"]
	return name, ok
}

// readField reads a text field. Values over maxFieldBytes are rejected
// rather than cut short.
func readField(p *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(p, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) > maxFieldBytes {
		return "", panorama.ErrFieldTooLong
	}
	return string(b), nil
}

// uploadFailure maps a body read error to the service error set.
func uploadFailure(err error) error {
	var perr *panorama.Error
	if errors.As(err, &perr) {
		return err
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return panorama.ErrPayloadTooLarge
	}
	return panorama.ErrInvalidRequest
}

// uploadHandler handles POST /api/panoramas. The multipart body is read
// part by part; the file part is buffered up to one byte past the upload
// ceiling so oversize files are detected without reading them whole.
//
// Form fields: file (required), title, description
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, panorama.MaxUploadBytes+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		s.finishUpload(w, r, 0, panorama.ErrMissingFile)
		return
	}

	var (
		in      panorama.UploadInput
		gotFile bool
	)

parts:
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.finishUpload(w, r, 0, uploadFailure(err))
			return
		}

		switch part.FormName() {
		case "file":
			name, ok := partFilename(part)
			if !ok || gotFile {
				break
			}
			gotFile = true
			in.Filename = name
			in.ContentType = part.Header.Get("Content-Type")

			data, err := io.ReadAll(io.LimitReader(part, panorama.MaxUploadBytes+1))
			if err != nil {
				_ = part.Close()
				s.finishUpload(w, r, 0, uploadFailure(err))
				return
			}
			in.Data = data
			if len(data) > panorama.MaxUploadBytes {
				// The rest of the body is not needed to reject this.
				_ = part.Close()
				break parts
			}
		case "title":
			v, err := readField(part)
			if err != nil {
				_ = part.Close()
				s.finishUpload(w, r, 0, uploadFailure(err))
				return
			}
			in.Title = &v
		case "description":
			v, err := readField(part)
			if err != nil {
				_ = part.Close()
				s.finishUpload(w, r, 0, uploadFailure(err))
				return
			}
			in.Description = &v
		}
		_ = part.Close()
	}

	if !gotFile {
		s.finishUpload(w, r, 0, panorama.ErrMissingFile)
		return
	}

	res, err := s.svc.Upload(r.Context(), in)
	if err != nil {
		s.finishUpload(w, r, len(in.Data), err)
		return
	}

	s.finishUpload(w, r, len(in.Data), nil)
	logAudit(r, auditPanoramaUpload, res.ID.String(), nil)
	writeJSON(w, http.StatusCreated, createdResp{
		Message: "panorama uploaded",
		ID:      res.ID.String(),
		Title:   res.Title,
	})
}

// finishUpload records the upload outcome and writes the error response
// when err is non-nil.
func (s *Server) finishUpload(w http.ResponseWriter, r *http.Request, size int, err error) {
	recordUpload(size, err)
	if err != nil {
		writeError(w, r, "upload", err)
	}
}
