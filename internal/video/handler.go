package video

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidstash/service/internal/response"
	"github.com/vidstash/service/internal/view"
)

// multipartMemory is the in-memory buffer threshold for multipart parsing;
// larger bodies spill to temp files.
const multipartMemory = 32 << 20

// Handler holds HTTP handlers for video pages and endpoints.
type Handler struct {
	svc   *Service
	views *view.Renderer
}

// NewHandler creates a new video Handler.
func NewHandler(svc *Service, views *view.Renderer) *Handler {
	return &Handler{svc: svc, views: views}
}

// UploadPage serves the upload form.
func (h *Handler) UploadPage(w http.ResponseWriter, r *http.Request) {
	if err := h.views.UploadPage(w); err != nil {
		log.Printf("render upload page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

// Upload godoc
//
//	@Summary		Upload a video
//	@Description	Accepts a multipart form with a `video` file, stores the binary in object storage and records its name and URL.
//	@Tags			videos
//	@Accept			mpfd
//	@Param			video	formData	file	true	"Video file"
//	@Success		303
//	@Failure		400	{string}	string
//	@Failure		500	{string}	string
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		notice(w, http.StatusBadRequest, "Upload too large or malformed", "/")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		notice(w, http.StatusBadRequest, "No file uploaded", "/")
		return
	}
	defer file.Close()

	_, err = h.svc.Create(r.Context(), &Upload{
		Filename:    header.Filename,
		Reader:      file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	switch {
	case errors.Is(err, ErrTooLarge):
		notice(w, http.StatusBadRequest, "File exceeds the upload size limit", "/")
	case err != nil:
		log.Printf("upload failed: %v", err)
		notice(w, http.StatusInternalServerError, "Error saving video", "/")
	default:
		notice(w, http.StatusOK, "Video uploaded successfully!", "/show")
	}
}

// ShowPage serves the listing of all videos.
func (h *Handler) ShowPage(w http.ResponseWriter, r *http.Request) {
	videos, err := h.svc.List(r.Context())
	if err != nil {
		log.Printf("list videos: %v", err)
		http.Error(w, "failed to fetch videos", http.StatusInternalServerError)
		return
	}
	if err := h.views.ShowPage(w, videos); err != nil {
		log.Printf("render show page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

// EditPage serves the edit form pre-filled with one record.
func (h *Handler) EditPage(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("get video for edit: %v", err)
		http.Error(w, "failed to fetch video", http.StatusInternalServerError)
		return
	}
	if err := h.views.EditPage(w, v); err != nil {
		log.Printf("render edit page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

// Edit applies the edit form: the name is always overwritten; a newly
// uploaded file replaces the url, otherwise the submitted url (or the
// stored one) is kept.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	var up *Upload
	if file, header, err := r.FormFile("video"); err == nil {
		defer file.Close()
		up = &Upload{
			Filename:    header.Filename,
			Reader:      file,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
		}
	}

	_, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), r.FormValue("name"), up, r.FormValue("url"))
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "video not found", http.StatusNotFound)
	case errors.Is(err, ErrTooLarge):
		http.Error(w, "file exceeds the upload size limit", http.StatusBadRequest)
	case err != nil:
		log.Printf("update video: %v", err)
		http.Error(w, "error updating video", http.StatusInternalServerError)
	default:
		http.Redirect(w, r, "/show", http.StatusSeeOther)
	}
}

// Delete godoc
//
//	@Summary		Delete a video
//	@Description	Removes the record and then attempts, best-effort, to delete the remote object.
//	@Tags			videos
//	@Param			id	path	string	true	"Video id"
//	@Success		303
//	@Failure		404	{string}	string
//	@Failure		500	{string}	string
//	@Router			/delete/{id} [post]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	_, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "video not found", http.StatusNotFound)
	case err != nil:
		log.Printf("delete video: %v", err)
		http.Error(w, "error deleting video", http.StatusInternalServerError)
	default:
		http.Redirect(w, r, "/show", http.StatusSeeOther)
	}
}

type saveVideoRequest struct {
	Name string `json:"name" example:"intro.mp4"`
	URL  string `json:"url"  example:"https://cdn.example.com/videos/intro"`
}

// SaveVideo godoc
//
//	@Summary		Register an externally stored video
//	@Description	Inserts a record with a caller-supplied URL without touching object storage.
//	@Tags			videos
//	@Accept			json
//	@Produce		json
//	@Param			request	body		saveVideoRequest	true	"Name and URL"
//	@Success		201		{object}	response.Envelope{data=Video}
//	@Failure		400		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/save-video [post]
func (h *Handler) SaveVideo(w http.ResponseWriter, r *http.Request) {
	var req saveVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	v, err := h.svc.SaveDirect(r.Context(), req.Name, req.URL)
	if err != nil {
		log.Printf("save video: %v", err)
		response.InternalError(w)
		return
	}
	response.Created(w, v)
}

// notice writes a small HTML page that alerts the user and sends the
// browser to next.
func notice(w http.ResponseWriter, status int, msg, next string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<script>alert(%q); window.location=%q;</script>", msg, next)
}
