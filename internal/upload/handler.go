package upload

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/bright/uploader/internal/response"
)

// FileParam is the route parameter carrying the storage key on the upload endpoint.
const FileParam = "file"

// Handler holds HTTP handlers for the upload endpoints.
type Handler struct {
	router   *Router
	receiver *Receiver
	reverter *Reverter
	maxBytes int64
}

// NewHandler creates a new upload Handler. maxBytes caps each upload request body.
func NewHandler(router *Router, receiver *Receiver, reverter *Reverter, maxBytes int64) *Handler {
	return &Handler{router: router, receiver: receiver, reverter: reverter, maxBytes: maxBytes}
}

type uploadData struct {
	Paths []string `json:"paths" example:"0b9f2c1e-4f9a-4b8e-9a55-9d0c1a2b3c4d.png"`
}

type revertRequest struct {
	Filename string `json:"filename" example:"0b9f2c1e-4f9a-4b8e-9a55-9d0c1a2b3c4d.png"`
}

type revertData struct {
	Status string `json:"status" example:"OK"`
}

// Signed godoc
//
//	@Summary		Issue upload authorization
//	@Description	Returns a short-lived credential for uploading one file directly to the configured disk. For the local disk the action is a signed URL on this service; for s3 it is a presigned PUT on the bucket.
//	@Tags			uploads
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		Request	true	"Upload description"
//	@Success		201		{object}	Authorization
//	@Failure		400		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/uploads/signed [post]
func (h *Handler) Signed(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSignedRequest(r)
	if err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Extension == "" {
		response.BadRequest(w, "extension is required")
		return
	}

	auth, err := h.router.Issue(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, auth)
}

// Upload godoc
//
//	@Summary		Receive a signed local upload
//	@Description	Stores the request's file parts (or its raw body) under the key in the signed URL. Only URLs issued by /uploads/signed are accepted, and only until they expire.
//	@Tags			uploads
//	@Accept			mpfd
//	@Produce		json
//	@Param			file		path		string	true	"Storage key"
//	@Param			expires		query		int		true	"Expiry (unix seconds)"
//	@Param			signature	query		string	true	"Route signature"
//	@Success		200			{object}	uploadData
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		502			{object}	response.Envelope
//	@Router			/upload/files/{file} [post]
//	@Router			/upload/files/{file} [put]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, FileParam)
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	var files Files
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		mr, err := r.MultipartReader()
		if err != nil {
			response.BadRequest(w, "invalid multipart body")
			return
		}
		files = MultipartFiles(mr)
	} else if r.ContentLength != 0 {
		files = BodyFile(r.Body)
	} else {
		files = BodyFile(nil)
	}

	paths, err := h.receiver.Receive(r.Context(), key, files)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, uploadData{Paths: paths})
}

// Revert godoc
//
//	@Summary		Revert an upload
//	@Description	Deletes an uploaded but uncommitted file from the working directory. Idempotent: reverting a missing file also returns OK.
//	@Tags			uploads
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		revertRequest	true	"File to discard"
//	@Success		200		{object}	revertData
//	@Failure		400		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/uploads/revert [delete]
func (h *Handler) Revert(w http.ResponseWriter, r *http.Request) {
	var req revertRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
	} else {
		req.Filename = r.FormValue("filename")
	}

	if err := h.reverter.Revert(r.Context(), req.Filename); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, revertData{Status: "OK"})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var be *BackendError
	switch {
	case errors.Is(err, ErrTooLarge):
		response.TooLarge(w, "upload too large")
	case IsValidationError(err):
		response.BadRequest(w, err.Error())
	case errors.As(err, &be):
		log.Ctx(r.Context()).Error().Err(be.Err).
			Str("op", be.Op).Str("disk", be.Backend).Str("key", be.Key).
			Msg("storage backend failed")
		response.BadGateway(w, "storage backend unavailable")
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("upload request failed")
		response.InternalError(w)
	}
}

// decodeSignedRequest reads the request from a JSON body, or from the query
// string and form fields for non-JSON callers.
func decodeSignedRequest(r *http.Request) (Request, error) {
	var req Request
	if isJSON(r) {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req = Request{
		Extension:    r.Form.Get("extension"),
		Prefix:       r.Form.Get("prefix"),
		ContentType:  r.Form.Get("content_type"),
		Visibility:   r.Form.Get("visibility"),
		CacheControl: r.Form.Get("cache_control"),
		Expires:      r.Form.Get("expires"),
	}
	return req, nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}
