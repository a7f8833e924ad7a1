package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"lexcollab/internal/app/storage"
	"lexcollab/internal/pkg/errs"
	"lexcollab/internal/pkg/req"
	"lexcollab/internal/pkg/resp"
)

const (
	// PresignedURLDuration bounds how long a minted upload or download URL
	// stays usable.
	PresignedURLDuration = 15 * time.Minute

	// MaxAttachmentBytes caps a single attachment upload.
	MaxAttachmentBytes int64 = 25 << 20
)

// allowedAttachmentTypes lists the MIME types attachments may carry.
// Legal teams exchange documents and the occasional exhibit image; anything
// executable stays out.
var allowedAttachmentTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       {},
	"text/plain": {},
	"image/png":  {},
	"image/jpeg": {},
}

// PresignUploadInput defines the JSON input structure for generating an
// upload ticket.
type PresignUploadInput struct {
	ProjectID string `json:"project_id"`
	MimeType  string `json:"mime_type"`
	FileSize  int64  `json:"file_size"`
}

// HandlePresignAttachmentUpload creates an HTTP HandlerFunc that mints an
// attachment reference and a time-limited pre-signed upload URL for it. The
// client uploads the bytes directly and then echoes the reference in
// message:send.
func HandlePresignAttachmentUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input PresignUploadInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.ProjectID == "" || strings.ContainsAny(input.ProjectID, "/\\") {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if input.FileSize <= 0 || input.FileSize > MaxAttachmentBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if _, ok := allowedAttachmentTypes[input.MimeType]; !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		ticket, err := deps.StorageService.PresignUpload(
			r.Context(),
			input.ProjectID,
			input.MimeType,
			input.FileSize,
			PresignedURLDuration,
		)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, ticket)
	}
}

// HandlePresignAttachmentDownload creates an HTTP HandlerFunc that resolves
// an attachment reference to a time-limited pre-signed download URL.
func HandlePresignAttachmentDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := r.URL.Query().Get("ref")
		if ref == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := storage.ValidateRef(ref); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAttachmentRefInvalid))
			return
		}

		info, err := deps.StorageService.Stat(r.Context(), ref)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrAttachmentRefInvalid))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		url, err := deps.StorageService.PresignDownload(r.Context(), ref, PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		data := map[string]any{
			"downloadUrl":   url,
			"contentType":   info.ContentType,
			"contentLength": info.ContentLength,
		}
		resp.RespondSuccess(w, r, data)
	}
}
