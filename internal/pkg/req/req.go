/*
Package req provides helpers for HTTP request parsing and data binding.

It enforces strict JSON decoding (unknown fields and trailing content are
rejected) and body size limits, returning coded errors for the response
layer.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"lexcollab/internal/pkg/errs"
)

// MaxRequestBodySize caps REST request bodies at 1 MB. The collaboration
// API only carries small JSON payloads; anything larger is hostile.
const MaxRequestBodySize int64 = 1 << 20

// BindJSON binds the JSON request body to dst, rejecting unknown fields,
// malformed JSON, and trailing content.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
