/*
Package req provides helper functions for parsing UI bridge requests.

It binds strict JSON bodies and reads typed path parameters, reporting problems
as *errs.CustomError values ready to be sent back.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"chatsync/internal/pkg/errs"
)

// MaxBodySize caps a bridge request body.
const MaxBodySize int64 = 1 << 20

// BindJSON decodes the request body into dst. Unknown fields and trailing data are rejected.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.Wrap(errs.ErrInvalidJSONFormat, err)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}

// PathInt64 reads a positive integer chi URL parameter.
func PathInt64(r *http.Request, name string) (int64, *errs.CustomError) {
	raw := chi.URLParam(r, name)

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	return id, nil
}
