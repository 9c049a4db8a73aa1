package web

import (
	"io"
	"net/http"

	"github.com/mdobak/go-xerrors"

	"github.com/siahsang/beatpost/models"
)

// FormValue returns the first multipart value of key. ParseMultipartForm
// must have run.
func FormValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// FormValues returns every multipart value of key.
func FormValues(r *http.Request, key string) []string {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.Value[key]
}

// ReadUpload returns nil when the request carries no file under field. At
// most limit+1 bytes are read, so a caller comparing the size against limit
// still sees an oversized file as too large.
func ReadUpload(r *http.Request, field string, limit int64) (*models.Upload, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	header := r.MultipartForm.File[field][0]
	file, err := header.Open()
	if err != nil {
		return nil, xerrors.Newf("open %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, xerrors.Newf("read %s: %w", field, err)
	}
	return &models.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
