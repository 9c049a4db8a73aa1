package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/beatpost/models"
)

type formFile struct {
	field  string
	upload *models.Upload
}

type multipartBody struct {
	fields   [][2]string
	files    []formFile
	boundary string
}

func newMultipartBody() *multipartBody {
	return &multipartBody{boundary: multipart.NewWriter(io.Discard).Boundary()}
}

func (b *multipartBody) field(name, value string) *multipartBody {
	b.fields = append(b.fields, [2]string{name, value})
	return b
}

func (b *multipartBody) file(name string, upload *models.Upload) *multipartBody {
	if upload != nil {
		b.files = append(b.files, formFile{field: name, upload: upload})
	}
	return b
}

func (b *multipartBody) contentType() string {
	return "multipart/form-data; boundary=" + b.boundary
}

func (b *multipartBody) reader() (io.Reader, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(b.boundary); err != nil {
		return nil, xerrors.Newf("multipart boundary: %w", err)
	}

	for _, f := range b.fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, xerrors.Newf("write form field %s: %w", f[0], err)
		}
	}

	for _, f := range b.files {
		contentType := f.upload.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.field), escapeQuotes(f.upload.Filename)))
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, xerrors.Newf("create form file %s: %w", f.field, err)
		}
		if _, err := part.Write(f.upload.Data); err != nil {
			return nil, xerrors.Newf("write form file %s: %w", f.field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, xerrors.Newf("close multipart body: %w", err)
	}
	return &buf, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// postForm encodes a post as the backend expects: hashtags travel as a JSON array.
func postForm(input models.PostInput) (*multipartBody, error) {
	tags := input.Hashtags
	if tags == nil {
		tags = []string{}
	}
	hashtags, err := json.Marshal(tags)
	if err != nil {
		return nil, xerrors.Newf("encode hashtags: %w", err)
	}
	return newMultipartBody().
		field("title", input.Title).
		field("content", input.Content).
		field("hashtags", string(hashtags)).
		file("image", input.Image), nil
}

func profileForm(update models.ProfileUpdate) *multipartBody {
	body := newMultipartBody()
	if update.Username != nil {
		body.field("username", *update.Username)
	}
	if update.Bio != nil {
		body.field("bio", *update.Bio)
	}
	return body.file("avatar", update.Avatar)
}
