package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/service"
)

const employeeDataField = "employeeData"

var (
	errMissingEmployeeData = errors.New("missing employeeData")
	errRequestTooLarge     = errors.New("request body too large")
)

// readEmployeeInput extracts the employeeData payload and any files from a
// multipart or JSON request. A JSON body may wrap the payload in an
// employeeData key, either as an object or as an encoded string. Bodies over
// maxBytes fail with errRequestTooLarge.
func readEmployeeInput(w http.ResponseWriter, r *http.Request, maxBytes int64) (service.EmployeeInput, error) {
	var in service.EmployeeInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if tooLarge(err) {
				return in, errRequestTooLarge
			}
			return in, domain.Invalid("Invalid multipart request: %v", err)
		}
		if values := r.MultipartForm.Value[employeeDataField]; len(values) > 0 {
			in.Data = []byte(values[0])
		} else {
			return collectFiles(r.MultipartForm, in), errMissingEmployeeData
		}
		return collectFiles(r.MultipartForm, in), nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		if tooLarge(err) {
			return in, errRequestTooLarge
		}
		return in, domain.Invalid("Failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return in, errMissingEmployeeData
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return in, domain.Invalid("Invalid JSON format in employeeData")
	}
	raw, ok := wrapper[employeeDataField]
	if !ok {
		in.Data = body
		return in, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		in.Data = []byte(encoded)
	} else {
		in.Data = raw
	}
	return in, nil
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func collectFiles(form *multipart.Form, in service.EmployeeInput) service.EmployeeInput {
	if len(form.File) == 0 {
		return in
	}
	in.Files = make(map[string][]domain.Upload, len(form.File))
	for field, headers := range form.File {
		for _, fh := range headers {
			fh := fh
			in.Files[field] = append(in.Files[field], domain.Upload{
				Field:       field,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	}
	return in
}
