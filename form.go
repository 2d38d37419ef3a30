package erpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

type formPart struct {
	field    string
	filename string
	value    []byte
}

// FormData is an ordered multipart form. File contents are buffered when added so the
// encoded form can be replayed.
type FormData struct {
	parts []formPart
}

// NewFormData returns an empty form.
func NewFormData() *FormData {
	return &FormData{}
}

// Add appends a plain field.
func (f *FormData) Add(name, value string) *FormData {
	f.parts = append(f.parts, formPart{field: name, value: []byte(value)})
	return f
}

// AddFileBytes appends a file part.
func (f *FormData) AddFileBytes(field, filename string, data []byte) *FormData {
	buf := make([]byte, len(data))
	copy(buf, data)
	f.parts = append(f.parts, formPart{field: field, filename: filename, value: buf})
	return f
}

// AddFile reads r to the end and appends it as a file part.
func (f *FormData) AddFile(field, filename string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read form file %q: %w", filename, err)
	}
	f.parts = append(f.parts, formPart{field: field, filename: filename, value: data})
	return nil
}

// Len returns the number of parts.
func (f *FormData) Len() int {
	if f == nil {
		return 0
	}
	return len(f.parts)
}

// Encode renders the form and returns the body and its Content-Type (with boundary).
func (f *FormData) Encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if f != nil {
		for _, p := range f.parts {
			if p.filename == "" {
				if err := w.WriteField(p.field, string(p.value)); err != nil {
					return nil, "", err
				}
				continue
			}
			part, err := w.CreateFormFile(p.field, p.filename)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(p.value); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
