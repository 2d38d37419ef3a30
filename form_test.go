package erpclient

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestFormDataEncodeOrder(t *testing.T) {
	form := NewFormData().
		Add("a", "1").
		AddFileBytes("doc", "doc.pdf", []byte("%PDF")).
		Add("b", "2")
	if form.Len() != 3 {
		t.Fatalf("expected 3 parts, got %d", form.Len())
	}

	body, contentType, err := form.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("bad content type %q: %v", contentType, err)
	}

	r := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	var names []string
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		names = append(names, p.FormName())
		if p.FormName() == "doc" && p.FileName() != "doc.pdf" {
			t.Fatalf("unexpected filename %q", p.FileName())
		}
	}
	if len(names) != 3 || names[0] != "a" || names[1] != "doc" || names[2] != "b" {
		t.Fatalf("parts out of order: %v", names)
	}
}

func TestFormDataAddFileReadError(t *testing.T) {
	if err := NewFormData().AddFile("f", "f.txt", failingReader{}); err == nil {
		t.Fatal("expected read error")
	}
}

func TestFormDataCopiesBytes(t *testing.T) {
	data := []byte("abc")
	form := NewFormData().AddFileBytes("f", "f.txt", data)
	data[0] = 'x'
	body, _, err := form.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Contains(body, []byte("abc")) {
		t.Fatal("form must not alias caller bytes")
	}
}
