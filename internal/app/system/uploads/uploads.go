// Package uploads parses multipart submissions, checks each file against
// the size and type limits and stores it in the file store.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mewsorg/mews/internal/app/system/filestore"
)

// MaxFileBytes caps a single uploaded file.
const MaxFileBytes = 5 << 20

// maxRequestBytes caps the whole multipart body.
const maxRequestBytes = 100 << 20

// memoryBytes is how much of the form ParseMultipartForm keeps in memory.
const memoryBytes = 16 << 20

// Member document fields that take a single file.
var SingleFields = []string{
	"photo",
	"aadhaarFront",
	"aadhaarBack",
	"communityCert",
	"marriageCert",
	"rationCardFile",
	"voterIdFront",
	"voterIdBack",
	"bankPassbook",
}

// Family member file arrays. Entries are referenced from the family JSON as
// "INDEX:<n>".
var FamilyFields = []string{
	"familyMemberPhotos",
	"familyMemberAadhaarFronts",
	"familyMemberAadhaarBacks",
	"familyMemberVoterIdFronts",
	"familyMemberVoterIdBacks",
}

// MaxFamilyFiles caps each family array.
const MaxFamilyFiles = 20

var (
	ErrNotMultipart = errors.New("expected a multipart form")
	ErrTooLarge     = errors.New("file exceeds the 5 MB limit")
	ErrBadType      = errors.New("only images and PDF files are allowed")
	ErrTooMany      = errors.New("too many files")
)

// FieldError ties a validation failure to the offending form field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// Form is a parsed submission. Files maps each field to the refs of the
// stored files, in upload order.
type Form struct {
	Values url.Values
	Files  map[string][]string
}

// Get returns a trimmed value, treating "null" and "undefined" as empty.
func (f *Form) Get(name string) string {
	v := strings.TrimSpace(f.Values.Get(name))
	if v == "null" || v == "undefined" {
		return ""
	}
	return v
}

// Int parses a numeric value; empty or malformed values are 0.
func (f *Form) Int(name string) int {
	n, _ := strconv.Atoi(f.Get(name))
	return n
}

// File returns the first stored ref for field.
func (f *Form) File(field string) string {
	if refs := f.Files[field]; len(refs) > 0 {
		return refs[0]
	}
	return ""
}

// FileAt returns the ref at idx of an array field, or "".
func (f *Form) FileAt(field string, idx int) string {
	refs := f.Files[field]
	if idx < 0 || idx >= len(refs) {
		return ""
	}
	return refs[idx]
}

// IndexRef decodes an "INDEX:<n>" placeholder. Anything else is -1.
func IndexRef(v string) int {
	rest, ok := strings.CutPrefix(v, "INDEX:")
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// Parser stores the files of a multipart request.
type Parser struct {
	Store    filestore.Store
	MaxBytes int64
	Now      func() time.Time
}

// FieldLimits bounds how many files each field accepts. Fields not listed
// are ignored.
type FieldLimits map[string]int

// MemberFields returns the limits for member registration and update.
func MemberFields() FieldLimits {
	l := FieldLimits{}
	for _, f := range SingleFields {
		l[f] = 1
	}
	for _, f := range FamilyFields {
		l[f] = MaxFamilyFiles
	}
	return l
}

// Parse reads the multipart body of r and uploads the files named in
// limits. On any failure the files already stored are removed.
func (p *Parser) Parse(w http.ResponseWriter, r *http.Request, limits FieldLimits) (*Form, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, ErrNotMultipart
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(memoryBytes); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}

	form := &Form{Values: url.Values(r.MultipartForm.Value), Files: map[string][]string{}}
	if form.Values == nil {
		form.Values = url.Values{}
	}
	for field, headers := range r.MultipartForm.File {
		limit, ok := limits[field]
		if !ok || len(headers) == 0 {
			continue
		}
		if len(headers) > limit {
			p.Discard(r.Context(), form)
			return nil, &FieldError{Field: field, Err: ErrTooMany}
		}
		for _, fh := range headers {
			ref, err := p.store(r.Context(), fh)
			if err != nil {
				p.Discard(r.Context(), form)
				return nil, &FieldError{Field: field, Err: err}
			}
			form.Files[field] = append(form.Files[field], ref)
		}
	}
	return form, nil
}

func (p *Parser) store(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	max := p.MaxBytes
	if max <= 0 {
		max = MaxFileBytes
	}
	if fh.Size > max {
		return "", ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	ct := contentType(fh.Header.Get("Content-Type"), head[:n])
	if !Allowed(ct) {
		return "", ErrBadType
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return p.Store.Put(ctx, filestore.NewUploadName(fh.Filename, now()), f, ct)
}

// Discard deletes every file stored for form. Handlers call it when the
// submission is rejected after parsing.
func (p *Parser) Discard(ctx context.Context, form *Form) {
	if form == nil {
		return
	}
	for _, refs := range form.Files {
		for _, ref := range refs {
			_ = p.Store.Delete(ctx, ref)
		}
	}
}

func contentType(declared string, head []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(head)
}

// Allowed reports whether ct is an image or a PDF.
func Allowed(ct string) bool {
	ct = strings.ToLower(ct)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf"
}
