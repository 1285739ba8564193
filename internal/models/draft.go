package models

import "strings"

// FieldName identifies a registration field by the part name sent to the registration server.
type FieldName string

const (
	FieldFirstName    FieldName = "firstName"
	FieldLastName     FieldName = "lastName"
	FieldDOB          FieldName = "dob"
	FieldGender       FieldName = "gender"
	FieldAddress      FieldName = "address"
	FieldStudentClass FieldName = "studentClass"
	FieldAadhar       FieldName = "aadhar"
	FieldPhoto        FieldName = "photo"
	FieldFatherName   FieldName = "fatherName"
	FieldMotherName   FieldName = "motherName"
	FieldParentMobile FieldName = "parentMobile"
	FieldParentEmail  FieldName = "parentEmail"
)

// FieldKind distinguishes free-text fields from file uploads.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldFile
)

// FieldSpec describes a field as rendered and serialised.
type FieldSpec struct {
	Name  FieldName
	Label string
	Kind  FieldKind
	// Input is the HTML input type used by the page templates.
	Input string
	// Accept is the browser-level file type hint. It is not enforced server-side.
	Accept  string
	Options []string
}

// Gender values offered by the registration form.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Genders lists the selectable gender options in display order.
func Genders() []string {
	return []string{string(GenderMale), string(GenderFemale), string(GenderOther)}
}

var fieldSpecs = []FieldSpec{
	{Name: FieldFirstName, Label: "First Name", Kind: FieldText, Input: "text"},
	{Name: FieldLastName, Label: "Last Name", Kind: FieldText, Input: "text"},
	{Name: FieldDOB, Label: "Date of Birth", Kind: FieldText, Input: "date"},
	{Name: FieldGender, Label: "Gender", Kind: FieldText, Input: "select", Options: Genders()},
	{Name: FieldAddress, Label: "Address", Kind: FieldText, Input: "textarea"},
	{Name: FieldStudentClass, Label: "Class", Kind: FieldText, Input: "text"},
	{Name: FieldAadhar, Label: "Upload Aadhar", Kind: FieldFile, Input: "file", Accept: ".pdf,.jpg,.png"},
	{Name: FieldPhoto, Label: "Upload Photo", Kind: FieldFile, Input: "file", Accept: "image/*"},
	{Name: FieldFatherName, Label: "Father's Name", Kind: FieldText, Input: "text"},
	{Name: FieldMotherName, Label: "Mother's Name", Kind: FieldText, Input: "text"},
	{Name: FieldParentMobile, Label: "Parent Mobile Number", Kind: FieldText, Input: "tel"},
	{Name: FieldParentEmail, Label: "Parent Email ID", Kind: FieldText, Input: "email"},
}

// AllFields returns every registration field in serialisation order.
func AllFields() []FieldSpec {
	out := make([]FieldSpec, len(fieldSpecs))
	copy(out, fieldSpecs)
	return out
}

// LookupField resolves a field by wire name.
func LookupField(name string) (FieldSpec, bool) {
	for _, spec := range fieldSpecs {
		if string(spec.Name) == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// FileHandle refers to an uploaded file spooled by the portal. The bytes stay on disk;
// only metadata travels with the draft.
type FileHandle struct {
	Key         string `json:"-"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// RegistrationDraft is the in-progress registration record of one form instance.
type RegistrationDraft struct {
	text  map[FieldName]string
	files map[FieldName]*FileHandle
}

// NewRegistrationDraft returns an all-empty draft.
func NewRegistrationDraft() *RegistrationDraft {
	return &RegistrationDraft{
		text:  make(map[FieldName]string),
		files: make(map[FieldName]*FileHandle),
	}
}

// Text returns the value of a text field, or "" when unset.
func (d *RegistrationDraft) Text(name FieldName) string {
	return d.text[name]
}

// File returns the handle stored for a file field, or nil.
func (d *RegistrationDraft) File(name FieldName) *FileHandle {
	return d.files[name]
}

// SetText stores a text value and returns the previous one.
func (d *RegistrationDraft) SetText(name FieldName, value string) string {
	prev := d.text[name]
	if value == "" {
		delete(d.text, name)
	} else {
		d.text[name] = value
	}
	return prev
}

// SetFile stores a file handle and returns the one it replaced. A nil handle clears the field.
func (d *RegistrationDraft) SetFile(name FieldName, handle *FileHandle) *FileHandle {
	prev := d.files[name]
	if handle == nil {
		delete(d.files, name)
	} else {
		d.files[name] = handle
	}
	return prev
}

// Present reports whether a field holds a value. Whitespace-only text counts as present,
// matching the browser's required-attribute semantics.
func (d *RegistrationDraft) Present(name FieldName) bool {
	if h, ok := d.files[name]; ok && h != nil {
		return true
	}
	return d.text[name] != ""
}

// Files returns every file handle currently held.
func (d *RegistrationDraft) Files() []*FileHandle {
	out := make([]*FileHandle, 0, len(d.files))
	for _, spec := range fieldSpecs {
		if h := d.files[spec.Name]; h != nil {
			out = append(out, h)
		}
	}
	return out
}

// IsEmpty reports whether no field holds a value.
func (d *RegistrationDraft) IsEmpty() bool {
	return len(d.text) == 0 && len(d.files) == 0
}

// Clone returns a deep copy of the draft.
func (d *RegistrationDraft) Clone() *RegistrationDraft {
	out := NewRegistrationDraft()
	for k, v := range d.text {
		out.text[k] = v
	}
	for k, v := range d.files {
		h := *v
		out.files[k] = &h
	}
	return out
}

// Payload lists every non-empty field in serialisation order. Empty fields are omitted.
func (d *RegistrationDraft) Payload() RegistrationPayload {
	parts := make([]PayloadPart, 0, len(fieldSpecs))
	for _, spec := range fieldSpecs {
		switch spec.Kind {
		case FieldFile:
			if h := d.files[spec.Name]; h != nil {
				file := *h
				parts = append(parts, PayloadPart{Name: spec.Name, File: &file})
			}
		default:
			if v := d.text[spec.Name]; v != "" {
				parts = append(parts, PayloadPart{Name: spec.Name, Value: v})
			}
		}
	}
	return RegistrationPayload{Parts: parts}
}

// RegistrationPayload is the serialisable snapshot of a draft at submit time.
type RegistrationPayload struct {
	Parts []PayloadPart
}

// PayloadPart is one multipart field: either Value or File is set.
type PayloadPart struct {
	Name  FieldName
	Value string
	File  *FileHandle
}

// Names returns the part names in order.
func (p RegistrationPayload) Names() []string {
	out := make([]string, 0, len(p.Parts))
	for _, part := range p.Parts {
		out = append(out, string(part.Name))
	}
	return out
}

// String renders the payload field names for logs without leaking values.
func (p RegistrationPayload) String() string {
	return strings.Join(p.Names(), ",")
}
