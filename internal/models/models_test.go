package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudentRecordDecodesBothKeyStyles(t *testing.T) {
	var records []StudentRecord
	err := json.Unmarshal([]byte(`[
		{"id": 3, "firstName": "Asha", "lastName": "Rao", "dob": "2015-04-01", "studentClass": "5A", "parentMobile": "98450"},
		{"id": "9", "first_name": "Ravi", "last_name": "K", "student_class": "6B", "mobile_number": 99001}
	]`), &records)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, StudentRecord{ID: "3", FirstName: "Asha", LastName: "Rao", DOB: "2015-04-01", StudentClass: "5A", ParentMobile: "98450"}, records[0])
	assert.Equal(t, "9", records[1].ID)
	assert.Equal(t, "Ravi", records[1].FirstName)
	assert.Equal(t, "6B", records[1].StudentClass)
	assert.Equal(t, "99001", records[1].ParentMobile)
}

func TestStudentRecordRowPlaceholders(t *testing.T) {
	row := StudentRecord{}.Row()
	assert.Equal(t, RosterRow{ID: "N/A", Name: "Unknown", DOB: "Not Provided", StudentClass: "N/A", ParentContact: "N/A"}, row)

	row = StudentRecord{ID: "7", FirstName: "Asha", LastName: "Rao"}.Row()
	assert.Equal(t, "Asha Rao", row.Name)
	assert.Equal(t, "7", row.ID)
	assert.True(t, row.HasID)
}

func TestDraftPayloadOmitsEmptyFields(t *testing.T) {
	d := NewRegistrationDraft()
	d.SetText(FieldFirstName, "Asha")
	d.SetText(FieldLastName, "")
	d.SetText(FieldParentEmail, "parent@example.com")
	d.SetFile(FieldPhoto, &FileHandle{Key: "k1", Filename: "me.png", ContentType: "image/png", Size: 10})

	payload := d.Payload()
	assert.Equal(t, []string{"firstName", "photo", "parentEmail"}, payload.Names())
	require.NotNil(t, payload.Parts[1].File)
	assert.Equal(t, "k1", payload.Parts[1].File.Key)
}

func TestDraftCloneIsIndependent(t *testing.T) {
	d := NewRegistrationDraft()
	d.SetText(FieldAddress, "12 Main Road")
	d.SetFile(FieldAadhar, &FileHandle{Key: "a", Filename: "id.pdf"})

	clone := d.Clone()
	clone.SetText(FieldAddress, "changed")
	clone.File(FieldAadhar).Filename = "other.pdf"

	assert.Equal(t, "12 Main Road", d.Text(FieldAddress))
	assert.Equal(t, "id.pdf", d.File(FieldAadhar).Filename)
}

func TestLookupField(t *testing.T) {
	spec, ok := LookupField("aadhar")
	require.True(t, ok)
	assert.Equal(t, FieldFile, spec.Kind)
	assert.Equal(t, ".pdf,.jpg,.png", spec.Accept)

	_, ok = LookupField("nickname")
	assert.False(t, ok)
}
