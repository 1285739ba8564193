package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StudentRecord is the server-supplied projection of a registered student. It is
// read-only from the portal's perspective.
type StudentRecord struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	DOB          string `json:"dob"`
	StudentClass string `json:"studentClass"`
	ParentMobile string `json:"parentMobile"`
	ParentEmail  string `json:"parentEmail,omitempty"`
}

// UnmarshalJSON accepts camelCase and snake_case keys and numeric or string ids, since
// the listing and admin endpoints do not agree on either.
func (s *StudentRecord) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw["id"])
	if err != nil {
		return fmt.Errorf("decode student id: %w", err)
	}
	*s = StudentRecord{
		ID:           id,
		FirstName:    firstString(raw, "firstName", "first_name"),
		LastName:     firstString(raw, "lastName", "last_name"),
		DOB:          firstString(raw, "dob", "date_of_birth"),
		StudentClass: firstString(raw, "studentClass", "student_class", "class"),
		ParentMobile: firstString(raw, "parentMobile", "parent_mobile", "mobile_number"),
		ParentEmail:  firstString(raw, "parentEmail", "parent_email", "email"),
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return "", err
	}
	return str, nil
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			continue
		}
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			if str != "" {
				return str
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

// RosterRow is the display projection of a StudentRecord with placeholders for gaps.
type RosterRow struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DOB           string `json:"dob"`
	StudentClass  string `json:"student_class"`
	ParentContact string `json:"parent_contact"`
	Deleting      bool   `json:"deleting"`
	// HasID is false when the server sent no identifier; such rows cannot be addressed.
	HasID bool `json:"has_id"`
}

// Row projects the record for tables.
func (s StudentRecord) Row() RosterRow {
	first := s.FirstName
	if first == "" {
		first = "Unknown"
	}
	return RosterRow{
		ID:            orDefault(s.ID, "N/A"),
		Name:          strings.TrimSpace(first + " " + s.LastName),
		DOB:           orDefault(s.DOB, "Not Provided"),
		StudentClass:  orDefault(s.StudentClass, "N/A"),
		ParentContact: orDefault(s.ParentMobile, "N/A"),
		HasID:         s.ID != "",
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// StudentIDs returns the ids of records in order.
func StudentIDs(records []StudentRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

// ParseStudentID normalises an id taken from a URL path.
func ParseStudentID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	return raw, true
}
