package dto

import "github.com/noah-isme/sma-registration-portal/internal/models"

// FormView is a consistent snapshot of a registration form taken under its lock.
type FormView struct {
	Form       string                       `json:"form"`
	Title      string                       `json:"title"`
	Step       int                          `json:"step"`
	StepCount  int                          `json:"step_count"`
	StepName   string                       `json:"step_name"`
	Steps      []string                     `json:"steps"`
	Fields     map[string]string            `json:"fields"`
	Files      map[string]models.FileHandle `json:"files"`
	Submitting bool                         `json:"submitting"`
	Outcome    models.Outcome               `json:"outcome"`
	CanAdvance bool                         `json:"can_advance"`
	CanRetreat bool                         `json:"can_retreat"`
	CanSubmit  bool                         `json:"can_submit"`

	// StepFields lists the fields rendered on the current step.
	StepFields []models.FieldSpec `json:"-"`
}

// UpdateFieldsRequest carries text field updates for PATCH /fields.
type UpdateFieldsRequest struct {
	Fields map[string]string `json:"fields" binding:"required"`
}
