package service

import (
	"context"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/dto"
	"github.com/noah-isme/sma-registration-portal/internal/models"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
)

type registrar interface {
	Register(ctx context.Context, payload models.RegistrationPayload) (*models.RegisterResult, error)
}

type fileReleaser interface {
	Delete(key string) error
}

// StepDefinition is one page of a registration form.
type StepDefinition struct {
	Name   string
	Fields []models.FieldName
	// Rules maps a field to a validator tag. Only presence rules are used today.
	Rules map[models.FieldName]string
	// IncompleteMessage is shown when Rules are not satisfied.
	IncompleteMessage string
}

// FormMessages are the status texts a form shows.
type FormMessages struct {
	Submitting     string
	Success        string
	ServerPrefix   string
	ServerFallback string
	Network        string
}

// FormConfig parameterises a RegistrationForm.
type FormConfig struct {
	Name     string
	Title    string
	Steps    []StepDefinition
	Messages FormMessages
}

func requireAll(fields ...models.FieldName) map[models.FieldName]string {
	rules := make(map[models.FieldName]string, len(fields))
	for _, f := range fields {
		rules[f] = "required"
	}
	return rules
}

// WizardConfig is the two-step form: student details, then parent details.
func WizardConfig() FormConfig {
	student := []models.FieldName{
		models.FieldFirstName, models.FieldLastName, models.FieldDOB, models.FieldGender,
		models.FieldAddress, models.FieldStudentClass, models.FieldAadhar, models.FieldPhoto,
	}
	parent := []models.FieldName{
		models.FieldFatherName, models.FieldMotherName, models.FieldParentMobile, models.FieldParentEmail,
	}
	return FormConfig{
		Name:  "wizard",
		Title: "Student Registration Form",
		Steps: []StepDefinition{
			{
				Name:              "Student Details",
				Fields:            student,
				Rules:             requireAll(student...),
				IncompleteMessage: "⚠️ Please fill all Student Details before proceeding!",
			},
			{
				Name:              "Parent Details",
				Fields:            parent,
				Rules:             requireAll(parent...),
				IncompleteMessage: "⚠️ Please fill all Parent Details before submitting!",
			},
		},
		Messages: FormMessages{
			Submitting:     "Submitting...",
			Success:        "✅ Student Registered Successfully!",
			ServerPrefix:   "❌ ",
			ServerFallback: "Registration Failed!",
			Network:        "⚠️ A network error occurred. Please check the backend.",
		},
	}
}

// FlatConfig is the single-page form. It has no presence rules; the registration server
// is the only validator.
func FlatConfig() FormConfig {
	specs := models.AllFields()
	fields := make([]models.FieldName, 0, len(specs))
	for _, spec := range specs {
		fields = append(fields, spec.Name)
	}
	return FormConfig{
		Name:  "flat",
		Title: "Student Registration Form",
		Steps: []StepDefinition{{Name: "Registration", Fields: fields}},
		Messages: FormMessages{
			Submitting:     "Submitting...",
			Success:        "✅ Student Registered Successfully!",
			ServerPrefix:   "❌ ",
			ServerFallback: "Registration Failed! Please try again.",
			Network:        "⚠️ A network error occurred. Please check the backend and try again.",
		},
	}
}

// RegistrationForm holds the draft, current step, in-flight flag and status message of one
// form instance. All methods are safe for concurrent use; the lock is never held across
// the outbound call.
type RegistrationForm struct {
	mu        sync.Mutex
	cfg       FormConfig
	fields    map[models.FieldName]struct{}
	registrar registrar
	files     fileReleaser
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	step       int
	draft      *models.RegistrationDraft
	submitting bool
	outcome    models.Outcome

	// inflight holds the spool keys referenced by the payload being sent. Releases of
	// those keys are parked in deferred until the attempt settles.
	inflight map[string]struct{}
	deferred []*models.FileHandle
}

// NewRegistrationForm constructs a form at step 1 with an empty draft.
func NewRegistrationForm(cfg FormConfig, registrar registrar, files fileReleaser, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RegistrationForm {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := make(map[models.FieldName]struct{})
	for _, step := range cfg.Steps {
		for _, f := range step.Fields {
			fields[f] = struct{}{}
		}
	}
	return &RegistrationForm{
		cfg:       cfg,
		fields:    fields,
		registrar: registrar,
		files:     files,
		metrics:   metrics,
		validator: validate,
		logger:    logger.With(zap.String("form", cfg.Name)),
		step:      1,
		draft:     models.NewRegistrationDraft(),
	}
}

// Name returns the form's configured name.
func (f *RegistrationForm) Name() string {
	return f.cfg.Name
}

// SetText merges one text field into the draft. No validation is performed.
func (f *RegistrationForm) SetText(name, value string) (dto.FormView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	spec, err := f.lookup(name, models.FieldText)
	if err != nil {
		return f.viewLocked(), err
	}
	f.draft.SetText(spec.Name, value)
	return f.viewLocked(), nil
}

// SetTexts merges several text fields at once. Unknown names reject the whole batch.
func (f *RegistrationForm) SetTexts(values map[string]string) (dto.FormView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	specs := make([]models.FieldSpec, 0, len(values))
	for name := range values {
		spec, err := f.lookup(name, models.FieldText)
		if err != nil {
			return f.viewLocked(), err
		}
		specs = append(specs, spec)
	}
	for _, spec := range specs {
		f.draft.SetText(spec.Name, values[string(spec.Name)])
	}
	return f.viewLocked(), nil
}

// SetFile stores a file handle in the draft; a nil handle clears the field. A replaced
// handle's spooled file is released, after the in-flight submission if it is part of it.
func (f *RegistrationForm) SetFile(name string, handle *models.FileHandle) (dto.FormView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	spec, err := f.lookup(name, models.FieldFile)
	if err != nil {
		return f.viewLocked(), err
	}
	prev := f.draft.SetFile(spec.Name, handle)
	if prev != nil && (handle == nil || prev.Key != handle.Key) {
		f.release(prev)
	}
	return f.viewLocked(), nil
}

// Advance moves to the next step when the current step's rules hold. A failed check is
// reported through the outcome and leaves the step unchanged.
func (f *RegistrationForm) Advance() (dto.FormView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step >= len(f.cfg.Steps) {
		return f.viewLocked(), appErrors.Clone(appErrors.ErrInvalidTransition, "already at the last step")
	}
	current := f.cfg.Steps[f.step-1]
	if missing := f.missingLocked(current); len(missing) > 0 {
		f.outcome = models.Outcome{Kind: models.OutcomeValidationError, Message: current.IncompleteMessage}
		f.logger.Debug("step incomplete", zap.Int("step", f.step), zap.Strings("missing", missing))
		return f.viewLocked(), nil
	}
	f.step++
	f.outcome = models.Outcome{}
	return f.viewLocked(), nil
}

// Retreat moves to the previous step unconditionally. The draft is untouched.
func (f *RegistrationForm) Retreat() (dto.FormView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step <= 1 {
		return f.viewLocked(), appErrors.Clone(appErrors.ErrInvalidTransition, "already at the first step")
	}
	f.step--
	return f.viewLocked(), nil
}

// errSettleAborted marks an attempt that never returned from the registrar.
var errSettleAborted = errors.New("submission aborted before settling")

// Submit validates the last step and posts the draft. A call made while another is in
// flight performs no network call and returns ErrSubmissionInFlight. The outbound call
// ignores ctx cancellation; the in-flight flag is released however the attempt ends.
func (f *RegistrationForm) Submit(ctx context.Context) (view dto.FormView, err error) {
	f.mu.Lock()
	if f.step != len(f.cfg.Steps) {
		view = f.viewLocked()
		f.mu.Unlock()
		return view, appErrors.Clone(appErrors.ErrInvalidTransition, "submit is only available on the last step")
	}
	if f.submitting {
		view = f.viewLocked()
		f.mu.Unlock()
		return view, appErrors.ErrSubmissionInFlight
	}
	last := f.cfg.Steps[len(f.cfg.Steps)-1]
	if missing := f.missingLocked(last); len(missing) > 0 {
		f.outcome = models.Outcome{Kind: models.OutcomeValidationError, Message: last.IncompleteMessage}
		view = f.viewLocked()
		f.mu.Unlock()
		f.logger.Debug("submit blocked", zap.Strings("missing", missing))
		f.metrics.ObserveSubmission(f.cfg.Name, models.OutcomeValidationError)
		return view, nil
	}
	f.submitting = true
	f.outcome = models.Outcome{Kind: models.OutcomePending, Message: f.cfg.Messages.Submitting}
	payload := f.draft.Payload()
	f.inflight = make(map[string]struct{})
	for _, part := range payload.Parts {
		if part.File != nil && part.File.Key != "" {
			f.inflight[part.File.Key] = struct{}{}
		}
	}
	f.mu.Unlock()

	result, callErr := (*models.RegisterResult)(nil), errSettleAborted
	defer func() {
		view = f.settle(result, callErr)
	}()

	f.logger.Info("submitting registration", zap.Stringer("fields", payload))
	result, callErr = f.registrar.Register(context.WithoutCancel(ctx), payload)
	return view, nil
}

func (f *RegistrationForm) settle(result *models.RegisterResult, callErr error) dto.FormView {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitting = false
	msgs := f.cfg.Messages
	switch {
	case callErr == nil:
		for _, h := range f.draft.Files() {
			f.release(h)
		}
		f.draft = models.NewRegistrationDraft()
		f.step = 1
		f.outcome = models.Outcome{Kind: models.OutcomeSuccess, Message: msgs.Success}
		fields := []zap.Field{}
		if result != nil {
			fields = append(fields, zap.Int("status", result.Status), zap.String("server_message", result.Message))
		}
		f.logger.Info("registration accepted", fields...)
	case appErrors.IsCode(callErr, appErrors.ErrUpstreamRejected.Code):
		text := appErrors.FromError(callErr).Message
		if text == "" {
			text = msgs.ServerFallback
		}
		f.outcome = models.Outcome{Kind: models.OutcomeServerError, Message: msgs.ServerPrefix + text}
		f.logger.Info("registration rejected", zap.Error(callErr))
	default:
		f.outcome = models.Outcome{Kind: models.OutcomeNetworkError, Message: msgs.Network}
		f.logger.Warn("registration transport failure", zap.Error(callErr))
	}
	f.releaseDeferredLocked()
	f.metrics.ObserveSubmission(f.cfg.Name, f.outcome.Kind)
	return f.viewLocked()
}

// releaseDeferredLocked frees files parked during the attempt unless the draft picked
// the same key up again.
func (f *RegistrationForm) releaseDeferredLocked() {
	held := make(map[string]struct{})
	for _, h := range f.draft.Files() {
		held[h.Key] = struct{}{}
	}
	for _, h := range f.deferred {
		if _, ok := held[h.Key]; !ok {
			f.release(h)
		}
	}
	f.deferred = nil
	f.inflight = nil
}

// Reset discards the draft and returns to step 1, releasing spooled files. Files still
// being sent are released once the submission settles.
func (f *RegistrationForm) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.draft.Files() {
		f.release(h)
	}
	f.draft = models.NewRegistrationDraft()
	f.step = 1
	f.outcome = models.Outcome{}
}

// View returns a snapshot of the form.
func (f *RegistrationForm) View() dto.FormView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

// Submitting reports whether a submission is in flight.
func (f *RegistrationForm) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

func (f *RegistrationForm) lookup(name string, kind models.FieldKind) (models.FieldSpec, error) {
	spec, ok := models.LookupField(name)
	if !ok || spec.Kind != kind {
		return models.FieldSpec{}, appErrors.Clone(appErrors.ErrUnknownField, "unknown field "+name)
	}
	if _, ok := f.fields[spec.Name]; !ok {
		return models.FieldSpec{}, appErrors.Clone(appErrors.ErrUnknownField, "field "+name+" is not part of this form")
	}
	return spec, nil
}

func (f *RegistrationForm) missingLocked(step StepDefinition) []string {
	var missing []string
	for _, name := range step.Fields {
		tag, ok := step.Rules[name]
		if !ok {
			continue
		}
		value := f.draft.Text(name)
		if f.draft.File(name) != nil {
			value = f.draft.File(name).Filename
			if value == "" {
				value = f.draft.File(name).Key
			}
		}
		if err := f.validator.Var(value, tag); err != nil {
			missing = append(missing, string(name))
		}
	}
	return missing
}

func (f *RegistrationForm) release(h *models.FileHandle) {
	if f.files == nil || h == nil || h.Key == "" {
		return
	}
	if _, sending := f.inflight[h.Key]; f.submitting && sending {
		f.deferred = append(f.deferred, h)
		return
	}
	if err := f.files.Delete(h.Key); err != nil {
		f.logger.Warn("release upload", zap.String("key", h.Key), zap.Error(err))
	}
}

func (f *RegistrationForm) viewLocked() dto.FormView {
	step := f.cfg.Steps[f.step-1]
	names := make([]string, 0, len(f.cfg.Steps))
	for _, s := range f.cfg.Steps {
		names = append(names, s.Name)
	}

	view := dto.FormView{
		Form:       f.cfg.Name,
		Title:      f.cfg.Title,
		Step:       f.step,
		StepCount:  len(f.cfg.Steps),
		StepName:   step.Name,
		Steps:      names,
		Fields:     make(map[string]string),
		Files:      make(map[string]models.FileHandle),
		Submitting: f.submitting,
		Outcome:    f.outcome,
		CanAdvance: f.step < len(f.cfg.Steps),
		CanRetreat: f.step > 1,
		CanSubmit:  f.step == len(f.cfg.Steps) && !f.submitting,
	}
	for name := range f.fields {
		if v := f.draft.Text(name); v != "" {
			view.Fields[string(name)] = v
		}
		if h := f.draft.File(name); h != nil {
			view.Files[string(name)] = *h
		}
	}
	for _, name := range step.Fields {
		if spec, ok := models.LookupField(string(name)); ok {
			view.StepFields = append(view.StepFields, spec)
		}
	}
	return view
}
