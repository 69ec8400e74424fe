package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/common/logger"
	"tmis-business-guru/internal/common/metrics"
	"tmis-business-guru/internal/common/validation"
	"tmis-business-guru/internal/gateway"
	"tmis-business-guru/internal/models"
)

// Attachment is a document held by the wizard until submission.
type Attachment struct {
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	AttachedAt  time.Time `json:"attachedAt"`
	data        []byte
}

// Submitter creates the client on the backend; gateway.Client satisfies it.
type Submitter interface {
	CreateClient(ctx context.Context, fields map[string]string, files []gateway.FileUpload) (*models.ClientRecord, error)
}

// Wizard is one intake session. Transitions are linear: Next validates the current step,
// Back never does. All validation is local.
type Wizard struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	step      Step
	form      Form
	docs      map[string]*Attachment
	bankSlots int
	touched   map[string]bool
	lastError *errors.StandardError
	submitted *models.ClientRecord

	validator *validation.Validator
	logger    logger.Logger
}

func New(id string, v *validation.Validator, log logger.Logger) *Wizard {
	if v == nil {
		v = validation.NewValidator()
	}
	return &Wizard{
		ID:        id,
		CreatedAt: time.Now(),
		step:      Step1BasicInfo,
		docs:      make(map[string]*Attachment),
		bankSlots: MinBankStatements,
		touched:   make(map[string]bool),
		validator: v,
		logger:    logger.ForComponent(log, "wizard").WithFields(map[string]interface{}{"wizardId": id}),
	}
}

// ==========================
// Form Editing
// ==========================

// ApplyJSON merges a partial form document into the current values. Keys present in the patch
// are marked touched.
func (w *Wizard) ApplyJSON(patch []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(patch, &keys); err != nil {
		return errors.NewValidationFailedError("form must be a JSON object")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.form
	next.PartnerNames = append([]string(nil), w.form.PartnerNames...)
	if err := json.Unmarshal(patch, &next); err != nil {
		return errors.NewValidationFailedError(fmt.Sprintf("invalid form value: %v", err))
	}
	if raw, ok := keys["constitution_type"]; ok {
		var label string
		if err := json.Unmarshal(raw, &label); err == nil {
			ct, ok := models.ParseConstitutionType(label)
			if !ok && label != "" {
				return errors.NewValidationFailedError(fmt.Sprintf("unknown constitution type %q", label))
			}
			next.ConstitutionType = ct
		}
	}
	w.form = next
	w.normalize()
	for k := range keys {
		w.touched[k] = true
	}
	return nil
}

// SetConstitutionType selects the constitution; PrivateLimited locks business PAN to yes.
func (w *Wizard) SetConstitutionType(ct models.ConstitutionType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.ConstitutionType = ct
	w.touched["constitution_type"] = true
	w.normalize()
}

// SetHasBusinessPAN changes the toggle unless it is locked and returns the value in effect.
func (w *Wizard) SetHasBusinessPAN(v bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.panLocked() {
		w.form.HasBusinessPAN = v
	}
	w.touched["has_business_pan"] = true
	return w.form.HasBusinessPAN
}

// panLocked must be called with w.mu held.
func (w *Wizard) panLocked() bool {
	return w.form.ConstitutionType == models.PrivateLimited
}

// normalize applies derived values and must be called with w.mu held.
func (w *Wizard) normalize() {
	if w.panLocked() {
		w.form.HasBusinessPAN = true
	}
	w.form.IFSCCode = strings.ToUpper(strings.TrimSpace(w.form.IFSCCode))
	w.form.NewIFSCCode = strings.ToUpper(strings.TrimSpace(w.form.NewIFSCCode))
	w.form.MobileNumber = strings.TrimSpace(w.form.MobileNumber)
	w.form.OptionalMobileNumber = strings.TrimSpace(w.form.OptionalMobileNumber)
	w.form.Pincode = strings.TrimSpace(w.form.Pincode)
}

// ==========================
// Documents
// ==========================

func (w *Wizard) knownDocument(key string) bool {
	switch key {
	case DocGST, DocBusinessPAN, DocOwnerAadhar, DocOwnerPAN:
		return true
	}
	for i := 0; i < models.MaxPartners; i++ {
		if key == PartnerAadharKey(i) || key == PartnerPANKey(i) {
			return true
		}
	}
	if slot, ok := strings.CutPrefix(key, "bank_statement_"); ok {
		n, err := strconv.Atoi(slot)
		return err == nil && n >= 1 && n <= w.bankSlots
	}
	return false
}

// Attach stores a document under its key. Bank statements can only go into open slots.
func (w *Wizard) Attach(key, fileName, contentType string, data []byte) error {
	if len(data) == 0 {
		return errors.NewValidationFailedError(Label(key) + " is empty")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.knownDocument(key) {
		return errors.NewValidationFailedError(fmt.Sprintf("unknown document %q", key))
	}
	w.docs[key] = &Attachment{
		FileName:    fileName,
		ContentType: contentType,
		Size:        len(data),
		AttachedAt:  time.Now(),
		data:        data,
	}
	w.touched[key] = true
	return nil
}

func (w *Wizard) Detach(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.docs[key]
	delete(w.docs, key)
	w.touched[key] = true
	return ok
}

// AddBankStatementSlot opens one more statement slot, up to six.
func (w *Wizard) AddBankStatementSlot() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bankSlots >= MaxBankStatements {
		return w.bankSlots, errors.NewValidationFailedError(fmt.Sprintf("at most %d bank statements can be attached", MaxBankStatements))
	}
	w.bankSlots++
	return w.bankSlots, nil
}

// RemoveBankStatementSlot closes the last slot and drops its document. One slot always remains.
func (w *Wizard) RemoveBankStatementSlot() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bankSlots <= MinBankStatements {
		return w.bankSlots, errors.NewValidationFailedError("at least one bank statement slot is required")
	}
	delete(w.docs, BankStatementKey(w.bankSlots))
	w.bankSlots--
	return w.bankSlots, nil
}

// ==========================
// Validation
// ==========================

func (w *Wizard) attached(key string) bool {
	_, ok := w.docs[key]
	return ok
}

// stepErrors returns key → message for every problem in step, touched or not. Callers hold w.mu.
func (w *Wizard) stepErrors(step Step) map[string]string {
	out := make(map[string]string)
	for _, req := range RequiredFields(w.form, w.bankSlots, w.attached) {
		if req.Step != step {
			continue
		}
		switch {
		case len(req.AnyOf) > 0:
			found := false
			for _, k := range req.AnyOf {
				found = found || w.attached(k)
			}
			if !found {
				out[req.Key] = "At least one " + strings.ToLower(Label(req.Key)) + " is required"
			}
		case req.Document:
			if !w.attached(req.Key) {
				out[req.Key] = Label(req.Key) + " is required"
			}
		default:
			if !w.form.value(req.Key) {
				out[req.Key] = Label(req.Key) + " is required"
			}
		}
	}

	for key, msg := range w.validator.Struct(w.form) {
		if stepOf(key) != step {
			continue
		}
		if _, missing := out[key]; !missing {
			out[key] = msg
		}
	}
	return out
}

func (w *Wizard) IsStepValid(step Step) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.stepErrors(step)) == 0
}

// RequiredFields lists the current requirements of every step.
func (w *Wizard) RequiredFields() []Requirement {
	w.mu.Lock()
	defer w.mu.Unlock()
	return RequiredFields(w.form, w.bankSlots, w.attached)
}

// VisibleErrors reports problems of steps up to the current one, limited to touched fields.
func (w *Wizard) VisibleErrors() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visibleErrors()
}

func (w *Wizard) visibleErrors() map[string]string {
	out := make(map[string]string)
	for s := Step1BasicInfo; s <= w.step; s++ {
		for key, msg := range w.stepErrors(s) {
			if w.touched[key] {
				out[key] = msg
			}
		}
	}
	return out
}

// touchStep marks every field of step touched so its messages surface. Callers hold w.mu.
func (w *Wizard) touchStep(step Step) {
	for key, s := range fieldSteps {
		if s == step {
			w.touched[key] = true
		}
	}
	for _, req := range RequiredFields(w.form, w.bankSlots, w.attached) {
		if req.Step == step {
			w.touched[req.Key] = true
		}
	}
}

// ==========================
// Transitions
// ==========================

// Next advances one step when the current step is valid. Otherwise the step's fields are
// marked touched and a WIZARD_STEP_INVALID error lists the failing keys.
func (w *Wizard) Next() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	from := w.step
	if from >= Step4Review {
		return from, errors.NewValidationFailedError("already at the last step; submit the form instead")
	}

	if problems := w.stepErrors(from); len(problems) > 0 {
		w.touchStep(from)
		metrics.WizardTransitions.WithLabelValues(from.String(), metrics.OutcomeInvalid).Inc()
		keys := sortedKeys(problems)
		w.logger.Debug("step transition rejected", map[string]interface{}{
			"step":   int(from),
			"fields": keys,
		})
		return from, stepInvalid(from, problems)
	}

	w.step++
	if w.step == Step2Documents {
		w.normalize()
	}
	metrics.WizardTransitions.WithLabelValues(from.String(), metrics.OutcomeSuccess).Inc()
	return w.step, nil
}

// Back moves one step back without validating.
func (w *Wizard) Back() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > Step1BasicInfo {
		w.step--
	}
	return w.step
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Form() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	f := w.form
	f.PartnerNames = append([]string(nil), w.form.PartnerNames...)
	return f
}

// ==========================
// Submission
// ==========================

// Submit sends the form once every step is valid. A backend rejection is kept as LastError and
// leaves all entered data in place so the user can correct and resubmit.
func (w *Wizard) Submit(ctx context.Context, submitter Submitter) (*models.ClientRecord, error) {
	w.mu.Lock()
	if w.submitted != nil {
		client := w.submitted
		w.mu.Unlock()
		return client, nil
	}
	if w.step != Step4Review {
		w.mu.Unlock()
		return nil, errors.NewValidationFailedError("complete every step before submitting")
	}
	for s := Step1BasicInfo; s <= Step4Review; s++ {
		if problems := w.stepErrors(s); len(problems) > 0 {
			w.touchStep(s)
			w.mu.Unlock()
			return nil, stepInvalid(s, problems)
		}
	}

	partners := 0
	if w.form.ConstitutionType == models.Partnership {
		partners = EffectivePartners(w.form, w.attached)
	}
	fields := w.form.SubmissionFields(partners)
	files := w.files()
	w.mu.Unlock()

	client, err := submitter.CreateClient(ctx, fields, files)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		stdErr, ok := errors.AsStandard(err)
		if !ok {
			stdErr = &errors.StandardError{
				Code:      errors.ErrCodeInternal,
				Message:   errors.UserMessage(err),
				Details:   err.Error(),
				Timestamp: time.Now().UTC(),
			}
		}
		w.lastError = stdErr
		w.logger.Warn("intake submission rejected", map[string]interface{}{
			"code":  stdErr.Code,
			"error": err,
		})
		return nil, err
	}
	w.lastError = nil
	w.submitted = client
	w.logger.Info("intake submitted", map[string]interface{}{"clientId": client.ID})
	return client, nil
}

// files collects attachments in key order. Callers hold w.mu.
func (w *Wizard) files() []gateway.FileUpload {
	keys := make([]string, 0, len(w.docs))
	for k := range w.docs {
		if w.included(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]gateway.FileUpload, 0, len(keys))
	for _, k := range keys {
		a := w.docs[k]
		out = append(out, gateway.FileUpload{FieldName: k, FileName: a.FileName, ContentType: a.ContentType, Data: a.data})
	}
	return out
}

// included drops documents that no longer apply, e.g. partner documents after switching to
// proprietorship.
func (w *Wizard) included(key string) bool {
	if strings.HasPrefix(key, "partner_") {
		return w.form.ConstitutionType == models.Partnership
	}
	if key == DocBusinessPAN {
		return w.form.HasBusinessPAN
	}
	return true
}

func (w *Wizard) LastError() *errors.StandardError {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}

// stepInvalid carries the sorted field list plus one message per field.
func stepInvalid(step Step, problems map[string]string) *errors.StandardError {
	err := errors.NewWizardStepInvalidError(int(step), sortedKeys(problems))
	err.Metadata["errors"] = validation.ToResult(problems).Errors
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ==========================
// State
// ==========================

// State is the serializable view of a wizard.
type State struct {
	ID                 string                `json:"id"`
	Step               Step                  `json:"step"`
	StepName           string                `json:"stepName"`
	Form               Form                  `json:"form"`
	Documents          map[string]Attachment `json:"documents"`
	BankStatementSlots int                   `json:"bankStatementSlots"`
	BusinessPANLocked  bool                  `json:"businessPanLocked"`
	EffectivePartners  int                   `json:"effectivePartners"`
	Required           []Requirement         `json:"required"`
	StepValid          map[Step]bool         `json:"stepValid"`
	Errors             map[string]string     `json:"errors"`
	LastError          *errors.StandardError `json:"lastError,omitempty"`
	Client             *models.ClientRecord  `json:"client,omitempty"`
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	docs := make(map[string]Attachment, len(w.docs))
	for k, a := range w.docs {
		docs[k] = *a
	}
	valid := make(map[Step]bool, 4)
	for s := Step1BasicInfo; s <= Step4Review; s++ {
		valid[s] = len(w.stepErrors(s)) == 0
	}
	var required []Requirement
	for _, req := range RequiredFields(w.form, w.bankSlots, w.attached) {
		if req.Step == w.step {
			required = append(required, req)
		}
	}
	form := w.form
	form.PartnerNames = append([]string(nil), w.form.PartnerNames...)

	return State{
		ID:                 w.ID,
		Step:               w.step,
		StepName:           w.step.String(),
		Form:               form,
		Documents:          docs,
		BankStatementSlots: w.bankSlots,
		BusinessPANLocked:  w.panLocked(),
		EffectivePartners:  EffectivePartners(w.form, w.attached),
		Required:           required,
		StepValid:          valid,
		Errors:             w.visibleErrors(),
		LastError:          w.lastError,
		Client:             w.submitted,
	}
}
