package wizard

import (
	"context"
	"testing"
	"time"

	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/common/logger"
	"tmis-business-guru/internal/common/validation"
	"tmis-business-guru/internal/gateway"
	"tmis-business-guru/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

var pdf = []byte("%PDF-1.4 test document")

func newWizard(t *testing.T) *Wizard {
	t.Helper()
	return New("w-1", nil, logger.NewTestLogger(t))
}

func fillStep1(t *testing.T, w *Wizard) {
	t.Helper()
	require.NoError(t, w.ApplyJSON([]byte(`{
		"legal_name": "Acme Traders",
		"user_name": "Ravi",
		"mobile_number": "9876543210",
		"email": "ravi@acme.in",
		"address": "12 MG Road",
		"district": "Pune",
		"state": "Maharashtra",
		"pincode": "411001"
	}`)))
	require.NoError(t, w.Attach(DocGST, "gst.pdf", "application/pdf", pdf))
}

func fillStep2Proprietorship(t *testing.T, w *Wizard) {
	t.Helper()
	w.SetConstitutionType(models.Proprietorship)
	require.NoError(t, w.Attach(DocOwnerAadhar, "aadhar.pdf", "application/pdf", pdf))
	require.NoError(t, w.Attach(DocOwnerPAN, "pan.pdf", "application/pdf", pdf))
}

func fillStep3(t *testing.T, w *Wizard) {
	t.Helper()
	require.NoError(t, w.ApplyJSON([]byte(`{"bank_name":"HDFC","account_number":"123456789012","ifsc_code":"hdfc0001234"}`)))
	require.NoError(t, w.Attach(BankStatementKey(1), "jan.pdf", "application/pdf", pdf))
}

func fillStep4(t *testing.T, w *Wizard) {
	t.Helper()
	require.NoError(t, w.ApplyJSON([]byte(`{"staff_name":"Asha","loan_amount":500000,"loan_purpose":"Working capital"}`)))
}

func advance(t *testing.T, w *Wizard, to Step) {
	t.Helper()
	for w.Step() < to {
		_, err := w.Next()
		require.NoError(t, err)
	}
}

func requiredKeys(w *Wizard, step Step) []string {
	var keys []string
	for _, r := range w.RequiredFields() {
		if r.Step == step {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// ==========================
// Step 1 Tests
// ==========================

func TestNext_RejectsInvalidStepAndTouchesFields(t *testing.T) {
	w := newWizard(t)
	assert.Empty(t, w.VisibleErrors(), "nothing is shown before the user interacts")

	step, err := w.Next()
	require.Error(t, err)
	assert.Equal(t, Step1BasicInfo, step)

	stdErr, ok := errors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeWizardStepInvalid, stdErr.Code)
	assert.Contains(t, stdErr.Metadata["fields"], "legal_name")
	assert.Contains(t, stdErr.Metadata["fields"], DocGST)
	details, ok := stdErr.Metadata["errors"].([]validation.ValidationError)
	require.True(t, ok)
	require.NotEmpty(t, details)
	assert.Len(t, details, len(stdErr.Metadata["fields"].([]string)))
	for i, d := range details {
		assert.NotEmpty(t, d.Message, d.Field)
		assert.Equal(t, stdErr.Metadata["fields"].([]string)[i], d.Field)
	}

	visible := w.VisibleErrors()
	assert.Equal(t, "Legal Name is required", visible["legal_name"])
	assert.Equal(t, "GST document is required", visible[DocGST])
}

func TestStep1_PatternValidation(t *testing.T) {
	tests := []struct {
		name  string
		patch string
		field string
	}{
		{"short mobile", `{"mobile_number":"98765"}`, "mobile_number"},
		{"letters in mobile", `{"mobile_number":"98765abcde"}`, "mobile_number"},
		{"five digit pincode", `{"pincode":"41100"}`, "pincode"},
		{"bad email", `{"email":"not-an-email"}`, "email"},
		{"bad optional mobile", `{"optional_mobile_number":"123"}`, "optional_mobile_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWizard(t)
			fillStep1(t, w)
			require.True(t, w.IsStepValid(Step1BasicInfo))

			require.NoError(t, w.ApplyJSON([]byte(tt.patch)))
			assert.False(t, w.IsStepValid(Step1BasicInfo))
			assert.Contains(t, w.VisibleErrors(), tt.field)
		})
	}
}

func TestStep1_GSTDocumentRequired(t *testing.T) {
	w := newWizard(t)
	fillStep1(t, w)
	require.True(t, w.Detach(DocGST))

	assert.False(t, w.IsStepValid(Step1BasicInfo))
	_, err := w.Next()
	assert.True(t, errors.IsCode(err, errors.ErrCodeWizardStepInvalid))
}

// ==========================
// Step 2 Tests
// ==========================

func TestPrivateLimited_LocksBusinessPAN(t *testing.T) {
	w := newWizard(t)
	w.SetConstitutionType(models.PrivateLimited)

	assert.True(t, w.SetHasBusinessPAN(false), "toggle stays on for private limited")
	require.NoError(t, w.ApplyJSON([]byte(`{"has_business_pan": false}`)))
	assert.True(t, w.Form().HasBusinessPAN)
	assert.True(t, w.State().BusinessPANLocked)

	assert.ElementsMatch(t, []string{"constitution_type", DocBusinessPAN, DocOwnerAadhar, DocOwnerPAN}, requiredKeys(w, Step2Documents))
}

func TestApplyJSON_ParsesConstitutionLabel(t *testing.T) {
	w := newWizard(t)
	require.NoError(t, w.ApplyJSON([]byte(`{"constitution_type":"Private Limited"}`)))
	assert.Equal(t, models.PrivateLimited, w.Form().ConstitutionType)
	assert.True(t, w.Form().HasBusinessPAN)

	err := w.ApplyJSON([]byte(`{"constitution_type":"Trust"}`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationFailed))
	assert.Equal(t, models.PrivateLimited, w.Form().ConstitutionType, "rejected patch leaves form unchanged")
}

func TestProprietorship_BusinessPANFollowsToggle(t *testing.T) {
	w := newWizard(t)
	w.SetConstitutionType(models.Proprietorship)
	assert.NotContains(t, requiredKeys(w, Step2Documents), DocBusinessPAN)

	assert.True(t, w.SetHasBusinessPAN(true))
	assert.Contains(t, requiredKeys(w, Step2Documents), DocBusinessPAN)

	assert.False(t, w.SetHasBusinessPAN(false))
	assert.NotContains(t, requiredKeys(w, Step2Documents), DocBusinessPAN)
}

func TestPartnership_EffectivePartnerCount(t *testing.T) {
	tests := []struct {
		name     string
		patch    string
		attach   []string
		expected int
	}{
		{"zero declared uses minimum", `{"number_of_partners":0}`, nil, 2},
		{"declared above minimum", `{"number_of_partners":4}`, nil, 4},
		{"detected from names", `{"number_of_partners":1,"partner_names":["A","","","D"]}`, nil, 4},
		{"detected from documents", `{"number_of_partners":2}`, []string{PartnerPANKey(5)}, 6},
		{"capped at ten", `{"number_of_partners":25}`, nil, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWizard(t)
			w.SetConstitutionType(models.Partnership)
			require.NoError(t, w.ApplyJSON([]byte(tt.patch)))
			for _, key := range tt.attach {
				require.NoError(t, w.Attach(key, "doc.pdf", "application/pdf", pdf))
			}

			assert.Equal(t, tt.expected, w.State().EffectivePartners)
			keys := requiredKeys(w, Step2Documents)
			assert.Contains(t, keys, PartnerAadharKey(tt.expected-1))
			assert.Contains(t, keys, PartnerPANKey(tt.expected-1))
			assert.NotContains(t, keys, PartnerAadharKey(tt.expected))
		})
	}
}

func TestPartnership_DeclaredAboveCapStillAdvances(t *testing.T) {
	w := newWizard(t)
	fillStep1(t, w)
	advance(t, w, Step2Documents)
	w.SetConstitutionType(models.Partnership)
	require.NoError(t, w.ApplyJSON([]byte(`{"number_of_partners":12}`)))

	for i := 0; i < models.MaxPartners; i++ {
		require.NoError(t, w.Attach(PartnerAadharKey(i), "a.pdf", "", pdf))
		require.NoError(t, w.Attach(PartnerPANKey(i), "p.pdf", "", pdf))
	}

	assert.Equal(t, models.MaxPartners, w.State().EffectivePartners)
	assert.Empty(t, w.stepErrors(Step2Documents))
	assert.True(t, w.IsStepValid(Step2Documents))

	step, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, Step3BankDetails, step)
}

func TestPartnership_Step2Validity(t *testing.T) {
	w := newWizard(t)
	fillStep1(t, w)
	advance(t, w, Step2Documents)
	w.SetConstitutionType(models.Partnership)

	require.NoError(t, w.Attach(PartnerAadharKey(0), "a0.pdf", "", pdf))
	require.NoError(t, w.Attach(PartnerPANKey(0), "p0.pdf", "", pdf))
	assert.False(t, w.IsStepValid(Step2Documents), "second partner is still required")

	require.NoError(t, w.Attach(PartnerAadharKey(1), "a1.pdf", "", pdf))
	require.NoError(t, w.Attach(PartnerPANKey(1), "p1.pdf", "", pdf))
	assert.True(t, w.IsStepValid(Step2Documents))

	w.SetHasBusinessPAN(true)
	assert.False(t, w.IsStepValid(Step2Documents))
}

// ==========================
// Step 3 Tests
// ==========================

func TestBankStatementSlots(t *testing.T) {
	w := newWizard(t)

	_, err := w.RemoveBankStatementSlot()
	assert.Error(t, err, "never below one slot")

	for want := 2; want <= MaxBankStatements; want++ {
		n, err := w.AddBankStatementSlot()
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	_, err = w.AddBankStatementSlot()
	assert.Error(t, err, "at most six slots")

	require.NoError(t, w.Attach(BankStatementKey(6), "jun.pdf", "", pdf))
	n, err := w.RemoveBankStatementSlot()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NotContains(t, w.State().Documents, BankStatementKey(6))

	assert.Error(t, w.Attach(BankStatementKey(6), "jun.pdf", "", pdf), "closed slot")
}

func TestStep3_AnyStatementAndNewAccount(t *testing.T) {
	w := newWizard(t)
	require.NoError(t, w.ApplyJSON([]byte(`{"bank_name":"HDFC","account_number":"123456789012","ifsc_code":"HDFC0001234"}`)))
	assert.False(t, w.IsStepValid(Step3BankDetails))

	_, err := w.AddBankStatementSlot()
	require.NoError(t, err)
	require.NoError(t, w.Attach(BankStatementKey(2), "feb.pdf", "", pdf))
	assert.True(t, w.IsStepValid(Step3BankDetails), "any attached slot satisfies the requirement")

	require.NoError(t, w.ApplyJSON([]byte(`{"new_current_account":true}`)))
	assert.False(t, w.IsStepValid(Step3BankDetails))
	assert.Subset(t, requiredKeys(w, Step3BankDetails), []string{"new_bank_name", "new_account_number", "new_ifsc_code", "new_account_name"})

	require.NoError(t, w.ApplyJSON([]byte(`{"new_bank_name":"SBI","new_account_number":"998877665544","new_ifsc_code":"SBIN0000001","new_account_name":"Acme Current"}`)))
	assert.True(t, w.IsStepValid(Step3BankDetails))

	require.NoError(t, w.ApplyJSON([]byte(`{"ifsc_code":"HDFC123"}`)))
	assert.False(t, w.IsStepValid(Step3BankDetails))
}

// ==========================
// Transition Tests
// ==========================

func TestTransitions_LinearOnly(t *testing.T) {
	w := newWizard(t)
	fillStep1(t, w)
	advance(t, w, Step2Documents)

	_, err := w.Next()
	require.Error(t, err, "step 2 incomplete")
	assert.Equal(t, Step2Documents, w.Step())

	assert.Equal(t, Step1BasicInfo, w.Back())
	assert.Equal(t, Step1BasicInfo, w.Back(), "back stops at the first step")

	fillStep2Proprietorship(t, w)
	fillStep3(t, w)
	fillStep4(t, w)
	advance(t, w, Step4Review)

	_, err = w.Next()
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationFailed))
	assert.Equal(t, Step4Review, w.Step())
}

func TestStep4_LoanAmountMustBePositive(t *testing.T) {
	w := newWizard(t)
	require.NoError(t, w.ApplyJSON([]byte(`{"staff_name":"Asha","loan_amount":0,"loan_purpose":"Expansion"}`)))
	assert.False(t, w.IsStepValid(Step4Review))

	require.NoError(t, w.ApplyJSON([]byte(`{"loan_amount":150000.5}`)))
	assert.True(t, w.IsStepValid(Step4Review))
}

// ==========================
// Submit Tests
// ==========================

type fakeSubmitter struct {
	fields map[string]string
	files  []gateway.FileUpload
	err    error
}

func (f *fakeSubmitter) CreateClient(_ context.Context, fields map[string]string, files []gateway.FileUpload) (*models.ClientRecord, error) {
	f.fields = fields
	f.files = files
	if f.err != nil {
		return nil, f.err
	}
	return &models.ClientRecord{ID: "c-100", LegalName: fields["legal_name"]}, nil
}

func completeWizard(t *testing.T) *Wizard {
	w := newWizard(t)
	fillStep1(t, w)
	fillStep2Proprietorship(t, w)
	fillStep3(t, w)
	fillStep4(t, w)
	advance(t, w, Step4Review)
	return w
}

func TestSubmit_BlockedBeforeLastStep(t *testing.T) {
	w := newWizard(t)
	sub := &fakeSubmitter{}

	_, err := w.Submit(context.Background(), sub)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidationFailed))
	assert.Nil(t, sub.fields, "backend must not be called")
}

func TestSubmit_BlockedWhenStepBecameInvalid(t *testing.T) {
	w := completeWizard(t)
	require.NoError(t, w.ApplyJSON([]byte(`{"loan_purpose":""}`)))
	sub := &fakeSubmitter{}

	_, err := w.Submit(context.Background(), sub)
	assert.True(t, errors.IsCode(err, errors.ErrCodeWizardStepInvalid))
	assert.Nil(t, sub.fields)
	assert.Contains(t, w.VisibleErrors(), "loan_purpose")
}

func TestSubmit_ServerRejectionKeepsData(t *testing.T) {
	w := completeWizard(t)
	sub := &fakeSubmitter{err: errors.NewDuplicateClientError("Client with this mobile number already exists")}

	_, err := w.Submit(context.Background(), sub)
	require.Error(t, err)

	last := w.LastError()
	require.NotNil(t, last)
	assert.Equal(t, errors.ErrCodeDuplicateClient, last.Code)
	assert.Equal(t, "9876543210", w.Form().MobileNumber)
	assert.Equal(t, Step4Review, w.Step())
	assert.Len(t, w.State().Documents, 4)

	sub.err = nil
	client, err := w.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "c-100", client.ID)
	assert.Nil(t, w.LastError())
}

func TestSubmit_SendsApplicableFieldsAndFiles(t *testing.T) {
	w := completeWizard(t)
	// partner documents from an abandoned partnership choice must not be sent
	w.SetConstitutionType(models.Partnership)
	require.NoError(t, w.Attach(PartnerAadharKey(0), "a0.pdf", "", pdf))
	w.SetConstitutionType(models.Proprietorship)

	sub := &fakeSubmitter{}
	client, err := w.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "Acme Traders", client.LegalName)

	assert.Equal(t, "Proprietorship", sub.fields["constitution_type"])
	assert.Equal(t, "no", sub.fields["has_business_pan"])
	assert.Equal(t, "HDFC0001234", sub.fields["ifsc_code"])
	assert.Equal(t, "500000", sub.fields["loan_amount"])
	assert.NotContains(t, sub.fields, "number_of_partners")

	var names []string
	for _, f := range sub.files {
		names = append(names, f.FieldName)
	}
	assert.Equal(t, []string{BankStatementKey(1), DocGST, DocOwnerAadhar, DocOwnerPAN}, names)

	again, err := w.Submit(context.Background(), &fakeSubmitter{err: errors.NewServerError(500, "boom")})
	require.NoError(t, err, "a submitted wizard is not sent twice")
	assert.Same(t, client, again)
}

func TestSubmit_PartnershipFlattensPartners(t *testing.T) {
	w := newWizard(t)
	fillStep1(t, w)
	w.SetConstitutionType(models.Partnership)
	require.NoError(t, w.ApplyJSON([]byte(`{"partner_names":["Anil","Sunita"]}`)))
	for i := 0; i < 2; i++ {
		require.NoError(t, w.Attach(PartnerAadharKey(i), "a.pdf", "", pdf))
		require.NoError(t, w.Attach(PartnerPANKey(i), "p.pdf", "", pdf))
	}
	fillStep3(t, w)
	fillStep4(t, w)
	advance(t, w, Step4Review)

	sub := &fakeSubmitter{}
	_, err := w.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "2", sub.fields["number_of_partners"])
	assert.Equal(t, "Anil", sub.fields["partner_name_0"])
	assert.Equal(t, "Sunita", sub.fields["partner_name_1"])
	assert.Len(t, sub.files, 6)
}

// ==========================
// Registry Tests
// ==========================

func TestRegistry(t *testing.T) {
	r := NewRegistry(time.Hour, logger.NewNoOpLogger())
	now := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	w := r.Open("user-1")
	require.NotEmpty(t, w.ID)

	got, ok := r.Get(w.ID, "user-1")
	require.True(t, ok)
	assert.Same(t, w, got)

	_, ok = r.Get(w.ID, "user-2")
	assert.False(t, ok, "sessions are private to their owner")

	stale := r.Open("user-2")
	now = now.Add(45 * time.Minute)
	_, _ = r.Get(w.ID, "user-1")
	now = now.Add(30 * time.Minute)

	assert.Equal(t, 1, r.Sweep())
	_, ok = r.Get(stale.ID, "user-2")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	assert.False(t, r.Close(w.ID, "user-2"))
	assert.True(t, r.Close(w.ID, "user-1"))
	assert.Equal(t, 0, r.Len())
}
