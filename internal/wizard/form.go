// Package wizard validates the four-step client intake form.
package wizard

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tmis-business-guru/internal/models"
)

type Step int

const (
	Step1BasicInfo Step = iota + 1
	Step2Documents
	Step3BankDetails
	Step4Review
)

func (s Step) String() string {
	switch s {
	case Step1BasicInfo:
		return "basic_info"
	case Step2Documents:
		return "documents"
	case Step3BankDetails:
		return "bank_details"
	case Step4Review:
		return "review"
	default:
		return "step_" + strconv.Itoa(int(s))
	}
}

const (
	MinBankStatements = 1
	MaxBankStatements = 6
	MinPartners       = 2
)

// Document keys, matching the backend's multipart field names.
const (
	DocGST            = "gst_document"
	DocBusinessPAN    = "business_pan_document"
	DocOwnerAadhar    = "owner_aadhar"
	DocOwnerPAN       = "owner_pan"
	bankStatementsKey = "bank_statements"
)

func PartnerAadharKey(i int) string {
	return fmt.Sprintf("partner_aadhar_%d", i)
}

func PartnerPANKey(i int) string {
	return fmt.Sprintf("partner_pan_%d", i)
}

// BankStatementKey numbers slots from 1.
func BankStatementKey(slot int) string {
	return fmt.Sprintf("bank_statement_%d", slot)
}

// Form holds every value entered in the wizard. Pattern rules apply only to non-empty values;
// presence is decided by RequiredFields.
type Form struct {
	// step 1
	LegalName            string `json:"legal_name"`
	TradeName            string `json:"trade_name"`
	UserName             string `json:"user_name"`
	MobileNumber         string `json:"mobile_number" validate:"omitempty,mobile"`
	OptionalMobileNumber string `json:"optional_mobile_number" validate:"omitempty,mobile"`
	Email                string `json:"email" validate:"omitempty,email"`
	Address              string `json:"address"`
	District             string `json:"district"`
	State                string `json:"state"`
	Pincode              string `json:"pincode" validate:"omitempty,pincode"`
	GSTNumber            string `json:"gst_number"`

	// step 2
	ConstitutionType models.ConstitutionType `json:"constitution_type"`
	HasBusinessPAN   bool                    `json:"has_business_pan"`
	NumberOfPartners int                     `json:"number_of_partners" validate:"gte=0"`
	PartnerNames     []string                `json:"partner_names" validate:"max=10"`

	// step 3
	BankName             string `json:"bank_name"`
	AccountNumber        string `json:"account_number" validate:"omitempty,numeric,min=6,max=18"`
	IFSCCode             string `json:"ifsc_code" validate:"omitempty,ifsc"`
	HasNewCurrentAccount bool   `json:"new_current_account"`
	NewBankName          string `json:"new_bank_name"`
	NewAccountNumber     string `json:"new_account_number" validate:"omitempty,numeric,min=6,max=18"`
	NewIFSCCode          string `json:"new_ifsc_code" validate:"omitempty,ifsc"`
	NewAccountName       string `json:"new_account_name"`

	// step 4
	StaffName   string  `json:"staff_name"`
	LoanAmount  float64 `json:"loan_amount" validate:"gte=0"`
	LoanPurpose string  `json:"loan_purpose"`
}

// fieldSteps assigns every plain form field to its step.
var fieldSteps = map[string]Step{
	"legal_name": Step1BasicInfo, "trade_name": Step1BasicInfo, "user_name": Step1BasicInfo,
	"mobile_number": Step1BasicInfo, "optional_mobile_number": Step1BasicInfo, "email": Step1BasicInfo,
	"address": Step1BasicInfo, "district": Step1BasicInfo, "state": Step1BasicInfo,
	"pincode": Step1BasicInfo, "gst_number": Step1BasicInfo,

	"constitution_type": Step2Documents, "has_business_pan": Step2Documents,
	"number_of_partners": Step2Documents, "partner_names": Step2Documents,

	"bank_name": Step3BankDetails, "account_number": Step3BankDetails, "ifsc_code": Step3BankDetails,
	"new_current_account": Step3BankDetails, "new_bank_name": Step3BankDetails,
	"new_account_number": Step3BankDetails, "new_ifsc_code": Step3BankDetails, "new_account_name": Step3BankDetails,

	"staff_name": Step4Review, "loan_amount": Step4Review, "loan_purpose": Step4Review,
}

// stepOf returns the step owning a field or document key.
func stepOf(key string) Step {
	if s, ok := fieldSteps[key]; ok {
		return s
	}
	switch {
	case key == DocGST:
		return Step1BasicInfo
	case key == bankStatementsKey || strings.HasPrefix(key, "bank_statement_"):
		return Step3BankDetails
	default:
		return Step2Documents
	}
}

// Requirement is one currently required field, document or document group.
type Requirement struct {
	Key      string   `json:"key"`
	Step     Step     `json:"step"`
	Document bool     `json:"document"`
	AnyOf    []string `json:"anyOf,omitempty"`
}

// EffectivePartners is max(declared, detected, 2), capped at models.MaxPartners. detected is the
// highest partner index holding any data, plus one.
func EffectivePartners(f Form, attached func(key string) bool) int {
	count := f.NumberOfPartners
	for i := 0; i < models.MaxPartners; i++ {
		hasName := i < len(f.PartnerNames) && strings.TrimSpace(f.PartnerNames[i]) != ""
		if hasName || attached(PartnerAadharKey(i)) || attached(PartnerPANKey(i)) {
			count = max(count, i+1)
		}
	}
	return min(max(count, MinPartners), models.MaxPartners)
}

// RequiredFields derives the current requirement set from the form. It is recomputed on every
// call so it always reflects the latest constitution, PAN and bank choices.
func RequiredFields(f Form, bankSlots int, attached func(key string) bool) []Requirement {
	fields := func(step Step, keys ...string) []Requirement {
		out := make([]Requirement, 0, len(keys))
		for _, k := range keys {
			out = append(out, Requirement{Key: k, Step: step})
		}
		return out
	}
	docs := func(keys ...string) []Requirement {
		out := make([]Requirement, 0, len(keys))
		for _, k := range keys {
			out = append(out, Requirement{Key: k, Step: stepOf(k), Document: true})
		}
		return out
	}

	reqs := fields(Step1BasicInfo, "legal_name", "user_name", "mobile_number", "address", "district", "state", "pincode")
	reqs = append(reqs, docs(DocGST)...)

	reqs = append(reqs, fields(Step2Documents, "constitution_type")...)
	switch f.ConstitutionType {
	case models.PrivateLimited:
		reqs = append(reqs, docs(DocBusinessPAN, DocOwnerAadhar, DocOwnerPAN)...)
	case models.Proprietorship:
		reqs = append(reqs, docs(DocOwnerAadhar, DocOwnerPAN)...)
		if f.HasBusinessPAN {
			reqs = append(reqs, docs(DocBusinessPAN)...)
		}
	case models.Partnership:
		for i := 0; i < EffectivePartners(f, attached); i++ {
			reqs = append(reqs, docs(PartnerAadharKey(i), PartnerPANKey(i))...)
		}
		if f.HasBusinessPAN {
			reqs = append(reqs, docs(DocBusinessPAN)...)
		}
	}

	reqs = append(reqs, fields(Step3BankDetails, "bank_name", "account_number", "ifsc_code")...)
	slots := make([]string, 0, bankSlots)
	for i := 1; i <= bankSlots; i++ {
		slots = append(slots, BankStatementKey(i))
	}
	reqs = append(reqs, Requirement{Key: bankStatementsKey, Step: Step3BankDetails, Document: true, AnyOf: slots})
	if f.HasNewCurrentAccount {
		reqs = append(reqs, fields(Step3BankDetails, "new_bank_name", "new_account_number", "new_ifsc_code", "new_account_name")...)
	}

	reqs = append(reqs, fields(Step4Review, "staff_name", "loan_amount", "loan_purpose")...)
	return reqs
}

// value reports whether a plain field holds a value.
func (f Form) value(key string) bool {
	switch key {
	case "constitution_type":
		return f.ConstitutionType != ""
	case "loan_amount":
		return f.LoanAmount > 0
	}
	v, ok := f.textValues()[key]
	return ok && strings.TrimSpace(v) != ""
}

func (f Form) textValues() map[string]string {
	return map[string]string{
		"legal_name":             f.LegalName,
		"trade_name":             f.TradeName,
		"user_name":              f.UserName,
		"mobile_number":          f.MobileNumber,
		"optional_mobile_number": f.OptionalMobileNumber,
		"email":                  f.Email,
		"address":                f.Address,
		"district":               f.District,
		"state":                  f.State,
		"pincode":                f.Pincode,
		"gst_number":             f.GSTNumber,
		"bank_name":              f.BankName,
		"account_number":         f.AccountNumber,
		"ifsc_code":              f.IFSCCode,
		"new_bank_name":          f.NewBankName,
		"new_account_number":     f.NewAccountNumber,
		"new_ifsc_code":          f.NewIFSCCode,
		"new_account_name":       f.NewAccountName,
		"staff_name":             f.StaffName,
		"loan_purpose":           f.LoanPurpose,
	}
}

// SubmissionFields flattens the form into the backend's multipart field names.
func (f Form) SubmissionFields(partners int) map[string]string {
	out := make(map[string]string)
	for k, v := range f.textValues() {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	out["constitution_type"] = constitutionLabel(f.ConstitutionType)
	out["has_business_pan"] = yesNo(f.HasBusinessPAN)
	out["new_current_account"] = yesNo(f.HasNewCurrentAccount)
	out["loan_amount"] = strconv.FormatFloat(f.LoanAmount, 'f', -1, 64)
	if f.ConstitutionType == models.Partnership {
		out["number_of_partners"] = strconv.Itoa(partners)
		for i := 0; i < partners && i < len(f.PartnerNames); i++ {
			if name := strings.TrimSpace(f.PartnerNames[i]); name != "" {
				out[fmt.Sprintf("partner_name_%d", i)] = name
			}
		}
	}
	return out
}

func constitutionLabel(ct models.ConstitutionType) string {
	if ct == models.PrivateLimited {
		return "Private Limited"
	}
	return string(ct)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var labels = map[string]string{
	"gst_document":          "GST document",
	"business_pan_document": "Business PAN document",
	"owner_aadhar":          "Owner Aadhaar",
	"owner_pan":             "Owner PAN",
	"ifsc_code":             "IFSC code",
	"new_ifsc_code":         "New account IFSC code",
	"bank_statements":       "Bank statement",
	"pincode":               "Pin code",
}

// Label is the human readable name of a field or document key.
func Label(key string) string {
	if l, ok := labels[key]; ok {
		return l
	}
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}
