// internal/models/client.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClientStatus is the pipeline status of a client.
type ClientStatus string

const (
	StatusPending       ClientStatus = "pending"
	StatusInterested    ClientStatus = "interested"
	StatusNotInterested ClientStatus = "not_interested"
	StatusHold          ClientStatus = "hold"
	StatusProcessing    ClientStatus = "processing"
	StatusUnknown       ClientStatus = "unknown"
)

// CanonicalStatuses is the fixed display order of status categories.
var CanonicalStatuses = []ClientStatus{
	StatusPending, StatusInterested, StatusNotInterested, StatusHold, StatusProcessing, StatusUnknown,
}

// LoanStatus tracks the loan application of a client.
type LoanStatus string

const (
	LoanSoon       LoanStatus = "soon"
	LoanProcessing LoanStatus = "processing"
	LoanHold       LoanStatus = "hold"
	LoanApproved   LoanStatus = "approved"
	LoanRejected   LoanStatus = "rejected"
	LoanUnknown    LoanStatus = "unknown"
)

var CanonicalLoanStatuses = []LoanStatus{
	LoanSoon, LoanProcessing, LoanHold, LoanApproved, LoanRejected, LoanUnknown,
}

// ParseClientStatus normalizes a backend status label. Anything unrecognized is StatusUnknown.
func ParseClientStatus(s string) ClientStatus {
	switch normalizeLabel(s) {
	case "pending":
		return StatusPending
	case "interested":
		return StatusInterested
	case "not_interested", "notinterested":
		return StatusNotInterested
	case "hold", "on_hold":
		return StatusHold
	case "processing", "in_process":
		return StatusProcessing
	default:
		return StatusUnknown
	}
}

func ParseLoanStatus(s string) LoanStatus {
	switch normalizeLabel(s) {
	case "soon":
		return LoanSoon
	case "processing":
		return LoanProcessing
	case "hold", "on_hold":
		return LoanHold
	case "approved":
		return LoanApproved
	case "rejected":
		return LoanRejected
	default:
		return LoanUnknown
	}
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// ConstitutionType discriminates the business structure of a client.
type ConstitutionType string

const (
	Proprietorship ConstitutionType = "Proprietorship"
	Partnership    ConstitutionType = "Partnership"
	PrivateLimited ConstitutionType = "PrivateLimited"
)

// ParseConstitutionType accepts the backend labels ("Private Limited", "private_limited", ...).
func ParseConstitutionType(s string) (ConstitutionType, bool) {
	switch strings.ReplaceAll(normalizeLabel(s), "_", "") {
	case "proprietorship", "soleproprietor", "soleproprietorship":
		return Proprietorship, true
	case "partnership":
		return Partnership, true
	case "privatelimited", "pvtltd":
		return PrivateLimited, true
	default:
		return "", false
	}
}

const MaxPartners = 10

// Partner is one partner of a Partnership; documents reference keys of ClientRecord.Documents.
type Partner struct {
	Name           string `json:"name"`
	AadharDocument string `json:"aadharDocument,omitempty"`
	PANDocument    string `json:"panDocument,omitempty"`
}

// Constitution is the typed replacement for the numbered partner_* fields.
// Partners is only populated for Partnership; PrivateLimited always has a business PAN.
type Constitution struct {
	Type           ConstitutionType `json:"type"`
	HasBusinessPAN bool             `json:"hasBusinessPan"`
	Partners       []Partner        `json:"partners,omitempty"`
}

// DocumentMeta describes one uploaded document.
type DocumentMeta struct {
	FileName    string     `json:"fileName,omitempty"`
	URL         string     `json:"url,omitempty"`
	ContentType string     `json:"contentType,omitempty"`
	UploadedAt  *time.Time `json:"uploadedAt,omitempty"`
}

// ClientRecord mirrors a client as returned by the backend.
type ClientRecord struct {
	ID                   string                  `json:"id"`
	LegalName            string                  `json:"legalName"`
	TradeName            string                  `json:"tradeName,omitempty"`
	UserName             string                  `json:"userName,omitempty"`
	MobileNumber         string                  `json:"mobileNumber,omitempty"`
	OptionalMobileNumber string                  `json:"optionalMobileNumber,omitempty"`
	Email                string                  `json:"email,omitempty"`
	Constitution         Constitution            `json:"constitution"`
	Status               ClientStatus            `json:"status"`
	LoanStatus           LoanStatus              `json:"loanStatus"`
	Documents            map[string]DocumentMeta `json:"documents,omitempty"`
	PaymentGateways      map[string]string       `json:"paymentGateways,omitempty"`
	CreatedAt            time.Time               `json:"createdAt"`
	UpdatedAt            time.Time               `json:"updatedAt"`
	CreatedBy            string                  `json:"createdBy,omitempty"`
	CreatedByName        string                  `json:"createdByName,omitempty"`
	CreatedByEmail       string                  `json:"createdByEmail,omitempty"`
	StaffName            string                  `json:"staffName,omitempty"`
	UpdatedBy            string                  `json:"updatedBy,omitempty"`
	UpdatedByName        string                  `json:"updatedByName,omitempty"`
}

// Normalize enforces UpdatedAt ≥ CreatedAt when both are known.
func (c *ClientRecord) Normalize() {
	if !c.CreatedAt.IsZero() && !c.UpdatedAt.IsZero() && c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Status == "" {
		c.Status = StatusUnknown
	}
	if c.LoanStatus == "" {
		c.LoanStatus = LoanUnknown
	}
	if c.Constitution.Type == PrivateLimited {
		c.Constitution.HasBusinessPAN = true
	}
	if c.Constitution.Type != Partnership {
		c.Constitution.Partners = nil
	}
}

// UnmarshalJSON accepts both the backend's flat snake_case shape and this package's own shape.
func (c *ClientRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("client record: %w", err)
	}
	f := fields(raw)

	*c = ClientRecord{
		ID:                   f.str("_id", "id"),
		LegalName:            f.str("legal_name", "legalName"),
		TradeName:            f.str("trade_name", "tradeName"),
		UserName:             f.str("user_name", "userName"),
		MobileNumber:         f.str("mobile_number", "mobileNumber"),
		OptionalMobileNumber: f.str("optional_mobile_number", "optionalMobileNumber"),
		Email:                f.str("user_email", "email"),
		Status:               ParseClientStatus(f.str("status")),
		LoanStatus:           ParseLoanStatus(f.str("loan_status", "loanStatus")),
		CreatedBy:            f.str("created_by", "createdBy"),
		CreatedByName:        f.str("created_by_name", "createdByName"),
		CreatedByEmail:       f.str("created_by_email", "createdByEmail"),
		StaffName:            f.str("staff_name", "staffName"),
		UpdatedBy:            f.str("updated_by", "updatedBy"),
		UpdatedByName:        f.str("updated_by_name", "updatedByName"),
		CreatedAt:            f.timestamp("created_at", "createdAt"),
		UpdatedAt:            f.timestamp("updated_at", "updatedAt"),
		PaymentGateways:      f.stringMap("payment_gateways_status", "paymentGateways"),
	}

	docs, err := f.documents("documents")
	if err != nil {
		return err
	}
	c.Documents = docs

	if rawConst, ok := raw["constitution"]; ok && len(rawConst) > 0 && rawConst[0] == '{' {
		if err := json.Unmarshal(rawConst, &c.Constitution); err != nil {
			return fmt.Errorf("client record constitution: %w", err)
		}
	} else {
		c.Constitution = f.flatConstitution()
	}

	c.Normalize()
	return nil
}

// fields is a lookup helper over the raw backend object.
type fields map[string]json.RawMessage

func (f fields) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

// str reads a string, also accepting numbers and populated-reference objects ({_id, name}).
func (f fields) str(keys ...string) string {
	v, ok := f.lookup(keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	var ref struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(v, &ref); err == nil {
		return ref.ID
	}
	return ""
}

func (f fields) timestamp(keys ...string) time.Time {
	t, _ := ParseTimestamp(f.str(keys...))
	return t
}

func (f fields) stringMap(keys ...string) map[string]string {
	v, ok := f.lookup(keys...)
	if !ok {
		return nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(v, &generic); err != nil {
		return nil
	}
	out := make(map[string]string, len(generic))
	for k, val := range generic {
		switch tv := val.(type) {
		case string:
			out[k] = tv
		case bool:
			out[k] = strconv.FormatBool(tv)
		case nil:
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out
}

func (f fields) documents(key string) (map[string]DocumentMeta, error) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, nil
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(v, &entries); err != nil {
		return nil, nil
	}
	out := make(map[string]DocumentMeta, len(entries))
	for name, entry := range entries {
		if string(entry) == "null" {
			continue
		}
		var url string
		if err := json.Unmarshal(entry, &url); err == nil {
			if url != "" {
				out[name] = DocumentMeta{URL: url}
			}
			continue
		}
		var meta struct {
			FileName     string `json:"fileName"`
			OriginalName string `json:"originalName"`
			URL          string `json:"url"`
			Path         string `json:"path"`
			ContentType  string `json:"contentType"`
			MimeType     string `json:"mimetype"`
			UploadedAt   string `json:"uploadedAt"`
		}
		if err := json.Unmarshal(entry, &meta); err != nil {
			return nil, fmt.Errorf("client record document %s: %w", name, err)
		}
		dm := DocumentMeta{
			FileName:    firstNonEmpty(meta.FileName, meta.OriginalName),
			URL:         firstNonEmpty(meta.URL, meta.Path),
			ContentType: firstNonEmpty(meta.ContentType, meta.MimeType),
		}
		if t, ok := ParseTimestamp(meta.UploadedAt); ok {
			dm.UploadedAt = &t
		}
		out[name] = dm
	}
	return out, nil
}

func (f fields) flatConstitution() Constitution {
	ct, _ := ParseConstitutionType(f.str("constitution_type", "constitutionType"))
	cons := Constitution{
		Type:           ct,
		HasBusinessPAN: parseYesNo(f.str("has_business_pan", "hasBusinessPan")),
	}
	if ct != Partnership {
		return cons
	}

	declared, _ := strconv.Atoi(f.str("number_of_partners", "numberOfPartners"))
	count := declared
	for i := 0; i < MaxPartners; i++ {
		if f.str(fmt.Sprintf("partner_name_%d", i)) != "" && i+1 > count {
			count = i + 1
		}
	}
	if count > MaxPartners {
		count = MaxPartners
	}
	for i := 0; i < count; i++ {
		cons.Partners = append(cons.Partners, Partner{
			Name:           f.str(fmt.Sprintf("partner_name_%d", i)),
			AadharDocument: fmt.Sprintf("partner_aadhar_%d", i),
			PANDocument:    fmt.Sprintf("partner_pan_%d", i),
		})
	}
	return cons
}

func parseYesNo(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "y":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats the backend emits.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}
