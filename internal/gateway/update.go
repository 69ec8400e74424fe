package gateway

import (
	"encoding/json"
	"strings"

	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/models"
)

// WhatsAppStatus reports the notification the backend tried to send with a status change.
type WhatsAppStatus struct {
	Attempted     bool   `json:"attempted"`
	Sent          bool   `json:"sent"`
	QuotaExceeded bool   `json:"quotaExceeded"`
	Message       string `json:"message,omitempty"`
}

// UpdateResult is the outcome of a client update. SoftFailure marks a reply the backend sent
// with a non-2xx status that was converted into a result carrying an inline warning.
type UpdateResult struct {
	Client      *models.ClientRecord `json:"client,omitempty"`
	WhatsApp    WhatsAppStatus       `json:"whatsapp"`
	SoftFailure bool                 `json:"softFailure"`
	Message     string               `json:"message,omitempty"`
}

type updateEnvelope struct {
	Client                *models.ClientRecord `json:"client"`
	Message               string               `json:"message"`
	Error                 string               `json:"error"`
	WhatsAppSent          *bool                `json:"whatsappSent"`
	WhatsAppQuotaExceeded bool                 `json:"whatsappQuotaExceeded"`
	WhatsAppError         string               `json:"whatsappError"`
	WhatsAppMessage       string               `json:"whatsappMessage"`
}

func isWhatsAppQuotaFailure(status int, body []byte) bool {
	if status == 401 || status == 403 {
		return false
	}
	var env updateEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	return env.WhatsAppQuotaExceeded || mentionsQuota(env.WhatsAppError) || mentionsQuota(env.Message) || mentionsQuota(env.Error)
}

func mentionsQuota(s string) bool {
	return strings.Contains(strings.ToLower(s), "quota")
}

func parseUpdateResult(status int, body []byte) (*UpdateResult, error) {
	result := &UpdateResult{}
	if len(body) == 0 {
		return result, nil
	}

	var env updateEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.NewInvalidEnvelopeError("/clients/{id}", err.Error())
	}

	result.Client = env.Client
	result.Message = env.Message
	result.SoftFailure = status < 200 || status >= 300

	if env.WhatsAppSent != nil {
		result.WhatsApp.Attempted = true
		result.WhatsApp.Sent = *env.WhatsAppSent
	}
	if result.SoftFailure || env.WhatsAppQuotaExceeded || mentionsQuota(env.WhatsAppError) {
		result.WhatsApp.Attempted = true
		result.WhatsApp.Sent = false
		result.WhatsApp.QuotaExceeded = true
		result.WhatsApp.Message = firstNonEmpty(env.WhatsAppError, env.WhatsAppMessage, env.Error, env.Message,
			"WhatsApp quota exceeded; the client was updated but no message was sent")
	} else if env.WhatsAppError != "" {
		result.WhatsApp.Message = env.WhatsAppError
	} else {
		result.WhatsApp.Message = env.WhatsAppMessage
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
