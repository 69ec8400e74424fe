package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/wizard"
)

// maxUpload bounds a single document upload.
const maxUpload = 12 << 20

func (h *Handler) wizardFor(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, bool) {
	id := chi.URLParam(r, "wizardId")
	wz, ok := h.deps.Wizards.Get(id, owner(viewer(r)))
	if !ok {
		h.errs.WriteError(w, r, errors.NewNotFoundError("intake session "+id+" not found", false))
		return nil, false
	}
	return wz, true
}

func (h *Handler) OpenIntake(w http.ResponseWriter, r *http.Request) {
	wz := h.deps.Wizards.Open(owner(viewer(r)))
	writeJSON(w, http.StatusCreated, wz.State())
}

func (h *Handler) GetIntake(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizardFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wz.State())
}

func (h *Handler) CloseIntake(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "wizardId")
	if !h.deps.Wizards.Close(id, owner(viewer(r))) {
		h.errs.WriteError(w, r, errors.NewNotFoundError("intake session "+id+" not found", false))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateIntakeForm(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizardFor(w, r)
	if !ok {
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	if err := wz.ApplyJSON(body); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.State())
}

func (h *Handler) NextIntakeStep(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizardFor(w, r)
	if !ok {
		return
	}
	if _, err := wz.Next(); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.State())
}

func (h *Handler) PreviousIntakeStep(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizardFor(w, r)
	if !ok {
		return
	}
	wz.Back()
	writeJSON(w, http.StatusOK, wz.State())
}

func (h *Handler) AddBankStatement(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizardFor(w, r)
	if !ok {
		return
	}
	if _, err := wz.AddBankStatementSlot(); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.State())
}

func (h *Handler) RemoveBankStatement(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizardFor(w, r)
	if !ok {
		return
	}
	if _, err := wz.RemoveBankStatementSlot(); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.State())
}

func (h *Handler) AttachIntakeDocument(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizardFor(w, r)
	if !ok {
		return
	}
	up, err := readUpload(w, r)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	if err := wz.Attach(chi.URLParam(r, "docKey"), up.fileName, up.contentType, up.data); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wz.State())
}

func (h *Handler) DetachIntakeDocument(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizardFor(w, r)
	if !ok {
		return
	}
	wz.Detach(chi.URLParam(r, "docKey"))
	writeJSON(w, http.StatusOK, wz.State())
}

func (h *Handler) SubmitIntake(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizardFor(w, r)
	if !ok {
		return
	}
	client, err := wz.Submit(r.Context(), h.deps.Backend)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	h.logger.Info("client registered through intake", map[string]interface{}{
		"wizardId": wz.ID,
		"clientId": client.ID,
		"viewerId": viewer(r).ID,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{"client": client, "state": wz.State()})
}

type upload struct {
	fileName    string
	contentType string
	data        []byte
}

// readUpload reads the "file" part of a multipart request.
func readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, errors.NewValidationFailedError("expected a multipart upload: " + err.Error())
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.NewValidationFailedError("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewValidationFailedError("failed to read upload")
	}
	return &upload{
		fileName:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
		data:        data,
	}, nil
}
