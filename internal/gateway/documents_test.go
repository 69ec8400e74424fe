package gateway

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

func TestDownloadDocument_ContentType(t *testing.T) {
	tests := []struct {
		name            string
		header          string
		disposition     string
		body            []byte
		wantType        string
		wantPreviewable bool
		wantFileName    string
	}{
		{
			name:            "pdf sniffed from octet-stream",
			header:          "application/octet-stream",
			body:            []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj"),
			wantType:        "application/pdf",
			wantPreviewable: true,
			wantFileName:    "gst_document",
		},
		{
			name:            "png sniffed without header",
			body:            pngHeader,
			wantType:        "image/png",
			wantPreviewable: true,
			wantFileName:    "gst_document",
		},
		{
			name:            "explicit header kept",
			header:          "image/jpeg; charset=binary",
			disposition:     `attachment; filename="photo.jpg"`,
			body:            []byte("not really a jpeg"),
			wantType:        "image/jpeg",
			wantPreviewable: true,
			wantFileName:    "photo.jpg",
		},
		{
			name:            "spreadsheet downloads",
			header:          "application/vnd.ms-excel",
			disposition:     `attachment; filename="statement.xls"`,
			body:            []byte("col1,col2"),
			wantType:        "application/vnd.ms-excel",
			wantPreviewable: false,
			wantFileName:    "statement.xls",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/clients/c-1/documents/gst_document/download", r.URL.Path)
				if tt.header != "" {
					w.Header().Set("Content-Type", tt.header)
				} else {
					w.Header()["Content-Type"] = nil
				}
				if tt.disposition != "" {
					w.Header().Set("Content-Disposition", tt.disposition)
				}
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(tt.body)
			})

			doc, err := c.DownloadDocument(context.Background(), "c-1", "gst_document")
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, doc.ContentType)
			assert.Equal(t, tt.wantPreviewable, doc.Previewable)
			assert.Equal(t, tt.wantFileName, doc.FileName)
			assert.Equal(t, tt.body, doc.Data)
		})
	}
}

func TestDocument_Disposition(t *testing.T) {
	inline := &Document{FileName: "a.pdf", Previewable: true}
	assert.Equal(t, "inline; filename=a.pdf", inline.Disposition())

	attachment := &Document{FileName: "bank statement.xls"}
	assert.Equal(t, `attachment; filename="bank statement.xls"`, attachment.Disposition())

	assert.Equal(t, "attachment", (&Document{}).Disposition())
}

func TestUploadDocument(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("bank_statement_2")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, pngHeader, data)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

		writeJSON(w, http.StatusOK, map[string]interface{}{"client": map[string]interface{}{"_id": "c-1"}})
	})

	client, err := c.UploadDocument(context.Background(), "c-1", FileUpload{
		FieldName: "bank_statement_2",
		FileName:  "scan.png",
		Data:      pngHeader,
	})
	require.NoError(t, err)
	assert.Equal(t, "c-1", client.ID)
}

func TestUploadDocument_RejectsEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be called")
	})
	_, err := c.UploadDocument(context.Background(), "c-1", FileUpload{FieldName: "gst_document"})
	assert.Error(t, err)
}
