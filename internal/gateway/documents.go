package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/models"
)

// FileUpload is one file part of a multipart request.
type FileUpload struct {
	FieldName   string
	FileName    string
	ContentType string
	Data        []byte
}

// Document is a downloaded document blob.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
	// Previewable is true for images and PDFs, which are shown inline instead of downloaded.
	Previewable bool
}

// Disposition returns the Content-Disposition to serve the document with.
func (d *Document) Disposition() string {
	kind := "attachment"
	if d.Previewable {
		kind = "inline"
	}
	if d.FileName == "" {
		return kind
	}
	return mime.FormatMediaType(kind, map[string]string{"filename": d.FileName})
}

func multipartBody(fields map[string]string, files []FileUpload) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := w.WriteField(k, fields[k]); err != nil {
				return nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
			}
		}

		for _, f := range files {
			part, err := w.CreatePart(filePartHeader(f))
			if err != nil {
				return nil, "", fmt.Errorf("failed to create part %s: %w", f.FieldName, err)
			}
			if _, err := part.Write(f.Data); err != nil {
				return nil, "", fmt.Errorf("failed to write part %s: %w", f.FieldName, err)
			}
		}

		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
		}
		return &buf, w.FormDataContentType(), nil
	}
}

func filePartHeader(f FileUpload) map[string][]string {
	contentType := f.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(f.Data)
	}
	return map[string][]string{
		"Content-Disposition": {mime.FormatMediaType("form-data", map[string]string{
			"name":     f.FieldName,
			"filename": f.FileName,
		})},
		"Content-Type": {contentType},
	}
}

// UploadDocument attaches one document to an existing client.
func (c *Client) UploadDocument(ctx context.Context, clientID string, file FileUpload) (*models.ClientRecord, error) {
	if clientID == "" || file.FieldName == "" {
		return nil, errors.NewValidationFailedError("client id and document type are required")
	}
	if len(file.Data) == 0 {
		return nil, errors.NewValidationFailedError("document is empty")
	}
	resp, err := c.do(ctx, request{
		endpoint: "upload_document",
		method:   http.MethodPut,
		path:     "/clients/" + clientID + "/documents",
		body:     multipartBody(nil, []FileUpload{file}),
	})
	if err != nil {
		return nil, err
	}
	return decodeObject[models.ClientRecord]("/clients/{id}/documents", "client", resp.body)
}

// DownloadDocument fetches a document blob. The content type comes from the response header
// unless it is missing or generic, in which case it is sniffed from the bytes.
func (c *Client) DownloadDocument(ctx context.Context, clientID, docType string) (*Document, error) {
	if clientID == "" || docType == "" {
		return nil, errors.NewValidationFailedError("client id and document type are required")
	}
	resp, err := c.do(ctx, request{
		endpoint: "download_document",
		method:   http.MethodGet,
		path:     "/clients/" + clientID + "/documents/" + url.PathEscape(docType) + "/download",
	})
	if err != nil {
		return nil, err
	}

	doc := &Document{
		FileName:    fileNameFrom(resp.header.Get("Content-Disposition"), docType),
		ContentType: resolveContentType(resp.header.Get("Content-Type"), resp.body),
		Data:        resp.body,
	}
	doc.Previewable = isPreviewable(doc.ContentType)
	return doc, nil
}

func resolveContentType(header string, data []byte) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == "" || mediaType == "application/octet-stream" || mediaType == "binary/octet-stream" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	return mediaType
}

func isPreviewable(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}

func fileNameFrom(disposition, fallback string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return fallback
}
