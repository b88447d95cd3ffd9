package glpi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

const documentItemType = "Document"

// UploadDocument creates a Document item and attaches content to it. When
// GLPI creates the item but rejects the file, the item is purged again and
// an *UploadError is returned; a failing purge is only logged so the upload
// error is not masked.
func (c *Client) UploadDocument(ctx context.Context, doc Document, content io.Reader) (*UploadResult, error) {
	if doc.FileName == "" {
		return nil, &ValidationError{Field: "filename", Reason: "file name is required"}
	}
	if doc.Name == "" {
		doc.Name = doc.FileName
	}

	input := make(map[string]any, len(doc.Extra)+2)
	for k, v := range doc.Extra {
		input[k] = v
	}
	input["name"] = doc.Name
	input["_filename"] = []string{doc.FileName}

	manifest, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload manifest: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(doc.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req := c.rest.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{"uploadManifest": string(manifest)}).
		SetMultipartField("filename[0]", doc.FileName, contentType, content)

	resp, err := c.send(req, http.MethodPost, documentItemType)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusCreated:
		var result UploadResult
		if err := decodeJSON(resp, &result); err != nil {
			return nil, err
		}
		if reason := result.FileError(); reason != "" {
			uploadErr := &UploadError{DocumentID: result.ID, FileName: doc.FileName, Reason: reason}
			c.purgeDocument(ctx, result.ID, uploadErr)
			return nil, uploadErr
		}
		c.logger.Debug().Int("document_id", result.ID).Str("file", doc.FileName).Msg("Uploaded document")
		return &result, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// UploadDocumentFile uploads the file at path. name defaults to the file's
// base name.
func (c *Client) UploadDocumentFile(ctx context.Context, name, path string) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return c.UploadDocument(ctx, Document{Name: name, FileName: filepath.Base(path)}, f)
}

func (c *Client) purgeDocument(ctx context.Context, id int, cause error) {
	if id == 0 {
		return
	}

	_, err := c.Delete(ctx, documentItemType, DeleteOptions{ForcePurge: true}, Item{"id": id})
	if err != nil {
		c.logger.Warn().
			Err(err).
			AnErr("cause", cause).
			Int("document_id", id).
			Msg("Failed to remove document after aborted upload")
	}
}

// DownloadDocument streams the file of document id to w and returns the
// number of bytes written.
func (c *Client) DownloadDocument(ctx context.Context, id int, w io.Writer) (int64, error) {
	req := c.rest.R().
		SetContext(ctx).
		SetHeader("Accept", "application/octet-stream").
		SetDoNotParseResponse(true)

	resp, err := c.send(req, http.MethodGet, endpoint(documentItemType, id))
	if err != nil {
		return 0, err
	}

	body := resp.RawBody()
	defer body.Close()

	switch resp.StatusCode() {
	case http.StatusOK:
		n, err := io.Copy(w, body)
		if err != nil {
			return n, fmt.Errorf("failed to download document %d: %w", id, err)
		}
		return n, nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		b, _ := io.ReadAll(body)
		return 0, parseAPIError(resp.StatusCode(), resp.Status(), b)
	default:
		b, _ := io.ReadAll(body)
		return 0, newUnexpectedResponse(resp.StatusCode(), resp.Status(), b)
	}
}
