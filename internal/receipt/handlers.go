package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zombor/vat-recogniser/internal/docintel"
)

// maxUploadSize leaves room for high-resolution phone photos
const maxUploadSize = int64(50 << 20)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps pipeline failures onto HTTP statuses
func statusForError(err error) int {
	var (
		exhausted *docintel.PollExhaustedError
		submitErr *docintel.SubmissionError
		pollErr   *docintel.PollTransportError
		failedErr *docintel.AnalysisFailedError
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &exhausted):
		return http.StatusGatewayTimeout
	case errors.As(err, &submitErr), errors.As(err, &pollErr), errors.As(err, &failedErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// contentTypeFor prefers the declared type and falls back to the file extension
func contentTypeFor(declared, filename string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "" && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	}
	return http.DetectContentType(data)
}

// readUpload accepts a multipart "file" field or the raw request body
func readUpload(r *http.Request) (*Upload, int, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("parsing form: %w", err)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("no file provided: %w", err)
		}
		defer f.Close()
		if header.Size > maxUploadSize {
			return nil, http.StatusRequestEntityTooLarge, errors.New("file is too large, maximum size is 50MB")
		}
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, http.StatusInternalServerError, fmt.Errorf("reading file: %w", err)
		}
		return &Upload{
			Filename:    header.Filename,
			Data:        data,
			ContentType: contentTypeFor(header.Header.Get("Content-Type"), header.Filename, data),
		}, 0, nil
	}

	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxUploadSize))
	if err != nil {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("reading body: %w", err)
	}
	if len(data) == 0 {
		return nil, http.StatusBadRequest, errors.New("please provide a document in the request body")
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "receipt"
	}
	return &Upload{
		Filename:    filename,
		Data:        data,
		ContentType: contentTypeFor(r.Header.Get("Content-Type"), filename, data),
	}, 0, nil
}

// handleUploadReceipt runs a single document through the pipeline
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	upload, status, err := readUpload(r)
	if err != nil {
		slog.Error("Error reading upload", "error", err)
		writeError(w, status, err.Error())
		return
	}

	receipt, err := s.service.ProcessReceipt(r.Context(), upload.Filename, upload.Data, upload.ContentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", upload.Filename, "error", err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleUploadBatch processes every "files" part concurrently
func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("opening %s: %v", h.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("reading %s: %v", h.Filename, err))
			return
		}
		uploads = append(uploads, Upload{
			Filename:    h.Filename,
			Data:        data,
			ContentType: contentTypeFor(h.Header.Get("Content-Type"), h.Filename, data),
		})
	}

	writeJSON(w, http.StatusOK, s.service.ProcessReceipts(r.Context(), uploads))
}

// handleListReceipts returns a list of all receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts(r.Context())
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForError(err), "Receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the stored document for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.Context(), chi.URLParam(r, "id")); err != nil {
		slog.Error("Error deleting receipt", "error", err)
		writeError(w, statusForError(err), "Error deleting receipt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleKPIs totals receipts between the optional from/to dates (YYYY-MM-DD)
func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	var bounds [2]time.Time
	for i, key := range []string{"from", "to"} {
		v := r.URL.Query().Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s date, expected YYYY-MM-DD", key))
			return
		}
		bounds[i] = t
	}

	kpi, err := s.service.KPIs(r.Context(), bounds[0], bounds[1])
	if err != nil {
		slog.Error("Error computing KPIs", "error", err)
		writeError(w, http.StatusInternalServerError, "Error accessing DB")
		return
	}
	writeJSON(w, http.StatusOK, kpi)
}
