package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Lllllllleong/ppsverify/internal/document"
	"github.com/Lllllllleong/ppsverify/internal/extraction"
	"github.com/Lllllllleong/ppsverify/internal/models"
	"github.com/Lllllllleong/ppsverify/internal/services"
)

// formOverhead is the room left for the non-file multipart fields.
const formOverhead = 1 << 20

// Service is the verification pipeline exposed over HTTP.
type Service interface {
	Process(ctx context.Context, req *models.VerifyRequest) *models.VerifyResponse
	Inspect(ctx context.Context, data []byte, contentType string) (*services.Inspection, error)
	Discard(ctx context.Context, ref string) error
}

// inspectResponse carries the fields read from a document that was neither
// validated nor stored.
type inspectResponse struct {
	Success       bool                            `json:"success"`
	Error         string                          `json:"error,omitempty"`
	ContentType   string                          `json:"contentType,omitempty"`
	TextSource    string                          `json:"textSource,omitempty"`
	ExtractedData *models.ExtractedDocumentFields `json:"extractedData,omitempty"`
	Missing       []string                        `json:"missing,omitempty"`
}

// Options configure the handler.
type Options struct {
	MaxFileSize    int64
	AllowedOrigins []string
	// IsAdmin gates the delete route. When nil the route trusts the caller,
	// which must then sit behind an authenticating proxy.
	IsAdmin func(*http.Request) bool
}

// Handler serves the registration form's verification endpoints.
type Handler struct {
	service Service
	opts    Options
	logger  *slog.Logger
}

// New creates a new Handler.
func New(service Service, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, opts: opts, logger: logger}
}

// Routes returns a router with the verification routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if c := h.cors(); c != nil {
		r.Use(c)
	}
	h.Attach(r)
	return r
}

// VerifyFunction serves verification requests on any path, for deployments
// where the platform routes a single entry point to the handler.
func (h *Handler) VerifyFunction() http.Handler {
	var next http.Handler = http.HandlerFunc(h.handleVerify)
	if c := h.cors(); c != nil {
		next = c(next)
	}
	return middleware.RequestID(middleware.Recoverer(next))
}

func (h *Handler) cors() func(http.Handler) http.Handler {
	if len(h.opts.AllowedOrigins) == 0 {
		return nil
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: h.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})
}

// Attach registers the verification routes on r.
func (h *Handler) Attach(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/pps/verify", h.handleVerify)
	r.Post("/pps/inspect", h.handleInspect)
	r.Delete("/pps/documents/*", h.handleDiscard)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logCtx := h.logger.With("requestId", middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize()+formOverhead)
	req, bad := h.decodeVerifyRequest(r)
	if bad != nil {
		logCtx.Warn("Invalid verification request", "status", bad.status, "error", bad.msg)
		writeJSON(w, bad.status, &models.VerifyResponse{
			Success: false,
			Error:   bad.msg,
			State:   string(services.StateFailed),
		})
		return
	}

	resp := h.service.Process(ctx, req)
	writeJSON(w, http.StatusOK, resp)
}

type badRequest struct {
	status int
	msg    string
}

func invalid(msg string) *badRequest {
	return &badRequest{status: http.StatusBadRequest, msg: msg}
}

func (h *Handler) parseForm(r *http.Request) *badRequest {
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &badRequest{
				status: http.StatusRequestEntityTooLarge,
				msg:    fmt.Sprintf("The document is too large. The maximum size is %d MB.", h.maxFileSize()>>20),
			}
		}
		return invalid("Could not read the submitted form.")
	}
	return nil
}

func readFile(r *http.Request) ([]byte, *multipart.FileHeader, *badRequest) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, invalid("No document was attached.")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, invalid("Could not read the attached document.")
	}
	return data, header, nil
}

func (h *Handler) decodeVerifyRequest(r *http.Request) (*models.VerifyRequest, *badRequest) {
	if bad := h.parseForm(r); bad != nil {
		return nil, bad
	}
	data, header, bad := readFile(r)
	if bad != nil {
		return nil, bad
	}

	declared := models.DeclaredIdentity{
		Surname:   strings.TrimSpace(r.FormValue("surname")),
		GivenName: strings.TrimSpace(r.FormValue("givenName")),
		BirthDate: extraction.NormalizeDate(strings.TrimSpace(r.FormValue("birthDate"))),
	}
	if declared.Surname == "" || declared.GivenName == "" || declared.BirthDate == "" {
		return nil, invalid("Surname, given name and birth date are required.")
	}
	if !extraction.IsISODate(declared.BirthDate) {
		return nil, invalid("Birth date must be a date such as 1990-07-14.")
	}

	req := &models.VerifyRequest{
		RegistrationID: strings.TrimSpace(r.FormValue("registrationId")),
		Filename:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		File:           data,
		Declared:       declared,
	}
	if raw := strings.TrimSpace(r.FormValue("preExtracted")); raw != "" {
		var fields models.ExtractedDocumentFields
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, invalid("Pre-extracted fields are not valid JSON.")
		}
		req.PreExtracted = &fields
	}
	return req, nil
}

func (h *Handler) maxFileSize() int64 {
	if h.opts.MaxFileSize <= 0 {
		return document.DefaultMaxSize
	}
	return h.opts.MaxFileSize
}

func (h *Handler) handleInspect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logCtx := h.logger.With("requestId", middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize()+formOverhead)
	if bad := h.parseForm(r); bad != nil {
		writeJSON(w, bad.status, &inspectResponse{Error: bad.msg})
		return
	}
	data, header, bad := readFile(r)
	if bad != nil {
		writeJSON(w, bad.status, &inspectResponse{Error: bad.msg})
		return
	}

	insp, err := h.service.Inspect(ctx, data, header.Header.Get("Content-Type"))
	if err != nil {
		var (
			conversionErr  *services.ConversionError
			recognitionErr *services.RecognitionError
		)
		switch {
		case services.IsInputError(err):
			logCtx.Warn("Refused to inspect document", "error", err)
			writeJSON(w, http.StatusBadRequest, &inspectResponse{Error: "Unsupported or empty document. Please upload a PDF, JPEG or PNG document."})
		case errors.As(err, &conversionErr), errors.As(err, &recognitionErr):
			logCtx.Warn("Could not read document", "error", err)
			writeJSON(w, http.StatusOK, &inspectResponse{Error: "The document could not be read. Please upload a clearer scan."})
		default:
			logCtx.Error("Failed to inspect document", "error", err)
			writeJSON(w, http.StatusInternalServerError, &inspectResponse{Error: "An unexpected error occurred while reading the document."})
		}
		return
	}

	resp := &inspectResponse{
		Success:       true,
		ContentType:   insp.ContentType,
		TextSource:    insp.TextSource,
		ExtractedData: &insp.Fields,
	}
	for _, f := range insp.Fields.Missing() {
		resp.Missing = append(resp.Missing, f.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logCtx := h.logger.With("requestId", middleware.GetReqID(ctx))

	if h.opts.IsAdmin != nil && !h.opts.IsAdmin(r) {
		writeJSON(w, http.StatusForbidden, &models.VerifyResponse{Error: "Only administrators can delete documents."})
		return
	}

	key := chi.URLParam(r, "*")
	if err := h.service.Discard(ctx, key); err != nil {
		if services.IsInputError(err) {
			logCtx.Warn("Refused to discard object", "key", key, "error", err)
			writeJSON(w, http.StatusBadRequest, &models.VerifyResponse{Error: "Not a stored attestation."})
			return
		}
		logCtx.Error("Failed to discard object", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, &models.VerifyResponse{Error: "The document could not be deleted."})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
