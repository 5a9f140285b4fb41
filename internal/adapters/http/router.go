package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medpipe/patient-summarizer/internal/core/domain"
	"github.com/medpipe/patient-summarizer/internal/core/ports"
)

type RouterConfig struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	ingestor  ports.DocumentIngestor
	summaries ports.SummaryService

	patients    ports.PatientRepository
	documents   ports.DocumentRepository
	summaryRepo ports.SummaryRepository

	cfg RouterConfig
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	summaries ports.SummaryService,
	patients ports.PatientRepository,
	documents ports.DocumentRepository,
	summaryRepo ports.SummaryRepository,
	cfg RouterConfig,
) *Router {
	return &Router{
		ingestor:    ingestor,
		summaries:   summaries,
		patients:    patients,
		documents:   documents,
		summaryRepo: summaryRepo,
		cfg:         cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)

	mux.HandleFunc("POST /v1/patients", rt.createPatient)
	mux.HandleFunc("GET /v1/patients/{id}", rt.getPatient)

	mux.HandleFunc("POST /v1/patients/{id}/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/patients/{id}/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)

	mux.HandleFunc("POST /v1/patients/{id}/summaries", rt.requestSummary)
	mux.HandleFunc("GET /v1/patients/{id}/summaries", rt.listSummaries)
	mux.HandleFunc("GET /v1/summaries/{id}", rt.getSummary)

	var handler http.Handler = mux
	if rt.cfg.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	}
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createPatient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MRN         string `json:"mrn"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		DateOfBirth string `json:"date_of_birth"`
		Gender      string `json:"gender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.MRN) == "" || strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mrn, first_name and last_name are required"})
		return
	}

	patient := &domain.PatientInfo{
		ID:        uuid.NewString(),
		MRN:       strings.TrimSpace(req.MRN),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Gender:    strings.TrimSpace(req.Gender),
		CreatedAt: time.Now().UTC(),
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date_of_birth must be YYYY-MM-DD"})
			return
		}
		patient.DateOfBirth = &dob
	}

	if err := rt.patients.Create(r.Context(), patient); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

func (rt *Router) getPatient(w http.ResponseWriter, r *http.Request) {
	patient, err := rt.patients.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxUploadSize+(1<<20))

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		r.PathValue("id"),
		r.FormValue("uploaded_by"),
		fileHeader.Filename,
		fileHeader.Size,
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.documents.ListByPatient(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.documents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) requestSummary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestedBy string `json:"requested_by"`
	}
	if r.Body != nil {
		// body is optional; requested_by defaults to empty
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := rt.summaries.Request(r.Context(), r.PathValue("id"), req.RequestedBy); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (rt *Router) listSummaries(w http.ResponseWriter, r *http.Request) {
	latestOnly := r.URL.Query().Get("latest_only") == "true"
	summaries, err := rt.summaryRepo.ListByPatient(r.Context(), r.PathValue("id"), latestOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []domain.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (rt *Router) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.summaryRepo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, _ *http.Request, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
