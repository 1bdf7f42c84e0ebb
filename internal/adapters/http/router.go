package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jptamayo/juris-rag/internal/core/domain"
	"github.com/jptamayo/juris-rag/internal/core/ports"
	"github.com/jptamayo/juris-rag/internal/observability/metrics"
)

// RouterConfig carries the request-surface policy: the result count used when
// a search request omits k, and the corpus identity reported on /healthz.
type RouterConfig struct {
	DefaultTopK      int
	Jurisdiction     string
	ConstitutionYear int
}

type Router struct {
	retriever ports.Retriever
	documents ports.DocumentReader
	loader    ports.BodyLoader
	limiter   ports.RequestLimiter
	metrics   *metrics.RetrievalMetrics
	cfg       RouterConfig
}

func NewRouter(
	retriever ports.Retriever,
	documents ports.DocumentReader,
	loader ports.BodyLoader,
	limiter ports.RequestLimiter,
	m *metrics.RetrievalMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Router{
		retriever: retriever,
		documents: documents,
		loader:    loader,
		limiter:   limiter,
		metrics:   m,
		cfg:       cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/documents/", rt.getDocument)
	mux.HandleFunc("/v1/sources/", rt.resolveSource)

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.limiter, rt.metrics)
	handler = accessLogMiddleware(handler, rt.metrics)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"jurisdiction":      rt.cfg.Jurisdiction,
		"constitution_year": rt.cfg.ConstitutionYear,
	})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query         string `json:"query"`
		K             int    `json:"k"`
		SearchByTitle bool   `json:"search_by_title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.K <= 0 {
		req.K = rt.cfg.DefaultTopK
	}

	result, err := rt.retriever.Retrieve(r.Context(), req.Query, req.K, req.SearchByTitle)
	if err != nil {
		writeError(w, err)
		return
	}

	response := struct {
		*domain.RetrievalResult
		Message string `json:"message,omitempty"`
	}{RetrievalResult: result}
	if len(result.Sources) == 0 {
		response.Message = "no relevant documents found"
	}
	writeJSON(w, http.StatusOK, response)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	uuid := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if uuid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document uuid is required"})
		return
	}

	doc, err := rt.documents.GetByUUID(r.Context(), uuid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// resolveSource turns a citation token back into the document body it cites.
func (rt *Router) resolveSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	token := strings.TrimPrefix(r.URL.Path, "/v1/sources/")
	uuid, filename, err := domain.ParseSourceToken(token)
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := rt.documents.GetByUUID(r.Context(), uuid)
	if err != nil {
		writeError(w, err)
		return
	}
	if doc.Filename != filename {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "token filename does not match document"})
		return
	}

	body, err := rt.loader.LoadBody(r.Context(), doc.RelativePath, doc.Filename)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document body unavailable"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
