package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kenzatoreis/hiringbuddy/internal/ai"
	"github.com/kenzatoreis/hiringbuddy/internal/chunker"
	"github.com/kenzatoreis/hiringbuddy/internal/indexer"
	"github.com/kenzatoreis/hiringbuddy/internal/logger"
	"github.com/kenzatoreis/hiringbuddy/internal/retrieval"
	"github.com/kenzatoreis/hiringbuddy/internal/sections"
	"github.com/kenzatoreis/hiringbuddy/internal/store"
	"go.uber.org/zap"
)

type indexRequest struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Text       string `json:"text"`
	MaxTokens  int    `json:"max_tokens"`
	Overlap    int    `json:"overlap"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.indexer.Index(r.Context(), indexer.IndexRequest{
		OwnerID:    ownerFrom(r.Context()),
		DocumentID: req.DocumentID,
		Name:       req.Name,
		Text:       req.Text,
		MaxTokens:  req.MaxTokens,
		Overlap:    req.Overlap,
	})
	switch {
	case errors.Is(err, indexer.ErrEmptyText), errors.Is(err, chunker.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrExists):
		writeError(w, http.StatusConflict, "document already exists")
		return
	case err != nil:
		s.internalError(w, r, "index document", err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.Summaries(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.internalError(w, r, "list documents", err)
		return
	}
	if summaries == nil {
		summaries = []store.DocumentSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": summaries})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteDocument(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "documentID"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case err != nil:
		s.internalError(w, r, "delete document", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDeleteOwner(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.DeleteOwner(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.internalError(w, r, "delete owner documents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

type matchRequest struct {
	Requirement    string   `json:"requirement"`
	TopKDocuments  int      `json:"top_k_documents"`
	TopKSnippets   int      `json:"top_k_snippets"`
	Sections       *bool    `json:"sections"`
	Scope          string   `json:"scope"`
	Limit          int      `json:"limit"`
	Exclude        []string `json:"exclude"`
	DisableFilters []string `json:"disable_filters"`
	Language       string   `json:"language"`
	ResumeText     string   `json:"resume_text"`
}

type matchResult struct {
	retrieval.DocumentResult
	Assessment *ai.Assessment `json:"assessment,omitempty"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	assess := queryBool(r, "assess")
	if assess && s.assessor == nil {
		writeError(w, http.StatusNotImplemented, "assessment is not configured")
		return
	}

	scope := retrieval.Scope(strings.ToLower(strings.TrimSpace(req.Scope)))
	if scope != "" && scope != retrieval.ScopeLatestOnly && scope != retrieval.ScopeAll {
		writeError(w, http.StatusBadRequest, "scope must be latest or all")
		return
	}

	owner := ownerFrom(r.Context())
	res, err := s.retriever.Retrieve(r.Context(), retrieval.Request{
		OwnerID:        owner,
		Requirement:    req.Requirement,
		TopKDocuments:  req.TopKDocuments,
		TopKSnippets:   req.TopKSnippets,
		Sections:       req.Sections == nil || *req.Sections,
		Scope:          scope,
		Limit:          req.Limit,
		ExcludeIDs:     req.Exclude,
		DocumentText:   req.ResumeText,
		DisableFilters: req.DisableFilters,
	})
	switch {
	case errors.Is(err, retrieval.ErrEmptyRequirement):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.internalError(w, r, "match requirement", err)
		return
	}

	out := make([]matchResult, 0, len(res.Results))
	for _, dr := range res.Results {
		item := matchResult{DocumentResult: dr}
		if assess {
			item.Assessment, err = s.assessor.Assess(r.Context(), ai.AssessRequest{
				DocumentID:  dr.DocumentID,
				Requirement: req.Requirement,
				Snippets:    dr.Snippets,
				Language:    req.Language,
			})
			if err != nil {
				s.internalError(w, r, "assess document", err, logger.DocumentFields(owner, dr.DocumentID)...)
				return
			}
		}
		out = append(out, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": out, "filters": res.Filters})
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	labels := r.URL.Query()["label"]
	if len(labels) == 0 {
		labels = sections.SkillsLabels
	}

	block, err := s.retriever.Section(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "documentID"), labels...)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case err != nil:
		s.internalError(w, r, "extract section", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"labels": labels, "block": block})
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	s.logger.Error("request failed", append(logger.DocumentFields(ownerFrom(r.Context()), ""), fields...)...)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
