package httpadapter

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

const defaultPageLimit = 20

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	doc, err := rt.services.Ingestor.Upload(
		r.Context(),
		actor,
		r.FormValue("title"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := rt.services.Documents.ListDocuments(r.Context(), domain.DocumentFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   page,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	detail, err := rt.services.Documents.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type updateDocumentRequest struct {
	Title   *string `json:"title"`
	Text    *string `json:"text"`
	FileURL *string `json:"file_url"`
}

func (rt *Router) updateDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateDocumentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := rt.services.Documents.UpdateDocument(r.Context(), chi.URLParam(r, "id"), actor, domain.DocumentPatch{
		Title:   req.Title,
		Text:    req.Text,
		FileURL: req.FileURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := rt.services.Documents.DeleteDocument(r.Context(), chi.URLParam(r, "id"), actor); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// processDocument runs the pipeline in the request, or queues it for the
// worker when async=true.
func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		if err := rt.services.Processor.EnqueueDocument(r.Context(), id, actor); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"document_id": id, "status": "queued"})
		return
	}

	outcome, err := rt.services.Processor.ProcessDocument(r.Context(), id, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.services.Documents.GetSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) listSummaries(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := rt.services.Documents.ListSummaries(r.Context(), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// parsePage reads page and limit query parameters. Range checks are left to
// the use cases.
func parsePage(r *http.Request) (domain.Page, error) {
	page := domain.Page{Number: 1, Limit: defaultPageLimit}
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, domain.WrapError(domain.ErrInvalidInput, "parse page", err)
		}
		page.Number = n
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, domain.WrapError(domain.ErrInvalidInput, "parse limit", err)
		}
		page.Limit = n
	}
	return page, nil
}
