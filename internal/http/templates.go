package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dialeval/internal/db"
	"dialeval/internal/rubric"
	"dialeval/internal/templates"
)

type evalTemplateReq struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Dimensions  rubric.DimensionsConfig `json:"dimensions"`
	IsDefault   bool                    `json:"is_default"`
}

type evalTemplateOut struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Dimensions  json.RawMessage `json:"dimensions"`
	IsDefault   bool            `json:"is_default"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toTemplateOut(t db.EvalTemplate) evalTemplateOut {
	return evalTemplateOut{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Dimensions:  json.RawMessage(t.Dimensions),
		IsDefault:   t.IsDefault,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.Templates.ListEvalTemplates(r.Context())
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := make([]evalTemplateOut, 0, len(list))
	for _, t := range list {
		out = append(out, toTemplateOut(t))
	}
	writeJSON(w, 200, map[string]any{"templates": out})
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.Templates.GetEvalTemplate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, templates.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, toTemplateOut(*t))
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req evalTemplateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.Name == "" {
		writeJSON(w, 400, errResp{"name is required"})
		return
	}
	dims, err := json.Marshal(req.Dimensions)
	if err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	t := &db.EvalTemplate{
		Name:        req.Name,
		Description: req.Description,
		Dimensions:  dims,
		IsDefault:   req.IsDefault,
	}
	if err := s.Templates.CreateEvalTemplate(r.Context(), t); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, toTemplateOut(*t))
}

func (s *Server) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var req evalTemplateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	dims, err := json.Marshal(req.Dimensions)
	if err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	t := &db.EvalTemplate{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
		Dimensions:  dims,
		IsDefault:   req.IsDefault,
	}
	err = s.Templates.UpdateEvalTemplate(r.Context(), t)
	if errors.Is(err, templates.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, toTemplateOut(*t))
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	err := s.Templates.DeleteEvalTemplate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, templates.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

type promptTemplateReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Category    string `json:"category"`
	Author      string `json:"author"`
}

func (s *Server) listPromptTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.Templates.ListPromptTemplates(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]any{"templates": promptTemplatesOut(list)})
}

func (s *Server) getPromptTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.Templates.GetPromptTemplate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, templates.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, promptTemplateOut(*t))
}

func (s *Server) createPromptTemplate(w http.ResponseWriter, r *http.Request) {
	var req promptTemplateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.Title == "" || req.Content == "" {
		writeJSON(w, 400, errResp{"title and content are required"})
		return
	}
	t := &db.PromptTemplate{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Category:    req.Category,
		Author:      req.Author,
	}
	if err := s.Templates.CreatePromptTemplate(r.Context(), t); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, promptTemplateOut(*t))
}

func (s *Server) updatePromptTemplate(w http.ResponseWriter, r *http.Request) {
	var req promptTemplateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	t := &db.PromptTemplate{
		ID:          chi.URLParam(r, "id"),
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Category:    req.Category,
	}
	err := s.Templates.UpdatePromptTemplate(r.Context(), t)
	if errors.Is(err, templates.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, promptTemplateOut(*t))
}

func (s *Server) deletePromptTemplate(w http.ResponseWriter, r *http.Request) {
	err := s.Templates.DeletePromptTemplate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, templates.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

func (s *Server) usePromptTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.Templates.IncrementUse(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, templates.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, promptTemplateOut(*t))
}

func promptTemplateOut(t db.PromptTemplate) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"content":     t.Content,
		"category":    t.Category,
		"author":      t.Author,
		"use_count":   t.UseCount,
		"created_at":  t.CreatedAt,
		"updated_at":  t.UpdatedAt,
	}
}

func promptTemplatesOut(list []db.PromptTemplate) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, t := range list {
		out = append(out, promptTemplateOut(t))
	}
	return out
}
