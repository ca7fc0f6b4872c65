package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dialeval/internal/db"
	"dialeval/internal/history"
)

type historyEntry struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Model      string    `json:"model"`
	TotalScore float64   `json:"total_score"`
	FullScore  float64   `json:"full_score"`
	FinalLevel string    `json:"final_level"`
}

func toEntry(e db.Evaluation) historyEntry {
	return historyEntry{
		ID:         e.ID,
		CreatedAt:  e.CreatedAt,
		Model:      e.Model,
		TotalScore: e.TotalScore,
		FullScore:  e.FullScore,
		FinalLevel: e.FinalLevel,
	}
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	evals, err := s.History.List(r.Context())
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	entries := make([]historyEntry, 0, len(evals))
	for _, e := range evals {
		entries = append(entries, toEntry(e))
	}
	writeJSON(w, 200, map[string]any{"history": entries})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	eval, err := s.History.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, evaluationOut(eval))
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	err := s.History.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

type shareReq struct {
	ExpiresInHours int `json:"expires_in_hours"`
}

func (s *Server) createShare(w http.ResponseWriter, r *http.Request) {
	var req shareReq
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	var expiresAt *time.Time
	if req.ExpiresInHours > 0 {
		t := time.Now().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}
	token, err := s.History.CreateShareLink(r.Context(), chi.URLParam(r, "id"), expiresAt)
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"token": token})
}

func (s *Server) getShared(w http.ResponseWriter, r *http.Request) {
	eval, err := s.History.GetShared(r.Context(), chi.URLParam(r, "token"))
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, evaluationOut(eval))
}

func evaluationOut(eval *db.Evaluation) map[string]any {
	out := map[string]any{
		"id":          eval.ID,
		"created_at":  eval.CreatedAt,
		"model":       eval.Model,
		"total_score": eval.TotalScore,
		"full_score":  eval.FullScore,
		"final_level": eval.FinalLevel,
	}
	var report map[string]any
	if err := json.Unmarshal(eval.Report, &report); err == nil {
		out["report"] = report
	}
	var settings map[string]any
	if err := json.Unmarshal(eval.Settings, &settings); err == nil {
		out["settings"] = settings
	}
	return out
}
