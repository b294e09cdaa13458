package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/report"
	"github.com/gorilla/mux"
)

// ChatRequest is the body of POST /users/{id}/messages.
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatResult is the result of a chat request.
type ChatResult struct {
	Text         string `json:"text"`
	Image        []byte `json:"image,omitempty"`
	ImageCaption string `json:"image_caption,omitempty"`
}

// ProgressResult is the result of GET /users/{id}/progress.
type ProgressResult struct {
	Record         *models.DailyRecord `json:"record"`
	RemainingWater float64             `json:"remaining_water"`
	CalorieBalance float64             `json:"calorie_balance"`
	Text           string              `json:"text"`
}

// HistoryResult is the result of GET /users/{id}/history.
type HistoryResult struct {
	Days    int                   `json:"days"`
	Records []*models.DailyRecord `json:"records"`
	Text    string                `json:"text"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{
		"service": "hydropipe",
		"time":    time.Now().UTC().Format(time.RFC3339),
	}))
}

func userID(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["id"])
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	id := userID(r)
	var req ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBody)).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("text is required"))
		return
	}

	reply, err := s.chat.Handle(r.Context(), id, req.Text)
	if err != nil {
		if errors.Is(err, models.ErrEmptyUserID) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.chatHandler: handler failed", "userID", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to handle message"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(ChatResult{
		Text:         reply.Text,
		Image:        reply.Image,
		ImageCaption: reply.ImageCaption,
	}))
}

// loadProfile writes the error response itself and returns nil on failure.
func (s *Server) loadProfile(w http.ResponseWriter, r *http.Request) *models.UserProfile {
	id := userID(r)
	p, err := s.profiles.Get(r.Context(), id)
	switch {
	case err == nil:
		return p
	case errors.Is(err, models.ErrProfileNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("profile not found"))
	case errors.Is(err, models.ErrEmptyUserID):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	default:
		slog.Error("Server.loadProfile: store failed", "userID", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load profile"))
	}
	return nil
}

// progressHandler reports today's record. Read endpoints never write: a
// record materialised here is not stored, only cached until the day ends.
func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request) {
	p := s.loadProfile(w, r)
	if p == nil {
		return
	}
	rec := s.snapshots.today(r.Context(), p)
	writeJSONResponse(w, http.StatusOK, models.Success(ProgressResult{
		Record:         rec,
		RemainingWater: rec.RemainingWater(),
		CalorieBalance: rec.CalorieBalance(),
		Text:           report.FormatProgress(rec),
	}))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	days := defaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("days must be an integer"))
			return
		}
		days = n
	}
	if err := report.ValidateDays(days); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	p := s.loadProfile(w, r)
	if p == nil {
		return
	}
	recs, err := s.reporter.History(p, days)
	if err != nil {
		slog.Error("Server.historyHandler: history failed", "userID", p.UserID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build history"))
		return
	}
	if recs == nil {
		recs = []*models.DailyRecord{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(HistoryResult{
		Days:    days,
		Records: recs,
		Text:    report.FormatHistory(days, recs),
	}))
}

func (s *Server) chartHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.Chart == nil {
		writeJSONResponse(w, http.StatusNotImplemented, models.Error("charts are not enabled"))
		return
	}
	p := s.loadProfile(w, r)
	if p == nil {
		return
	}
	png, err := s.opts.Chart.Render(s.snapshots.today(r.Context(), p))
	if err != nil {
		slog.Error("Server.chartHandler: render failed", "userID", p.UserID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to render chart"))
		return
	}
	writePNG(w, png)
}

func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.opts.Receipts.GetReceipts()
	if err != nil {
		slog.Error("Server.receiptsHandler: failed to load receipts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load receipts"))
		return
	}
	if receipts == nil {
		receipts = []models.Receipt{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}
