package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"body-metrics/internal/models"
)

// Directory HTTP 层需要的协调器视图（由 service 层实现）
type Directory interface {
	Entries() []models.ScaleEntry
	Profiles(entryID string) ([]models.PersonProfile, error)
	Snapshots(entryID string) (map[string]*models.MetricsSnapshot, error)
	History(entryID, slug string) ([]models.HistoryEntry, error)
	ReassignGuest(ctx context.Context, person, entryID string) error
}

// EntrySummary 实体列表项（附带人员名单）
type EntrySummary struct {
	EntryID        string   `json:"entry_id"`
	Name           string   `json:"name"`
	WeightTopic    string   `json:"weight_topic"`
	ImpedanceTopic string   `json:"impedance_topic,omitempty"`
	People         []string `json:"people"`
}

// HistoryResponse 某人的体重历史
type HistoryResponse struct {
	EntryID string                `json:"entry_id"`
	Person  string                `json:"person"`
	Entries []models.HistoryEntry `json:"entries"`
}

// ScaleHandler 体脂秤 API 处理器
type ScaleHandler struct {
	directory Directory
	logger    *zap.Logger
}

func NewScaleHandler(directory Directory, logger *zap.Logger) *ScaleHandler {
	return &ScaleHandler{directory: directory, logger: logger}
}

// GET /api/v1/health
func (h *ScaleHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"status":  "ok",
		"entries": len(h.directory.Entries()),
	}))
}

// GET /api/v1/scale/entries
func (h *ScaleHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	entries := h.directory.Entries()

	summaries := make([]EntrySummary, 0, len(entries))
	for _, entry := range entries {
		summary := EntrySummary{
			EntryID:        entry.EntryID,
			Name:           entry.Name,
			WeightTopic:    entry.WeightTopic,
			ImpedanceTopic: entry.ImpedanceTopic,
			People:         []string{},
		}

		profiles, err := h.directory.Profiles(entry.EntryID)
		if err != nil {
			h.writeNamedError(w, err)
			return
		}
		for _, p := range profiles {
			summary.People = append(summary.People, p.Name)
		}

		summaries = append(summaries, summary)
	}

	writeJSON(w, http.StatusOK, Ok(summaries))
}

// GET /api/v1/scale/entries/{entry_id}/snapshots
func (h *ScaleHandler) GetSnapshots(w http.ResponseWriter, r *http.Request, entryID string) {
	snapshots, err := h.directory.Snapshots(entryID)
	if err != nil {
		h.writeNamedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(snapshots))
}

// GET /api/v1/scale/entries/{entry_id}/people/{slug}/history
func (h *ScaleHandler) GetHistory(w http.ResponseWriter, r *http.Request, entryID, slug string) {
	entries, err := h.directory.History(entryID, slug)
	if err != nil {
		h.writeNamedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(HistoryResponse{
		EntryID: entryID,
		Person:  slug,
		Entries: entries,
	}))
}

// GET /api/v1/scale/entries/{entry_id}/people/{slug}/history/export
// 导出为 Excel 下载
func (h *ScaleHandler) ExportHistory(w http.ResponseWriter, r *http.Request, entryID, slug string) {
	entries, err := h.directory.History(entryID, slug)
	if err != nil {
		h.writeNamedError(w, err)
		return
	}

	data, err := GenerateHistoryExport(slug, entries)
	if err != nil {
		h.logger.Error("Failed to generate history export",
			zap.String("entry_id", entryID),
			zap.String("slug", slug),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("weight-history-%s-%s.xlsx", slug, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// POST /api/v1/scale/guest/reassign
// body: { person: string, entry_id?: string }
func (h *ScaleHandler) ReassignGuest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Person  string `json:"person"`
		EntryID string `json:"entry_id"`
	}
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if req.Person == "" {
		writeJSON(w, http.StatusBadRequest, Fail("person is required"))
		return
	}

	if err := h.directory.ReassignGuest(r.Context(), req.Person, req.EntryID); err != nil {
		h.writeNamedError(w, err)
		return
	}

	h.logger.Info("Guest reassigned via API",
		zap.String("person", req.Person),
		zap.String("entry_id", req.EntryID),
	)

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"person":   req.Person,
		"entry_id": req.EntryID,
	}))
}

// writeNamedError 将命名错误映射为 4xx 响应，其余为 500
func (h *ScaleHandler) writeNamedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNoEntries):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.Is(err, models.ErrEntryNotFound),
		errors.Is(err, models.ErrPersonNotFound),
		errors.Is(err, models.ErrNoGuestSample):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	default:
		h.logger.Error("Unexpected handler error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
