package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/capweek"
	"github.com/rs24k/captracker/pkg/repositories"
)

// WindowView is a reset window rendered for API consumers.
type WindowView struct {
	StartUTC   string `json:"start_utc"`
	EndUTC     string `json:"end_utc"`
	StartLocal string `json:"start_local"`
	EndLocal   string `json:"end_local"`
}

// CapStats summarises one window's capping for a clan.
type CapStats struct {
	ActiveMembers int     `json:"active_members"`
	Capped        int     `json:"capped"`
	Uncapped      int     `json:"uncapped"`
	CappedPct     float64 `json:"capped_pct"`
	CitadelVisits int     `json:"citadel_visits"`
}

// ClanOverviewResponse is the GET /api/clan payload.
type ClanOverviewResponse struct {
	OK             bool       `json:"ok"`
	ClanKey        string     `json:"clan_key"`
	ClanName       string     `json:"clan_name"`
	Timezone       string     `json:"timezone"`
	CurrentWindow  WindowView `json:"current_window"`
	PreviousWindow WindowView `json:"previous_window"`
	CurrentWeek    CapStats   `json:"current_week"`
	PreviousWeek   CapStats   `json:"previous_week"`
}

// ClanHandler serves the clan weekly overview.
type ClanHandler struct {
	clans   repositories.ClanRepository
	members repositories.MemberRepository
	caps    repositories.CapRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewClanHandler creates a new ClanHandler.
func NewClanHandler(
	clans repositories.ClanRepository,
	members repositories.MemberRepository,
	caps repositories.CapRepository,
	logger *zap.Logger,
) *ClanHandler {
	return &ClanHandler{
		clans:   clans,
		members: members,
		caps:    caps,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterRoutes registers the clan handler's routes on the given mux.
func (h *ClanHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/clan", h.Overview)
}

// Overview handles GET /api/clan?key=<clan_key>: the clan's current and
// previous reset windows with cap coverage for each.
func (h *ClanHandler) Overview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	clanKey := r.URL.Query().Get("key")
	if clanKey == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", "key is required")
		return
	}

	clan, err := h.clans.GetByKey(r.Context(), clanKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "clan_not_found", "no such clan")
			return
		}
		h.logger.Error("failed to load clan", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "clan lookup failed")
		return
	}

	current := capweek.Current(h.now().UTC(), clan.Timezone, clan.ResetWeekday, clan.ResetTime)
	previous := current.Previous()

	members, err := h.members.ListActive(r.Context(), clan.ID)
	if err != nil {
		h.logger.Error("failed to list members", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "member listing failed")
		return
	}

	currentStats, err := h.windowStats(r, clan.ID, len(members), current)
	if err != nil {
		h.logger.Error("failed to compute current week stats", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "stats failed")
		return
	}
	previousStats, err := h.windowStats(r, clan.ID, len(members), previous)
	if err != nil {
		h.logger.Error("failed to compute previous week stats", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "stats failed")
		return
	}

	_ = WriteJSON(w, http.StatusOK, ClanOverviewResponse{
		OK:             true,
		ClanKey:        clan.ClanKey,
		ClanName:       clan.ClanName,
		Timezone:       clan.Timezone,
		CurrentWindow:  windowView(current),
		PreviousWindow: windowView(previous),
		CurrentWeek:    currentStats,
		PreviousWeek:   previousStats,
	})
}

func (h *ClanHandler) windowStats(r *http.Request, clanID int64, activeMembers int, window capweek.Window) (CapStats, error) {
	caps, err := h.caps.ListCapsInWindow(r.Context(), clanID, window.StartUTC)
	if err != nil {
		return CapStats{}, err
	}
	visits, err := h.caps.CountVisitsInWindow(r.Context(), clanID, window.StartUTC)
	if err != nil {
		return CapStats{}, err
	}

	stats := CapStats{
		ActiveMembers: activeMembers,
		Capped:        len(caps),
		Uncapped:      activeMembers - len(caps),
		CitadelVisits: visits,
	}
	if stats.Uncapped < 0 {
		stats.Uncapped = 0
	}
	if activeMembers > 0 {
		stats.CappedPct = float64(len(caps)) / float64(activeMembers) * 100
	}
	return stats, nil
}

func windowView(w capweek.Window) WindowView {
	return WindowView{
		StartUTC:   capweek.Format(w.StartUTC),
		EndUTC:     capweek.Format(w.EndUTC),
		StartLocal: capweek.Format(w.StartLocal),
		EndLocal:   capweek.Format(w.EndLocal),
	}
}
