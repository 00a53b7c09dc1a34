package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/config"
	"github.com/rs24k/captracker/pkg/models"
	"github.com/rs24k/captracker/pkg/repositories"
	"github.com/rs24k/captracker/pkg/roster"
	"github.com/rs24k/captracker/pkg/services"
)

// PromotionEvaluator is the slice of the promotion service the refresh
// handler needs.
type PromotionEvaluator interface {
	Evaluate(ctx context.Context, memberID int64) error
}

// RefreshResponse reports the outcome of a manual member refresh.
type RefreshResponse struct {
	OK        bool               `json:"ok"`
	Refreshed bool               `json:"refreshed"`
	Reason    string             `json:"reason,omitempty"`
	Result    *models.SyncResult `json:"result,omitempty"`
}

// RefreshHandler triggers an on-demand sync for one member.
type RefreshHandler struct {
	cfg        *config.SyncConfig
	clans      repositories.ClanRepository
	members    repositories.MemberRepository
	snapshots  repositories.SnapshotRepository
	sync       services.SyncService
	promotions PromotionEvaluator
	logger     *zap.Logger
	now        func() time.Time
}

// NewRefreshHandler creates a new RefreshHandler.
func NewRefreshHandler(
	cfg *config.SyncConfig,
	clans repositories.ClanRepository,
	members repositories.MemberRepository,
	snapshots repositories.SnapshotRepository,
	sync services.SyncService,
	promotions PromotionEvaluator,
	logger *zap.Logger,
) *RefreshHandler {
	return &RefreshHandler{
		cfg:        cfg,
		clans:      clans,
		members:    members,
		snapshots:  snapshots,
		sync:       sync,
		promotions: promotions,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterRoutes registers the refresh handler's routes on the given mux.
func (h *RefreshHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/refresh", h.Refresh)
}

// Refresh handles GET/POST /api/refresh. The member is addressed either by
// member_id or by clan key + rsn. A member whose newest snapshot is younger
// than the refresh interval is reported fresh without touching the
// upstream; that is a success, not an error.
func (h *RefreshHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		_ = ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or POST")
		return
	}

	member, err := h.resolveMember(r)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "member_not_found", "no such member")
			return
		}
		_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	capturedAt, err := h.snapshots.LatestCapturedAt(r.Context(), member.ID)
	if err != nil {
		h.logger.Error("failed to check snapshot freshness", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "freshness check failed")
		return
	}
	if capturedAt != nil && h.now().Sub(*capturedAt) < h.cfg.RefreshInterval {
		_ = WriteJSON(w, http.StatusOK, RefreshResponse{OK: true, Refreshed: false, Reason: "fresh"})
		return
	}

	result, err := h.sync.Sync(r.Context(), member.ID, 20)
	if err != nil {
		h.logger.Error("manual refresh failed",
			zap.Int64("member_id", member.ID),
			zap.Error(err))
		_ = WriteJSON(w, http.StatusBadGateway, RefreshResponse{
			OK:     false,
			Reason: "sync_failed",
			Result: result,
		})
		return
	}

	if result.CapDetected {
		if err := h.promotions.Evaluate(r.Context(), member.ID); err != nil {
			// The sync already landed; a promotion hiccup is logged and
			// retried on the next cycle.
			h.logger.Warn("promotion evaluation failed",
				zap.Int64("member_id", member.ID),
				zap.Error(err))
		}
	}

	_ = WriteJSON(w, http.StatusOK, RefreshResponse{OK: true, Refreshed: true, Result: result})
}

func (h *RefreshHandler) resolveMember(r *http.Request) (*models.Member, error) {
	query := r.URL.Query()

	if raw := query.Get("member_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.New("member_id must be an integer")
		}
		return h.members.GetByID(r.Context(), id)
	}

	rsn := query.Get("rsn")
	clanKey := query.Get("clan")
	if rsn == "" || clanKey == "" {
		return nil, errors.New("provide member_id, or clan and rsn")
	}

	clan, err := h.clans.GetByKey(r.Context(), clanKey)
	if err != nil {
		return nil, err
	}
	return h.members.GetByRSN(r.Context(), clan.ID, roster.NormaliseName(rsn))
}
