package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/okian/crmflow/internal/domain/rules"
	"github.com/okian/crmflow/pkg/logger"
	"github.com/okian/crmflow/pkg/metrics"
)

// RulesHandler exposes the active rule set.
type RulesHandler struct {
	store  RuleStore
	logger logger.Logger
}

// NewRulesHandler creates a rules handler.
func NewRulesHandler(store RuleStore) *RulesHandler {
	return &RulesHandler{store: store, logger: logger.Named("api.rules")}
}

type rulesResponse struct {
	Path    string         `json:"path,omitempty"`
	BuiltIn bool           `json:"builtIn"`
	Rules   *rules.RuleSet `json:"rules"`
}

type reloadResponse struct {
	Status   string   `json:"status"`
	Warnings []string `json:"warnings,omitempty"`
}

// HandleGet handles GET /config.
func (h *RulesHandler) HandleGet(w http.ResponseWriter, _ *http.Request) {
	path := h.store.Path()
	writeJSON(w, http.StatusOK, rulesResponse{Path: path, BuiltIn: path == "", Rules: h.store.Current()})
}

// HandleReload handles POST /config/reload. A failed reload keeps the
// active rule set.
func (h *RulesHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	const op = "api.config_reload"
	ctx := r.Context()
	warnings, err := h.store.Reload()
	if err != nil {
		metrics.RecordRulesReload("error")
		if errors.Is(err, rules.ErrNoPath) {
			writeError(w, http.StatusConflict, "no_rules_file", WrapKind(op, ErrReload, err))
			return
		}
		h.logger.Error(ctx, "rules reload failed", logger.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "invalid_rules", WrapKind(op, ErrReload, err))
		return
	}
	metrics.RecordRulesReload("ok")
	metrics.UpdateRulesLastReload(time.Now().Unix())
	for _, warn := range warnings {
		h.logger.Warn(ctx, "rule set warning", logger.String("warning", warn))
	}
	h.logger.Info(ctx, "rules reloaded", logger.String("path", h.store.Path()))
	writeJSON(w, http.StatusOK, reloadResponse{Status: "reloaded", Warnings: warnings})
}
