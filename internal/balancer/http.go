package balancer

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cocaineapp/balancer/internal/errs"
	"github.com/cocaineapp/balancer/internal/lifecycle"
	"github.com/cocaineapp/balancer/internal/namespace"
)

// Handler exposes a Service over HTTP+JSON: a bare http.ServeMux,
// json.Decoder on the way in, http.Error/json.Encoder on the way out.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

// NewHandler builds a Handler over svc.
func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: logger.With().Str("component", "balancer-http").Logger()}
}

// Mux builds the full route table.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	mux.HandleFunc("/v1/symmetric_groups", h.handleSymmetricGroups)
	mux.HandleFunc("/v1/bad_groups", h.handleBadGroups)
	mux.HandleFunc("/v1/frozen_groups", h.handleFrozenGroups)
	mux.HandleFunc("/v1/closed_groups", h.handleClosedGroups)
	mux.HandleFunc("/v1/empty_groups", h.handleEmptyGroups)
	mux.HandleFunc("/v1/couples", h.handleCouplesList)
	mux.HandleFunc("/v1/couples/", h.handleCoupleInfo)
	mux.HandleFunc("/v1/groups/", h.handleGroupInfo)
	mux.HandleFunc("/v1/weights", h.handleGroupWeights)
	mux.HandleFunc("/v1/build_couples", h.handleBuildCouples)
	mux.HandleFunc("/v1/break_couple", h.handleBreakCouple)
	mux.HandleFunc("/v1/freeze_couple", h.handleFreezeCouple)
	mux.HandleFunc("/v1/unfreeze_couple", h.handleUnfreezeCouple)
	mux.HandleFunc("/v1/repair_groups", h.handleRepairGroups)
	mux.HandleFunc("/v1/group_detach_node", h.handleGroupDetachNode)
	mux.HandleFunc("/v1/namespaces", h.handleNamespaces)
	mux.HandleFunc("/v1/namespaces/", h.handleNamespaceByName)
	mux.HandleFunc("/v1/namespaces_states", h.handleNamespacesStates)
	mux.HandleFunc("/v1/next_group_number", h.handleNextGroupNumber)
	mux.HandleFunc("/v1/inventory", h.handleInventory)
	return mux
}

// writeJSON encodes v as the response body with a 200 status.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an errs.Kind to an HTTP status and writes a JSON error
// body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.Is(err, errs.NotFound):
		status = http.StatusNotFound
	case errs.Is(err, errs.BadRequest):
		status = http.StatusBadRequest
	case errs.Is(err, errs.InsufficientAvailability), errs.Is(err, errs.InsufficientCapacity):
		status = http.StatusConflict
	case errs.Is(err, errs.LockBusy):
		status = http.StatusLocked
	case errs.Is(err, errs.AlreadyInState):
		status = http.StatusConflict
	case errs.Is(err, errs.InconsistentMeta), errs.Is(err, errs.CorruptMeta):
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (h *Handler) handleSymmetricGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.svc.GetSymmetricGroups())
}

func (h *Handler) handleBadGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.svc.GetBadGroups())
}

func (h *Handler) handleFrozenGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.svc.GetFrozenGroups())
}

func (h *Handler) handleClosedGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.svc.GetClosedGroups())
}

func (h *Handler) handleEmptyGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.svc.GetEmptyGroups())
}

func (h *Handler) handleCouplesList(w http.ResponseWriter, r *http.Request) {
	filter := CouplesListFilter{
		Namespace: r.URL.Query().Get("namespace"),
		State:     r.URL.Query().Get("state"),
	}
	out, err := h.svc.GetCouplesList(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

func (h *Handler) handleCoupleInfo(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(r.URL.Path, "/v1/couples/")
	info, err := h.svc.GetCoupleInfo(ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, info)
}

func (h *Handler) handleGroupInfo(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/v1/groups/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "bad group id", http.StatusBadRequest)
		return
	}
	info, err := h.svc.GetGroupInfo(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, info)
}

func (h *Handler) handleGroupWeights(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.GetGroupWeights(r.URL.Query().Get("namespace"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

type buildCouplesRequest struct {
	Size            int     `json:"size"`
	Count           int     `json:"count"`
	Namespace       string  `json:"namespace"`
	MatchGroupSpace bool    `json:"match_group_space"`
	InitState       string  `json:"init_state"`
	DryRun          bool    `json:"dry_run"`
	MandatoryGroups [][]int `json:"mandatory_groups"`
}

func (h *Handler) handleBuildCouples(w http.ResponseWriter, r *http.Request) {
	var req buildCouplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	initState := lifecycle.Coupled
	if req.InitState != "" {
		initState = lifecycle.InitState(req.InitState)
	}
	couples, err := h.svc.BuildCouples(r.Context(), req.Size, req.Count, BuildOptions{
		Namespace:       req.Namespace,
		MatchGroupSpace: req.MatchGroupSpace,
		InitState:       initState,
		DryRun:          req.DryRun,
		MandatoryGroups: req.MandatoryGroups,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, couples)
}

type groupIDsAndConfirmRequest struct {
	GroupIDs []int  `json:"group_ids"`
	Confirm  string `json:"confirm"`
}

func (h *Handler) handleBreakCouple(w http.ResponseWriter, r *http.Request) {
	var req groupIDsAndConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := h.svc.BreakCouple(r.Context(), req.GroupIDs, req.Confirm); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

type coupleKeyRequest struct {
	Couple string `json:"couple"`
}

func (h *Handler) handleFreezeCouple(w http.ResponseWriter, r *http.Request) {
	h.handleCoupleKeyOp(w, r, h.svc.FreezeCouple)
}

func (h *Handler) handleUnfreezeCouple(w http.ResponseWriter, r *http.Request) {
	h.handleCoupleKeyOp(w, r, h.svc.UnfreezeCouple)
}

func (h *Handler) handleCoupleKeyOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	var req coupleKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := op(r.Context(), req.Couple); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

type repairGroupsRequest struct {
	GroupID           int    `json:"group_id"`
	NamespaceOverride string `json:"namespace_override"`
}

func (h *Handler) handleRepairGroups(w http.ResponseWriter, r *http.Request) {
	var req repairGroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := h.svc.RepairGroups(r.Context(), req.GroupID, req.NamespaceOverride); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

type groupDetachNodeRequest struct {
	GroupID int    `json:"group_id"`
	Node    string `json:"node"`
}

func (h *Handler) handleGroupDetachNode(w http.ResponseWriter, r *http.Request) {
	var req groupDetachNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := h.svc.GroupDetachNode(req.GroupID, req.Node); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (h *Handler) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Name           string             `json:"name"`
		Overwrite      bool               `json:"overwrite"`
		Settings       namespace.Settings `json:"settings"`
		SkipValidation bool               `json:"skip_validation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := h.svc.NamespaceSetup(r.Context(), req.Name, req.Overwrite, req.Settings, req.SkipValidation); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (h *Handler) handleNamespaceByName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/v1/namespaces/")
	switch r.Method {
	case http.MethodGet:
		settings, err := h.svc.GetNamespaceSettings(name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, settings)
	case http.MethodDelete:
		if err := h.svc.NamespaceDelete(r.Context(), name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleNamespacesStates(w http.ResponseWriter, _ *http.Request) {
	states, err := h.svc.GetNamespacesStates()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, states)
}

func (h *Handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var inv Inventory
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := h.svc.ApplyInventory(inv); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (h *Handler) handleNextGroupNumber(w http.ResponseWriter, r *http.Request) {
	var req struct {
		N int `json:"n"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	ids, err := h.svc.ReserveGroupIDs(req.N)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, ids)
}
