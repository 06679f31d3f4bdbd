package handler

import (
	"net/http"
	"strconv"

	"github.com/yndnr/vault-go/internal/core/domain"
)

// handleListDevices handles GET /v1/devices.
func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, &ListDevicesResponse{
		Devices: stats,
		Total:   len(stats),
	})
}

// handleGetDevice handles GET /v1/devices/{index}.
func (h *Handler) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.handleServiceError(w, r, domain.ErrInvalidArgument.WithDetails("device index must be an integer"))
		return
	}

	dev, err := h.registry.Device(index)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	st, err := dev.Stat(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, st)
}

// handleParams handles GET /v1/params.
func (h *Handler) handleParams(w http.ResponseWriter, r *http.Request) {
	params := h.registry.Params()
	quantum, qset := params.Snapshot()
	defQuantum, defQset := params.Defaults()
	budget := h.registry.Budget()

	h.writeJSON(w, r, http.StatusOK, &ParamsResponse{
		Quantum:        quantum,
		Qset:           qset,
		DefaultQuantum: defQuantum,
		DefaultQset:    defQset,
		Major:          h.registry.Major(),
		NrDevs:         h.registry.Len(),
		MemoryUsed:     budget.Used(),
		MemoryLimit:    budget.Limit(),
	})
}
