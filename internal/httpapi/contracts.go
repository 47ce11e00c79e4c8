package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"installments/internal/api"
	"installments/internal/engine"
)

type ContractHandler struct {
	Engine *engine.Engine
	Store  engine.Store
}

type createContractRequest struct {
	CustomerID     string `json:"customerId"`
	ManagerID      string `json:"managerId"`
	Currency       string `json:"currency"`
	TotalPrice     string `json:"totalPrice"`
	InitialPayment string `json:"initialPayment"`
	MonthlyPayment string `json:"monthlyPayment"`
	Period         int    `json:"period"`
	StartDate      string `json:"startDate"` // 2006-01-02
}

func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body")
		return
	}

	total, err := parseMoney(req.TotalPrice)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, engine.CodeValidationFailed, "invalid totalPrice")
		return
	}
	initial := decimal.Zero
	if req.InitialPayment != "" {
		if initial, err = parseMoney(req.InitialPayment); err != nil {
			api.WriteError(w, http.StatusBadRequest, engine.CodeValidationFailed, "invalid initialPayment")
			return
		}
	}
	monthly, err := parseMoney(req.MonthlyPayment)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, engine.CodeValidationFailed, "invalid monthlyPayment")
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, engine.CodeValidationFailed, "invalid startDate, want YYYY-MM-DD")
		return
	}

	contract, initialPayment, err := h.Engine.OpenContract(r.Context(), engine.ContractTerms{
		CustomerID:     req.CustomerID,
		ManagerID:      req.ManagerID,
		Currency:       engine.Currency(req.Currency),
		TotalPrice:     total,
		InitialPayment: initial,
		MonthlyPayment: monthly,
		Period:         req.Period,
		StartDate:      start,
	}, api.ActorFromContext(r.Context()))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}

	resp := map[string]any{"contract": toContractDTO(contract)}
	if initialPayment != nil {
		resp["initialPayment"] = toPaymentDTO(initialPayment)
	}
	api.WriteJSON(w, http.StatusCreated, resp)
}

func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	contract, err := h.Store.GetContract(r.Context(), id)
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	payments, err := h.Store.ListContractPayments(r.Context(), id)
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	edits, err := h.Store.ListEdits(r.Context(), id)
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}

	pd := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		pd = append(pd, toPaymentDTO(p))
	}
	if edits == nil {
		edits = []engine.EditRecord{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"contract": toContractDTO(contract),
		"payments": pd,
		"edits":    edits,
	})
}

type editTermsRequest struct {
	MonthlyPayment *string `json:"monthlyPayment"`
	InitialPayment *string `json:"initialPayment"`
	TotalPrice     *string `json:"totalPrice"`
}

func (h *ContractHandler) EditTerms(w http.ResponseWriter, r *http.Request) {
	var req editTermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body")
		return
	}

	var changes engine.EditChanges
	for _, f := range []struct {
		raw  *string
		dst  **decimal.Decimal
		name string
	}{
		{req.MonthlyPayment, &changes.MonthlyPayment, "monthlyPayment"},
		{req.InitialPayment, &changes.InitialPayment, "initialPayment"},
		{req.TotalPrice, &changes.TotalPrice, "totalPrice"},
	} {
		if f.raw == nil {
			continue
		}
		v, err := parseMoney(*f.raw)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, engine.CodeValidationFailed, "invalid "+f.name)
			return
		}
		*f.dst = &v
	}

	impact, err := h.Engine.ApplyEdit(r.Context(), chi.URLParam(r, "id"), changes, api.ActorFromContext(r.Context()))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"impact": impact})
}

type postponeRequest struct {
	Until string `json:"until"` // 2006-01-02
}

func (h *ContractHandler) Postpone(w http.ResponseWriter, r *http.Request) {
	var req postponeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body")
		return
	}
	until, err := time.Parse("2006-01-02", req.Until)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, engine.CodeValidationFailed, "invalid until, want YYYY-MM-DD")
		return
	}

	if err := h.Engine.PostponePayment(r.Context(), chi.URLParam(r, "id"), until, api.ActorFromContext(r.Context())); err != nil {
		api.WriteEngineError(w, err)
		return
	}
	contract, err := h.Store.GetContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"contract": toContractDTO(contract)})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *ContractHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body")
		return
	}
	if err := h.Engine.CancelContract(r.Context(), chi.URLParam(r, "id"), req.Reason, api.ActorFromContext(r.Context())); err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func parseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
