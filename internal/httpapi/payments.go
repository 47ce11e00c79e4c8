package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"installments/internal/api"
	"installments/internal/engine"
)

type PaymentHandler struct {
	Engine *engine.Engine
	Store  engine.Store
}

type createPaymentRequest struct {
	ContractID   string  `json:"contractId"`
	CustomerID   string  `json:"customerId"`
	ManagerID    string  `json:"managerId"`
	Amount       string  `json:"amount"`
	ActualAmount *string `json:"actualAmount"`
	Type         string  `json:"type"`
	TargetMonth  int     `json:"targetMonth"`
	Status       string  `json:"status"`
	Note         string  `json:"note"`
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body")
		return
	}

	amount, err := parseMoney(req.Amount)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, engine.CodeValidationFailed, "invalid amount")
		return
	}
	var actual *decimal.Decimal
	if req.ActualAmount != nil {
		v, err := parseMoney(*req.ActualAmount)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, engine.CodeValidationFailed, "invalid actualAmount")
			return
		}
		actual = &v
	}

	managerID := req.ManagerID
	if managerID == "" {
		managerID = api.ActorFromContext(r.Context())
	}

	p, err := h.Engine.CreatePayment(r.Context(), engine.NewPayment{
		ContractID:   req.ContractID,
		CustomerID:   req.CustomerID,
		ManagerID:    managerID,
		Amount:       amount,
		ActualAmount: actual,
		Type:         engine.PaymentType(req.Type),
		TargetMonth:  req.TargetMonth,
		Status:       engine.PaymentStatus(req.Status),
		Note:         req.Note,
	}, api.ActorFromContext(r.Context()))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]any{"payment": toPaymentDTO(p)})
}

func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Confirm(r.Context(), chi.URLParam(r, "id"), api.ActorFromContext(r.Context()))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}

	created := make([]paymentDTO, 0, len(res.Created))
	for _, p := range res.Created {
		created = append(created, toPaymentDTO(p))
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"payment":  toPaymentDTO(res.Payment),
		"contract": toContractDTO(res.Contract),
		"created":  created,
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *PaymentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "BAD_JSON", "invalid request body")
		return
	}
	p, err := h.Engine.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason, api.ActorFromContext(r.Context()))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"payment": toPaymentDTO(p)})
}

func (h *PaymentHandler) Balance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Store.GetBalance(r.Context(), chi.URLParam(r, "managerID"))
	if err != nil {
		api.WriteEngineError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"balance": toBalanceDTO(b)})
}
