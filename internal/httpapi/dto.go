package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"installments/internal/engine"
)

// Wire shapes for the dashboard. Money goes out as fixed two-decimal strings.

type paymentDTO struct {
	ID         string `json:"id"`
	ContractID string `json:"contractId,omitempty"`
	CustomerID string `json:"customerId"`
	ManagerID  string `json:"managerId"`
	Currency   string `json:"currency"`

	Amount          string  `json:"amount"`
	ActualAmount    *string `json:"actualAmount,omitempty"`
	ExpectedAmount  *string `json:"expectedAmount,omitempty"`
	RemainingAmount string  `json:"remainingAmount"`
	ExcessAmount    string  `json:"excessAmount"`

	Type        string `json:"type"`
	TargetMonth int    `json:"targetMonth"`

	IsPaid bool   `json:"isPaid"`
	Status string `json:"status"`

	Note            string `json:"note,omitempty"`
	LinkedPaymentID string `json:"linkedPaymentId,omitempty"`

	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	ConfirmedBy string     `json:"confirmedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type contractDTO struct {
	ID         string `json:"id"`
	CustomerID string `json:"customerId"`
	ManagerID  string `json:"managerId"`
	Currency   string `json:"currency"`

	TotalPrice     string    `json:"totalPrice"`
	InitialPayment string    `json:"initialPayment"`
	MonthlyPayment string    `json:"monthlyPayment"`
	Period         int       `json:"period"`
	StartDate      time.Time `json:"startDate"`

	NextPaymentDate    time.Time  `json:"nextPaymentDate"`
	OriginalPaymentDay int        `json:"originalPaymentDay"`
	PostponedAt        *time.Time `json:"postponedAt,omitempty"`

	PrepaidBalance string `json:"prepaidBalance"`
	Status         string `json:"status"`

	PaymentIDs []string `json:"paymentIds"`

	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type balanceDTO struct {
	ManagerID string    `json:"managerId"`
	Dollar    string    `json:"dollar"`
	Sum       string    `json:"sum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toPaymentDTO(p *engine.Payment) paymentDTO {
	return paymentDTO{
		ID:              p.ID,
		ContractID:      p.ContractID,
		CustomerID:      p.CustomerID,
		ManagerID:       p.ManagerID,
		Currency:        string(p.Currency),
		Amount:          p.Amount.StringFixed(2),
		ActualAmount:    decPtr(p.ActualAmount),
		ExpectedAmount:  decPtr(p.ExpectedAmount),
		RemainingAmount: p.RemainingAmount.StringFixed(2),
		ExcessAmount:    p.ExcessAmount.StringFixed(2),
		Type:            string(p.Type),
		TargetMonth:     p.TargetMonth,
		IsPaid:          p.IsPaid,
		Status:          string(p.Status),
		Note:            p.Note,
		LinkedPaymentID: p.LinkedPaymentID,
		ConfirmedAt:     p.ConfirmedAt,
		ConfirmedBy:     p.ConfirmedBy,
		CreatedAt:       p.CreatedAt,
	}
}

func toContractDTO(c *engine.Contract) contractDTO {
	ids := c.PaymentIDs
	if ids == nil {
		ids = []string{}
	}
	return contractDTO{
		ID:                 c.ID,
		CustomerID:         c.CustomerID,
		ManagerID:          c.ManagerID,
		Currency:           string(c.Currency),
		TotalPrice:         c.TotalPrice.StringFixed(2),
		InitialPayment:     c.InitialPayment.StringFixed(2),
		MonthlyPayment:     c.MonthlyPayment.StringFixed(2),
		Period:             c.Period,
		StartDate:          c.StartDate,
		NextPaymentDate:    c.NextPaymentDate,
		OriginalPaymentDay: c.OriginalPaymentDay,
		PostponedAt:        c.PostponedAt,
		PrepaidBalance:     c.PrepaidBalance.StringFixed(2),
		Status:             string(c.Status),
		PaymentIDs:         ids,
		CreatedAt:          c.CreatedAt,
		DeletedAt:          c.DeletedAt,
	}
}

func toBalanceDTO(b *engine.Balance) balanceDTO {
	return balanceDTO{
		ManagerID: b.ManagerID,
		Dollar:    b.Dollar.StringFixed(2),
		Sum:       b.Sum.StringFixed(2),
		UpdatedAt: b.UpdatedAt,
	}
}

func decPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}
