// Dev helper: opens a sample contract with an initial payment and confirms
// it, so a fresh database has something to look at.
package main

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"installments/internal/engine"
	"installments/internal/notify"
	"installments/internal/store/postgres"
	"installments/pkg/config"
	"installments/pkg/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	eng := engine.New(postgres.New(pool), notify.NewLogSink(true), engine.Options{})

	contract, initial, err := eng.OpenContract(ctx, engine.ContractTerms{
		CustomerID:     "11111111-1111-1111-1111-111111111111",
		ManagerID:      "22222222-2222-2222-2222-222222222222",
		Currency:       engine.CurrencyDollar,
		TotalPrice:     decimal.RequireFromString("1300"),
		InitialPayment: decimal.RequireFromString("100"),
		MonthlyPayment: decimal.RequireFromString("100"),
		Period:         12,
		StartDate:      time.Now().AddDate(0, 0, -1),
	}, "seed")
	if err != nil {
		log.Fatalf("open contract: %v", err)
	}
	log.Printf("contract %s opened, next due %s", contract.ID, contract.NextPaymentDate.Format("2006-01-02"))

	if initial != nil {
		if _, err := eng.Confirm(ctx, initial.ID, "seed"); err != nil {
			log.Fatalf("confirm initial: %v", err)
		}
		log.Printf("initial payment %s confirmed", initial.ID)
	}
}
