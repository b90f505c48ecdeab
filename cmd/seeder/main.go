//cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

var demoLeads = []model.Lead{
	{Name: "Ada Lovelace", Email: "ada@example.com", Company: "Analytical Engines", Position: "CTO"},
	{Name: "Grace Hopper", Email: "grace@example.com", Company: "Compiler Works", Position: "Head of Engineering"},
	{Name: "Alan Turing", Email: "alan@example.com", Company: "Bletchley Labs", Position: "Research Lead"},
}

// seeds the global draft pool from the bundled templates plus a few demo leads
func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	gen, err := service.NewTemplateGenerator()
	if err != nil {
		log.Fatal(err)
	}
	pool := service.NewDraftPool(&repository.DraftRepository{DB: conn}, gen, 0)

	counts := map[model.UseCase]int{
		model.UseCaseInitial:  len(service.ToneRotation),
		model.UseCaseFollowUp: 2,
		model.UseCaseReply:    2,
	}
	for _, useCase := range []model.UseCase{model.UseCaseInitial, model.UseCaseFollowUp, model.UseCaseReply} {
		drafts, err := pool.GenerateMultiple(ctx, counts[useCase], useCase, service.DraftScope{})
		if err != nil {
			log.Fatalf("failed to seed %s drafts: %v", useCase, err)
		}
		fmt.Printf("Seeded: %d %s drafts\n", len(drafts), useCase)
	}

	leads := &repository.LeadRepository{DB: conn}
	for i := range demoLeads {
		l := demoLeads[i]
		if err := leads.Create(ctx, &l); err != nil {
			if appErrors.IsInvalidInput(err) {
				fmt.Printf("Skipped: %s already exists\n", l.Email)
				continue
			}
			log.Fatalf("failed to seed lead %s: %v", l.Email, err)
		}
		fmt.Printf("Seeded: lead %d %s\n", l.ID, l.Email)
	}

	fmt.Println("Database seeding completed successfully!")
}
