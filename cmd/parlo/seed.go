package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/parlo-ai/parlo/internal/config"
	"github.com/parlo-ai/parlo/internal/store"
	"github.com/parlo-ai/parlo/pkg/schema"
)

// seedSteps are the two workflows a fresh tenant gets: a conversational
// chat workflow and a booking intake workflow.
var (
	chatSteps = json.RawMessage(`[
		{"type": "chat"}
	]`)
	bookingSteps = json.RawMessage(`[
		{"type": "ask", "question": "What is your name, and what date works for you? (YYYY-MM-DD)"},
		{"type": "ai", "variable": "booking", "instruction": "Extract the customer's name and requested date as JSON with keys \"name\" and \"date\" (YYYY-MM-DD)."},
		{"type": "save", "model": "booking", "fields": {"date": "{{context.booking.date}}", "status": "pending"}},
		{"type": "response", "message": "Thanks {{context.booking.name}}! Your booking request is in."}
	]`)
)

func newSeedCmd() *cobra.Command {
	var (
		name      string
		subdomain string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo tenant with default workflows and prompt template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			tenant, err := seedTenant(ctx, st, name, subdomain)
			if err != nil {
				return err
			}
			fmt.Printf("seeded tenant %s (subdomain %q)\n", tenant.ID, tenant.Subdomain)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Demo Salon", "tenant display name")
	cmd.Flags().StringVar(&subdomain, "subdomain", "demo", "tenant subdomain")
	return cmd
}

func seedTenant(ctx context.Context, st store.Store, name, subdomain string) (*store.Tenant, error) {
	if existing, err := st.GetTenantBySubdomain(ctx, subdomain); err == nil {
		return existing, nil
	} else if schema.CodeOf(err) != schema.ErrCodeNotFound {
		return nil, err
	}

	tenant := &store.Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		Subdomain: subdomain,
	}
	if err := st.CreateTenant(ctx, tenant); err != nil {
		return nil, err
	}

	workflows := []*store.Workflow{
		{ID: uuid.NewString(), TenantID: tenant.ID, Name: "Chat Workflow", Steps: chatSteps, Enabled: true},
		{ID: uuid.NewString(), TenantID: tenant.ID, Name: "Booking Workflow", Steps: bookingSteps, Enabled: true},
	}
	for _, wf := range workflows {
		if err := st.CreateWorkflow(ctx, wf); err != nil {
			return nil, err
		}
	}

	customer := &store.Customer{
		ID:       uuid.NewString(),
		TenantID: tenant.ID,
		Name:     "Demo Customer",
		Email:    "demo@example.com",
	}
	if err := st.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}

	template := &store.PromptTemplate{
		ID:         uuid.NewString(),
		Name:       "default",
		BasePrompt: "You are an AI assistant for {{context.business_name}}. Always respond clearly and concisely.",
	}
	if err := st.CreatePromptTemplate(ctx, template); err != nil {
		if schema.CodeOf(err) != schema.ErrCodeConflict {
			return nil, err
		}
	}
	return tenant, nil
}
