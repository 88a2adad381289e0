// Command seed populates a fresh database with a demo tenant: one admin, two
// agents, and a handful of leads, customers, and tasks to click around with.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"leadline.org/internal/auth"
	"leadline.org/internal/crm"
)

func main() {
	log.SetFlags(0)
	var (
		dsn      = flag.String("dsn", os.Getenv("DB_DSN"), "PostgreSQL DSN")
		password = flag.String("password", "changeme123", "Password for all seeded accounts")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or DB_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	users := auth.NewPGUserStore(db)
	leads := crm.NewPGLeadStore(db)
	customers := crm.NewPGCustomerStore(db)
	tasks := crm.NewPGTaskStore(db)

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	seedUsers := []*auth.User{
		{Name: "Ada Thompson", Email: "admin@leadline.io", PasswordHash: hash, Role: auth.RoleAdmin},
		{Name: "Marcus Lee", Email: "marcus@leadline.io", PasswordHash: hash, Role: auth.RoleAgent},
		{Name: "Priya Nair", Email: "priya@leadline.io", PasswordHash: hash, Role: auth.RoleAgent},
	}
	for _, u := range seedUsers {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", u.Email, err)
		}
		log.Printf("user %-22s %s (%s)", u.Email, u.ID, u.Role)
	}
	marcus, priya := seedUsers[1], seedUsers[2]

	seedLeads := []*crm.Lead{
		{Name: "Joan Fleming", Email: "joan@acme.test", Phone: "+1-555-0101", Source: "webform", Status: crm.LeadStatusNew, AssignedAgent: marcus.ID},
		{Name: "Omar Haddad", Email: "omar@globex.test", Phone: "+1-555-0102", Source: "referral", Status: crm.LeadStatusInProgress, AssignedAgent: marcus.ID},
		{Name: "Lena Fischer", Email: "lena@initech.test", Phone: "+1-555-0103", Source: "conference", Status: crm.LeadStatusNew, AssignedAgent: priya.ID},
	}
	for _, l := range seedLeads {
		if err := leads.Create(ctx, l); err != nil {
			log.Fatalf("create lead %s: %v", l.Email, err)
		}
	}

	seedCustomers := []*crm.Customer{
		{Name: "Ravi Patel", Company: "Hooli", Email: "ravi@hooli.test", Phone: "+1-555-0201", Tags: []string{"enterprise"}, Owner: marcus.ID},
		{Name: "Sofia Marques", Company: "Vandelay", Email: "sofia@vandelay.test", Phone: "+1-555-0202", Tags: []string{"smb", "renewal"}, Owner: priya.ID},
	}
	for _, c := range seedCustomers {
		if err := customers.Create(ctx, c); err != nil {
			log.Fatalf("create customer %s: %v", c.Email, err)
		}
	}

	now := time.Now().UTC()
	seedTasks := []*crm.Task{
		{Title: "Call Joan about pricing", DueDate: now.Add(48 * time.Hour), Status: crm.TaskStatusOpen, Priority: crm.TaskPriorityHigh, RelatedTo: crm.TaskRelationLead, Owner: marcus.ID},
		{Title: "Send renewal quote", DueDate: now.Add(-24 * time.Hour), Status: crm.TaskStatusOpen, Priority: crm.TaskPriorityMedium, RelatedTo: crm.TaskRelationCustomer, Owner: priya.ID},
		{Title: "Prepare demo environment", DueDate: now.Add(7 * 24 * time.Hour), Status: crm.TaskStatusInProgress, Priority: crm.TaskPriorityLow, RelatedTo: crm.TaskRelationCustomer, Owner: marcus.ID},
	}
	for _, t := range seedTasks {
		if err := tasks.Create(ctx, t); err != nil {
			log.Fatalf("create task %q: %v", t.Title, err)
		}
	}

	log.Printf("seeded %d users, %d leads, %d customers, %d tasks",
		len(seedUsers), len(seedLeads), len(seedCustomers), len(seedTasks))
}
