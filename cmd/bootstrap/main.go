// bootstrap initializes the Postgres schema the role store reads from and
// seeds an initial owner so a fresh deployment can authorize its first
// request.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	_ "github.com/lib/pq"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_organizations (
	user_id TEXT NOT NULL,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	role TEXT NOT NULL CHECK (role IN ('owner', 'admin', 'manager', 'staff')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, organization_id)
);`

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: bootstrap <db_url> [org_id owner_user_id]")
	}
	dbURL := os.Args[1]

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()

	log.Println("[bootstrap] Initializing schema...")
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		log.Fatalf("Failed to init schema: %v", err)
	}
	log.Println("[bootstrap] Schema initialized.")

	if len(os.Args) < 4 {
		return
	}
	orgID, ownerID := os.Args[2], os.Args[3]

	log.Printf("[bootstrap] Seeding organization %s with owner %s...", orgID, ownerID)
	if _, err := db.ExecContext(ctx,
		`INSERT INTO organizations (id, name) VALUES ($1, $1) ON CONFLICT (id) DO NOTHING`,
		orgID); err != nil {
		log.Fatalf("Failed to seed organization: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO user_organizations (user_id, organization_id, role)
		 VALUES ($1, $2, 'owner')
		 ON CONFLICT (user_id, organization_id) DO UPDATE SET role = 'owner'`,
		ownerID, orgID); err != nil {
		log.Fatalf("Failed to seed owner: %v", err)
	}
	log.Println("[bootstrap] Done.")
}
