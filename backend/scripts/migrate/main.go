package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"notegraph/backend/pkg/config"
	"notegraph/backend/pkg/logger"
)

func main() {
	force := flag.Bool("force", false, "Force migration even if already applied")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Neo4j schema migration...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	// Verify connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	// Check if migration already applied
	if !*force {
		applied, err := checkMigrationApplied(ctx, driver)
		if err != nil {
			log.Fatal("Failed to check migration status", zap.Error(err))
		}
		if applied {
			log.Info("Migration already applied. Use -force to reapply.")
			os.Exit(0)
		}
	}

	// Run migrations
	if err := runMigrations(ctx, driver, log); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	// Mark migration as applied
	if err := markMigrationApplied(ctx, driver); err != nil {
		log.Warn("Failed to mark migration as applied", zap.Error(err))
	}

	log.Info("Migration completed successfully!")
}

func checkMigrationApplied(ctx context.Context, driver neo4j.DriverWithContext) (bool, error) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (m:Migration {version: 'notegraph_schema_v1'})
		RETURN m.applied_at as applied_at
	`

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return false, err
	}

	return result.Next(ctx), nil
}

func markMigrationApplied(ctx context.Context, driver neo4j.DriverWithContext) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (m:Migration {version: 'notegraph_schema_v1'})
		SET m.applied_at = datetime(),
		    m.description = 'Base schema with node identity constraints, natural-key uniqueness and weighted relation flags'
	`

	_, err := session.Run(ctx, query, nil)
	return err
}

func runMigrations(ctx context.Context, driver neo4j.DriverWithContext, log *zap.Logger) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	migrations := []struct {
		name        string
		description string
		query       string
	}{
		{
			name:        "Create Identity Constraints",
			description: "Unique id per node variant",
			query: `
				CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (n:User) REQUIRE n.id IS UNIQUE;
				CREATE CONSTRAINT note_id_unique IF NOT EXISTS FOR (n:Note) REQUIRE n.id IS UNIQUE;
				CREATE CONSTRAINT event_id_unique IF NOT EXISTS FOR (n:Event) REQUIRE n.id IS UNIQUE;
				CREATE CONSTRAINT category_id_unique IF NOT EXISTS FOR (n:Category) REQUIRE n.id IS UNIQUE;
				CREATE CONSTRAINT tag_id_unique IF NOT EXISTS FOR (n:Tag) REQUIRE n.id IS UNIQUE;
				CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE;
				CREATE CONSTRAINT session_id_unique IF NOT EXISTS FOR (n:Session) REQUIRE n.id IS UNIQUE;
				CREATE CONSTRAINT message_id_unique IF NOT EXISTS FOR (n:Message) REQUIRE n.id IS UNIQUE;
			`,
		},
		{
			name:        "Create Natural Key Constraints",
			description: "Name-keyed variants merge on their name, so names must be unique",
			query: `
				CREATE CONSTRAINT entity_name_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.name IS UNIQUE;
				CREATE CONSTRAINT tag_name_unique IF NOT EXISTS FOR (n:Tag) REQUIRE n.name IS UNIQUE;
				CREATE CONSTRAINT category_name_unique IF NOT EXISTS FOR (n:Category) REQUIRE n.name IS UNIQUE;
			`,
		},
		{
			name:        "Create Indexes",
			description: "Indexes backing recency scans and session trims",
			query: `
				// Boost window and duplicate-scan ordering
				CREATE INDEX note_created_at IF NOT EXISTS FOR (n:Note) ON (n.created_at);
				CREATE INDEX event_created_at IF NOT EXISTS FOR (n:Event) ON (n.created_at);

				// Session history trim orders by message timestamp
				CREATE INDEX message_timestamp IF NOT EXISTS FOR (m:Message) ON (m.timestamp);
			`,
		},
		{
			name:        "Backfill Relation Flags",
			description: "Weighted edges predating the auto_generated flag count as user-asserted",
			query: `
				MATCH ()-[r]->()
				WHERE r.weight IS NOT NULL AND r.auto_generated IS NULL
				SET r.auto_generated = false;
			`,
		},
	}

	for i, migration := range migrations {
		log.Info("Running migration",
			zap.Int("step", i+1),
			zap.Int("total", len(migrations)),
			zap.String("name", migration.name),
			zap.String("description", migration.description),
		)

		// Split query by semicolons and execute each statement
		statements := splitStatements(migration.query)
		for j, stmt := range statements {
			if stmt == "" {
				continue
			}
			_, err := session.Run(ctx, stmt, nil)
			if err != nil {
				// Some errors are expected (e.g., constraints/indexes already exist)
				log.Warn("Migration step had an error (may be expected)",
					zap.String("migration", migration.name),
					zap.Int("statement", j+1),
					zap.Error(err),
				)
				// Continue anyway - many of these are idempotent
			}
		}

		log.Info("Migration step completed", zap.String("name", migration.name))
	}

	return nil
}

// splitStatements splits a Cypher script into individual statements
// Simple approach: split by semicolon and trim whitespace
func splitStatements(script string) []string {
	// Remove single-line comments
	lines := strings.Split(script, "\n")
	var cleanedLines []string
	for _, line := range lines {
		// Remove // comments
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		cleanedLines = append(cleanedLines, line)
	}
	cleanedScript := strings.Join(cleanedLines, "\n")

	// Split by semicolon
	parts := strings.Split(cleanedScript, ";")
	var statements []string
	for _, part := range parts {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return statements
}
