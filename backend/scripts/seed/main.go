package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"notegraph/backend/internal/graph"
	"notegraph/backend/pkg/config"
	"notegraph/backend/pkg/logger"
)

func main() {
	userID := flag.String("user-id", "demo", "User id to seed notes under")
	force := flag.Bool("force", false, "Seed even if the user already exists")
	reset := flag.Bool("reset", false, "Delete ALL data before seeding")
	skipConfirm := flag.Bool("y", false, "Skip confirmation prompt for -reset")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...")

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

	if *reset {
		if !*skipConfirm {
			log.Warn("WARNING: This will DELETE ALL DATA from Neo4j!")
			log.Warn("This action cannot be undone.")
			// Use fmt.Print for user input prompt (needs to go to stdout)
			fmt.Print("Are you sure you want to continue? (yes/no): ")
			var response string
			fmt.Scanln(&response)
			if response != "yes" && response != "y" {
				log.Info("Aborted.")
				os.Exit(0)
			}
		}

		log.Info("Deleting all data from Neo4j...")
		if err := deleteAllData(ctx, driver); err != nil {
			log.Fatal("Failed to delete all data", zap.Error(err))
		}
		log.Info("All data deleted")
	}

	repo := graph.NewRepository(driver)

	// Check if the user is already seeded
	if _, err := repo.GetNode(ctx, *userID); err == nil && !*force {
		log.Info("User already exists, skipping seed (use -force to reseed)",
			zap.String("user_id", *userID),
		)
		os.Exit(0)
	}

	log.Info("Creating user", zap.String("user_id", *userID))
	if _, err := repo.UpsertNode(ctx, graph.VariantUser, *userID, nil); err != nil {
		log.Fatal("Failed to create user", zap.Error(err))
	}

	// Categories
	categories := []string{"work", "home", "reading"}
	for _, name := range categories {
		log.Info("Creating category", zap.String("category", name))
		if _, err := repo.UpsertNode(ctx, graph.VariantCategory, name, nil); err != nil {
			log.Fatal("Failed to create category", zap.String("category", name), zap.Error(err))
		}
	}

	// Notes
	notes := []struct {
		content  string
		category string
	}{
		{"Sketch out the migration plan for the reporting pipeline before Friday", "work"},
		{"Neo4j models relationships as first-class data, which is why traversals stay cheap", "reading"},
		{"Water the monstera every Sunday, it drops leaves when the soil dries out", "home"},
		{"Ask Dana about the conference budget before booking flights", "work"},
	}
	noteIDs := make([]string, 0, len(notes))
	for _, n := range notes {
		noteID, err := repo.UpsertNode(ctx, graph.VariantNote, "", map[string]interface{}{
			"content": n.content,
		})
		if err != nil {
			log.Fatal("Failed to create note", zap.Error(err))
		}
		noteIDs = append(noteIDs, noteID)
		log.Info("Created note", zap.String("note_id", noteID))

		if _, err := repo.UpsertEdge(ctx, graph.EdgeInput{
			SourceID: *userID,
			TargetID: noteID,
			Type:     graph.RelCreated,
		}); err != nil {
			log.Fatal("Failed to link note to user", zap.Error(err))
		}
		if _, err := repo.UpsertEdge(ctx, graph.EdgeInput{
			SourceID: noteID,
			TargetID: categoryID(ctx, repo, n.category, log),
			Type:     graph.RelBelongsTo,
		}); err != nil {
			log.Warn("Failed to link note to category", zap.Error(err))
		}
	}

	// An event
	eventID, err := repo.UpsertNode(ctx, graph.VariantEvent, "", map[string]interface{}{
		"title":       "Quarterly planning offsite",
		"description": "Two days in the mountain office, bring the roadmap draft",
	})
	if err != nil {
		log.Fatal("Failed to create event", zap.Error(err))
	}
	if _, err := repo.UpsertEdge(ctx, graph.EdgeInput{
		SourceID: *userID,
		TargetID: eventID,
		Type:     graph.RelCreated,
	}); err != nil {
		log.Fatal("Failed to link event to user", zap.Error(err))
	}

	// Entities and tags the analysis pipeline would normally extract
	entityID, err := repo.UpsertNode(ctx, graph.VariantEntity, "Neo4j", map[string]interface{}{
		"type": "technology",
	})
	if err != nil {
		log.Fatal("Failed to create entity", zap.Error(err))
	}
	if _, err := repo.UpsertEdge(ctx, graph.EdgeInput{
		SourceID:      noteIDs[1],
		TargetID:      entityID,
		Type:          graph.RelMentions,
		Weight:        graph.Float(0.9),
		Confidence:    graph.Float(0.9),
		AutoGenerated: true,
	}); err != nil {
		log.Warn("Failed to link entity mention", zap.Error(err))
	}

	tagID, err := repo.UpsertNode(ctx, graph.VariantTag, "planning", nil)
	if err != nil {
		log.Fatal("Failed to create tag", zap.Error(err))
	}
	for _, noteID := range []string{noteIDs[0], noteIDs[3]} {
		if _, err := repo.UpsertEdge(ctx, graph.EdgeInput{
			SourceID:      noteID,
			TargetID:      tagID,
			Type:          graph.RelTaggedWith,
			Weight:        graph.Float(0.95),
			Confidence:    graph.Float(0.95),
			AutoGenerated: true,
		}); err != nil {
			log.Warn("Failed to tag note", zap.Error(err))
		}
	}

	// A manual link between the two work notes. User-asserted edges never decay.
	if _, err := repo.UpsertEdge(ctx, graph.EdgeInput{
		SourceID: noteIDs[0],
		TargetID: noteIDs[3],
		Type:     graph.RelRelatedTo,
		Weight:   graph.Float(1.0),
		Reason:   "both block the Q3 planning milestone",
	}); err != nil {
		log.Warn("Failed to create manual link", zap.Error(err))
	}

	// Verify creation
	stats, err := repo.Stats(ctx)
	if err != nil {
		log.Fatal("Failed to verify seed", zap.Error(err))
	}

	var nodeTotal, relTotal int64
	for _, c := range stats.NodeCounts {
		nodeTotal += c
	}
	for _, c := range stats.RelationCounts {
		relTotal += c
	}
	log.Info("Seed completed",
		zap.String("user_id", *userID),
		zap.Int64("nodes", nodeTotal),
		zap.Int64("relations", relTotal),
	)
}

// categoryID resolves a seeded category name to its node id.
func categoryID(ctx context.Context, repo *graph.Repository, name string, log *zap.Logger) string {
	id, err := repo.UpsertNode(ctx, graph.VariantCategory, name, nil)
	if err != nil {
		log.Warn("Failed to resolve category", zap.String("category", name), zap.Error(err))
		return ""
	}
	return id
}

func deleteAllData(ctx context.Context, driver neo4j.DriverWithContext) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	// Batched so large graphs do not blow the transaction memory limit
	for {
		result, err := session.Run(ctx, `
			MATCH (n)
			WITH n LIMIT 10000
			DETACH DELETE n
			RETURN count(n) as deleted
		`, nil)
		if err != nil {
			return err
		}
		if !result.Next(ctx) {
			return result.Err()
		}
		deleted, _ := result.Record().Get("deleted")
		if count, ok := deleted.(int64); !ok || count == 0 {
			return nil
		}
	}
}
