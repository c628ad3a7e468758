package ingest

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"notegraph/backend/internal/adapter"
	"notegraph/backend/internal/analysis"
	"notegraph/backend/internal/graph"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

// Store is the slice of the graph repository ingestion writes through
type Store interface {
	UpsertNode(ctx context.Context, variant graph.NodeVariant, naturalKey string, attrs map[string]interface{}) (string, error)
	UpsertEdge(ctx context.Context, input graph.EdgeInput) (string, error)
}

// Analyzer runs the extraction pipeline over freshly ingested items
type Analyzer interface {
	AnalyzeIncremental(ctx context.Context, userID, noteID, text string) (*analysis.Report, error)
	AnalyzeGlobal(ctx context.Context, userID, itemID, itemText string) (*analysis.Report, error)
}

// Service creates notes and events and feeds them through analysis. The
// write itself must succeed; analysis is best-effort and a failure there
// leaves a plain unanalyzed item behind.
type Service struct {
	store    Store
	analyzer Analyzer
	vectors  *adapter.VectorCache
	clipper  *WebClipper
	logger   *zap.Logger
}

// NewService creates an ingestion service
func NewService(store Store, analyzer Analyzer, vectors *adapter.VectorCache, clipper *WebClipper) *Service {
	return &Service{
		store:    store,
		analyzer: analyzer,
		vectors:  vectors,
		clipper:  clipper,
		logger:   logger.Named("ingest"),
	}
}

// CreateNote stores one note for a user and analyzes it incrementally.
// An optional category is merged on write and linked with BELONGS_TO.
func (s *Service) CreateNote(ctx context.Context, userID, content, category string) (string, *analysis.Report, error) {
	content = strings.TrimSpace(content)
	if err := validateOwner(userID, content); err != nil {
		return "", nil, err
	}

	noteID, err := s.createItem(ctx, userID, graph.VariantNote, map[string]interface{}{
		"content": content,
	}, category)
	if err != nil {
		return "", nil, err
	}

	s.vectors.Invalidate(userID)

	report := s.analyze("note", noteID, func() (*analysis.Report, error) {
		return s.analyzer.AnalyzeIncremental(ctx, userID, noteID, content)
	})

	s.logger.Info("Created note",
		zap.String("user_id", userID),
		zap.String("note_id", noteID),
		zap.String("category", category),
	)
	return noteID, report, nil
}

// CreateEvent stores one event and runs the global pass so the new event
// gets related to the existing graph.
func (s *Service) CreateEvent(ctx context.Context, userID, title, description, category string) (string, *analysis.Report, error) {
	title = strings.TrimSpace(title)
	if err := validateOwner(userID, title); err != nil {
		return "", nil, err
	}

	eventID, err := s.createItem(ctx, userID, graph.VariantEvent, map[string]interface{}{
		"title":       title,
		"description": strings.TrimSpace(description),
	}, category)
	if err != nil {
		return "", nil, err
	}

	itemText := title
	if description != "" {
		itemText += "\n" + description
	}
	report := s.analyze("event", eventID, func() (*analysis.Report, error) {
		return s.analyzer.AnalyzeGlobal(ctx, userID, eventID, itemText)
	})

	s.logger.Info("Created event",
		zap.String("user_id", userID),
		zap.String("event_id", eventID),
		zap.String("category", category),
	)
	return eventID, report, nil
}

// ClipURL fetches a web page and ingests its readable text as a note. The
// source URL is kept on the note.
func (s *Service) ClipURL(ctx context.Context, userID, pageURL, category string) (string, *analysis.Report, error) {
	if userID == "" {
		return "", nil, apperrors.NewInvalidArgument("user id must not be empty")
	}

	title, text, err := s.clipper.Clip(ctx, pageURL)
	if err != nil {
		return "", nil, err
	}

	content := text
	if title != "" {
		content = title + "\n\n" + text
	}

	noteID, err := s.createItem(ctx, userID, graph.VariantNote, map[string]interface{}{
		"content":    content,
		"source_url": pageURL,
		"type":       "webclip",
	}, category)
	if err != nil {
		return "", nil, err
	}

	s.vectors.Invalidate(userID)

	report := s.analyze("webclip", noteID, func() (*analysis.Report, error) {
		return s.analyzer.AnalyzeIncremental(ctx, userID, noteID, content)
	})

	s.logger.Info("Clipped note created",
		zap.String("user_id", userID),
		zap.String("note_id", noteID),
		zap.String("url", pageURL),
	)
	return noteID, report, nil
}

// createItem writes the item node, its CREATED edge and the optional
// category link
func (s *Service) createItem(ctx context.Context, userID string, variant graph.NodeVariant, attrs map[string]interface{}, category string) (string, error) {
	if _, err := s.store.UpsertNode(ctx, graph.VariantUser, userID, nil); err != nil {
		return "", err
	}

	itemID, err := s.store.UpsertNode(ctx, variant, "", attrs)
	if err != nil {
		return "", err
	}

	if _, err := s.store.UpsertEdge(ctx, graph.EdgeInput{
		SourceID: userID,
		TargetID: itemID,
		Type:     graph.RelCreated,
	}); err != nil {
		return "", err
	}

	if category = strings.TrimSpace(category); category != "" {
		categoryID, err := s.store.UpsertNode(ctx, graph.VariantCategory, category, nil)
		if err != nil {
			return "", err
		}
		if _, err := s.store.UpsertEdge(ctx, graph.EdgeInput{
			SourceID: itemID,
			TargetID: categoryID,
			Type:     graph.RelBelongsTo,
		}); err != nil {
			return "", err
		}
	}

	return itemID, nil
}

// analyze runs one analysis pass and swallows its failure
func (s *Service) analyze(kind, itemID string, run func() (*analysis.Report, error)) *analysis.Report {
	report, err := run()
	if err != nil {
		s.logger.Warn("Analysis failed, item kept unanalyzed",
			zap.String("kind", kind),
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return nil
	}
	return report
}

func validateOwner(userID, text string) error {
	if userID == "" {
		return apperrors.NewInvalidArgument("user id must not be empty")
	}
	if text == "" {
		return apperrors.NewInvalidArgument("content must not be empty")
	}
	return nil
}
