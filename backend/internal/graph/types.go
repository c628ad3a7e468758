package graph

import (
	"regexp"
	"time"
)

// NodeVariant enumerates the node labels in the graph
type NodeVariant string

const (
	VariantUser     NodeVariant = "User"
	VariantNote     NodeVariant = "Note"
	VariantEvent    NodeVariant = "Event"
	VariantCategory NodeVariant = "Category"
	VariantTag      NodeVariant = "Tag"
	VariantEntity   NodeVariant = "Entity"
	VariantSession  NodeVariant = "Session"
	VariantMessage  NodeVariant = "Message"
)

// naturalKeys maps each variant to the property its upserts merge on.
// Name-keyed variants (Entity, Tag, Category) get merge-on-write semantics:
// referencing one by name creates it if absent.
var naturalKeys = map[NodeVariant]string{
	VariantUser:     "id",
	VariantNote:     "id",
	VariantEvent:    "id",
	VariantCategory: "name",
	VariantTag:      "name",
	VariantEntity:   "name",
	VariantSession:  "id",
	VariantMessage:  "id",
}

// Relation types
const (
	RelBelongsTo  = "BELONGS_TO"
	RelRelatedTo  = "RELATED_TO"
	RelTaggedWith = "TAGGED_WITH"
	RelMentions   = "MENTIONS"
	RelCausedBy   = "CAUSED_BY"
	RelSimilarTo  = "SIMILAR_TO"
	RelContains   = "CONTAINS"
	RelPrefers    = "PREFERS"
	RelCreated    = "CREATED"
	RelHasMessage = "HAS_MESSAGE"
)

// validRelationTypes is the enumerated edge-type domain
var validRelationTypes = map[string]bool{
	RelBelongsTo:  true,
	RelRelatedTo:  true,
	RelTaggedWith: true,
	RelMentions:   true,
	RelCausedBy:   true,
	RelSimilarTo:  true,
	RelContains:   true,
	RelPrefers:    true,
	RelCreated:    true,
	RelHasMessage: true,
}

// manualTypePattern allows free-form user-defined link types. Relation types
// are interpolated into Cypher, so anything outside this shape is rejected.
var manualTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// ValidRelationType reports whether relType may be written to the graph
func ValidRelationType(relType string) bool {
	if validRelationTypes[relType] {
		return true
	}
	return manualTypePattern.MatchString(relType)
}

// ValidVariant reports whether the variant is part of the data model
func ValidVariant(variant NodeVariant) bool {
	_, ok := naturalKeys[variant]
	return ok
}

// Direction selects which incident edges QueryNeighbors follows
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// Node is a graph node of any variant
type Node struct {
	ID        string                 `json:"id"`
	Variant   NodeVariant            `json:"variant"`
	Props     map[string]interface{} `json:"props,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Edge is a directed, typed relation between two nodes. Weight and confidence
// are pointers because manual edges typically carry neither.
type Edge struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	SourceID      string    `json:"source_id"`
	TargetID      string    `json:"target_id"`
	Weight        *float64  `json:"weight,omitempty"`
	Confidence    *float64  `json:"confidence,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	AutoGenerated bool      `json:"auto_generated"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EdgeInput describes an edge upsert
type EdgeInput struct {
	SourceID      string
	TargetID      string
	Type          string
	Weight        *float64
	Confidence    *float64
	Reason        string
	AutoGenerated bool
}

// Float returns a pointer to v, for optional edge attributes
func Float(v float64) *float64 {
	return &v
}

// Neighbor pairs an incident edge with the node on its far side
type Neighbor struct {
	Edge Edge `json:"edge"`
	Node Node `json:"node"`
}

// Note is a typed view of a Note node
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is a typed view of an Event node
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message is a typed view of a Message node
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      string    `json:"role"` // user, assistant
	Timestamp time.Time `json:"timestamp"`
}

// TextHit is a raw lexical or traversal match before the retrieval engine
// assigns scores
type TextHit struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind"` // note, event
	CreatedAt time.Time `json:"created_at"`
}

// SearchResult represents one retrieval hit
type SearchResult struct {
	ID         string                 `json:"id"`
	Snippet    string                 `json:"snippet"`
	Score      float64                `json:"score"`
	SourceType string                 `json:"source_type"` // note, event
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilters narrows lexical and graph sub-searches
type SearchFilters struct {
	Category  string     `json:"category,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// RelatedNote is a note reachable through a weighted relation edge
type RelatedNote struct {
	ID           string  `json:"id"`
	Content      string  `json:"content"`
	RelationType string  `json:"relation_type"`
	Weight       float64 `json:"weight"`
}

// DuplicatePair is a candidate pair of redundant entities
type DuplicatePair struct {
	AID   string `json:"a_id"`
	AName string `json:"a_name"`
	BID   string `json:"b_id"`
	BName string `json:"b_name"`
	Exact bool   `json:"exact"` // case-insensitive equal vs. substring
}

// ContextEntry is one element of a user's bounded graph-context snapshot
type ContextEntry struct {
	ID      string      `json:"id"`
	Variant NodeVariant `json:"variant"`
	Display string      `json:"display"`
}

// GraphStats is a point-in-time snapshot of graph composition
type GraphStats struct {
	NodeCounts     map[string]int64 `json:"node_counts"`
	RelationCounts map[string]int64 `json:"relation_counts"`
	OrphanCount    int64            `json:"orphan_count"`
	GeneratedAt    time.Time        `json:"generated_at"`
}
