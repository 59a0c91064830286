// Package store owns the relational schema: search spaces, documents,
// chunks, connectors, chats, reports, podcasts, memories, and the task log,
// plus the hybrid search repository that reads them back out.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DocumentType enumerates every source a document can originate from.
type DocumentType string

const (
	DocumentTypeCrawledURL     DocumentType = "CRAWLED_URL"
	DocumentTypeFile           DocumentType = "FILE"
	DocumentTypeExtension      DocumentType = "EXTENSION"
	DocumentTypeYoutubeVideo   DocumentType = "YOUTUBE_VIDEO"
	DocumentTypeSlack          DocumentType = "SLACK"
	DocumentTypeNotion         DocumentType = "NOTION"
	DocumentTypeGithub         DocumentType = "GITHUB"
	DocumentTypeLinear         DocumentType = "LINEAR"
	DocumentTypeJira           DocumentType = "JIRA"
	DocumentTypeDiscord        DocumentType = "DISCORD"
	DocumentTypeConfluence     DocumentType = "CONFLUENCE"
	DocumentTypeClickup        DocumentType = "CLICKUP"
	DocumentTypeGmail          DocumentType = "GMAIL"
	DocumentTypeGoogleCalendar DocumentType = "GOOGLE_CALENDAR"
	DocumentTypeGoogleDrive    DocumentType = "GOOGLE_DRIVE_FILE"
	DocumentTypeAirtable       DocumentType = "AIRTABLE"
	DocumentTypeLuma           DocumentType = "LUMA"
	DocumentTypeCircleback     DocumentType = "CIRCLEBACK"
)

// ConnectorType enumerates the connector kinds registered under C5.
type ConnectorType string

const (
	ConnectorTypeSlack          ConnectorType = "SLACK_CONNECTOR"
	ConnectorTypeNotion         ConnectorType = "NOTION_CONNECTOR"
	ConnectorTypeGithub         ConnectorType = "GITHUB_CONNECTOR"
	ConnectorTypeLinear         ConnectorType = "LINEAR_CONNECTOR"
	ConnectorTypeJira           ConnectorType = "JIRA_CONNECTOR"
	ConnectorTypeDiscord        ConnectorType = "DISCORD_CONNECTOR"
	ConnectorTypeConfluence     ConnectorType = "CONFLUENCE_CONNECTOR"
	ConnectorTypeClickup        ConnectorType = "CLICKUP_CONNECTOR"
	ConnectorTypeGmail          ConnectorType = "GMAIL_CONNECTOR"
	ConnectorTypeGoogleCalendar ConnectorType = "GOOGLE_CALENDAR_CONNECTOR"
	ConnectorTypeGoogleDrive    ConnectorType = "GOOGLE_DRIVE_CONNECTOR"
	ConnectorTypeAirtable       ConnectorType = "AIRTABLE_CONNECTOR"
	ConnectorTypeLuma           ConnectorType = "LUMA_CONNECTOR"
	ConnectorTypeCircleback     ConnectorType = "CIRCLEBACK_CONNECTOR"
	ConnectorTypeMCP            ConnectorType = "MCP_CONNECTOR"
)

// JSONMap is a generic JSONB-backed map, mirroring the teacher's
// ConvertToJSON helper but round-trippable back into a typed map.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			*m = JSONMap{}
			return nil
		}
		bytes = []byte(str)
	}
	var out map[string]any
	if err := json.Unmarshal(bytes, &out); err != nil {
		*m = JSONMap{}
		return nil
	}
	*m = out
	return nil
}

// Vector stores a dense embedding as a Postgres `vector` column via
// pgvector's wire format, round-tripping through GORM the same way the
// teacher's JSONB columns round-trip through Value/Scan.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	var s string
	switch t := value.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		*v = Vector{}
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(Vector, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return err
		}
		out = append(out, float32(f))
	}
	*v = out
	return nil
}

// SearchSpace is a named container owned by a user; every document, chunk,
// chat, memory, report, and podcast belongs to exactly one.
type SearchSpace struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (SearchSpace) TableName() string { return "knowledge_core.search_spaces" }

// Document is an ingested item, identified for dedupe by ContentHash and
// for idempotent updates by UniqueIDHash.
type Document struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SearchSpaceID uuid.UUID      `gorm:"type:uuid;not null;index"`
	ConnectorID   *uuid.UUID     `gorm:"type:uuid;index"`
	DocumentType  DocumentType   `gorm:"type:varchar(64);not null;index"`
	Title         string         `gorm:"type:text;not null"`
	Metadata      JSONMap        `gorm:"type:jsonb;default:'{}'"`
	Summary       string         `gorm:"type:text"`
	SummaryVector Vector         `gorm:"type:vector(1536)"`
	ContentHash   string         `gorm:"type:char(64);not null;uniqueIndex:idx_documents_content_hash"`
	UniqueIDHash  *string        `gorm:"type:char(64);uniqueIndex:idx_documents_unique_id_hash"`
	CreatedAt     time.Time      `gorm:"not null;default:now()"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()"`

	Chunks []Chunk `gorm:"foreignKey:DocumentID"`
}

func (Document) TableName() string { return "knowledge_core.documents" }

// Chunk is a semantic fragment of a document's body.
type Chunk struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index"`
	Content    string    `gorm:"type:text;not null"`
	Embedding  Vector    `gorm:"type:vector(1536)"`
	ChunkIndex int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;default:now()"`
}

func (Chunk) TableName() string { return "knowledge_core.chunks" }

// SearchSourceConnector is per-user configuration for one external source.
type SearchSourceConnector struct {
	ID              uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID          uuid.UUID     `gorm:"type:uuid;not null;index"`
	SearchSpaceID   uuid.UUID     `gorm:"type:uuid;not null;index"`
	ConnectorType   ConnectorType `gorm:"type:varchar(64);not null"`
	Config          JSONMap       `gorm:"type:jsonb;not null;default:'{}'"`
	LastIndexedAt   *time.Time
	ResumptionToken *string        `gorm:"type:text"`
	CreatedAt       time.Time      `gorm:"not null;default:now()"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()"`
}

func (SearchSourceConnector) TableName() string { return "knowledge_core.connectors" }

// MessageRole enumerates the roles a Chat message may carry.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool_result"
)

// ChatThread is an ordered sequence of messages in one search-space.
type ChatThread struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SearchSpaceID uuid.UUID `gorm:"type:uuid;not null;index"`
	Title         string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null;default:now()"`
	UpdatedAt     time.Time `gorm:"not null;default:now()"`

	// PendingApproval holds the suspended mutating-tool call waiting on a
	// host decision, if any; cleared once the turn is resumed.
	PendingApproval datatypes.JSON `gorm:"type:jsonb"`

	Messages []ChatMessage `gorm:"foreignKey:ThreadID"`
}

func (ChatThread) TableName() string { return "knowledge_core.chat_threads" }

// ChatMessage is one turn in a ChatThread, optionally citing chunks.
type ChatMessage struct {
	ID         uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ThreadID   uuid.UUID   `gorm:"type:uuid;not null;index"`
	Role       MessageRole `gorm:"type:varchar(16);not null"`
	Content    string      `gorm:"type:text;not null"`
	Citations  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time   `gorm:"not null;default:now()"`
}

func (ChatMessage) TableName() string { return "knowledge_core.chat_messages" }

// ReportMetadata captures the derived word/char/section counts computed
// after every generation or revision.
type ReportMetadata struct {
	WordCount    int `json:"word_count"`
	CharCount    int `json:"char_count"`
	SectionCount int `json:"section_count"`
}

func (m ReportMetadata) Value() (driver.Value, error) { return json.Marshal(m) }

func (m *ReportMetadata) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), m)
	}
	return json.Unmarshal(bytes, m)
}

// Report is a generated Markdown artifact with version lineage.
type Report struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SearchSpaceID uuid.UUID      `gorm:"type:uuid;not null;index"`
	ReportGroupID uuid.UUID      `gorm:"type:uuid;not null;index"`
	ParentID      *uuid.UUID     `gorm:"type:uuid"`
	Title         string         `gorm:"type:text;not null"`
	Content       string         `gorm:"type:text;not null"`
	Metadata      ReportMetadata `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null;default:now()"`
}

func (Report) TableName() string { return "knowledge_core.reports" }

// PodcastStatus enumerates the podcast lifecycle.
type PodcastStatus string

const (
	PodcastStatusPending    PodcastStatus = "PENDING"
	PodcastStatusGenerating PodcastStatus = "GENERATING"
	PodcastStatusReady      PodcastStatus = "READY"
	PodcastStatusFailed     PodcastStatus = "FAILED"
)

// Podcast is metadata plus the generated audio's object-storage location.
type Podcast struct {
	ID            uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SearchSpaceID uuid.UUID     `gorm:"type:uuid;not null;index"`
	Title         string        `gorm:"type:text;not null"`
	Status        PodcastStatus `gorm:"type:varchar(16);not null;default:'PENDING'"`
	AudioObjectKey *string      `gorm:"type:text"`
	ErrorMessage  *string       `gorm:"type:text"`
	CreatedAt     time.Time     `gorm:"not null;default:now()"`
	UpdatedAt     time.Time     `gorm:"not null;default:now()"`
}

func (Podcast) TableName() string { return "knowledge_core.podcasts" }

// UserMemory is a user-scoped fact recalled by semantic search.
type UserMemory struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index"`
	SearchSpaceID uuid.UUID `gorm:"type:uuid;not null;index"`
	Category      string    `gorm:"type:varchar(128)"`
	Text          string    `gorm:"type:text;not null"`
	Embedding     Vector    `gorm:"type:vector(1536)"`
	CreatedAt     time.Time `gorm:"not null;default:now()"`
}

func (UserMemory) TableName() string { return "knowledge_core.user_memories" }

// TaskLogStatus enumerates the three states a task log entry may be in.
type TaskLogStatus string

const (
	TaskLogRunning TaskLogStatus = "running"
	TaskLogSuccess TaskLogStatus = "success"
	TaskLogFailure TaskLogStatus = "failure"
)

// TaskLogEntry is an append-only record of a long-running job's progress.
type TaskLogEntry struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TaskName  string         `gorm:"type:varchar(128);not null;index"`
	SourceTag string         `gorm:"type:varchar(128);index"`
	Stage     string         `gorm:"type:varchar(128)"`
	Status    TaskLogStatus  `gorm:"type:varchar(16);not null;index"`
	Metadata  JSONMap        `gorm:"type:jsonb;default:'{}'"`
	CreatedAt time.Time      `gorm:"not null;default:now()"`
}

func (TaskLogEntry) TableName() string { return "knowledge_core.task_log_entries" }

// AllModels lists every model for AutoMigrate, the way cmd/main.go's
// teacher ancestor enumerates its own model set.
func AllModels() []interface{} {
	return []interface{}{
		&SearchSpace{},
		&Document{},
		&Chunk{},
		&SearchSourceConnector{},
		&ChatThread{},
		&ChatMessage{},
		&Report{},
		&Podcast{},
		&UserMemory{},
		&TaskLogEntry{},
	}
}
