package services

import (
	"context"
	"io"

	"github.com/abrezinsky/lunchbot/internal/models"
)

// SurveyServicer defines the interface for the weekly survey lifecycle
type SurveyServicer interface {
	CreateSurvey(ctx context.Context) (*SurveyPrompt, error)
	RecordVote(ctx context.Context, voterID, optionText string) (*VoteReceipt, error)
	Tally(ctx context.Context) (*TallyResult, error)
	Nag(ctx context.Context) (*NagResult, error)
	MarkBooked(ctx context.Context) error
	CurrentSurvey(ctx context.Context) (*models.Survey, error)
	Survey(ctx context.Context, weekID string) (*models.Survey, error)
	SetBroadcaster(b Broadcaster)
}

// CatalogServicer defines the interface for option catalog operations
type CatalogServicer interface {
	ListOptions(ctx context.Context) ([]models.Option, error)
	SaveOption(ctx context.Context, option models.Option) error
	DeleteOption(ctx context.Context, id string) error
	SeedFromYAML(ctx context.Context, r io.Reader) (int, error)
	SeedFromFile(ctx context.Context, path string) (int, error)
}

// Broadcaster defines the interface for broadcasting messages to clients
type Broadcaster interface {
	BroadcastMessage(msgType string, payload interface{})
}

// Ensure concrete types implement interfaces
var (
	_ SurveyServicer  = (*SurveyService)(nil)
	_ CatalogServicer = (*CatalogService)(nil)
)
