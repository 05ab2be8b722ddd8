package repository

import (
	"context"

	"github.com/abrezinsky/lunchbot/internal/models"
)

// CatalogRepository defines option catalog operations
type CatalogRepository interface {
	ListOptions(ctx context.Context) ([]models.Option, error)
	SaveOption(ctx context.Context, option models.Option) error
	DeleteOption(ctx context.Context, id string) error
}

// SurveyRepository defines survey document operations
type SurveyRepository interface {
	GetSurvey(ctx context.Context, weekID string) (*models.Survey, error)
	SaveSurvey(ctx context.Context, survey *models.Survey) error
	// UpdateSurvey runs fn on the stored survey inside a store transaction
	// and writes the result back unless fn returns an error.
	UpdateSurvey(ctx context.Context, weekID string, fn func(*models.Survey) error) error
}

// FullRepository combines all repository interfaces
type FullRepository interface {
	CatalogRepository
	SurveyRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
