package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/abrezinsky/lunchbot/internal/errors"
	"github.com/abrezinsky/lunchbot/internal/models"
	"github.com/abrezinsky/lunchbot/internal/store"
)

// Store paths
const (
	catalogRoot = "pubs"
	surveysRoot = "surveys"
)

// Repository maps surveys and options onto document store paths:
//
//	pubs/{optionID}            {name, website}
//	surveys/{weekID}           {created_at, options, votes, winner, booker, booked}
type Repository struct {
	store store.Store
}

// New creates a new Repository on top of s
func New(s store.Store) *Repository {
	return &Repository{store: s}
}

// Store returns the underlying document store
func (r *Repository) Store() store.Store {
	return r.store
}

// surveyDoc is the stored shape of a survey
type surveyDoc struct {
	CreatedAt string            `json:"created_at"`
	Options   map[string]string `json:"options"`
	Votes     map[string]string `json:"votes"`
	Winner    string            `json:"winner,omitempty"`
	Booker    string            `json:"booker,omitempty"`
	Booked    bool              `json:"booked"`
}

func decode(input any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func surveyPath(weekID string) string {
	return store.Join(surveysRoot, weekID)
}

func toDoc(s *models.Survey) surveyDoc {
	return surveyDoc{
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		Options:   s.Options,
		Votes:     s.Votes,
		Winner:    s.Winner,
		Booker:    s.Booker,
		Booked:    s.Booked,
	}
}

func fromDoc(weekID string, raw any) (*models.Survey, error) {
	var doc surveyDoc
	if err := decode(raw, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, fmt.Sprintf("corrupt survey %s", weekID))
	}

	s := &models.Survey{
		WeekID:  weekID,
		Options: doc.Options,
		Votes:   doc.Votes,
		Winner:  doc.Winner,
		Booker:  doc.Booker,
		Booked:  doc.Booked,
	}
	if s.Options == nil {
		s.Options = map[string]string{}
	}
	if s.Votes == nil {
		s.Votes = map[string]string{}
	}
	if doc.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, doc.CreatedAt); err == nil {
			s.CreatedAt = t
		}
	}
	return s, nil
}

// ==================== Survey Methods ====================

// GetSurvey returns the survey for weekID or ErrNotFound
func (r *Repository) GetSurvey(ctx context.Context, weekID string) (*models.Survey, error) {
	raw, err := r.store.Get(ctx, surveyPath(weekID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return fromDoc(weekID, raw)
}

// SaveSurvey writes the survey, replacing whatever was stored for its week
func (r *Repository) SaveSurvey(ctx context.Context, survey *models.Survey) error {
	return r.store.Set(ctx, surveyPath(survey.WeekID), toDoc(survey))
}

// UpdateSurvey applies fn to the stored survey atomically.
// Returns ErrNotFound without calling fn when no survey exists.
func (r *Repository) UpdateSurvey(ctx context.Context, weekID string, fn func(*models.Survey) error) error {
	return r.store.Update(ctx, surveyPath(weekID), func(current any) (any, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		survey, err := fromDoc(weekID, current)
		if err != nil {
			return nil, err
		}
		if err := fn(survey); err != nil {
			return nil, err
		}
		return toDoc(survey), nil
	})
}

// ==================== Catalog Methods ====================

// ListOptions returns the catalog ordered by option id.
// Entries without a name are skipped.
func (r *Repository) ListOptions(ctx context.Context) ([]models.Option, error) {
	raw, err := r.store.Get(ctx, catalogRoot)
	if err != nil {
		return nil, err
	}
	entries, _ := raw.(map[string]any)

	options := make([]models.Option, 0, len(entries))
	for _, id := range store.Keys(entries) {
		var opt models.Option
		if err := decode(entries[id], &opt); err != nil {
			continue
		}
		if opt.Name == "" {
			continue
		}
		opt.ID = id
		options = append(options, opt)
	}
	return options, nil
}

// SaveOption creates or replaces a catalog entry
func (r *Repository) SaveOption(ctx context.Context, option models.Option) error {
	if option.ID == "" || strings.Contains(option.ID, "/") {
		return errors.Validationf("invalid option id %q", option.ID)
	}
	if strings.TrimSpace(option.Name) == "" {
		return errors.Validation("option name is required")
	}
	doc := map[string]any{"name": option.Name}
	if option.Website != "" {
		doc["website"] = option.Website
	}
	return r.store.Set(ctx, store.Join(catalogRoot, option.ID), doc)
}

// DeleteOption removes a catalog entry. Returns ErrNotFound if absent.
func (r *Repository) DeleteOption(ctx context.Context, id string) error {
	return r.store.Update(ctx, store.Join(catalogRoot, id), func(current any) (any, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		return nil, nil
	})
}
