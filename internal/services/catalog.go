package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abrezinsky/lunchbot/internal/errors"
	"github.com/abrezinsky/lunchbot/internal/logger"
	"github.com/abrezinsky/lunchbot/internal/models"
	"github.com/abrezinsky/lunchbot/internal/repository"
)

// CatalogService manages the options a survey is built from
type CatalogService struct {
	log  logger.Logger
	repo repository.CatalogRepository
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(log logger.Logger, repo repository.CatalogRepository) *CatalogService {
	return &CatalogService{log: log, repo: repo}
}

// catalogFile is the YAML seed layout:
//
//	pubs:
//	  - id: cargobar
//	    name: Cargo Bar
//	    website: https://cargobar.com.au
type catalogFile struct {
	Pubs []models.Option `yaml:"pubs"`
}

// ListOptions returns every catalog option ordered by id
func (s *CatalogService) ListOptions(ctx context.Context) ([]models.Option, error) {
	return s.repo.ListOptions(ctx)
}

// SaveOption creates or replaces an option
func (s *CatalogService) SaveOption(ctx context.Context, option models.Option) error {
	option.ID = strings.TrimSpace(option.ID)
	option.Name = strings.TrimSpace(option.Name)
	if err := s.repo.SaveOption(ctx, option); err != nil {
		return err
	}
	s.log.Info("Option saved", "option", option.ID)
	return nil
}

// DeleteOption removes an option from the catalog. Surveys already
// started keep their snapshot.
func (s *CatalogService) DeleteOption(ctx context.Context, id string) error {
	if err := s.repo.DeleteOption(ctx, id); err != nil {
		return err
	}
	s.log.Info("Option deleted", "option", id)
	return nil
}

// SeedFromYAML saves every option in r and returns how many were written
func (s *CatalogService) SeedFromYAML(ctx context.Context, r io.Reader) (int, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return 0, errors.Wrap(err, errors.ErrValidation, "invalid catalog file")
	}

	seen := make(map[string]bool, len(file.Pubs))
	for i, opt := range file.Pubs {
		id := strings.TrimSpace(opt.ID)
		if seen[id] {
			return i, errors.Validationf("duplicate option id %q", id)
		}
		seen[id] = true

		if err := s.SaveOption(ctx, opt); err != nil {
			return i, err
		}
	}
	return len(file.Pubs), nil
}

// SeedFromFile opens path and seeds the catalog from it
func (s *CatalogService) SeedFromFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	n, err := s.SeedFromYAML(ctx, f)
	if err != nil {
		return n, err
	}
	s.log.Info("Catalog seeded", "file", path, "options", n)
	return n, nil
}
