// Package catalog loads the portfolio projects and skills from a YAML file and seeds them into storage.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/folio/internal/model"
	"github.com/MarkoPoloResearchLab/folio/internal/storage"
)

var (
	ErrInvalidCatalog = errors.New("catalog: invalid entry")
)

const (
	logEventCatalogSeeded = "catalog_seeded"
)

type technologyList []string

// UnmarshalYAML accepts either a sequence or a single comma separated scalar.
func (list *technologyList) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*list = nil
		return nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		entries := make([]string, 0)
		for _, part := range strings.Split(node.Value, ",") {
			if value := strings.TrimSpace(part); value != "" {
				entries = append(entries, value)
			}
		}
		*list = entries
		return nil
	case yaml.SequenceNode:
		entries := make([]string, 0, len(node.Content))
		for _, child := range node.Content {
			if child == nil {
				continue
			}
			if value := strings.TrimSpace(child.Value); value != "" {
				entries = append(entries, value)
			}
		}
		*list = entries
		return nil
	default:
		return fmt.Errorf("unsupported yaml node kind %d for technologies", node.Kind)
	}
}

// ProjectEntry is one project in the catalog file.
type ProjectEntry struct {
	Title         string         `yaml:"title"`
	Description   string         `yaml:"description"`
	Technologies  technologyList `yaml:"technologies"`
	GithubURL     string         `yaml:"github_url"`
	LiveURL       string         `yaml:"live_url"`
	FeaturedImage string         `yaml:"featured_image"`
	Category      string         `yaml:"category"`
	CreatedAt     time.Time      `yaml:"created_at"`
}

// SkillEntry is one skill in the catalog file.
type SkillEntry struct {
	Name     string `yaml:"name"`
	Level    int    `yaml:"level"`
	Category string `yaml:"category"`
	Icon     string `yaml:"icon"`
}

// File is the decoded catalog.
type File struct {
	Projects []ProjectEntry `yaml:"projects"`
	Skills   []SkillEntry   `yaml:"skills"`
}

// Result counts rows inserted by Seed.
type Result struct {
	ProjectsCreated int
	SkillsCreated   int
}

// Load reads and validates the catalog at path.
func Load(path string) (File, error) {
	contents, readErr := os.ReadFile(path)
	if readErr != nil {
		return File{}, fmt.Errorf("read catalog %s: %w", path, readErr)
	}
	return Parse(bytes.NewReader(contents))
}

// Parse decodes a catalog document, rejecting unknown keys.
func Parse(reader io.Reader) (File, error) {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var file File
	if decodeErr := decoder.Decode(&file); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return File{}, fmt.Errorf("decode catalog: %w", decodeErr)
	}
	if validateErr := file.Validate(); validateErr != nil {
		return File{}, validateErr
	}
	return file, nil
}

// Validate checks required fields, level bounds and uniqueness of titles and names.
func (file File) Validate() error {
	seenTitles := make(map[string]struct{}, len(file.Projects))
	for index, project := range file.Projects {
		title := strings.TrimSpace(project.Title)
		if title == "" {
			return fmt.Errorf("%w: project %d has no title", ErrInvalidCatalog, index)
		}
		if strings.TrimSpace(project.Description) == "" {
			return fmt.Errorf("%w: project %q has no description", ErrInvalidCatalog, title)
		}
		if _, duplicate := seenTitles[title]; duplicate {
			return fmt.Errorf("%w: duplicate project %q", ErrInvalidCatalog, title)
		}
		seenTitles[title] = struct{}{}
	}

	seenNames := make(map[string]struct{}, len(file.Skills))
	for index, skill := range file.Skills {
		name := strings.TrimSpace(skill.Name)
		if name == "" {
			return fmt.Errorf("%w: skill %d has no name", ErrInvalidCatalog, index)
		}
		if skill.Level < model.SkillLevelMin || skill.Level > model.SkillLevelMax {
			return fmt.Errorf("%w: skill %q level %d outside %d-%d", ErrInvalidCatalog, name, skill.Level, model.SkillLevelMin, model.SkillLevelMax)
		}
		if _, duplicate := seenNames[name]; duplicate {
			return fmt.Errorf("%w: duplicate skill %q", ErrInvalidCatalog, name)
		}
		seenNames[name] = struct{}{}
	}
	return nil
}

// Seed inserts catalog entries that are not stored yet. Projects match on title and skills on name;
// existing rows are left untouched.
func Seed(ctx context.Context, database *gorm.DB, logger *zap.Logger, file File) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var result Result
	transactionErr := database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		for _, entry := range file.Projects {
			created, seedErr := seedProject(transaction, entry)
			if seedErr != nil {
				return seedErr
			}
			if created {
				result.ProjectsCreated++
			}
		}
		for _, entry := range file.Skills {
			created, seedErr := seedSkill(transaction, entry)
			if seedErr != nil {
				return seedErr
			}
			if created {
				result.SkillsCreated++
			}
		}
		return nil
	})
	if transactionErr != nil {
		return Result{}, transactionErr
	}
	logger.Info(logEventCatalogSeeded,
		zap.Int("projects_created", result.ProjectsCreated),
		zap.Int("skills_created", result.SkillsCreated),
	)
	return result, nil
}

func seedProject(transaction *gorm.DB, entry ProjectEntry) (bool, error) {
	title := strings.TrimSpace(entry.Title)
	var existingCount int64
	if countErr := transaction.Model(&model.Project{}).Where("title = ?", title).Count(&existingCount).Error; countErr != nil {
		return false, fmt.Errorf("look up project %q: %w", title, countErr)
	}
	if existingCount > 0 {
		return false, nil
	}
	project := model.Project{
		ID:            storage.NewID(),
		Title:         title,
		Description:   strings.TrimSpace(entry.Description),
		Technologies:  []string(entry.Technologies),
		GithubURL:     strings.TrimSpace(entry.GithubURL),
		LiveURL:       strings.TrimSpace(entry.LiveURL),
		FeaturedImage: strings.TrimSpace(entry.FeaturedImage),
		Category:      strings.TrimSpace(entry.Category),
		CreatedAt:     entry.CreatedAt,
	}
	if project.Technologies == nil {
		project.Technologies = []string{}
	}
	if createErr := transaction.Create(&project).Error; createErr != nil {
		return false, fmt.Errorf("create project %q: %w", title, createErr)
	}
	return true, nil
}

func seedSkill(transaction *gorm.DB, entry SkillEntry) (bool, error) {
	name := strings.TrimSpace(entry.Name)
	var existingCount int64
	if countErr := transaction.Model(&model.Skill{}).Where("name = ?", name).Count(&existingCount).Error; countErr != nil {
		return false, fmt.Errorf("look up skill %q: %w", name, countErr)
	}
	if existingCount > 0 {
		return false, nil
	}
	skill := model.Skill{
		ID:       storage.NewID(),
		Name:     name,
		Level:    entry.Level,
		Category: strings.TrimSpace(entry.Category),
		Icon:     strings.TrimSpace(entry.Icon),
	}
	if createErr := transaction.Create(&skill).Error; createErr != nil {
		return false, fmt.Errorf("create skill %q: %w", name, createErr)
	}
	return true, nil
}
