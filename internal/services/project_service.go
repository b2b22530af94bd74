package services

import (
	"errors"
	"fmt"

	"receipt-verification-api/internal/models"

	"gorm.io/gorm"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project already exists")
)

// ProjectService provides project management operations
type ProjectService struct {
	db *gorm.DB
}

// NewProjectService creates a new project service
func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

// GetProjectByID gets an active project by ID
func (s *ProjectService) GetProjectByID(projectID string) (*models.Project, error) {
	var project models.Project
	result := s.db.Where("project_id = ? AND is_active = ?", projectID, true).First(&project)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, result.Error
	}
	return &project, nil
}

// Authenticate returns the project when apiKey matches it
func (s *ProjectService) Authenticate(projectID, apiKey string) (*models.Project, error) {
	project, err := s.GetProjectByID(projectID)
	if err != nil {
		return nil, err
	}
	if project.APIKey != apiKey || !project.IsActive {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

// GetAllProjects gets all active projects
func (s *ProjectService) GetAllProjects() ([]*models.Project, error) {
	var projects []*models.Project
	result := s.db.Where("is_active = ?", true).Find(&projects)
	if result.Error != nil {
		return nil, result.Error
	}
	return projects, nil
}

// CreateProject creates a new project
func (s *ProjectService) CreateProject(project *models.Project) error {
	var existing models.Project
	result := s.db.Where("project_id = ? OR api_key = ?", project.ProjectID, project.APIKey).First(&existing)
	if result.Error == nil {
		return fmt.Errorf("%w: %s", ErrProjectExists, project.ProjectID)
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	if err := s.db.Create(project).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// UpdateProject updates an existing project
func (s *ProjectService) UpdateProject(projectID string, updates map[string]interface{}) error {
	result := s.db.Model(&models.Project{}).Where("project_id = ?", projectID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// DeleteProject soft deletes a project
func (s *ProjectService) DeleteProject(projectID string) error {
	result := s.db.Where("project_id = ?", projectID).Delete(&models.Project{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}
