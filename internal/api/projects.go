package api

import (
	"errors"
	"net/http"

	"receipt-verification-api/internal/models"
	"receipt-verification-api/internal/response"
	"receipt-verification-api/internal/services"
	"receipt-verification-api/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateProjectRequest represents create project request
type CreateProjectRequest struct {
	ProjectID              string `json:"project_id" binding:"required"`
	ProjectName            string `json:"project_name" binding:"required"`
	APIKey                 string `json:"api_key"` // generated when empty
	Description            string `json:"description"`
	ContactEmail           string `json:"contact_email"`
	BundleID               string `json:"bundle_id"`
	SharedSecret           string `json:"shared_secret"`
	ExcludeOldTransactions *bool  `json:"exclude_old_transactions"`
}

// UpdateProjectRequest represents update project request
type UpdateProjectRequest struct {
	ProjectName            string  `json:"project_name"`
	Description            string  `json:"description"`
	ContactEmail           string  `json:"contact_email"`
	IsActive               *bool   `json:"is_active"`
	BundleID               *string `json:"bundle_id"`
	SharedSecret           *string `json:"shared_secret"`
	ExcludeOldTransactions *bool   `json:"exclude_old_transactions"`
}

// GetProjects gets all projects
func (h *Handler) GetProjects(c *gin.Context) {
	projects, err := h.Projects.GetAllProjects()
	if err != nil {
		logging.Errorf("Failed to get projects: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Failed to get projects")
		return
	}
	response.SuccessJSON(c, projects)
}

// GetProject gets one project
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.Projects.GetProjectByID(c.Param("id"))
	if err != nil {
		h.projectError(c, err)
		return
	}
	response.SuccessJSON(c, project)
}

// CreateProject creates a new project
func (h *Handler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	if req.APIKey == "" {
		req.APIKey = uuid.NewString()
	}

	project := &models.Project{
		ProjectID:              req.ProjectID,
		ProjectName:            req.ProjectName,
		APIKey:                 req.APIKey,
		Description:            req.Description,
		ContactEmail:           req.ContactEmail,
		BundleID:               req.BundleID,
		SharedSecret:           req.SharedSecret,
		ExcludeOldTransactions: req.ExcludeOldTransactions,
		IsActive:               true,
	}

	if err := h.Projects.CreateProject(project); err != nil {
		h.projectError(c, err)
		return
	}

	logging.Infof("Project created - ProjectID: %s", project.ProjectID)
	// The key is only ever returned here
	response.CreatedJSON(c, gin.H{
		"project": project,
		"api_key": project.APIKey,
	})
}

// UpdateProject updates an existing project
func (h *Handler) UpdateProject(c *gin.Context) {
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorJSON(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	// Build update map
	updates := make(map[string]interface{})
	if req.ProjectName != "" {
		updates["project_name"] = req.ProjectName
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.ContactEmail != "" {
		updates["contact_email"] = req.ContactEmail
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.BundleID != nil {
		updates["bundle_id"] = *req.BundleID
	}
	if req.SharedSecret != nil {
		updates["shared_secret"] = *req.SharedSecret
	}
	if req.ExcludeOldTransactions != nil {
		updates["exclude_old_transactions"] = *req.ExcludeOldTransactions
	}
	if len(updates) == 0 {
		response.ErrorJSON(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	if err := h.Projects.UpdateProject(c.Param("id"), updates); err != nil {
		h.projectError(c, err)
		return
	}
	response.SuccessJSON(c, gin.H{"project_id": c.Param("id")})
}

// DeleteProject deletes a project
func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.Projects.DeleteProject(c.Param("id")); err != nil {
		h.projectError(c, err)
		return
	}
	logging.Infof("Project deleted - ProjectID: %s", c.Param("id"))
	response.SuccessJSON(c, gin.H{"project_id": c.Param("id")})
}

// GetProjectStats gets the verification counters of any project
func (h *Handler) GetProjectStats(c *gin.Context) {
	h.writeStats(c, c.Param("id"))
}

func (h *Handler) projectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		response.ErrorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrProjectExists):
		response.ErrorJSON(c, http.StatusConflict, err.Error())
	default:
		logging.Errorf("Project operation failed: %v", err)
		response.ErrorJSON(c, http.StatusInternalServerError, "Project operation failed")
	}
}
