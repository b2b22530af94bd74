package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"receipt-verification-api/internal/models"
	"receipt-verification-api/internal/response"
	"receipt-verification-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

const (
	// ProjectKey is the gin context key holding the authenticated *models.Project
	ProjectKey = "project"
	// ProjectIDKey is the gin context key holding the authenticated project ID
	ProjectIDKey = "project_id"
)

// ProjectAuthenticator resolves a project from its credentials.
// *services.ProjectService implements it.
type ProjectAuthenticator interface {
	Authenticate(projectID, apiKey string) (*models.Project, error)
}

// ProjectAuthMiddleware provides project authentication middleware
func ProjectAuthMiddleware(projects ProjectAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get project ID and API key
		projectID := c.GetHeader("X-Project-ID")
		apiKey := c.GetHeader("X-API-Key")

		// If not passed via header, try to get from query parameters
		if projectID == "" {
			projectID = c.Query("project_id")
		}
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		if projectID == "" || apiKey == "" {
			response.AbortWithError(c, http.StatusUnauthorized, "Missing project_id or api_key")
			return
		}

		project, err := projects.Authenticate(projectID, apiKey)
		if err != nil {
			logging.Warnf("Project authentication failed - ProjectID: %s, Error: %v", projectID, err)
			response.AbortWithError(c, http.StatusUnauthorized, "Invalid project_id or api_key")
			return
		}

		c.Set(ProjectKey, project)
		c.Set(ProjectIDKey, project.ProjectID)
		c.Set("request_time", time.Now())
		c.Next()
	}
}

// AdminAuthMiddleware guards the admin routes with a static key sent as
// X-Admin-Key. An empty key disables the admin routes entirely.
func AdminAuthMiddleware(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			response.AbortWithError(c, http.StatusForbidden, "Admin API is disabled")
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			response.AbortWithError(c, http.StatusUnauthorized, "Invalid admin key")
			return
		}
		c.Next()
	}
}

// CurrentProject returns the project set by ProjectAuthMiddleware
func CurrentProject(c *gin.Context) (*models.Project, bool) {
	v, ok := c.Get(ProjectKey)
	if !ok {
		return nil, false
	}
	project, ok := v.(*models.Project)
	return project, ok
}
