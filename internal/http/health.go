package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarysync/internal/connectivity"
	"github.com/mrlokans/librarysync/internal/database"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	db      *database.Database
	checker connectivity.Checker
	version string
}

func NewHealthController(db *database.Database, checker connectivity.Checker, version string) *HealthController {
	return &HealthController{
		db:      db,
		checker: checker,
		version: version,
	}
}

// Status reports local health. The remote API state is informational: the
// library keeps working offline.
func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	switch {
	case h.checker == nil:
		checks["api"] = "not configured"
	case !h.checker.Online():
		checks["api"] = "offline"
	default:
		if _, ok := h.checker.BaseURL(); ok {
			checks["api"] = "online"
		} else {
			checks["api"] = "not configured"
		}
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
