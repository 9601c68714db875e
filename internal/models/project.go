package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatusPlanning is the status of a freshly created project.
const ProjectStatusPlanning = "planning"

// Project is the owner of a set of rooms.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProjectSummary is the descriptive part of a project fed to reply generation.
type ProjectSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Summary returns the project's descriptive metadata.
func (p *Project) Summary() ProjectSummary {
	return ProjectSummary{Name: p.Name, Description: p.Description, Status: p.Status}
}
