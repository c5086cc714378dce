package api

import (
	"fmt"
	"time"

	"github.com/okian/talentboard/internal/domain/model"
)

const dateLayout = time.DateOnly

// ProfileRequest is the body of POST /talents and PUT /talents/me. An empty
// name is left to the registry so it is reported as empty_name.
type ProfileRequest struct {
	Name            string   `json:"name" validate:"max=256"`
	Gender          string   `json:"gender,omitempty" validate:"max=64"`
	Birthday        string   `json:"birthday,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PhysicalAddress string   `json:"physical_address,omitempty" validate:"max=512"`
	GovernmentID    string   `json:"government_id,omitempty" validate:"max=128"`
	Career          string   `json:"career,omitempty" validate:"max=2048"`
	Certifications  []string `json:"certifications,omitempty" validate:"max=64,dive,max=256"`
}

// Profile converts the request into a domain profile.
func (p ProfileRequest) Profile() (model.Profile, error) {
	var birthday time.Time
	if p.Birthday != "" {
		var err error
		if birthday, err = time.Parse(dateLayout, p.Birthday); err != nil {
			return model.Profile{}, fmt.Errorf("birthday: %w", err)
		}
	}
	return model.Profile{
		Name:            p.Name,
		Gender:          p.Gender,
		Birthday:        birthday,
		PhysicalAddress: p.PhysicalAddress,
		GovernmentID:    p.GovernmentID,
		Career:          p.Career,
		Certifications:  p.Certifications,
	}, nil
}

// CreateProjectRequest is the body of POST /projects. Budget is a decimal
// string of wei.
type CreateProjectRequest struct {
	Title          string       `json:"title" validate:"max=256"`
	Description    string       `json:"description" validate:"max=8192"`
	Budget         model.Amount `json:"budget"`
	RequiredSkills []string     `json:"required_skills,omitempty" validate:"max=64,dive,max=128"`
	Deadline       time.Time    `json:"deadline"`
}

// Draft converts the request into a project draft.
func (p CreateProjectRequest) Draft() model.ProjectDraft {
	return model.ProjectDraft{
		Title:          p.Title,
		Description:    p.Description,
		Budget:         p.Budget,
		RequiredSkills: p.RequiredSkills,
		Deadline:       p.Deadline,
	}
}

// AssignRequest is the body of POST /projects/{id}/assign.
type AssignRequest struct {
	Talent string `json:"talent" validate:"required,eth_addr"`
}
