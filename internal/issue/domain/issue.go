package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

// Issue es una incidencia reportada por un ciudadano.
type Issue struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Division    string    `json:"division"`
	Location    string    `json:"location,omitempty"`
	Images      []string  `json:"images,omitempty"`
	Status      string    `json:"status"`
	AdminNote   string    `json:"adminNote,omitempty"`
	ReporterID  string    `json:"reporterId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// ReadBy son los administradores que ya la han visto. No se expone ni se cachea.
	ReadBy []string `json:"-"`
}

// NewIssue crea una incidencia pendiente.
func NewIssue(reporterID, title, description, category, division, location string, images []string) (*Issue, error) {
	now := sharedDomain.Now()
	i := &Issue{
		ID:          sharedDomain.NewID(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Category:    category,
		Division:    strings.TrimSpace(division),
		Location:    strings.TrimSpace(location),
		Images:      images,
		Status:      sharedDomain.StatusPending,
		ReporterID:  reporterID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return i, nil
}

// Validate comprueba los campos obligatorios.
func (i *Issue) Validate() error {
	switch {
	case i.Title == "":
		return ErrTitleRequired
	case !sharedDomain.ValidCategory(i.Category):
		return ErrInvalidCategory
	case i.Division == "":
		return ErrDivisionRequired
	case !sharedDomain.ValidStatus(i.Status):
		return ErrInvalidStatus
	}
	return nil
}

// --- Métodos de dominio ---

// Update aplica los cambios no nulos.
func (i *Issue) Update(title, description, division, location *string) error {
	if title != nil {
		i.Title = strings.TrimSpace(*title)
	}
	if description != nil {
		i.Description = strings.TrimSpace(*description)
	}
	if division != nil {
		i.Division = strings.TrimSpace(*division)
	}
	if location != nil {
		i.Location = strings.TrimSpace(*location)
	}
	if err := i.Validate(); err != nil {
		return err
	}
	i.UpdatedAt = sharedDomain.Now()
	return nil
}

// ChangeStatus mueve la incidencia a otro estado con una nota opcional del administrador.
func (i *Issue) ChangeStatus(status, note string) error {
	if !sharedDomain.ValidStatus(status) {
		return ErrInvalidStatus
	}
	i.Status = status
	if note = strings.TrimSpace(note); note != "" {
		i.AdminNote = note
	}
	i.UpdatedAt = sharedDomain.Now()
	return nil
}

// IsReadBy indica si el usuario ya la marcó como leída.
func (i *Issue) IsReadBy(userID string) bool {
	for _, id := range i.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// PageKey implementa sharedQuery.Pageable.
func (i *Issue) PageKey(sortBy string) (sharedQuery.PageKey, bool) {
	switch sortBy {
	case "createdAt":
		return sharedQuery.PageKey{At: i.CreatedAt, ID: i.ID}, true
	case "updatedAt":
		return sharedQuery.PageKey{At: i.UpdatedAt, ID: i.ID}, true
	}
	return sharedQuery.PageKey{}, false
}

func (i *Issue) PartitionKey() string {
	return i.ID
}

// IssueRef es lo que otros contextos necesitan saber de una incidencia.
type IssueRef struct {
	ID         string `json:"id"`
	ReporterID string `json:"reporterId"`
	Category   string `json:"category"`
	Division   string `json:"division"`
	Status     string `json:"status"`
}

func (i *Issue) Ref() IssueRef {
	return IssueRef{ID: i.ID, ReporterID: i.ReporterID, Category: i.Category, Division: i.Division, Status: i.Status}
}

var (
	_ sharedBus.Keyer      = (*Issue)(nil)
	_ sharedQuery.Pageable = (*Issue)(nil)
)
