package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/davicafu/civicreport/internal/shared/domain"
	sharedBus "github.com/davicafu/civicreport/internal/shared/infra/platform/bus"
	sharedQuery "github.com/davicafu/civicreport/internal/shared/infra/platform/query"
)

const maxRating = 5

// Comment es una reseña sobre una incidencia. Guarda la categoría de la
// incidencia para poder filtrar la bandeja de administración sin joins.
type Comment struct {
	ID            string    `json:"id"`
	IssueID       string    `json:"issueId"`
	IssueCategory string    `json:"issueCategory"`
	AuthorID      string    `json:"authorId"`
	AuthorRole    string    `json:"authorRole"`
	Text          string    `json:"text"`
	Rating        int       `json:"rating,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func NewComment(issueID, issueCategory, authorID, authorRole, text string, rating int) (*Comment, error) {
	now := sharedDomain.Now()
	c := &Comment{
		ID:            sharedDomain.NewID(),
		IssueID:       issueID,
		IssueCategory: issueCategory,
		AuthorID:      authorID,
		AuthorRole:    authorRole,
		Text:          strings.TrimSpace(text),
		Rating:        rating,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Comment) Validate() error {
	if c.Text == "" {
		return ErrTextRequired
	}
	if c.Rating < 0 || c.Rating > maxRating {
		return ErrInvalidRating
	}
	return nil
}

// Edit cambia el texto y, si viene, la valoración.
func (c *Comment) Edit(text *string, rating *int) error {
	if text != nil {
		c.Text = strings.TrimSpace(*text)
	}
	if rating != nil {
		c.Rating = *rating
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.UpdatedAt = sharedDomain.Now()
	return nil
}

func (c *Comment) PageKey(sortBy string) (sharedQuery.PageKey, bool) {
	switch sortBy {
	case "createdAt":
		return sharedQuery.PageKey{At: c.CreatedAt, ID: c.ID}, true
	case "updatedAt":
		return sharedQuery.PageKey{At: c.UpdatedAt, ID: c.ID}, true
	}
	return sharedQuery.PageKey{}, false
}

// PartitionKey agrupa los eventos por incidencia.
func (c *Comment) PartitionKey() string {
	return c.IssueID
}

var (
	_ sharedBus.Keyer      = (*Comment)(nil)
	_ sharedQuery.Pageable = (*Comment)(nil)
)
