package domain

import (
	shared "github.com/davicafu/civicreport/internal/shared/domain"
)

const (
	FieldIssueID       = "issueId"
	FieldIssueCategory = "issueCategory"
	FieldAuthorID      = "authorId"
)

type IssueCriteria struct {
	IssueID string
}

func (c IssueCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldIssueID, Op: shared.OpEq, Value: c.IssueID}}
}

type AuthorCriteria struct {
	AuthorID string
}

func (c AuthorCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldAuthorID, Op: shared.OpEq, Value: c.AuthorID}}
}

type IssueCategoryCriteria struct {
	Category string
}

func (c IssueCategoryCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: FieldIssueCategory, Op: shared.OpEq, Value: c.Category}}
}
