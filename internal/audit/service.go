package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// ExportLimit caps the rows returned by Export.
	ExportLimit = 10000
	// MaxPage bounds the timeline offset; deeper history goes through Export.
	MaxPage = 10000
)

// Repository reads audit rows.
type Repository interface {
	Timeline(ctx context.Context, q Query) ([]Entry, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		return Result{}, httpx.Errorf(httpx.ErrValidation, "page must not exceed %d", MaxPage)
	}
	q := queryFor(filters)
	q.Offset = (page - 1) * pageSize
	q.Limit = pageSize + 1

	rows, err := s.repo.Timeline(ctx, q)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: rows, Paging: paging}, nil
}

// Export returns every entry matching filters up to ExportLimit.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	q := queryFor(filters)
	q.Limit = ExportLimit
	return s.repo.Timeline(ctx, q)
}

func queryFor(f TimelineFilters) Query {
	return Query{
		From:   f.From,
		To:     f.To,
		Actor:  strings.TrimSpace(f.Actor),
		Entity: strings.TrimSpace(f.Entity),
		Action: strings.TrimSpace(f.Action),
	}
}
