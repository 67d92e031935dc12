// Package service maps gateway routes onto backend store queries.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"portfolio-api-go/internal/model"
)

// Store is the backend the service queries.
type Store interface {
	Select(ctx context.Context, spec *model.QuerySpec) (*model.Result, error)
	Insert(ctx context.Context, table string, row any) (*model.Result, error)
}

const (
	tableInfo     = "rahmadip"
	tableTools    = "tools"
	tableSpace    = "space"
	tableProjects = "projects"
	tableMessage  = "message"

	// relatedLimit caps how many other projects are suggested.
	relatedLimit = 5
)

var (
	displayed = model.Eq("display", "true")
	oldest    = &model.Order{Column: "id", Ascending: true}
	newest    = &model.Order{Column: "id", Ascending: false}
)

// Static listings. Specs are never mutated after init.
var (
	infoQuery = model.QuerySpec{
		Table:   tableInfo,
		Filters: []model.Filter{displayed},
		Order:   oldest,
	}
	toolsQuery = model.QuerySpec{
		Table:   tableTools,
		Columns: []string{"section", "name", "path", "viewbox"},
		Filters: []model.Filter{displayed},
		Order:   oldest,
	}
	spaceQuery = model.QuerySpec{
		Table:   tableSpace,
		Columns: []string{"path", "viewbox"},
		Filters: []model.Filter{displayed},
		Order:   oldest,
	}
	projectsQuery = model.QuerySpec{
		Table:   tableProjects,
		Columns: []string{"path", "title", "type", "tools", "tags", "thumbnail"},
		Filters: []model.Filter{displayed},
		Order:   newest,
	}
)

// ContentService runs the one store call behind each route.
type ContentService struct {
	store  Store
	logger *slog.Logger
}

// NewContentService creates a ContentService.
func NewContentService(store Store, logger *slog.Logger) *ContentService {
	return &ContentService{
		store:  store,
		logger: logger.With("component", "content_service"),
	}
}

// Info lists the displayed rows of the info table, oldest first.
func (s *ContentService) Info(ctx context.Context) (*model.Result, error) {
	return s.query(ctx, &infoQuery)
}

// Tools lists displayed tool icons, oldest first.
func (s *ContentService) Tools(ctx context.Context) (*model.Result, error) {
	return s.query(ctx, &toolsQuery)
}

// ToolsByName returns the icons whose name is in the comma-separated list.
func (s *ContentService) ToolsByName(ctx context.Context, names string) (*model.Result, error) {
	return s.query(ctx, ToolsByNameQuery(names))
}

// Space lists displayed space items, oldest first.
func (s *ContentService) Space(ctx context.Context) (*model.Result, error) {
	return s.query(ctx, &spaceQuery)
}

// Projects lists displayed project summaries, newest first.
func (s *ContentService) Projects(ctx context.Context) (*model.Result, error) {
	return s.query(ctx, &projectsQuery)
}

// Project returns the single displayed project stored under path.
func (s *ContentService) Project(ctx context.Context, path string) (*model.Result, error) {
	return s.query(ctx, ProjectQuery(path))
}

// RelatedProjects returns up to five displayed projects other than path.
func (s *ContentService) RelatedProjects(ctx context.Context, path string) (*model.Result, error) {
	return s.query(ctx, RelatedProjectsQuery(path))
}

// SubmitMessage stores a visitor message as received.
func (s *ContentService) SubmitMessage(ctx context.Context, msg *model.Message) (*model.Result, error) {
	res, err := s.store.Insert(ctx, tableMessage, msg)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", tableMessage, err)
	}
	s.logger.Debug("message stored", "status", res.Status)
	return res, nil
}

func (s *ContentService) query(ctx context.Context, spec *model.QuerySpec) (*model.Result, error) {
	res, err := s.store.Select(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", spec.Table, err)
	}
	return res, nil
}

// ToolsByNameQuery builds the lookup for a comma-separated list of tool names.
// Names are split on commas only; no trimming or validation happens here.
func ToolsByNameQuery(names string) *model.QuerySpec {
	return &model.QuerySpec{
		Table:   tableTools,
		Columns: []string{"name", "path", "viewbox"},
		Filters: []model.Filter{model.In("name", strings.Split(names, ","))},
	}
}

// ProjectQuery builds the single-row lookup for one project page.
func ProjectQuery(path string) *model.QuerySpec {
	return &model.QuerySpec{
		Table:   tableProjects,
		Columns: []string{"title", "type", "desc", "tags", "links", "tools", "contents", "basis"},
		Filters: []model.Filter{model.Eq("path", path), displayed},
		Single:  true,
	}
}

// RelatedProjectsQuery builds the "other projects" suggestion list for path.
func RelatedProjectsQuery(path string) *model.QuerySpec {
	return &model.QuerySpec{
		Table:   tableProjects,
		Columns: []string{"path", "title", "type", "thumbnail"},
		Filters: []model.Filter{displayed, model.Neq("path", path)},
		Limit:   relatedLimit,
	}
}
