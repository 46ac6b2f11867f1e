package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Result wraps one timeline window with paging information.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}

// Service coordinates audit timeline reads.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline fetches one page of audit events. It asks for one row past the
// page to learn whether a next page exists without a count query.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.TimelineWindow(ctx, filters, offset, pageSize+1)
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
	return Result{Rows: rows, Paging: paging}, nil
}

// ExportTimeline renders the filtered timeline as CSV. The export walks
// pages internally; filters.Page is ignored.
func (s *Service) ExportTimeline(ctx context.Context, filters TimelineFilters) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "actor_id", "action", "target_type", "target_id", "details"}); err != nil {
		return nil, err
	}

	const window = 500
	offset := 0
	for {
		rows, err := s.repo.TimelineWindow(ctx, filters, offset, window)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			var details string
			if row.Details != nil {
				raw, _ := json.Marshal(row.Details)
				details = string(raw)
			}
			record := []string{
				row.At.Format(time.RFC3339),
				strconv.FormatInt(row.ActorID, 10),
				row.Action,
				row.TargetType,
				row.TargetID,
				details,
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		if len(rows) < window {
			break
		}
		offset += window
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
