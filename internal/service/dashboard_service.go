package service

import (
	"context"
	"sort"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/rs/zerolog"
)

// dashboardService is the concrete implementation of DashboardService
type dashboardService struct {
	repos  *repository.Repositories
	layout LayoutService
	log    zerolog.Logger
}

func newDashboardService(repos *repository.Repositories, layoutSvc LayoutService, log zerolog.Logger) *dashboardService {
	return &dashboardService{
		repos:  repos,
		layout: layoutSvc,
		log:    log.With().Str("service", "dashboard").Logger(),
	}
}

// Data loads the permits matching filter and aggregates them for the widgets
func (s *dashboardService) Data(ctx context.Context, filter models.PermitFilter) (*models.DashboardData, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	permits, err := s.repos.Permit.Query(ctx, filter)
	if err != nil {
		return nil, apperr.Storage("query permits", err)
	}
	return Aggregate(filter, permits), nil
}

// Dashboard composes the user's layout rendered over the filtered data
func (s *dashboardService) Dashboard(ctx context.Context, userID string, filter models.PermitFilter) (*models.ComposedLayout, error) {
	data, err := s.Data(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.layout.Compose(ctx, userID, data)
}

func (s *dashboardService) FilterOptions(ctx context.Context) (*models.FilterOptions, error) {
	opts, err := s.repos.Permit.FilterOptions(ctx)
	if err != nil {
		return nil, apperr.Storage("load filter options", err)
	}
	return opts, nil
}

// Stats returns table row counts
func (s *dashboardService) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	var err error

	if stats.Permits, err = s.repos.Permit.Count(ctx); err != nil {
		return nil, apperr.Storage("count permits", err)
	}
	if stats.ExportLogs, err = s.repos.ExportLog.Count(ctx); err != nil {
		return nil, apperr.Storage("count export logs", err)
	}
	if stats.LayoutUsers, err = s.repos.Layout.CountUsers(ctx); err != nil {
		return nil, apperr.Storage("count layouts", err)
	}
	if stats.Users, err = s.repos.User.Count(ctx); err != nil {
		return nil, apperr.Storage("count users", err)
	}
	return &stats, nil
}

func validateFilter(filter models.PermitFilter) error {
	if filter.Year < 0 {
		return apperr.Validation("year must not be negative")
	}
	if filter.Month < 0 || filter.Month > 12 {
		return apperr.Validation("month must be between 1 and 12")
	}
	return nil
}

// Aggregate computes KPI totals, the monthly trend and the status
// distribution of permits. Permits must be the rows selected by filter.
func Aggregate(filter models.PermitFilter, permits []*models.Permit) *models.DashboardData {
	data := &models.DashboardData{
		Filter:   filter,
		Trend:    []models.TrendPoint{},
		Statuses: []models.StatusCount{},
		Table:    models.PermitsTable(permits),
	}

	departments := make(map[string]bool)
	periods := make(map[string]int)
	statuses := make(map[string]int)

	for _, p := range permits {
		data.KPIs.TotalPermits++
		data.KPIs.TotalValuation += p.Valuation
		if p.ActionByDept != "" {
			departments[p.ActionByDept] = true
		}
		if len(p.DateFiled) >= 7 {
			periods[p.DateFiled[:7]]++
		}
		status := p.Status
		if status == "" {
			status = "unknown"
		}
		statuses[status]++
	}
	data.KPIs.DepartmentCount = len(departments)

	for period, count := range periods {
		data.Trend = append(data.Trend, models.TrendPoint{Period: period, Count: count})
	}
	sort.Slice(data.Trend, func(i, j int) bool {
		return data.Trend[i].Period < data.Trend[j].Period
	})

	for status, count := range statuses {
		data.Statuses = append(data.Statuses, models.StatusCount{Status: status, Count: count})
	}
	sort.Slice(data.Statuses, func(i, j int) bool {
		if data.Statuses[i].Count != data.Statuses[j].Count {
			return data.Statuses[i].Count > data.Statuses[j].Count
		}
		return data.Statuses[i].Status < data.Statuses[j].Status
	})

	return data
}
