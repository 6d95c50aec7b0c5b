package service

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/permit-dashboard-api/internal/apperr"
	"github.com/permit-dashboard-api/internal/export"
	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/rs/zerolog"
)

var errAdminOnly = apperr.Forbidden("admin role required")

// adminService is the concrete implementation of AdminService
type adminService struct {
	repos   *repository.Repositories
	layout  LayoutService
	cleanup CleanupService
	etl     ETLService
	users   UserDirectory
	audit   *auditLog
	log     zerolog.Logger
}

// newAdminService creates a new AdminService
func newAdminService(repos *repository.Repositories, layoutSvc LayoutService, cleanup CleanupService, etl ETLService, users UserDirectory, audit *auditLog, log zerolog.Logger) *adminService {
	return &adminService{
		repos:   repos,
		layout:  layoutSvc,
		cleanup: cleanup,
		etl:     etl,
		users:   users,
		audit:   audit,
		log:     log.With().Str("service", "admin").Logger(),
	}
}

// ListUsers returns known users ordered by id
func (s *adminService) ListUsers(ctx context.Context, caller models.Identity, limit int) ([]*models.User, error) {
	if !caller.IsAdmin() {
		return nil, errAdminOnly
	}
	users, err := s.repos.User.List(ctx, limit)
	if err != nil {
		return nil, apperr.Storage("list users", err)
	}
	return users, nil
}

// UpdateUser changes a user's role or activation and drops the cached identity
func (s *adminService) UpdateUser(ctx context.Context, caller models.Identity, userID string, req *models.UpdateUserRequest) (*models.User, error) {
	if !caller.IsAdmin() {
		return nil, errAdminOnly
	}
	if req == nil || (req.Role == nil && req.IsActive == nil) {
		return nil, apperr.Validation("role or is_active is required")
	}
	if req.IsActive != nil && !*req.IsActive && userID == caller.UserID {
		return nil, apperr.Validation("admins cannot deactivate themselves")
	}

	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Storage("load user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user")
	}

	details := map[string]string{}
	if req.Role != nil {
		if !models.ValidRoles[*req.Role] {
			return nil, apperr.Validation("role must be one of: user, viewer, auditor, admin")
		}
		details["role"] = *req.Role
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		details["is_active"] = strconv.FormatBool(*req.IsActive)
		user.IsActive = *req.IsActive
	}

	if err := s.repos.User.Update(ctx, user); err != nil {
		return nil, apperr.Storage("update user", err)
	}
	s.users.Invalidate(userID)
	s.audit.record(ctx, caller.UserID, models.AuditUserUpdate, userID, details)

	s.log.Info().
		Str("admin_id", caller.UserID).
		Str("user_id", userID).
		Str("role", user.Role).
		Bool("is_active", user.IsActive).
		Msg("User updated")

	return user, nil
}

// ResetUserLayout clears another user's saved layout
func (s *adminService) ResetUserLayout(ctx context.Context, caller models.Identity, userID string) error {
	if !caller.IsAdmin() {
		return errAdminOnly
	}
	if userID == "" {
		return apperr.Validation("user id is required")
	}
	if !s.layout.Reset(ctx, userID) {
		return apperr.Storage("reset layout", errors.New("layout reset failed"))
	}
	return nil
}

// ListAudit returns audit events; auditors may read them too
func (s *adminService) ListAudit(ctx context.Context, caller models.Identity, filter models.AuditFilter) ([]*models.AuditEvent, error) {
	if !caller.CanAudit() {
		return nil, apperr.Forbidden("admin or auditor role required")
	}
	events, err := s.repos.Audit.List(ctx, filter)
	if err != nil {
		return nil, apperr.Storage("list audit events", err)
	}
	return events, nil
}

// ListJobRuns returns recent background job runs
func (s *adminService) ListJobRuns(ctx context.Context, caller models.Identity, jobName string, limit int) ([]*models.JobRun, error) {
	if !caller.CanAudit() {
		return nil, apperr.Forbidden("admin or auditor role required")
	}
	runs, err := s.repos.Audit.ListRuns(ctx, jobName, limit)
	if err != nil {
		return nil, apperr.Storage("list job runs", err)
	}
	return runs, nil
}

// RunCleanup runs the retention sweep on demand
func (s *adminService) RunCleanup(ctx context.Context, caller models.Identity) (*export.CleanupResult, error) {
	if !caller.IsAdmin() {
		return nil, errAdminOnly
	}
	return s.cleanup.Run(ctx, caller.UserID)
}

// ImportPermits loads an uploaded permits CSV
func (s *adminService) ImportPermits(ctx context.Context, caller models.Identity, r io.Reader, source string) (*models.ETLResult, error) {
	if !caller.IsAdmin() {
		return nil, errAdminOnly
	}
	result, err := s.etl.Import(ctx, r, source)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, caller.UserID, models.AuditPermitImport, source, map[string]string{
		"total":    strconv.Itoa(result.Total),
		"imported": strconv.Itoa(result.Imported),
		"failed":   strconv.Itoa(result.Failed),
	})
	return result, nil
}
