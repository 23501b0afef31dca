package user

import (
	"context"
	"errors"
	"strconv"

	"smmstore/internal/audit"
)

var ErrInvalidRole = errors.New("invalid role")

type Service interface {
	GetUser(ctx context.Context, id int) (*User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	SetUserActive(ctx context.Context, actorID, targetID int, active bool) error
	ChangeRole(ctx context.Context, actorID, targetID int, role string) error
}

type service struct {
	repo  Store
	audit audit.Recorder
}

func NewService(repo Store, auditLog audit.Recorder) Service {
	return &service{repo: repo, audit: auditLog}
}

func (s *service) GetUser(ctx context.Context, id int) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	return s.repo.List(ctx, limit, offset)
}

// canManage enforces the admin hierarchy: a sub_admin may only manage
// plain users, a super_admin may manage anyone but themselves being
// demoted is still their own call.
func canManage(actorRole, targetRole string) bool {
	switch actorRole {
	case RoleSuperAdmin:
		return true
	case RoleSubAdmin:
		return targetRole == RoleUser
	default:
		return false
	}
}

func (s *service) SetUserActive(ctx context.Context, actorID, targetID int, active bool) error {
	actorRole, actorActive, err := s.repo.RoleAndActive(ctx, actorID)
	if err != nil {
		return err
	}
	if !actorActive || !IsAdminRole(actorRole) {
		return ErrForbidden
	}

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return err
	}

	if !canManage(actorRole, target.Role) {
		return ErrForbidden
	}

	if target.IsActive == active {
		return nil
	}

	if err := s.repo.SetActive(ctx, targetID, active); err != nil {
		return err
	}

	s.audit.Record(ctx, actorID, "user.set_active", "user", targetID,
		strconv.FormatBool(target.IsActive), strconv.FormatBool(active))

	return nil
}

func (s *service) ChangeRole(ctx context.Context, actorID, targetID int, role string) error {
	if role != RoleUser && role != RoleSubAdmin && role != RoleSuperAdmin {
		return ErrInvalidRole
	}

	actorRole, actorActive, err := s.repo.RoleAndActive(ctx, actorID)
	if err != nil {
		return err
	}
	if !actorActive || actorRole != RoleSuperAdmin {
		return ErrForbidden
	}

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.Role == role {
		return nil
	}

	if err := s.repo.SetRole(ctx, targetID, role); err != nil {
		return err
	}

	s.audit.Record(ctx, actorID, "user.change_role", "user", targetID, target.Role, role)

	return nil
}
