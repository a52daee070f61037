package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/ability"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
)

// AbilityService compiles the rule set for a viewer. Rules are derived
// fresh per request from the user row and their active entitlements, so
// a revoked entitlement stops granting on the next call.
type AbilityService interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*ability.Ability, error)
	ForAnonymous() *ability.Ability
}

type abilityService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	orgRepo  repos.OrganizationRepo
	entRepo  repos.EntitlementRepo
}

func NewAbilityService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, orgRepo repos.OrganizationRepo, entRepo repos.EntitlementRepo) AbilityService {
	return &abilityService{
		db:       db,
		log:      baseLog.With("service", "AbilityService"),
		userRepo: userRepo,
		orgRepo:  orgRepo,
		entRepo:  entRepo,
	}
}

func (s *abilityService) ForUser(ctx context.Context, userID uuid.UUID) (*ability.Ability, error) {
	if userID == uuid.Nil {
		return s.ForAnonymous(), nil
	}
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// An unknown subject gets the anonymous rules rather than an error,
		// matching how an expired session should read public content.
		return s.ForAnonymous(), nil
	}
	memberships, err := s.orgRepo.GetMembershipsByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	ents, err := s.entRepo.GetActiveByUserID(ctx, nil, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return ability.Build(ability.Input{User: user, Memberships: memberships, Entitlements: ents}), nil
}

func (s *abilityService) ForAnonymous() *ability.Ability {
	return ability.Build(ability.Input{})
}
