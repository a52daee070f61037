package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/apierr"
	"github.com/coursebuilder/backend/internal/events"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/repos"
	"github.com/coursebuilder/backend/internal/types"
)

// CheckoutCompleted is the domain view of a completed Stripe checkout
// session, already verified and decoded by the webhook handler.
type CheckoutCompleted struct {
	SessionID     string
	CustomerID    string
	CustomerEmail string
	PriceID       string
	AmountTotal   int64
	Currency      string
}

type CommerceService interface {
	// HandleCheckoutCompleted records the purchase, grants content access
	// and queues the entitlement sync. Replays of the same session are
	// no-ops.
	HandleCheckoutCompleted(ctx context.Context, in CheckoutCompleted) (*types.Purchase, error)
	HandleRefund(ctx context.Context, sessionID string) error
}

type commerceService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	productRepo  repos.ProductRepo
	purchaseRepo repos.PurchaseRepo
	entitlements EntitlementService
	jobs         JobService
}

func NewCommerceService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, productRepo repos.ProductRepo, purchaseRepo repos.PurchaseRepo, entitlements EntitlementService, jobs JobService) CommerceService {
	return &commerceService{
		db:           db,
		log:          baseLog.With("service", "CommerceService"),
		userRepo:     userRepo,
		productRepo:  productRepo,
		purchaseRepo: purchaseRepo,
		entitlements: entitlements,
		jobs:         jobs,
	}
}

func (s *commerceService) HandleCheckoutCompleted(ctx context.Context, in CheckoutCompleted) (*types.Purchase, error) {
	if in.SessionID == "" {
		return nil, apierr.New(http.StatusBadRequest, "invalid_checkout", fmt.Errorf("checkout session id is required"))
	}
	existing, err := s.purchaseRepo.GetByStripeSessionID(ctx, nil, in.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Stripe redelivers events; the first processing won.
		return existing, nil
	}

	product, err := s.productRepo.GetByStripePriceID(ctx, nil, in.PriceID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apierr.New(http.StatusBadRequest, "unknown_price", fmt.Errorf("no product for price %s", in.PriceID))
	}

	var purchase *types.Purchase
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.ensureUser(ctx, tx, in.CustomerEmail)
		if err != nil {
			return err
		}
		purchase = &types.Purchase{
			ID:               uuid.New(),
			UserID:           user.ID,
			ProductID:        product.ID,
			Status:           types.PurchaseStatusValid,
			StripeSessionID:  in.SessionID,
			StripeCustomerID: in.CustomerID,
			TotalAmount:      in.AmountTotal,
			Currency:         in.Currency,
		}
		if _, err := s.purchaseRepo.Create(ctx, tx, []*types.Purchase{purchase}); err != nil {
			return err
		}
		_, err = s.entitlements.Grant(ctx, tx, GrantInput{
			UserID:     user.ID,
			SourceType: types.EntitlementSourcePurchase,
			SourceID:   purchase.ID,
			ContentIDs: []uuid.UUID{product.ResourceID},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record checkout %s: %w", in.SessionID, err)
	}

	if _, err := s.jobs.Dispatch(ctx, purchase.UserID, events.NewPurchaseCreatedPayload{
		PurchaseID: purchase.ID,
		ProductID:  product.ID,
		UserID:     purchase.UserID,
	}); err != nil {
		s.log.Warn("Purchase job dispatch failed", "error", err, "purchase_id", purchase.ID)
	}
	s.log.Info("Checkout recorded", "purchase_id", purchase.ID, "product_id", product.ID, "session_id", in.SessionID)
	return purchase, nil
}

func (s *commerceService) HandleRefund(ctx context.Context, sessionID string) error {
	purchase, err := s.purchaseRepo.GetByStripeSessionID(ctx, nil, sessionID)
	if err != nil {
		return err
	}
	if purchase == nil {
		return nil
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.purchaseRepo.UpdateStatus(ctx, tx, purchase.ID, types.PurchaseStatusRefunded); err != nil {
			return err
		}
		return s.entitlements.RevokeBySource(ctx, tx, types.EntitlementSourcePurchase, purchase.ID)
	})
	if err != nil {
		return fmt.Errorf("record refund %s: %w", sessionID, err)
	}
	if _, err := s.jobs.Dispatch(ctx, purchase.UserID, events.SyncProductEntitlementsPayload{
		ProductID: purchase.ProductID,
	}); err != nil {
		s.log.Warn("Entitlement sync dispatch failed", "error", err, "product_id", purchase.ProductID)
	}
	s.log.Info("Refund recorded", "purchase_id", purchase.ID, "session_id", sessionID)
	return nil
}

// ensureUser looks up the buyer by email, creating a placeholder account
// for first-time customers. The placeholder password is random; the user
// claims the account through a reset flow.
func (s *commerceService) ensureUser(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apierr.New(http.StatusBadRequest, "invalid_checkout", fmt.Errorf("checkout has no customer email"))
	}
	user, err := s.userRepo.GetByEmail(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user = &types.User{
		ID:       uuid.New(),
		Email:    email,
		Password: string(hash),
		Role:     "user",
	}
	if _, err := s.userRepo.Create(ctx, tx, []*types.User{user}); err != nil {
		return nil, err
	}
	s.log.Info("Placeholder user created for checkout", "user_id", user.ID)
	return user, nil
}
