// Package service contains the business logic layer.
//
// This file implements member lookup. Members are owned by the host
// identity system; this service reads them for authentication and
// billing-event routing but never creates or mutates them.
package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/google/uuid"
)

// MemberService defines read operations on members and their sessions.
type MemberService interface {
	// Get returns a member by ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Member, error)

	// GetBySessionToken validates a raw session token and returns the
	// member it belongs to. Expired sessions are deleted on sight.
	GetBySessionToken(ctx context.Context, token string) (*domain.Member, error)

	// GetByStripeCustomerID returns the member linked to a Stripe customer.
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.Member, error)
}

type memberService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewMemberService creates a new MemberService.
func NewMemberService(queries *repository.Queries, logger *slog.Logger) MemberService {
	return &memberService{
		queries: queries,
		logger:  logger,
	}
}

// Get returns a member by ID.
func (s *memberService) Get(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	const op = "member.get"

	row, err := s.queries.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "member", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load member")
	}

	return toDomainMember(row), nil
}

// GetBySessionToken validates a raw session token and returns its member.
//
// Only the SHA-256 hash of the token is stored, so a database leak does
// not expose usable session tokens.
func (s *memberService) GetBySessionToken(ctx context.Context, token string) (*domain.Member, error) {
	const op = "member.get_by_session_token"

	if token == "" {
		return nil, domain.Unauthorized(op, "authentication required")
	}

	hash := sha256.Sum256([]byte(token))
	tokenHash := hex.EncodeToString(hash[:])

	session, err := s.queries.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "invalid or expired session")
		}
		return nil, domain.Internal(err, op, "failed to load session")
	}

	if session.ExpiresAt.Valid && session.ExpiresAt.Time.Before(time.Now()) {
		if err := s.queries.DeleteSession(ctx, session.ID); err != nil {
			s.logger.Warn("failed to delete expired session",
				"session_id", session.ID,
				"error", err,
			)
		}
		return nil, domain.Unauthorized(op, "invalid or expired session")
	}

	return s.Get(ctx, session.MemberID)
}

// GetByStripeCustomerID returns the member linked to a Stripe customer.
func (s *memberService) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.Member, error) {
	const op = "member.get_by_stripe_customer"

	row, err := s.queries.GetMemberByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "member", customerID)
		}
		return nil, domain.Internal(err, op, "failed to load member")
	}

	return toDomainMember(row), nil
}

func toDomainMember(row repository.Member) *domain.Member {
	m := &domain.Member{
		ID:    row.ID,
		Email: row.Email,
	}
	if row.Name.Valid {
		m.Name = row.Name.String
	}
	if row.StripeCustomerID.Valid {
		m.StripeCustomerID = row.StripeCustomerID.String
	}
	if row.CreatedAt.Valid {
		m.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		m.UpdatedAt = row.UpdatedAt.Time
	}
	return m
}
