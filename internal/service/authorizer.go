// Package service contains the business logic layer.
//
// This file implements download authorization: the decision procedure
// that turns "member wants item" into either a short-lived file URL or a
// denial. Display-time checks (Eligible) are advisory; fulfillment
// (Authorize) re-validates everything from scratch so a stale page can
// never oversubscribe a quota.
package service

import (
	"context"
	"log/slog"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/metrics"
	"github.com/google/uuid"
)

// DownloadAuthorizer decides whether a member may obtain a download and
// produces the grant when they may.
type DownloadAuthorizer interface {
	// Eligible answers whether the member-download affordance should be
	// shown for the item. Advisory only.
	Eligible(ctx context.Context, memberID uuid.UUID, download *domain.Download) (*domain.Eligibility, error)

	// Authorize runs the full decision procedure and returns a grant or
	// a typed denial.
	Authorize(ctx context.Context, member *domain.Member, download *domain.Download) (*domain.DownloadGrant, error)
}

type downloadAuthorizer struct {
	entitlements EntitlementService
	quota        QuotaStore
	ledger       PurchaseLedger
	locks        *memberLocks
	logger       *slog.Logger
}

// NewDownloadAuthorizer creates a new DownloadAuthorizer.
func NewDownloadAuthorizer(
	entitlements EntitlementService,
	quota QuotaStore,
	ledger PurchaseLedger,
	logger *slog.Logger,
) DownloadAuthorizer {
	return &downloadAuthorizer{
		entitlements: entitlements,
		quota:        quota,
		ledger:       ledger,
		locks:        newMemberLocks(),
		logger:       logger,
	}
}

// Eligible answers whether the member-download affordance should be shown.
//
// The affordance appears when the member holds a download membership and
// either has quota left or already owns the item (owned items re-download
// without spending quota).
func (s *downloadAuthorizer) Eligible(ctx context.Context, memberID uuid.UUID, download *domain.Download) (*domain.Eligibility, error) {
	if !download.QuotaEligible() {
		return &domain.Eligibility{}, nil
	}

	ent, err := s.entitlements.Resolve(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if !ent.Active {
		return &domain.Eligibility{}, nil
	}

	purchased, err := s.ledger.HasPurchased(ctx, memberID, download.ID)
	if err != nil {
		return nil, err
	}

	return &domain.Eligibility{
		Eligible:  !ent.AtLimit() || purchased,
		Purchased: purchased,
		Remaining: ent.Remaining(),
	}, nil
}

// Authorize runs the full decision procedure.
//
// Owned items are served from their existing ledger record without
// touching the quota. Otherwise a quota slot is spent: the grant is
// recorded, the URL resolved, and the counter debited, all while holding
// the member's lock so concurrent requests from one member serialize.
func (s *downloadAuthorizer) Authorize(ctx context.Context, member *domain.Member, download *domain.Download) (*domain.DownloadGrant, error) {
	const op = "authorizer.authorize"

	if !download.QuotaEligible() {
		return nil, domain.Invalid(op, "this item cannot be downloaded with a membership")
	}

	s.locks.lock(member.ID)
	defer s.locks.unlock(member.ID)

	ent, err := s.entitlements.Resolve(ctx, member.ID)
	if err != nil {
		return nil, err
	}
	if !ent.Active {
		return nil, domain.Forbidden(op, "an active membership with downloads is required")
	}

	purchased, err := s.ledger.HasPurchased(ctx, member.ID, download.ID)
	if err != nil {
		return nil, err
	}

	if purchased {
		return s.fulfillFromLedger(ctx, member, download)
	}

	if ent.AtLimit() {
		s.logger.Info("download denied at limit",
			"member_id", member.ID,
			"download_id", download.ID,
			"allowance", ent.Allowance,
		)
		metrics.DownloadAuthorizations.WithLabelValues("denied").Inc()
		return nil, domain.AtLimit(op)
	}

	return s.spendQuota(ctx, member, download, ent)
}

// fulfillFromLedger serves an owned item from its existing record.
func (s *downloadAuthorizer) fulfillFromLedger(ctx context.Context, member *domain.Member, download *domain.Download) (*domain.DownloadGrant, error) {
	const op = "authorizer.fulfill_from_ledger"

	src, err := s.ledger.FindGrantSource(ctx, member.ID, download.ID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		// HasPurchased said yes but no record was found
		return nil, domain.Internal(nil, op, "purchase record missing for owned item")
	}

	url, err := s.ledger.DownloadURL(ctx, src, download)
	if err != nil {
		return nil, err
	}

	metrics.DownloadAuthorizations.WithLabelValues(string(domain.OutcomeLedger)).Inc()

	return &domain.DownloadGrant{
		URL:           url,
		Outcome:       domain.OutcomeLedger,
		TransactionID: src.ID,
	}, nil
}

// spendQuota records the grant, resolves the URL, then debits the
// counter. The counter moves last: a failure before it leaves the member
// no worse off than before the request.
func (s *downloadAuthorizer) spendQuota(ctx context.Context, member *domain.Member, download *domain.Download, ent *domain.Entitlement) (*domain.DownloadGrant, error) {
	tx, err := s.ledger.CreateQuotaTransaction(ctx, QuotaTransactionParams{
		Member:          member,
		Download:        download,
		SuppressReceipt: true,
	})
	if err != nil {
		return nil, err
	}

	url, err := s.ledger.DownloadURL(ctx, tx, download)
	if err != nil {
		return nil, err
	}

	if _, err := s.quota.Increment(ctx, member.ID, ent.Allowance); err != nil {
		// The ceiling guard only trips here when another process raced
		// past our snapshot. The grant record is already committed; log
		// it so reconciliation can find it.
		s.logger.Warn("quota increment rejected after grant",
			"member_id", member.ID,
			"transaction_id", tx.ID,
			"error", err,
		)
		metrics.DownloadAuthorizations.WithLabelValues("denied").Inc()
		return nil, err
	}

	metrics.DownloadAuthorizations.WithLabelValues(string(domain.OutcomeQuotaSpent)).Inc()
	metrics.QuotaSpendsTotal.Inc()

	s.logger.Info("download fulfilled from quota",
		"member_id", member.ID,
		"download_id", download.ID,
		"transaction_id", tx.ID,
	)

	return &domain.DownloadGrant{
		URL:           url,
		Outcome:       domain.OutcomeQuotaSpent,
		TransactionID: tx.ID,
	}, nil
}
