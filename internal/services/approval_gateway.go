package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	config "github.com/inference-gateway/adgate/config"
	audit "github.com/inference-gateway/adgate/internal/audit"
	domain "github.com/inference-gateway/adgate/internal/domain"
	events "github.com/inference-gateway/adgate/internal/infra/events"
	storage "github.com/inference-gateway/adgate/internal/infra/storage"
	logger "github.com/inference-gateway/adgate/internal/logger"
	metrics "github.com/inference-gateway/adgate/internal/metrics"
	zap "go.uber.org/zap"
)

const (
	approvalPrefix    = "approval/"
	preApprovalPrefix = "preapproval/"
	blockedPrefix     = "blocked/"

	// DefaultApprovalTimeout bounds how long a pending approval waits for a decision
	DefaultApprovalTimeout = 30 * time.Minute

	// DefaultApprovalPollInterval is the WaitForDecision polling cadence
	DefaultApprovalPollInterval = 2 * time.Second

	// expiredRetention keeps a timed-out record around long enough for its
	// waiter to observe the expiry
	expiredRetention = time.Hour

	maxResolveAttempts = 5
)

// ApprovalGateway owns the durable approval lifecycle: pending approvals,
// one-shot pre-approvals and standing blocks. All state lives in the shared
// store so a session can resume across restarts and processes.
type ApprovalGateway struct {
	store        storage.Store
	catalog      domain.ToolCatalog
	publisher    domain.EventPublisher
	audit        *audit.Logger
	timeout      time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

// ApprovalGatewayOptions carries the optional collaborators of the gateway
type ApprovalGatewayOptions struct {
	Catalog   domain.ToolCatalog
	Publisher domain.EventPublisher
	Audit     *audit.Logger
}

// NewApprovalGateway creates a gateway over store
func NewApprovalGateway(store storage.Store, cfg config.ApprovalConfig, opts ApprovalGatewayOptions) *ApprovalGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultApprovalPollInterval
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ApprovalGateway{
		store:        store,
		catalog:      opts.Catalog,
		publisher:    publisher,
		audit:        opts.Audit,
		timeout:      timeout,
		pollInterval: poll,
		now:          time.Now,
	}
}

// WithClock replaces the gateway's time source
func (g *ApprovalGateway) WithClock(now func() time.Time) *ApprovalGateway {
	g.now = now
	return g
}

func approvalKey(id string) string {
	return approvalPrefix + id
}

func scopedKey(prefix string, scope domain.ToolScope, toolName string) string {
	return prefix + scope.String() + "/" + toolName
}

func scopePrefix(prefix string, scope domain.ToolScope) string {
	return prefix + scope.String() + "/"
}

// CreatePendingApproval records a dangerous call awaiting a human decision.
// A tool on the block list for any of the request's scopes fails immediately
// with *domain.ToolBlockedError and no record is created.
func (g *ApprovalGateway) CreatePendingApproval(ctx context.Context, req domain.ToolCallRequest, annotation domain.ToolAnnotation) (string, error) {
	blocked, err := g.BlockedEntry(ctx, req.ToolName, req.Scopes()...)
	if err != nil {
		return "", err
	}
	if blocked != nil {
		return "", &domain.ToolBlockedError{ToolName: req.ToolName, Reason: blocked.Reason}
	}

	now := g.now()
	approval := &domain.PendingApproval{
		ID:             uuid.NewString(),
		ToolName:       req.ToolName,
		Params:         req.Params,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Status:         domain.ApprovalPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(g.timeout),
		Annotation:     annotation,
	}

	data, err := json.Marshal(approval)
	if err != nil {
		return "", fmt.Errorf("failed to encode approval: %w", err)
	}
	if _, err := g.store.Create(ctx, approvalKey(approval.ID), data, g.timeout+expiredRetention); err != nil {
		return "", fmt.Errorf("failed to store approval: %w", err)
	}

	metrics.RecordApproval(string(domain.ApprovalPending))
	logger.L(ctx).Info("approval requested",
		zap.String("approval_id", approval.ID),
		zap.String("tool", approval.ToolName),
		zap.String("user_id", approval.UserID),
		zap.String("risk_level", string(annotation.RiskLevel)))
	g.publish(ctx, events.SubjectApprovalCreated, approval)

	return approval.ID, nil
}

// load reads an approval and applies the timeout: a pending record past its
// deadline is moved to expired exactly once, by whichever caller wins the swap.
func (g *ApprovalGateway) load(ctx context.Context, id string) (*domain.PendingApproval, int64, error) {
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		rec, err := g.store.Get(ctx, approvalKey(id))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, 0, &domain.ApprovalNotFoundError{ApprovalID: id}
			}
			return nil, 0, fmt.Errorf("failed to read approval: %w", err)
		}

		var approval domain.PendingApproval
		if err := json.Unmarshal(rec.Value, &approval); err != nil {
			return nil, 0, fmt.Errorf("corrupt approval %s: %w", id, err)
		}

		now := g.now()
		if approval.Status != domain.ApprovalPending || now.Before(approval.ExpiresAt) {
			return &approval, rec.Version, nil
		}

		approval.Status = domain.ApprovalExpired
		approval.ResolvedAt = &now
		next, err := g.swap(ctx, &approval, rec.Version)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, 0, err
		}

		metrics.RecordApproval(string(domain.ApprovalExpired))
		logger.L(ctx).Info("approval expired",
			zap.String("approval_id", id),
			zap.String("tool", approval.ToolName))
		g.audit.ApprovalResolved(&approval)
		g.publish(ctx, events.SubjectApprovalExpired, &approval)
		return &approval, next, nil
	}
	return nil, 0, fmt.Errorf("approval %s: %w", id, storage.ErrVersionConflict)
}

func (g *ApprovalGateway) swap(ctx context.Context, approval *domain.PendingApproval, version int64) (int64, error) {
	data, err := json.Marshal(approval)
	if err != nil {
		return 0, fmt.Errorf("failed to encode approval: %w", err)
	}
	rec, err := g.store.CompareAndSwap(ctx, approvalKey(approval.ID), version, data, g.retention(approval))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, &domain.ApprovalNotFoundError{ApprovalID: approval.ID}
		}
		return 0, err
	}
	return rec.Version, nil
}

// retention keeps terminal records until the waiter consumes them
func (g *ApprovalGateway) retention(approval *domain.PendingApproval) time.Duration {
	ttl := approval.ExpiresAt.Sub(g.now()) + expiredRetention
	if ttl < expiredRetention {
		ttl = expiredRetention
	}
	return ttl
}

// PollApprovalStatus returns the current status without blocking
func (g *ApprovalGateway) PollApprovalStatus(ctx context.Context, id string) (domain.ApprovalStatus, error) {
	approval, _, err := g.load(ctx, id)
	if err != nil {
		return "", err
	}
	return approval.Status, nil
}

// ResolveApproval writes the human decision. Resolving a terminal record
// fails with *domain.ApprovalAlreadyResolvedError. A modify decision requires
// the edited params.
func (g *ApprovalGateway) ResolveApproval(ctx context.Context, id string, decision domain.ApprovalDecision, modifiedParams map[string]any) (*domain.PendingApproval, error) {
	status := decision.Status()
	if status == domain.ApprovalPending {
		return nil, fmt.Errorf("invalid approval decision: %q", decision)
	}
	if decision == domain.DecisionModify && modifiedParams == nil {
		return nil, fmt.Errorf("modified params are required for a modify decision")
	}

	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		approval, version, err := g.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if approval.Status.IsTerminal() {
			return nil, &domain.ApprovalAlreadyResolvedError{ApprovalID: id, Status: approval.Status}
		}

		now := g.now()
		approval.Status = status
		approval.ResolvedAt = &now
		if decision == domain.DecisionModify {
			approval.ModifiedParams = modifiedParams
		}

		if _, err := g.swap(ctx, approval, version); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				continue
			}
			return nil, err
		}

		metrics.RecordApproval(string(status))
		logger.L(ctx).Info("approval resolved",
			zap.String("approval_id", id),
			zap.String("tool", approval.ToolName),
			zap.String("status", string(status)))
		g.audit.ApprovalResolved(approval)
		g.publish(ctx, events.SubjectApprovalResolved, approval)
		return approval, nil
	}
	return nil, fmt.Errorf("approval %s: %w", id, storage.ErrVersionConflict)
}

// GetModifiedParams returns the human-edited params for a modified approval
// and the original params otherwise
func (g *ApprovalGateway) GetModifiedParams(ctx context.Context, id string) (map[string]any, error) {
	approval, _, err := g.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return approval.EffectiveParams(), nil
}

// ConsumeApproval hands a resolved approval to its waiter exactly once and
// removes it from the store. A second consume fails with
// *domain.ApprovalNotFoundError. An expired record is consumed as
// *domain.ApprovalExpiredError.
func (g *ApprovalGateway) ConsumeApproval(ctx context.Context, id string) (*domain.PendingApproval, error) {
	approval, version, err := g.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.Status == domain.ApprovalPending {
		return nil, &domain.ApprovalPendingError{ApprovalID: id}
	}

	if err := g.store.CompareAndDelete(ctx, approvalKey(id), version); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrVersionConflict) {
			return nil, &domain.ApprovalNotFoundError{ApprovalID: id}
		}
		return nil, fmt.Errorf("failed to consume approval: %w", err)
	}

	logger.L(ctx).Debug("approval consumed",
		zap.String("approval_id", id),
		zap.String("status", string(approval.Status)))
	g.publish(ctx, events.SubjectApprovalConsumed, approval)

	if approval.Status == domain.ApprovalExpired {
		return nil, &domain.ApprovalExpiredError{ApprovalID: id, ToolName: approval.ToolName}
	}
	return approval, nil
}

// WaitForDecision polls until the approval leaves pending, the context is
// done, or the approval times out (*domain.ApprovalExpiredError). The record
// is not consumed. onHeartbeat, when set, is called after every pending poll.
func (g *ApprovalGateway) WaitForDecision(ctx context.Context, id string, onHeartbeat func(elapsed time.Duration)) (*domain.PendingApproval, error) {
	start := g.now()
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		approval, _, err := g.load(ctx, id)
		if err != nil {
			return nil, err
		}

		switch approval.Status {
		case domain.ApprovalPending:
			if onHeartbeat != nil {
				onHeartbeat(g.now().Sub(start))
			}
		case domain.ApprovalExpired:
			return nil, &domain.ApprovalExpiredError{ApprovalID: id, ToolName: approval.ToolName}
		default:
			return approval, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetApproval returns the render view of an approval, with schema hints
// from the tool catalog when one is configured
func (g *ApprovalGateway) GetApproval(ctx context.Context, id string) (*domain.ApprovalView, error) {
	approval, _, err := g.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return g.view(approval), nil
}

// GetApprovalForUser is GetApproval limited to the approval's owner. Another
// user's approval is reported as *domain.ApprovalNotFoundError.
func (g *ApprovalGateway) GetApprovalForUser(ctx context.Context, id, userID string) (*domain.ApprovalView, error) {
	approval, _, err := g.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.UserID != userID {
		return nil, g.foreign(ctx, id, userID)
	}
	return g.view(approval), nil
}

// ResolveApprovalForUser is ResolveApproval limited to the approval's owner
func (g *ApprovalGateway) ResolveApprovalForUser(ctx context.Context, id, userID string, decision domain.ApprovalDecision, modifiedParams map[string]any) (*domain.PendingApproval, error) {
	approval, _, err := g.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if approval.UserID != userID {
		return nil, g.foreign(ctx, id, userID)
	}
	return g.ResolveApproval(ctx, id, decision, modifiedParams)
}

func (g *ApprovalGateway) foreign(ctx context.Context, id, userID string) error {
	logger.L(ctx).Warn("approval requested by another user",
		zap.String("approval_id", id),
		zap.String("user_id", userID))
	return &domain.ApprovalNotFoundError{ApprovalID: id}
}

func (g *ApprovalGateway) view(approval *domain.PendingApproval) *domain.ApprovalView {
	v := &domain.ApprovalView{
		ApprovalID: approval.ID,
		ToolName:   approval.ToolName,
		Params:     approval.Params,
		Status:     approval.Status,
		Annotation: approval.Annotation,
		CreatedAt:  approval.CreatedAt,
		ExpiresAt:  approval.ExpiresAt,
	}
	if g.catalog != nil {
		v.SchemaHints = g.catalog.SchemaHints(approval.ToolName)
	}
	return v
}

// ListPendingApprovals returns undecided, unexpired approvals, optionally
// restricted to one user, oldest first
func (g *ApprovalGateway) ListPendingApprovals(ctx context.Context, userID string) ([]*domain.ApprovalView, error) {
	recs, err := g.store.List(ctx, approvalPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}

	now := g.now()
	views := make([]*domain.ApprovalView, 0, len(recs))
	for _, rec := range recs {
		var approval domain.PendingApproval
		if err := json.Unmarshal(rec.Value, &approval); err != nil {
			logger.L(ctx).Warn("skipping corrupt approval record", zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		if approval.Status != domain.ApprovalPending || !now.Before(approval.ExpiresAt) {
			continue
		}
		if userID != "" && approval.UserID != userID {
			continue
		}
		views = append(views, g.view(&approval))
	}

	slices.SortStableFunc(views, func(a, b *domain.ApprovalView) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return views, nil
}

// AddPreApprovedTool grants a one-shot bypass of the approval step for the
// next matching call in scope. A ttl of zero never expires.
func (g *ApprovalGateway) AddPreApprovedTool(ctx context.Context, toolName string, scope domain.ToolScope, ttl time.Duration) error {
	now := g.now()
	entry := domain.PreApprovedToolEntry{ToolName: toolName, Scope: scope, CreatedAt: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		entry.ExpiresAt = &exp
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode pre-approval: %w", err)
	}
	if _, err := g.store.Put(ctx, scopedKey(preApprovalPrefix, scope, toolName), data, ttl); err != nil {
		return fmt.Errorf("failed to store pre-approval: %w", err)
	}

	g.audit.PreApprovalAdded(entry)
	return nil
}

// CheckAndConsumePreApproval reports whether a pre-approval existed and
// deletes it. It returns true at most once per entry, even under concurrency.
func (g *ApprovalGateway) CheckAndConsumePreApproval(ctx context.Context, toolName string, scope domain.ToolScope) (bool, error) {
	key := scopedKey(preApprovalPrefix, scope, toolName)
	rec, err := g.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read pre-approval: %w", err)
	}

	var entry domain.PreApprovedToolEntry
	if err := json.Unmarshal(rec.Value, &entry); err == nil && entry.ExpiresAt != nil && !g.now().Before(*entry.ExpiresAt) {
		if err := g.store.CompareAndDelete(ctx, key, rec.Version); err != nil {
			logger.L(ctx).Debug("failed to drop expired pre-approval", zap.String("key", key), zap.Error(err))
		}
		return false, nil
	}

	if err := g.store.CompareAndDelete(ctx, key, rec.Version); err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrVersionConflict) {
			return false, nil
		}
		return false, fmt.Errorf("failed to consume pre-approval: %w", err)
	}

	g.audit.PreApprovalConsumed(toolName, scope)
	return true, nil
}

// AddBlockedTool places a standing deny on toolName for scope
func (g *ApprovalGateway) AddBlockedTool(ctx context.Context, toolName string, scope domain.ToolScope, reason string) error {
	entry := domain.BlockedToolEntry{ToolName: toolName, Scope: scope, Reason: reason, CreatedAt: g.now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode blocked tool: %w", err)
	}
	if _, err := g.store.Put(ctx, scopedKey(blockedPrefix, scope, toolName), data, 0); err != nil {
		return fmt.Errorf("failed to store blocked tool: %w", err)
	}

	g.audit.ToolBlocked(entry)
	return nil
}

// IsToolBlocked reports whether toolName is blocked for scope
func (g *ApprovalGateway) IsToolBlocked(ctx context.Context, toolName string, scope domain.ToolScope) (bool, error) {
	entry, err := g.BlockedEntry(ctx, toolName, scope)
	return entry != nil, err
}

// BlockedEntry returns the first block entry for toolName across scopes, or nil
func (g *ApprovalGateway) BlockedEntry(ctx context.Context, toolName string, scopes ...domain.ToolScope) (*domain.BlockedToolEntry, error) {
	for _, scope := range scopes {
		rec, err := g.store.Get(ctx, scopedKey(blockedPrefix, scope, toolName))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read blocked tool: %w", err)
		}

		entry := domain.BlockedToolEntry{ToolName: toolName, Scope: scope}
		if err := json.Unmarshal(rec.Value, &entry); err != nil {
			logger.L(ctx).Warn("corrupt blocked tool entry", zap.String("key", rec.Key), zap.Error(err))
		}
		return &entry, nil
	}
	return nil, nil
}

// ListBlockedTools returns the standing denies for scope
func (g *ApprovalGateway) ListBlockedTools(ctx context.Context, scope domain.ToolScope) ([]domain.BlockedToolEntry, error) {
	recs, err := g.store.List(ctx, scopePrefix(blockedPrefix, scope))
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked tools: %w", err)
	}

	entries := make([]domain.BlockedToolEntry, 0, len(recs))
	for _, rec := range recs {
		var entry domain.BlockedToolEntry
		if err := json.Unmarshal(rec.Value, &entry); err != nil {
			entry = domain.BlockedToolEntry{ToolName: strings.TrimPrefix(rec.Key, scopePrefix(blockedPrefix, scope)), Scope: scope}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ClearBlockedTools removes the block on toolName for scope, or every block
// in scope when toolName is empty
func (g *ApprovalGateway) ClearBlockedTools(ctx context.Context, scope domain.ToolScope, toolName string) (int, error) {
	var (
		removed int
		err     error
	)
	if toolName == "" {
		removed, err = g.store.DeletePrefix(ctx, scopePrefix(blockedPrefix, scope))
	} else {
		key := scopedKey(blockedPrefix, scope, toolName)
		if _, getErr := g.store.Get(ctx, key); getErr == nil {
			removed = 1
		}
		err = g.store.Delete(ctx, key)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear blocked tools: %w", err)
	}

	g.audit.BlockedToolsCleared(scope, removed)
	return removed, nil
}

// purgeAfter is when an unconsumed approval may be removed by CleanupExpired.
// Timed-out records stay for expiredRetention so their waiter still observes
// *domain.ApprovalExpiredError rather than a missing record.
func purgeAfter(approval *domain.PendingApproval) time.Time {
	if approval.Status == domain.ApprovalExpired && approval.ResolvedAt != nil {
		return approval.ResolvedAt.Add(expiredRetention)
	}
	return approval.ExpiresAt.Add(expiredRetention)
}

// CleanupExpired purges records past their storage expiry and approvals that
// timed out more than the retention window ago without being consumed
func (g *ApprovalGateway) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := g.store.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired records: %w", err)
	}

	recs, err := g.store.List(ctx, approvalPrefix)
	if err != nil {
		return removed, fmt.Errorf("failed to list approvals: %w", err)
	}

	now := g.now()
	for _, rec := range recs {
		var approval domain.PendingApproval
		if err := json.Unmarshal(rec.Value, &approval); err != nil {
			continue
		}
		if approval.Status != domain.ApprovalExpired && approval.Status != domain.ApprovalPending {
			continue
		}
		if now.Before(purgeAfter(&approval)) {
			continue
		}
		if err := g.store.CompareAndDelete(ctx, rec.Key, rec.Version); err == nil {
			removed++
		}
	}

	if removed > 0 {
		logger.L(ctx).Info("cleaned up expired approval records", zap.Int("removed", removed))
	}
	return removed, nil
}

// Reset removes every approval, pre-approval and block entry
func (g *ApprovalGateway) Reset(ctx context.Context) error {
	for _, prefix := range []string{approvalPrefix, preApprovalPrefix, blockedPrefix} {
		if _, err := g.store.DeletePrefix(ctx, prefix); err != nil {
			return fmt.Errorf("failed to reset %s: %w", strings.TrimSuffix(prefix, "/"), err)
		}
	}
	return nil
}

// publish never fails the caller: lifecycle events are best effort
func (g *ApprovalGateway) publish(ctx context.Context, subject string, approval *domain.PendingApproval) {
	payload := map[string]any{
		"approval_id": approval.ID,
		"tool_name":   approval.ToolName,
		"user_id":     approval.UserID,
		"status":      approval.Status,
	}
	if approval.OrganizationID != "" {
		payload["organization_id"] = approval.OrganizationID
	}
	if err := g.publisher.Publish(ctx, subject, payload); err != nil {
		logger.L(ctx).Warn("failed to publish approval event",
			zap.String("subject", subject),
			zap.String("approval_id", approval.ID),
			zap.Error(err))
	}
}
