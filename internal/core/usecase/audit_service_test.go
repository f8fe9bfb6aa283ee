package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stocktrail/stocktrail/internal/core/domain"
)

type stubAuditRepo struct {
	listFn func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
	calls  int
}

func (s *stubAuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	s.calls++
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

func TestAuditListDeniedForViewer(t *testing.T) {
	repo := &stubAuditRepo{}
	svc := NewAuditService(repo)

	_, err := svc.List(context.Background(), viewerSession(), domain.AuditFilter{})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("repo must not be reached on denial, got %d calls", repo.calls)
	}
}

func TestAuditListClampsLimit(t *testing.T) {
	repo := &stubAuditRepo{listFn: func(_ context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
		if filter.Limit != 100 {
			t.Fatalf("expected default limit 100, got %d", filter.Limit)
		}
		if filter.Skip != 0 {
			t.Fatalf("expected negative skip reset to 0, got %d", filter.Skip)
		}
		return nil, nil
	}}
	svc := NewAuditService(repo)

	if _, err := svc.List(context.Background(), adminSession(), domain.AuditFilter{Skip: -1}); err != nil {
		t.Fatalf("list: %v", err)
	}
}

func TestAuditListForItemSetsFilter(t *testing.T) {
	repo := &stubAuditRepo{listFn: func(_ context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
		if filter.ItemID != 42 {
			t.Fatalf("expected item filter 42, got %d", filter.ItemID)
		}
		return []domain.AuditEntry{{ID: 1, ItemID: 42}}, nil
	}}
	svc := NewAuditService(repo)

	entries, err := svc.ListForItem(context.Background(), domain.Session{UserID: 3, Role: domain.RoleManager}, 42)
	if err != nil {
		t.Fatalf("list for item: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}
