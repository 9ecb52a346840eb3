package watchlist

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calebdris/venue-booking/pkg/common"
	"github.com/calebdris/venue-booking/pkg/logger"
)

// RepositoryInterface defines the storage operations used by the service.
type RepositoryInterface interface {
	Create(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, list List, id uuid.UUID) error
	List(ctx context.Context, list List, limit, offset int) ([]*Entry, int64, error)
	FindMatch(ctx context.Context, list List, input MatchInput) (*Entry, error)
}

// Service manages allow/deny list entries and resolves matches for screening.
type Service struct {
	repo RepositoryInterface
}

// NewService creates a new watchlist service.
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

// AddEntry normalizes and stores a new entry on the given list.
func (s *Service) AddEntry(ctx context.Context, list List, req *CreateEntryRequest, createdBy *uuid.UUID) (*Entry, error) {
	entryType := EntryType(req.Type)
	value := NormalizeValue(entryType, req.Value)
	if value == "" {
		return nil, common.NewBadRequestError("value is empty after normalization", nil)
	}

	entry := &Entry{
		ID:        uuid.New(),
		List:      list,
		Type:      entryType,
		Value:     value,
		Notes:     req.Notes,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		if err == ErrDuplicate {
			return nil, common.NewConflictError("entry already exists on this list", err)
		}
		return nil, common.NewInternalError("failed to create watchlist entry", err)
	}

	logger.Info("watchlist entry added",
		zap.String("list", string(list)),
		zap.String("type", string(entryType)),
		zap.String("value", value))

	return entry, nil
}

// RemoveEntry deletes an entry from the given list.
func (s *Service) RemoveEntry(ctx context.Context, list List, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, list, id); err != nil {
		if err == ErrNotFound {
			return common.NewNotFoundError("watchlist entry not found", err)
		}
		return common.NewInternalError("failed to delete watchlist entry", err)
	}

	logger.Info("watchlist entry removed",
		zap.String("list", string(list)),
		zap.String("entry_id", id.String()))

	return nil
}

// ListEntries returns entries for one list with the total count.
func (s *Service) ListEntries(ctx context.Context, list List, limit, offset int) ([]*Entry, int64, error) {
	entries, total, err := s.repo.List(ctx, list, limit, offset)
	if err != nil {
		return nil, 0, common.NewInternalError("failed to list watchlist entries", err)
	}
	return entries, total, nil
}

// Match resolves a submission against both lists. The allow list is checked
// first so a whitelisted guest is never blocked by a stale deny entry.
func (s *Service) Match(ctx context.Context, input MatchInput) (*Match, error) {
	if allow, err := s.repo.FindMatch(ctx, ListAllow, input); err != nil {
		return nil, err
	} else if allow != nil {
		return &Match{List: ListAllow, Type: allow.Type, Value: allow.Value}, nil
	}

	if deny, err := s.repo.FindMatch(ctx, ListDeny, input); err != nil {
		return nil, err
	} else if deny != nil {
		return &Match{List: ListDeny, Type: deny.Type, Value: deny.Value}, nil
	}

	return nil, nil
}
