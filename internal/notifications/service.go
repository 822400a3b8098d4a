package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/barq-desk/barq/internal/requests"
)

// inboxSize caps GET /notifications.
const inboxSize = 50

// Service writes and reads notifications.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// NotifyDecision tells the maker of a request how it was decided.
func (s *Service) NotifyDecision(ctx context.Context, evt requests.DecisionEvent) (int64, error) {
	kind := KindRequestRejected
	if evt.Status == requests.StatusApproved {
		kind = KindRequestApproved
	}
	requestID := evt.RequestID
	id, err := s.repo.Insert(ctx, Notification{
		UserID:    evt.MakerID,
		RequestID: &requestID,
		Kind:      kind,
		Message:   fmt.Sprintf("Your request #%d was %s by %s.", evt.RequestID, evt.Status, evt.Checker),
		CreatedAt: s.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("notifications: insert: %w", err)
	}
	s.logger.Info("decision notification stored",
		slog.Int64("notification_id", id),
		slog.Int64("request_id", evt.RequestID),
		slog.Int64("user_id", evt.MakerID))
	return id, nil
}

// Inbox returns the latest notifications of userID and its unread count.
func (s *Service) Inbox(ctx context.Context, userID int64) (Inbox, error) {
	items, err := s.repo.ListForUser(ctx, userID, inboxSize)
	if err != nil {
		return Inbox{}, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return Inbox{}, err
	}
	return Inbox{Items: items, Unread: unread}, nil
}

// MarkAllRead marks every unread notification of userID as read.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}
