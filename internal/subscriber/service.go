// Package subscriber は購読者の登録・解除・学習進捗の更新を提供する。
package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/brandhub/internal/metrics"
	"github.com/hitoshi/brandhub/internal/model"
	"github.com/hitoshi/brandhub/internal/repository"
)

// 購読イベント名。メトリクスのラベルに使う。
const (
	eventSubscribe   = "subscribe"
	eventUnsubscribe = "unsubscribe"
	eventResubscribe = "resubscribe"
)

// Store は購読者サービスが利用するデータストア操作。
type Store interface {
	repository.SubscriberRepository
	GetSettings(ctx context.Context) (*model.Settings, error)
}

// SubscribeInput は新規購読の入力。
type SubscribeInput struct {
	Email string     `json:"email"`
	Name  string     `json:"name,omitempty"`
	Plan  model.Plan `json:"plan,omitempty"`
}

// Service は購読者に関するビジネスロジックを提供する。
type Service struct {
	store   Store
	metrics metrics.MetricsCollector
	now     func() time.Time

	// progressMu は進捗の読み取りから書き戻しまでを直列化する。
	// 同一プロセス内の同時更新で一方の変更が失われないようにする。
	progressMu sync.Mutex
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(store Store, m metrics.MetricsCollector) *Service {
	return &Service{
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

// Subscribe は新しい購読者を登録する。
// 新規登録が停止中、または有効な購読者数が上限に達している場合はErrRegistrationClosedを返す。
// 同じメールアドレスが既に存在する場合は状態に関わらずErrDuplicateEmailを返す。
func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) (*model.Subscriber, error) {
	email, err := normalizeAddress(in.Email)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if !settings.AllowRegistrations {
		return nil, model.ErrRegistrationClosed
	}
	if settings.MaxSubscribers > 0 {
		subs, err := s.store.ListSubscribers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list subscribers: %w", err)
		}
		if countActive(subs) >= settings.MaxSubscribers {
			return nil, model.ErrRegistrationClosed
		}
	}

	plan := in.Plan
	if plan == "" {
		plan = model.PlanFree
	}
	enabled := true
	now := s.now()
	sub := &model.Subscriber{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Plan:         plan,
		Status:       model.StatusActive,
		SubscribedAt: now,
		LastActive:   now,
		Preferences: model.Preferences{
			Newsletter:    &enabled,
			Notifications: &enabled,
			Theme:         "light",
		},
		Progress: model.Progress{
			CompletedTutorials: []string{},
			BookmarkedPosts:    []string{},
			SkillLevel:         model.SkillBeginner,
		},
	}

	if err := s.store.CreateSubscriber(ctx, sub); err != nil {
		return nil, err
	}

	s.record(eventSubscribe)
	slog.Info("subscriber created",
		slog.String("subscriber_id", sub.ID),
		slog.String("plan", string(sub.Plan)),
	)
	return sub, nil
}

// Unsubscribe は購読を解除する。レコードは削除せず、状態と理由を記録する。
func (s *Service) Unsubscribe(ctx context.Context, email, reason string) (*model.Subscriber, error) {
	status := model.StatusUnsubscribed
	now := s.now()
	reason = strings.TrimSpace(reason)

	sub, err := s.store.UpdateSubscriber(ctx, email, model.SubscriberPatch{
		Status:            &status,
		UnsubscribedAt:    &now,
		UnsubscribeReason: &reason,
		LastActive:        &now,
	})
	if err != nil {
		return nil, err
	}

	s.record(eventUnsubscribe)
	slog.Info("subscriber unsubscribed", slog.String("subscriber_id", sub.ID))
	return sub, nil
}

// Resubscribe は購読を再開し、解除理由を消去する。
func (s *Service) Resubscribe(ctx context.Context, email string) (*model.Subscriber, error) {
	status := model.StatusActive
	now := s.now()
	cleared := ""

	sub, err := s.store.UpdateSubscriber(ctx, email, model.SubscriberPatch{
		Status:            &status,
		ResubscribedAt:    &now,
		UnsubscribeReason: &cleared,
		LastActive:        &now,
	})
	if err != nil {
		return nil, err
	}

	s.record(eventResubscribe)
	slog.Info("subscriber resubscribed", slog.String("subscriber_id", sub.ID))
	return sub, nil
}

// UpdatePreferences は通知・表示設定を丸ごと置き換える。
func (s *Service) UpdatePreferences(ctx context.Context, email string, prefs model.Preferences) (*model.Subscriber, error) {
	now := s.now()
	return s.store.UpdateSubscriber(ctx, email, model.SubscriberPatch{
		Preferences: &prefs,
		LastActive:  &now,
	})
}

// CompleteTutorial はチュートリアルの完了を記録する。
// 完了済みのチュートリアルを再度指定した場合はカウンタを増やさない。
func (s *Service) CompleteTutorial(ctx context.Context, email, tutorialID string) (*model.Subscriber, error) {
	tutorialID = strings.TrimSpace(tutorialID)
	if tutorialID == "" {
		return nil, fmt.Errorf("tutorial id is required: %w", model.ErrInvalidInput)
	}

	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	sub, err := s.find(ctx, email)
	if err != nil {
		return nil, err
	}

	progress := cloneProgress(sub.Progress)
	count := sub.TutorialsCompleted
	if !slices.Contains(progress.CompletedTutorials, tutorialID) {
		progress.CompletedTutorials = append(progress.CompletedTutorials, tutorialID)
		count++
	}
	if progress.CurrentTutorial == tutorialID {
		progress.CurrentTutorial = ""
	}

	streak := sub.LearningStreak
	now := s.now()
	if sameDay(sub.LastActive, now.AddDate(0, 0, -1)) {
		streak++
	} else if !sameDay(sub.LastActive, now) {
		streak = 1
	}

	return s.store.UpdateSubscriber(ctx, email, model.SubscriberPatch{
		Progress:           &progress,
		TutorialsCompleted: &count,
		LearningStreak:     &streak,
		LastActive:         &now,
	})
}

// ToggleBookmark は記事のブックマークを追加または解除する。
func (s *Service) ToggleBookmark(ctx context.Context, email, postID string) (*model.Subscriber, error) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	sub, err := s.find(ctx, email)
	if err != nil {
		return nil, err
	}

	progress := cloneProgress(sub.Progress)
	if i := slices.Index(progress.BookmarkedPosts, postID); i >= 0 {
		progress.BookmarkedPosts = slices.Delete(progress.BookmarkedPosts, i, i+1)
	} else {
		progress.BookmarkedPosts = append(progress.BookmarkedPosts, postID)
	}

	now := s.now()
	return s.store.UpdateSubscriber(ctx, email, model.SubscriberPatch{
		Progress:   &progress,
		LastActive: &now,
	})
}

// List は全購読者を返す。
func (s *Service) List(ctx context.Context) ([]model.Subscriber, error) {
	return s.store.ListSubscribers(ctx)
}

// Find はメールアドレスで購読者を取得する。存在しない場合はErrNotFoundを返す。
func (s *Service) Find(ctx context.Context, email string) (*model.Subscriber, error) {
	return s.find(ctx, email)
}

// Update は管理者による部分更新を行う。
func (s *Service) Update(ctx context.Context, email string, patch model.SubscriberPatch) (*model.Subscriber, error) {
	return s.store.UpdateSubscriber(ctx, email, patch)
}

// Delete は購読者を削除する。
func (s *Service) Delete(ctx context.Context, email string) error {
	return s.store.DeleteSubscriber(ctx, email)
}

func (s *Service) find(ctx context.Context, email string) (*model.Subscriber, error) {
	sub, err := s.store.FindSubscriber(ctx, email)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, model.ErrNotFound
	}
	return sub, nil
}

func (s *Service) record(event string) {
	if s.metrics != nil {
		s.metrics.RecordSubscriptionEvent(event)
	}
}

// normalizeAddress はメールアドレスの形式を検証し、正規化した値を返す。
// 表示名付きの形式（"Name <a@b>"）は受け付けない。
func normalizeAddress(raw string) (string, error) {
	email := model.NormalizeEmail(raw)
	if email == "" {
		return "", model.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.ErrInvalidEmail
	}
	return email, nil
}

func countActive(subs []model.Subscriber) int {
	n := 0
	for _, sub := range subs {
		if sub.Status == model.StatusActive {
			n++
		}
	}
	return n
}

func cloneProgress(p model.Progress) model.Progress {
	clone := p
	clone.CompletedTutorials = append([]string{}, p.CompletedTutorials...)
	clone.BookmarkedPosts = append([]string{}, p.BookmarkedPosts...)
	return clone
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
