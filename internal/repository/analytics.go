package repository

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/brandhub/internal/model"
)

// recentLimit は集計に含める直近の購読者・記事の件数。
const recentLimit = 5

// BuildAnalyticsReport は登録順に並んだ購読者・記事と、保存済みの編集者設定値から集計を組み立てる。
// 直近一覧は登録順の逆順（日付順ではない）。人気記事は閲覧数の降順で、同数の場合は登録順。
func BuildAnalyticsReport(subs []model.Subscriber, posts []model.Post, stored model.Analytics) *model.AnalyticsReport {
	report := &model.AnalyticsReport{
		TotalSubscribers:  len(subs),
		TotalPosts:        len(posts),
		MonthlyGrowth:     stored.MonthlyGrowth,
		UserEngagement:    stored.UserEngagement,
		PopularPosts:      []string{},
		RecentSubscribers: []model.Subscriber{},
		RecentPosts:       []model.Post{},
	}

	for _, s := range subs {
		if s.Status == model.StatusActive {
			report.ActiveSubscribers++
		}
	}
	for _, p := range posts {
		report.TotalViews += p.Views
	}

	for i := len(subs) - 1; i >= 0 && len(report.RecentSubscribers) < recentLimit; i-- {
		report.RecentSubscribers = append(report.RecentSubscribers, subs[i])
	}
	for i := len(posts) - 1; i >= 0 && len(report.RecentPosts) < recentLimit; i-- {
		report.RecentPosts = append(report.RecentPosts, posts[i])
	}

	ranked := make([]model.Post, len(posts))
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Views > ranked[j].Views
	})
	for i := 0; i < len(ranked) && i < recentLimit; i++ {
		report.PopularPosts = append(report.PopularPosts, ranked[i].ID)
	}

	return report
}

// prepareNewSubscriber は新規購読者の未設定フィールドに初期値を設定する。
func prepareNewSubscriber(sub *model.Subscriber, now time.Time) {
	sub.Email = model.NormalizeEmail(sub.Email)
	if sub.ID == "" {
		sub.ID = newSubscriberID()
	}
	if sub.Plan == "" {
		sub.Plan = model.PlanFree
	}
	if sub.Status == "" {
		sub.Status = model.StatusActive
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = now
	}
	if sub.LastActive.IsZero() {
		sub.LastActive = now
	}
	if sub.Progress.CompletedTutorials == nil {
		sub.Progress.CompletedTutorials = []string{}
	}
	if sub.Progress.BookmarkedPosts == nil {
		sub.Progress.BookmarkedPosts = []string{}
	}
}

// newSubscriberID は時刻順に単調増加するID（UUIDv7）を生成する。
func newSubscriberID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
