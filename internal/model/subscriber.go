// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Plan は購読者のプランを表す。
type Plan string

const (
	// PlanFree は無料プラン。
	PlanFree Plan = "free"
)

// SubscriberStatus は購読者の状態を表す。
type SubscriberStatus string

const (
	// StatusActive は購読中の状態。
	StatusActive SubscriberStatus = "active"

	// StatusUnsubscribed は購読解除済みの状態。レコード自体は残る。
	StatusUnsubscribed SubscriberStatus = "unsubscribed"
)

// SkillLevel は学習者のスキルレベルを表す。
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
)

// Subscriber はニュースレター購読者を表す。
// メールアドレス（小文字正規化済み）が一意キー。
type Subscriber struct {
	ID                 string           `json:"id"`
	Email              string           `json:"email"`
	Name               string           `json:"name,omitempty"`
	Plan               Plan             `json:"plan"`
	Status             SubscriberStatus `json:"status"`
	SubscribedAt       time.Time        `json:"subscribedAt"`
	LastActive         time.Time        `json:"lastActive"`
	UnsubscribedAt     *time.Time       `json:"unsubscribedAt,omitempty"`
	ResubscribedAt     *time.Time       `json:"resubscribedAt,omitempty"`
	UnsubscribeReason  string           `json:"unsubscribeReason,omitempty"`
	TutorialsCompleted int              `json:"tutorialsCompleted"`
	AIToolsUsed        int              `json:"aiToolsUsed"`
	LearningStreak     int              `json:"learningStreak"`
	Preferences        Preferences      `json:"preferences"`
	Progress           Progress         `json:"progress"`
}

// Preferences は購読者の通知・表示設定。
// 未指定のキーはJSON上でも欠落したまま保持される。
type Preferences struct {
	Newsletter    *bool  `json:"newsletter,omitempty"`
	Notifications *bool  `json:"notifications,omitempty"`
	Theme         string `json:"theme,omitempty"`
}

// Progress は購読者の学習進捗。
type Progress struct {
	CurrentTutorial    string     `json:"currentTutorial,omitempty"`
	CompletedTutorials []string   `json:"completedTutorials"`
	BookmarkedPosts    []string   `json:"bookmarkedPosts"`
	SkillLevel         SkillLevel `json:"skillLevel,omitempty"`
}

// SubscriberPatch は購読者の部分更新を表す。
// nilのフィールドは変更しない。指定されたフィールドはトップレベルで丸ごと置き換える
// （preferences、progressも再帰的にはマージしない）。
type SubscriberPatch struct {
	Name               *string           `json:"name,omitempty"`
	Plan               *Plan             `json:"plan,omitempty"`
	Status             *SubscriberStatus `json:"status,omitempty"`
	LastActive         *time.Time        `json:"lastActive,omitempty"`
	UnsubscribedAt     *time.Time        `json:"unsubscribedAt,omitempty"`
	ResubscribedAt     *time.Time        `json:"resubscribedAt,omitempty"`
	UnsubscribeReason  *string           `json:"unsubscribeReason,omitempty"`
	TutorialsCompleted *int              `json:"tutorialsCompleted,omitempty"`
	AIToolsUsed        *int              `json:"aiToolsUsed,omitempty"`
	LearningStreak     *int              `json:"learningStreak,omitempty"`
	Preferences        *Preferences      `json:"preferences,omitempty"`
	Progress           *Progress         `json:"progress,omitempty"`
}

// Apply はパッチをsubに適用する。
// カウンタは負の値を0に丸める。
func (p SubscriberPatch) Apply(sub *Subscriber) {
	if p.Name != nil {
		sub.Name = *p.Name
	}
	if p.Plan != nil {
		sub.Plan = *p.Plan
	}
	if p.Status != nil {
		sub.Status = *p.Status
	}
	if p.LastActive != nil {
		sub.LastActive = *p.LastActive
	}
	if p.UnsubscribedAt != nil {
		t := *p.UnsubscribedAt
		sub.UnsubscribedAt = &t
	}
	if p.ResubscribedAt != nil {
		t := *p.ResubscribedAt
		sub.ResubscribedAt = &t
	}
	if p.UnsubscribeReason != nil {
		sub.UnsubscribeReason = *p.UnsubscribeReason
	}
	if p.TutorialsCompleted != nil {
		sub.TutorialsCompleted = nonNegative(*p.TutorialsCompleted)
	}
	if p.AIToolsUsed != nil {
		sub.AIToolsUsed = nonNegative(*p.AIToolsUsed)
	}
	if p.LearningStreak != nil {
		sub.LearningStreak = nonNegative(*p.LearningStreak)
	}
	if p.Preferences != nil {
		sub.Preferences = *p.Preferences
	}
	if p.Progress != nil {
		sub.Progress = *p.Progress
	}
}

// NormalizeEmail はメールアドレスを比較用に正規化する（前後空白除去・小文字化）。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
