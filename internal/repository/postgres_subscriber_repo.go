package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/brandhub/internal/model"
)

const subscriberColumns = `id, email, name, plan, status, subscribed_at, last_active, unsubscribed_at, resubscribed_at,
	unsubscribe_reason, tutorials_completed, ai_tools_used, learning_streak, preferences, progress`

// ListSubscribers は全購読者を登録順で返す。
func (r *PostgresStore) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	subs := []model.Subscriber{}
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscribers: %w", err)
	}
	return subs, nil
}

// FindSubscriber はメールアドレスで購読者を検索する。見つからない場合はnilを返す。
func (r *PostgresStore) FindSubscriber(ctx context.Context, email string) (*model.Subscriber, error) {
	sub, err := scanSubscriber(r.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1`,
		model.NormalizeEmail(email),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriber: %w", err)
	}
	return sub, nil
}

// CreateSubscriber は購読者を作成する。一意制約違反はErrDuplicateEmailに変換する。
func (r *PostgresStore) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	prepareNewSubscriber(sub, time.Now())

	prefs, progress, err := encodeSubscriberJSON(sub)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO subscribers (`+subscriberColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		sub.ID, sub.Email, sub.Name, string(sub.Plan), string(sub.Status), sub.SubscribedAt, sub.LastActive,
		nullTime(sub.UnsubscribedAt), nullTime(sub.ResubscribedAt), sub.UnsubscribeReason,
		sub.TutorialsCompleted, sub.AIToolsUsed, sub.LearningStreak, prefs, progress,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert subscriber: %w", err)
	}
	return nil
}

// UpdateSubscriber は行ロックを取って購読者を読み込み、パッチを適用して全カラムを書き戻す。
func (r *PostgresStore) UpdateSubscriber(ctx context.Context, email string, patch model.SubscriberPatch) (*model.Subscriber, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sub, err := scanSubscriber(tx.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1 FOR UPDATE`,
		model.NormalizeEmail(email),
	))
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}

	patch.Apply(sub)

	prefs, progress, err := encodeSubscriberJSON(sub)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE subscribers SET
		   name = $2, plan = $3, status = $4, last_active = $5, unsubscribed_at = $6, resubscribed_at = $7,
		   unsubscribe_reason = $8, tutorials_completed = $9, ai_tools_used = $10, learning_streak = $11,
		   preferences = $12, progress = $13, updated_at = now()
		 WHERE id = $1`,
		sub.ID, sub.Name, string(sub.Plan), string(sub.Status), sub.LastActive,
		nullTime(sub.UnsubscribedAt), nullTime(sub.ResubscribedAt), sub.UnsubscribeReason,
		sub.TutorialsCompleted, sub.AIToolsUsed, sub.LearningStreak, prefs, progress,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscriber: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return sub, nil
}

// DeleteSubscriber は購読者を削除する。
func (r *PostgresStore) DeleteSubscriber(ctx context.Context, email string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM subscribers WHERE email = $1`,
		model.NormalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanSubscriber(row rowScanner) (*model.Subscriber, error) {
	sub := &model.Subscriber{}
	var plan, status string
	var unsubscribedAt, resubscribedAt sql.NullTime
	var prefs, progress []byte

	err := row.Scan(
		&sub.ID, &sub.Email, &sub.Name, &plan, &status, &sub.SubscribedAt, &sub.LastActive,
		&unsubscribedAt, &resubscribedAt, &sub.UnsubscribeReason,
		&sub.TutorialsCompleted, &sub.AIToolsUsed, &sub.LearningStreak, &prefs, &progress,
	)
	if err != nil {
		return nil, err
	}

	sub.Plan = model.Plan(plan)
	sub.Status = model.SubscriberStatus(status)
	sub.UnsubscribedAt = timePtr(unsubscribedAt)
	sub.ResubscribedAt = timePtr(resubscribedAt)

	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &sub.Preferences); err != nil {
			return nil, fmt.Errorf("failed to decode preferences: %w", err)
		}
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &sub.Progress); err != nil {
			return nil, fmt.Errorf("failed to decode progress: %w", err)
		}
	}
	return sub, nil
}

func encodeSubscriberJSON(sub *model.Subscriber) ([]byte, []byte, error) {
	prefs, err := json.Marshal(sub.Preferences)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	progress, err := json.Marshal(sub.Progress)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode progress: %w", err)
	}
	return prefs, progress, nil
}
