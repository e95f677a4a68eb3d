// Package database はデータベース接続とスキーマ作成を提供する。
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator はスキーマ作成用のmigrateインスタンスを生成する。
// databaseURLはPostgreSQLの接続URLを指定する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations は未作成のテーブルをすべて作成する。
// すでに最新の場合はエラーなしで返るため、起動のたびに呼び出してよい。
func RunMigrations(databaseURL string) error {
	return RunMigrationsContext(context.Background(), databaseURL)
}

// RunMigrationsContext はctxのキャンセル時に適用を中断するRunMigrations。
func RunMigrationsContext(ctx context.Context, databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// MigrateFunc はdatabaseURLに対してスキーマ作成を行う関数を返す。
// repository.PostgresStoreのInitializeに注入して使う。
func MigrateFunc(databaseURL string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return RunMigrationsContext(ctx, databaseURL)
	}
}
