package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type gameResult struct {
	GameID     string    `gorm:"primaryKey;size:64"`
	Player1    string    `gorm:"size:64;not null"`
	Player2    string    `gorm:"size:64;not null"`
	Winner     string    `gorm:"size:64;index"`
	Outcome    string    `gorm:"size:16;not null"`
	Moves      int       `gorm:"not null"`
	FinishedAt time.Time `gorm:"index;not null"`
}

func (gameResult) TableName() string { return "game_results" }

type winTally struct {
	Player    string `gorm:"primaryKey;size:64"`
	Wins      int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (winTally) TableName() string { return "win_tallies" }

// GormStore keeps results and tallies in PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&gameResult{}, &winTally{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Record(ctx context.Context, r Result) (bool, error) {
	row := gameResult{
		GameID:     r.GameID,
		Player1:    r.Player1,
		Player2:    r.Player2,
		Winner:     r.Winner,
		Outcome:    r.Outcome,
		Moves:      r.Moves,
		FinishedAt: r.FinishedAt,
	}

	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true
		if r.Winner == "" {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "player"}},
			DoUpdates: clause.Assignments(map[string]any{
				"wins":       gorm.Expr("win_tallies.wins + 1"),
				"updated_at": r.FinishedAt,
			}),
		}).Create(&winTally{Player: r.Winner, Wins: 1, UpdatedAt: r.FinishedAt}).Error
	})
	if err != nil {
		return false, classify(err)
	}
	return inserted, nil
}

func (s *GormStore) Standings(ctx context.Context, limit int) ([]Standing, error) {
	var rows []winTally
	q := s.db.WithContext(ctx).Order("wins DESC").Order("player ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, Standing{Player: row.Player, Wins: row.Wins})
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// classify marks errors that retrying cannot fix as permanent.
func classify(err error) error {
	if pgconn.SafeToRetry(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "53300":
			return err
		}
		if len(pgErr.Code) == 5 && pgErr.Code[:2] == "08" {
			return err
		}
		return backoff.Permanent(err)
	}
	return err
}
