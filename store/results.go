package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/evdnx/gotsopt/optimizer"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SearchRecord is one persisted optimizer summary.
type SearchRecord struct {
	ID             uint           `gorm:"primaryKey"`
	RunID          string         `gorm:"size:36;uniqueIndex;not null"`
	Symbol         string         `gorm:"index;not null"`
	Mode           string         `gorm:"not null"`
	Total          int            `gorm:"not null"`
	ValidResults   int            `gorm:"not null"`
	InvalidResults int            `gorm:"not null"`
	Invalid        string         `gorm:"type:jsonb"`
	Diagnostic     string         `gorm:"type:text"`
	Canceled       bool           `gorm:"not null;default:false"`
	StartedAt      time.Time      `gorm:"index;not null"`
	DurationMs     int64          `gorm:"not null"`
	Results        []ResultRecord `gorm:"foreignKey:SearchID;constraint:OnDelete:CASCADE"`
}

// ResultRecord is one ranked combination of a search.
type ResultRecord struct {
	ID                 uint    `gorm:"primaryKey"`
	SearchID           uint    `gorm:"index;not null"`
	Rank               int     `gorm:"not null"`
	ComboIndex         int     `gorm:"not null"`
	Score              float64 `gorm:"not null"`
	Parameters         string  `gorm:"type:jsonb;not null"`
	TotalTrades        int
	WinRate            float64
	NetProfit          float64
	ProfitFactor       float64
	MaxDrawdownPercent float64
	Expectancy         float64
	RiskRewardRatio    float64
}

// ResultRepository stores search summaries in Postgres through gorm.
type ResultRepository struct {
	db *gorm.DB
}

// NewResultRepository wraps an open gorm handle.
func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// OpenResultRepository connects to dsn and migrates the result tables.
func OpenResultRepository(dsn string) (*ResultRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SearchRecord{}, &ResultRecord{}); err != nil {
		return nil, err
	}
	return &ResultRepository{db: db}, nil
}

// Save persists the summary with its ranked results.
func (r *ResultRepository) Save(ctx context.Context, sum *optimizer.Summary) error {
	if sum == nil {
		return errors.New("summary cannot be nil")
	}
	rec, err := ToSearchRecord(sum)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// FindByRunID loads a search and its results. A missing run yields
// ErrNotFound.
func (r *ResultRepository) FindByRunID(ctx context.Context, runID string) (*SearchRecord, error) {
	if runID == "" {
		return nil, errors.New("invalid run id")
	}
	var rec SearchRecord
	err := r.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("rank") }).
		Where("run_id = ?", runID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close releases the underlying connection pool.
func (r *ResultRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ToSearchRecord maps a summary onto its row representation.
func ToSearchRecord(sum *optimizer.Summary) (*SearchRecord, error) {
	invalid, err := json.Marshal(sum.Invalid)
	if err != nil {
		return nil, err
	}
	rec := &SearchRecord{
		RunID:          sum.RunID,
		Symbol:         sum.Symbol,
		Mode:           string(sum.Mode),
		Total:          sum.Total,
		ValidResults:   sum.ValidResults,
		InvalidResults: sum.InvalidResults,
		Invalid:        string(invalid),
		Diagnostic:     sum.Diagnostic,
		Canceled:       sum.Canceled,
		StartedAt:      sum.Started.UTC(),
		DurationMs:     sum.Duration.Milliseconds(),
	}
	for rank, res := range sum.Top {
		params, err := json.Marshal(res.Parameters)
		if err != nil {
			return nil, err
		}
		rec.Results = append(rec.Results, ResultRecord{
			Rank:               rank + 1,
			ComboIndex:         res.Index,
			Score:              res.Score,
			Parameters:         string(params),
			TotalTrades:        res.Stats.TotalTrades,
			WinRate:            res.Stats.WinRate,
			NetProfit:          res.Stats.NetProfit,
			ProfitFactor:       res.Stats.ProfitFactor,
			MaxDrawdownPercent: res.Stats.MaxDrawdownPercent,
			Expectancy:         res.Stats.Expectancy,
			RiskRewardRatio:    res.Stats.RiskRewardRatio,
		})
	}
	return rec, nil
}
