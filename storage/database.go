package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/tokenbot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - Trade and session persistence
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db *gorm.DB
}

// Models

// TradeRow is one closed trade. Append-only: rows are never updated.
type TradeRow struct {
	ID            string          `gorm:"primaryKey"`
	Token         string          `gorm:"index"`
	Symbol        string
	EntryPrice    decimal.Decimal `gorm:"type:decimal(30,18)"`
	ExitPrice     decimal.Decimal `gorm:"type:decimal(30,18)"`
	PnLPct        decimal.Decimal `gorm:"type:decimal(10,4)"`
	Win           bool
	ExitReason    string `gorm:"index"`
	Lesson        string
	VerdictAtOpen string
	ClosedAt      time.Time
	CreatedAt     time.Time
}

// PositionRow is an open position snapshot, for recovery across restarts
type PositionRow struct {
	ID            string          `gorm:"primaryKey"`
	Token         string          `gorm:"index"`
	Symbol        string
	EntryPrice    decimal.Decimal `gorm:"type:decimal(30,18)"`
	Size          decimal.Decimal `gorm:"type:decimal(30,18)"`
	InitialSize   decimal.Decimal `gorm:"type:decimal(30,18)"`
	StopPrice     decimal.Decimal `gorm:"type:decimal(30,18)"`
	HighWaterMark decimal.Decimal `gorm:"type:decimal(30,18)"`
	Realized      decimal.Decimal `gorm:"type:decimal(30,18)"` // proceeds from partial exits
	FiredTags     string          // comma-separated ladder tags
	VerdictAtOpen string
	Mode          string // pool the stake was debited from
	Status        string `gorm:"index;default:OPEN"`
	OpenedAt      time.Time
	ClosedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SessionRow is the single persisted account record
type SessionRow struct {
	ID           uint            `gorm:"primaryKey"`
	PaperBalance decimal.Decimal `gorm:"type:decimal(30,18)"`
	RealBalance  decimal.Decimal `gorm:"type:decimal(30,18)"`
	Mode         string
	TradeCount   int
	WinCount     int
	UpdatedAt    time.Time
}

// New opens the database. postgres:// connection strings use the Postgres
// driver, anything else is a SQLite path.
func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&TradeRow{}, &PositionRow{}, &SessionRow{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// SaveTrade appends a closed trade
func (d *Database) SaveTrade(rec types.TradeRecord) error {
	row := TradeRow{
		ID:            rec.ID,
		Token:         rec.Token,
		Symbol:        rec.Symbol,
		EntryPrice:    rec.EntryPrice,
		ExitPrice:     rec.ExitPrice,
		PnLPct:        rec.PnLPct,
		Win:           rec.Win,
		ExitReason:    rec.ExitReason,
		Lesson:        rec.Lesson,
		VerdictAtOpen: string(rec.VerdictAtOpen),
		ClosedAt:      rec.Timestamp,
	}
	return d.db.Create(&row).Error
}

// SavePosition upserts an open position snapshot
func (d *Database) SavePosition(pos *types.Position) error {
	tags := make([]string, 0, len(pos.FiredTags))
	for t := range pos.FiredTags {
		tags = append(tags, t)
	}
	row := PositionRow{
		ID:            pos.ID,
		Token:         pos.Token,
		Symbol:        pos.Symbol,
		EntryPrice:    pos.EntryPrice,
		Size:          pos.Size,
		InitialSize:   pos.InitialSize,
		StopPrice:     pos.StopPrice,
		HighWaterMark: pos.HighWaterMark,
		Realized:      pos.Realized,
		FiredTags:     strings.Join(tags, ","),
		VerdictAtOpen: string(pos.VerdictAtOpen),
		Mode:          string(pos.Mode),
		Status:        "OPEN",
		OpenedAt:      pos.OpenedAt,
	}
	return d.db.Save(&row).Error
}

// ClosePosition marks a position closed
func (d *Database) ClosePosition(id string, closedAt time.Time) error {
	return d.db.Model(&PositionRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": "CLOSED", "closed_at": closedAt}).Error
}

// LoadOpenPositions restores open positions after a restart
func (d *Database) LoadOpenPositions() ([]*types.Position, error) {
	var rows []PositionRow
	if err := d.db.Where("status = ?", "OPEN").Find(&rows).Error; err != nil {
		return nil, err
	}

	positions := make([]*types.Position, 0, len(rows))
	for _, row := range rows {
		fired := make(map[string]bool)
		if row.FiredTags != "" {
			for _, t := range strings.Split(row.FiredTags, ",") {
				fired[t] = true
			}
		}
		mode := types.Mode(row.Mode)
		if mode == "" {
			mode = types.ModePaper
		}
		positions = append(positions, &types.Position{
			ID:            row.ID,
			Token:         row.Token,
			Symbol:        row.Symbol,
			EntryPrice:    row.EntryPrice,
			Size:          row.Size,
			InitialSize:   row.InitialSize,
			StopPrice:     row.StopPrice,
			HighWaterMark: row.HighWaterMark,
			Realized:      row.Realized,
			FiredTags:     fired,
			VerdictAtOpen: types.Overall(row.VerdictAtOpen),
			Mode:          mode,
			OpenedAt:      row.OpenedAt,
		})
	}
	return positions, nil
}

// SaveSession upserts the single account record
func (d *Database) SaveSession(stats types.StatsSnapshot) error {
	row := SessionRow{
		ID:           1,
		PaperBalance: stats.Balance,
		RealBalance:  stats.RealBalance,
		Mode:         string(stats.Mode),
		TradeCount:   stats.TradeCount,
		WinCount:     stats.WinCount,
	}
	return d.db.Save(&row).Error
}

// LoadSession restores the account record; found is false on first run
func (d *Database) LoadSession() (stats types.StatsSnapshot, found bool, err error) {
	var row SessionRow
	res := d.db.First(&row, "id = ?", 1)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return stats, false, nil
		}
		return stats, false, res.Error
	}
	return types.StatsSnapshot{
		Balance:     row.PaperBalance,
		RealBalance: row.RealBalance,
		Mode:        types.Mode(row.Mode),
		TradeCount:  row.TradeCount,
		WinCount:    row.WinCount,
	}, true, nil
}

// RecentTrades returns the latest closed trades, newest first
func (d *Database) RecentTrades(limit int) ([]TradeRow, error) {
	var rows []TradeRow
	err := d.db.Order("closed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
