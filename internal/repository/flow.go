package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kjannette/ethflow-bot/internal/models"
)

const flowColumns = `id, report_id, recent_date, prior_date, funds, total, created_at`

type FlowRepo struct {
	pool *pgxpool.Pool
}

func NewFlowRepo(pool *pgxpool.Pool) *FlowRepo {
	return &FlowRepo{pool: pool}
}

// RecordFlows archives one parsed flow report under reportID. A report for
// dates already archived is ignored.
func (r *FlowRepo) RecordFlows(ctx context.Context, reportID string, fr *models.FlowReport) error {
	_, err := r.Record(ctx, reportID, fr)
	return err
}

// Record inserts fr and returns the stored row, or nil when the same
// recent/prior date pair is already archived.
func (r *FlowRepo) Record(ctx context.Context, reportID string, fr *models.FlowReport) (*models.FlowRecord, error) {
	funds, err := json.Marshal(fr.Funds)
	if err != nil {
		return nil, fmt.Errorf("marshal funds: %w", err)
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO flow_reports (report_id, recent_date, prior_date, funds, total)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (recent_date, prior_date) DO NOTHING
		 RETURNING `+flowColumns,
		reportID, fr.MostRecent.Date, fr.Prior.Date, funds, totalOf(fr),
	)
	rec, err := scanFlow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *FlowRepo) GetLatest(ctx context.Context) (*models.FlowRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+flowColumns+` FROM flow_reports ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	rec, err := scanFlow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *FlowRepo) GetHistory(ctx context.Context, limit int) ([]models.FlowRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+flowColumns+` FROM flow_reports ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.FlowRecord{}
	for rows.Next() {
		rec, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func totalOf(fr *models.FlowReport) decimal.Decimal {
	for _, f := range fr.Funds {
		if f.Label == models.TotalLabel {
			return f.Value
		}
	}
	return decimal.Zero
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanFlow(row scannable) (*models.FlowRecord, error) {
	var (
		rec   models.FlowRecord
		funds []byte
	)
	err := row.Scan(
		&rec.ID, &rec.ReportID, &rec.RecentDate, &rec.PriorDate,
		&funds, &rec.Total, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(funds, &rec.Funds); err != nil {
		return nil, fmt.Errorf("decode funds: %w", err)
	}
	return &rec, nil
}
