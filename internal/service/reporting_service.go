package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	chartDays       = 7
	topProductLimit = 5
	recentOrders    = 5
	dayLayout       = "2006-01-02"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	reportRepo ports.ReportRepository
	orderRepo  ports.OrderRepository
	store      ports.ReportStore
	log        zerolog.Logger
	now        func() time.Time
}

// NewReportingService creates a new reporting service. store may be nil,
// in which case exports report the feature as unavailable.
func NewReportingService(
	reportRepo ports.ReportRepository,
	orderRepo ports.OrderRepository,
	store ports.ReportStore,
	log zerolog.Logger,
) ports.ReportingService {
	return &reportingService{
		reportRepo: reportRepo,
		orderRepo:  orderRepo,
		store:      store,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// DashboardStats returns store-wide totals and the most recent orders.
func (s *reportingService) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	users, err := s.reportRepo.CountUsers(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	products, err := s.reportRepo.CountProducts(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	total, pending, revenue, err := s.reportRepo.OrderTotals(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	recent, _, err := s.orderRepo.List(ctx, ports.OrderFilter{PageRequest: ports.PageRequest{Page: 1, Limit: recentOrders}})
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if recent == nil {
		recent = []domain.Order{}
	}

	return &domain.DashboardStats{
		TotalUsers:    users,
		TotalProducts: products,
		TotalOrders:   total,
		TotalRevenue:  revenue,
		PendingOrders: pending,
		RecentOrders:  recent,
	}, nil
}

// SalesReport aggregates completed sales inside r and compares them with
// the preceding window of the same length.
func (s *reportingService) SalesReport(ctx context.Context, r domain.DateRange) (*domain.SalesReport, error) {
	r, err := s.normalizeRange(r)
	if err != nil {
		return nil, err
	}

	cur, err := s.reportRepo.AggregateOrders(ctx, r)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	prev, err := s.reportRepo.AggregateOrders(ctx, r.Previous())
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	newUsers, err := s.reportRepo.CountNewUsers(ctx, r)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	prevUsers, err := s.reportRepo.CountNewUsers(ctx, r.Previous())
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	chartRange := trailingDays(r.End, chartDays)
	buckets, err := s.reportRepo.DailySales(ctx, chartRange)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	chart := fillDays(chartRange, buckets)

	top, err := s.reportRepo.TopProducts(ctx, r, topProductLimit)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if top == nil {
		top = []domain.TopProduct{}
	}

	avg := averageOrder(cur)
	report := &domain.SalesReport{
		Range:           r,
		TotalSales:      cur.CompletedSales,
		TotalOrders:     cur.TotalOrders,
		CompletedOrders: cur.CompletedOrders,
		NewUsers:        newUsers,
		AvgOrderValue:   avg,
		Growth: domain.Growth{
			Sales:         growth(cur.CompletedSales, prev.CompletedSales),
			Orders:        growth(decimal.NewFromInt(cur.CompletedOrders), decimal.NewFromInt(prev.CompletedOrders)),
			Users:         growth(decimal.NewFromInt(newUsers), decimal.NewFromInt(prevUsers)),
			AvgOrderValue: growth(avg, averageOrder(prev)),
		},
		SalesChart:     chart,
		MaxSales:       decimal.Zero,
		TopProducts:    top,
		ConversionRate: ratio(cur.PaidOrders, cur.TotalOrders),
		CompletionRate: ratio(cur.CompletedOrders, cur.TotalOrders),
	}
	for _, d := range chart {
		if d.Amount.GreaterThan(report.MaxSales) {
			report.MaxSales = d.Amount
		}
	}
	return report, nil
}

// UserStats returns order statistics for userID. Users may only read their
// own statistics.
func (s *reportingService) UserStats(ctx context.Context, actor domain.Actor, userID uuid.UUID) (*domain.UserStats, error) {
	if !actor.CanAccess(userID) {
		return nil, apperror.ErrForbidden()
	}
	stats, err := s.reportRepo.UserStats(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

// ExportSalesReport writes the daily sales of r as CSV to the report store.
func (s *reportingService) ExportSalesReport(ctx context.Context, r domain.DateRange) (*ports.ExportResult, error) {
	if s.store == nil {
		return nil, apperror.ErrServiceUnavailable("Report export")
	}
	r, err := s.normalizeRange(r)
	if err != nil {
		return nil, err
	}

	buckets, err := s.reportRepo.DailySales(ctx, r)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	days := fillDays(r, buckets)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"date", "completed_orders", "sales"})
	for _, d := range days {
		_ = w.Write([]string{d.Date, strconv.FormatInt(d.Orders, 10), d.Amount.StringFixed(2)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("write csv: %w", err))
	}

	key := fmt.Sprintf("sales-%s-%s-%d.csv", r.Start.Format("20060102"), r.End.Format("20060102"), s.now().Unix())
	location, err := s.store.Put(ctx, key, buf.Bytes(), "text/csv")
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("upload report: %w", err))
	}

	s.log.Info().Str("key", key).Int("rows", len(days)).Msg("sales report exported")
	return &ports.ExportResult{Key: key, Location: location, Rows: len(days)}, nil
}

func (s *reportingService) normalizeRange(r domain.DateRange) (domain.DateRange, error) {
	now := s.now()
	if r.Start.IsZero() && r.End.IsZero() {
		return domain.DefaultDateRange(now), nil
	}
	if r.End.IsZero() {
		r.End = now
	}
	if r.Start.IsZero() {
		r.Start = r.End.Add(-domain.DefaultReportWindow)
	}
	r.Start, r.End = r.Start.UTC(), r.End.UTC()
	if !r.End.After(r.Start) {
		return r, apperror.Validation("end must be after start")
	}
	if r.End.Sub(r.Start) > domain.MaxReportWindow {
		return r, apperror.Validation("report range cannot exceed 366 days")
	}
	return r, nil
}

// trailingDays covers n whole UTC days ending with the day containing end.
func trailingDays(end time.Time, n int) domain.DateRange {
	end = end.UTC()
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return domain.DateRange{Start: day.AddDate(0, 0, -(n - 1)), End: end}
}

// fillDays returns one bucket per UTC day in r, zero where buckets has none.
func fillDays(r domain.DateRange, buckets []domain.DailySales) []domain.DailySales {
	byDate := make(map[string]domain.DailySales, len(buckets))
	for _, b := range buckets {
		byDate[b.Date] = b
	}

	start := r.Start.UTC()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	var out []domain.DailySales
	for !day.After(r.End) {
		key := day.Format(dayLayout)
		b, ok := byDate[key]
		if !ok {
			b = domain.DailySales{Date: key, Amount: decimal.Zero}
		}
		out = append(out, b)
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func averageOrder(a *domain.OrderAggregate) decimal.Decimal {
	if a.CompletedOrders == 0 {
		return decimal.Zero
	}
	return a.CompletedSales.Div(decimal.NewFromInt(a.CompletedOrders)).Round(2)
}

// growth is the whole-percent change from prev to cur; zero when prev is zero.
func growth(cur, prev decimal.Decimal) float64 {
	if prev.IsZero() {
		return 0
	}
	return cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(0).InexactFloat64()
}

func ratio(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(part).Div(decimal.NewFromInt(whole)).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
