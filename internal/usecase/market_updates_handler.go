package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"VolMonitor/internal/domain/models"
	domrepo "VolMonitor/internal/domain/repository"
	"VolMonitor/internal/services/timeseries"
	pkgkafka "VolMonitor/pkg/kafka"
	applogger "VolMonitor/pkg/logger"
)

var updateValidator = validator.New()

type latestBuilder interface {
	BuildLatest(ctx context.Context) (*models.AnalyticsTable, error)
}

// MarketUpdatesHandler consumes market data update events and upserts them
// into the store. Each accepted event moves the dataset version forward.
type MarketUpdatesHandler struct {
	topic   string
	writer  domrepo.MarketDataWriter
	metrics domrepo.Metrics
	warm    latestBuilder
	l       *applogger.Logger
}

func NewMarketUpdatesHandler(topic string, writer domrepo.MarketDataWriter, metrics domrepo.Metrics) *MarketUpdatesHandler {
	return &MarketUpdatesHandler{topic: topic, writer: writer, metrics: metrics, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (h *MarketUpdatesHandler) SetLogger(l *applogger.Logger) {
	if l != nil {
		h.l = l
	}
}

// WarmLatest rebuilds the latest table after each ingested event.
func (h *MarketUpdatesHandler) WarmLatest(b latestBuilder) { h.warm = b }

func (h *MarketUpdatesHandler) Topic() string { return h.topic }

// Handle decodes {"vols":[...],"rates":[...]}. Undecodable or invalid
// payloads are permanent failures and go straight to the DLQ.
func (h *MarketUpdatesHandler) Handle(ctx context.Context, b []byte) error {
	var m models.MarketUpdate
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("update_decode")
		return fmt.Errorf("decode market update: %v: %w", err, pkgkafka.ErrPermanent)
	}
	vols, rates, err := toPoints(m)
	if err != nil {
		h.metrics.RecordError("update_invalid")
		return fmt.Errorf("market update: %v: %w", err, pkgkafka.ErrPermanent)
	}

	if err := h.writer.UpsertVols(ctx, vols); err != nil {
		h.metrics.RecordError("update_store")
		return fmt.Errorf("store vols: %w", err)
	}
	if err := h.writer.UpsertRates(ctx, rates); err != nil {
		h.metrics.RecordError("update_store")
		return fmt.Errorf("store rates: %w", err)
	}
	h.metrics.RecordIngested("vol", len(vols))
	h.metrics.RecordIngested("rate", len(rates))
	h.l.Info("market update ingested", applogger.Int("vols", len(vols)), applogger.Int("rates", len(rates)))

	if h.warm != nil {
		if _, err := h.warm.BuildLatest(ctx); err != nil {
			h.l.Warn("warm latest table", applogger.Error(err))
		}
	}
	return nil
}

func toPoints(m models.MarketUpdate) ([]models.ImpliedVolPoint, []models.RatePoint, error) {
	if len(m.Vols) == 0 && len(m.Rates) == 0 {
		return nil, nil, fmt.Errorf("%w: empty update", timeseries.ErrMalformedInput)
	}
	vols := make([]models.ImpliedVolPoint, 0, len(m.Vols))
	for _, v := range m.Vols {
		if err := updateValidator.Struct(v); err != nil {
			return nil, nil, fmt.Errorf("%w: vol: %v", timeseries.ErrMalformedInput, err)
		}
		d, err := timeseries.ParseObservationDate(v.Date)
		if err != nil {
			return nil, nil, err
		}
		opt, err := models.ParseTenor(v.OptionTenor)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", timeseries.ErrMalformedInput, err)
		}
		und, err := models.ParseTenor(v.UnderlyingTenor)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", timeseries.ErrMalformedInput, err)
		}
		vols = append(vols, models.ImpliedVolPoint{
			Date:  d,
			Cell:  models.GridCell{OptionTenor: opt, UnderlyingTenor: und},
			Value: v.Value,
		})
	}
	rates := make([]models.RatePoint, 0, len(m.Rates))
	for _, r := range m.Rates {
		if err := updateValidator.Struct(r); err != nil {
			return nil, nil, fmt.Errorf("%w: rate: %v", timeseries.ErrMalformedInput, err)
		}
		d, err := timeseries.ParseObservationDate(r.Date)
		if err != nil {
			return nil, nil, err
		}
		tenor, err := models.ParseTenor(r.Tenor)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", timeseries.ErrMalformedInput, err)
		}
		rates = append(rates, models.RatePoint{Date: d, Tenor: tenor, Level: r.Level})
	}
	return vols, rates, nil
}

var _ pkgkafka.MessageHandler = (*MarketUpdatesHandler)(nil)
