package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aristath/capitol/internal/clients/disclosures"
	"github.com/aristath/capitol/internal/domain"
	"github.com/aristath/capitol/internal/modules/cycle"
	"github.com/aristath/capitol/internal/modules/portfolio"
	"github.com/aristath/capitol/internal/modules/recommendations"
	"github.com/aristath/capitol/internal/modules/trading"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// handleRunCycle handles POST /api/cycle/run.
// A request while a cycle is already queued is coalesced into it.
func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, cycle.WorkTypeRun)
}

// handleCycleStatus handles GET /api/cycle/status
func (s *Server) handleCycleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, map[string]interface{}{
		"running": s.cfg.Cycle.Busy(),
		"last":    s.cfg.Cycle.LastResult(),
	})
}

// handleGetPortfolio handles GET /api/portfolio
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	snap := s.cfg.Portfolio.Snapshot()

	allocations := make(map[string]float64, len(snap.Positions))
	for _, t := range snap.Tickers() {
		allocations[t] = snap.Allocation(t)
	}

	s.writeData(w, http.StatusOK, map[string]interface{}{
		"cash":           snap.Cash,
		"total_value":    snap.TotalValue,
		"positions":      snap.Positions,
		"allocations":    allocations,
		"last_refreshed": snap.LastRefreshed,
	})
}

// handleRefreshPortfolio handles POST /api/portfolio/refresh
func (s *Server) handleRefreshPortfolio(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, portfolio.WorkTypeRefresh)
}

func (s *Server) enqueue(w http.ResponseWriter, typeID string) {
	queued, err := s.cfg.Work.Enqueue(typeID)
	if err != nil {
		s.log.Error().Err(err).Str("work_type", typeID).Msg("Failed to enqueue work")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeData(w, http.StatusAccepted, map[string]interface{}{
		"work_type": typeID,
		"queued":    queued,
		"coalesced": !queued,
	})
}

// handleGetTrades handles GET /api/trades?limit=N
func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	trades, err := s.cfg.Trades.GetRecent(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list trades")
		s.writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	total, err := s.cfg.Trades.Count(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to count trades")
		total = len(trades)
	}

	s.writeData(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
		"total":  total,
	})
}

// handleListManualTrades handles GET /api/trades/manual
func (s *Server) handleListManualTrades(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cfg.Manual.List(r.Context(), parseLimit(r))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list manual trades")
		s.writeError(w, http.StatusInternalServerError, "failed to list manual trades")
		return
	}
	s.writeData(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

type manualTradeRequest struct {
	Actor          string          `json:"actor"`
	Ticker         string          `json:"ticker"`
	Kind           string          `json:"kind"`
	Amount         json.RawMessage `json:"amount"`
	TradeDate      string          `json:"trade_date"`
	DisclosureDate string          `json:"disclosure_date"`
	Note           string          `json:"note"`
}

func (req manualTradeRequest) toManualTrade() (*trading.ManualTrade, error) {
	amount, err := parseAmountField(req.Amount)
	if err != nil {
		return nil, err
	}
	tradeDate, err := disclosures.ParseDate(req.TradeDate)
	if err != nil {
		return nil, fmt.Errorf("trade_date: %w", err)
	}

	trade := &trading.ManualTrade{
		Actor:     req.Actor,
		Ticker:    req.Ticker,
		Kind:      domain.ParseTransactionKind(req.Kind),
		Amount:    amount,
		TradeDate: tradeDate,
		Note:      req.Note,
	}
	if strings.TrimSpace(req.DisclosureDate) != "" {
		if trade.DisclosureDate, err = disclosures.ParseDate(req.DisclosureDate); err != nil {
			return nil, fmt.Errorf("disclosure_date: %w", err)
		}
	}
	return trade, trade.Validate()
}

// parseAmountField accepts a plain number or a disclosed range string.
func parseAmountField(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("amount is required")
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, fmt.Errorf("amount must be a number or a string")
	}
	return disclosures.ParseAmount(str)
}

// handleAddManualTrade handles POST /api/trades/manual.
// The entry is appended to the backlog and a cycle is queued to pick it up.
func (s *Server) handleAddManualTrade(w http.ResponseWriter, r *http.Request) {
	var req manualTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	trade, err := req.toManualTrade()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.cfg.Manual.Add(r.Context(), trade)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to queue manual trade")
		s.writeError(w, http.StatusInternalServerError, "failed to queue manual trade")
		return
	}

	queued, err := s.cfg.Work.Enqueue(cycle.WorkTypeRun)
	if err != nil {
		s.log.Warn().Err(err).Int64("id", id).Msg("Manual trade stored but cycle not queued")
	}

	s.writeData(w, http.StatusCreated, map[string]interface{}{
		"id":           id,
		"entry":        trade,
		"cycle_queued": queued,
	})
}

// handleGetRecommendations handles GET /api/recommendations?limit=N&issued=true&ticker=X
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := recommendations.Filter{
		Limit:  parseLimit(r),
		Ticker: domain.NormalizeTicker(q.Get("ticker")),
	}
	if v, err := strconv.ParseBool(q.Get("issued")); err == nil {
		filter.IssuedOnly = v
	}

	recs, err := s.cfg.Recommendations.GetRecent(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list recommendations")
		s.writeError(w, http.StatusInternalServerError, "failed to list recommendations")
		return
	}

	s.writeData(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// handleRecommendationStats handles GET /api/recommendations/stats
func (s *Server) handleRecommendationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cfg.Recommendations.GetStats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to compute recommendation stats")
		s.writeError(w, http.StatusInternalServerError, "failed to compute recommendation stats")
		return
	}
	s.writeData(w, http.StatusOK, stats)
}

func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
