// Package api exposes a portfolio Manager over HTTP, for the GUI, report and
// scheduler collaborators.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/date"
)

// Portfolio is what the server needs from a mfm.Manager.
type Portfolio interface {
	AddStock(ctx context.Context, symbol string, on date.Date, amount int, unitCost decimal.Decimal, cur mfm.Currency, ref mfm.FundRef) (mfm.Lot, error)
	RemoveStock(ctx context.Context, symbol string, amount int) (mfm.DivestmentPlan, error)
	UpdateStocksPrice(ctx context.Context, symbols ...string) (mfm.RevalueReport, error)
	TotalProfit() (mfm.Profit, error)
	TotalAssets(ctx context.Context, cur mfm.Currency) (decimal.Decimal, error)
	SnapshotHistory(ctx context.Context, bankCF, traderCF decimal.Decimal) (mfm.Snapshot, error)
	SnapshotLatest(ctx context.Context) (mfm.Snapshot, error)
	SetCashFlow(ctx context.Context, bank, trader *decimal.Decimal) (mfm.Snapshot, error)
	UpdateForeignCurrency(ctx context.Context, cur mfm.Currency, account mfm.Account, amount decimal.Decimal) (mfm.ForeignBalance, error)
	LastModified() mfm.LastModified
	Holdings() []mfm.Lot
	Foreign() []mfm.ForeignBalance
	History() []mfm.Snapshot
}

var _ Portfolio = (*mfm.Manager)(nil)

// Server routes HTTP requests to a Portfolio.
type Server struct {
	R      *gin.Engine
	p      Portfolio
	logger zerolog.Logger
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewServer wires the router and the middleware.
func NewServer(p Portfolio, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()

	g.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	})
	g.Use(gin.Recovery())

	s := &Server{R: g, p: p, logger: logger}

	g.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	g.POST("/stocks", s.addStock)
	g.DELETE("/stocks/:symbol", s.removeStock)
	g.POST("/prices/update", s.updatePrices)
	g.GET("/profit", s.totalProfit)
	g.GET("/assets/:currency", s.totalAssets)
	g.POST("/history", s.snapshot)
	g.GET("/history", s.history)
	g.PUT("/cashflow", s.setCashFlow)
	g.PUT("/foreign/:currency", s.updateForeign)
	g.GET("/foreign", s.foreign)
	g.GET("/holdings", s.holdings)
	g.GET("/status", s.status)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.R.ServeHTTP(w, r) }

// --- Helpers ---

// status maps the error taxonomy to HTTP.
func statusOf(err error) (int, string) {
	var perr *mfm.PersistenceError
	switch {
	case errors.As(err, &perr):
		return http.StatusInternalServerError, "persistence_failure"
	case errors.Is(err, mfm.ErrInvalidStockDefinition), errors.Is(err, mfm.ErrInvalidDivestment),
		errors.Is(err, mfm.ErrUnsupportedCurrency):
		return http.StatusUnprocessableEntity, "invalid_request"
	case errors.Is(err, mfm.ErrInsufficientHoldings):
		return http.StatusConflict, "insufficient_holdings"
	case errors.Is(err, mfm.ErrPriceUnavailable), errors.Is(err, mfm.ErrConversionRateUnavailable):
		return http.StatusServiceUnavailable, "market_data_unavailable"
	case errors.Is(err, mfm.ErrUndefinedProfit), errors.Is(err, mfm.ErrNoHoldings):
		return http.StatusConflict, "undefined_profit"
	}
	return http.StatusInternalServerError, "internal_server_error"
}

func (s *Server) fail(c *gin.Context, where string, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("where", where).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, apiError{Code: code, Message: err.Error()})
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, apiError{Code: "bad_request", Message: msg})
}

// --- Handlers ---

type addStockRequest struct {
	Symbol   string          `json:"symbol"`
	Date     date.Date       `json:"date"`
	Amount   int             `json:"amount"`
	UnitCost decimal.Decimal `json:"unitCost"`
	Currency string          `json:"currency"`
	Fund     string          `json:"fund"`
}

func (s *Server) addStock(c *gin.Context) {
	var req addStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, fmt.Sprintf("failed to read request body: %v", err))
		return
	}
	cur, err := mfm.ParseReporting(req.Currency)
	if err != nil {
		s.fail(c, "add stock", err)
		return
	}
	// a zero date is today for the portfolio
	l, err := s.p.AddStock(c.Request.Context(), req.Symbol, req.Date, req.Amount, req.UnitCost, cur, mfm.FundRef(req.Fund))
	if err != nil {
		s.fail(c, "add stock", err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

type divestmentResponse struct {
	Symbol string          `json:"symbol"`
	Amount int             `json:"amount"`
	Cost   decimal.Decimal `json:"cost"`
	Closed bool            `json:"closed"`
	Steps  []divestedLot   `json:"steps"`
}

type divestedLot struct {
	Lot   string          `json:"lot"`
	Taken int             `json:"taken"`
	Left  int             `json:"left"`
	Cost  decimal.Decimal `json:"cost"`
}

func (s *Server) removeStock(c *gin.Context) {
	amount, err := strconv.Atoi(c.Query("amount"))
	if err != nil {
		s.badRequest(c, "amount must be an integer")
		return
	}
	plan, err := s.p.RemoveStock(c.Request.Context(), c.Param("symbol"), amount)
	if err != nil {
		s.fail(c, "remove stock", err)
		return
	}
	resp := divestmentResponse{Symbol: plan.Symbol, Amount: plan.Amount, Cost: plan.Cost, Closed: plan.Closed}
	for _, st := range plan.Steps {
		resp.Steps = append(resp.Steps, divestedLot{Lot: st.Lot.String(), Taken: st.Taken, Left: st.Left, Cost: st.Cost})
	}
	c.JSON(http.StatusOK, resp)
}

type updateRequest struct {
	Symbols []string `json:"symbols"`
}

type updateResponse struct {
	Cycle   string            `json:"cycle"`
	Updated []string          `json:"updated"`
	Failed  map[string]string `json:"failed,omitempty"`
}

func (s *Server) updatePrices(c *gin.Context) {
	var req updateRequest
	// an empty body updates everything
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, fmt.Sprintf("failed to read request body: %v", err))
			return
		}
	}
	report, err := s.p.UpdateStocksPrice(c.Request.Context(), req.Symbols...)
	if err != nil {
		s.fail(c, "update prices", err)
		return
	}
	resp := updateResponse{Cycle: report.Cycle.String(), Updated: report.Updated}
	if len(report.Failed) > 0 {
		resp.Failed = make(map[string]string, len(report.Failed))
		for symbol, err := range report.Failed {
			resp.Failed[symbol] = err.Error()
		}
	}
	status := http.StatusOK
	if len(report.Updated) == 0 && len(report.Failed) > 0 {
		// nothing could be priced
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

type profitResponse struct {
	ILS     decimal.Decimal `json:"ils"`
	Percent decimal.Decimal `json:"percent"`
	Defined bool            `json:"defined"`
}

func (s *Server) totalProfit(c *gin.Context) {
	p, err := s.p.TotalProfit()
	if err != nil && c.Query("strict") != "" {
		s.fail(c, "total profit", err)
		return
	}
	c.JSON(http.StatusOK, profitResponse{ILS: p.ILS, Percent: p.Percent, Defined: p.Defined})
}

func (s *Server) totalAssets(c *gin.Context) {
	cur, err := mfm.ParseReporting(c.Param("currency"))
	if err != nil {
		s.fail(c, "total assets", err)
		return
	}
	total, err := s.p.TotalAssets(c.Request.Context(), cur)
	if err != nil {
		s.fail(c, "total assets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": cur, "total": total})
}

type cashFlowRequest struct {
	Bank   *decimal.Decimal `json:"bank"`
	Trader *decimal.Decimal `json:"trader"`
}

func (s *Server) snapshot(c *gin.Context) {
	var req cashFlowRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, fmt.Sprintf("failed to read request body: %v", err))
			return
		}
	}
	var (
		snap mfm.Snapshot
		err  error
	)
	if req.Bank == nil && req.Trader == nil {
		snap, err = s.p.SnapshotLatest(c.Request.Context())
	} else {
		snap, err = s.p.SnapshotHistory(c.Request.Context(), orZero(req.Bank), orZero(req.Trader))
	}
	if err != nil {
		s.fail(c, "snapshot", err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func (s *Server) setCashFlow(c *gin.Context) {
	var req cashFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, fmt.Sprintf("failed to read request body: %v", err))
		return
	}
	if req.Bank == nil && req.Trader == nil {
		s.badRequest(c, "bank or trader is required")
		return
	}
	snap, err := s.p.SetCashFlow(c.Request.Context(), req.Bank, req.Trader)
	if err != nil {
		s.fail(c, "set cash flow", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type foreignRequest struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
}

func (s *Server) updateForeign(c *gin.Context) {
	var req foreignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, fmt.Sprintf("failed to read request body: %v", err))
		return
	}
	cur, err := mfm.ParseCurrency(c.Param("currency"))
	if err != nil {
		s.fail(c, "update foreign", err)
		return
	}
	account, err := mfm.ParseAccount(req.Account)
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	b, err := s.p.UpdateForeignCurrency(c.Request.Context(), cur, account, req.Amount)
	if err != nil {
		s.fail(c, "update foreign", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) foreign(c *gin.Context) {
	list := s.p.Foreign()
	if list == nil {
		list = []mfm.ForeignBalance{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) holdings(c *gin.Context) {
	lots := s.p.Holdings()
	if lots == nil {
		lots = []mfm.Lot{}
	}
	c.JSON(http.StatusOK, lots)
}

func (s *Server) history(c *gin.Context) {
	list := s.p.History()
	if n := parseLimit(c.Query("limit"), len(list)); n < len(list) {
		list = list[:n]
	}
	if list == nil {
		list = []mfm.Snapshot{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.p.LastModified())
}

func parseLimit(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
