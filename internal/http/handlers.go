package http

import (
	"context"
	"errors"
	"net/http"

	"homeledger/internal/core"
	applog "homeledger/internal/log"
	"homeledger/internal/middleware/trace"
	"homeledger/internal/services"
	"homeledger/internal/store"
)

type recordResponse[T any] struct {
	Record  T             `json:"record"`
	Version store.Version `json:"version"`
}

type transactionsResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	Version      store.Version      `json:"version"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var t core.Transaction
	if err := DecodeJSON(w, r, &t); err != nil {
		s.writeError(w, r, err)
		return
	}

	saved, version, err := s.ledger.RecordTransaction(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Version(version).
		Body(recordResponse[core.Transaction]{Record: saved, Version: version}).
		Write(w)
}

func (s *Server) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap core.AssetSnapshot
	if err := DecodeJSON(w, r, &snap); err != nil {
		s.writeError(w, r, err)
		return
	}

	saved, version, err := s.ledger.RecordSnapshot(r.Context(), snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Version(version).
		Body(recordResponse[core.AssetSnapshot]{Record: saved, Version: version}).
		Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, version, err := s.reports.Transactions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().
		Version(version).
		Body(transactionsResponse{Transactions: txs, Version: version}).
		Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.reports.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	NewJSONResponse().Body(map[string][]string{"categories": cats}).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(s, w, r, func(ctx context.Context) (*services.Dashboard, error) {
		return s.reports.Dashboard(ctx, m)
	})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(s, w, r, func(ctx context.Context) (*services.BudgetReport, error) {
		return s.reports.Budget(ctx, m)
	})
}

func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(s, w, r, func(ctx context.Context) (any, error) {
		node, err := s.reports.Hierarchy(ctx, m)
		if err != nil {
			return nil, err
		}
		return map[string]any{"month": m, "root": node}, nil
	})
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	respond(s, w, r, s.reports.NetWorth)
}

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	respond(s, w, r, s.reports.PnL)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYearParam(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respond(s, w, r, func(ctx context.Context) (*services.TrendReport, error) {
		return s.reports.Trend(ctx, year)
	})
}

// respond runs a read-only report and writes it as the response body.
func respond[T any](s *Server, w http.ResponseWriter, r *http.Request, build func(context.Context) (T, error)) {
	out, err := build(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(out).Write(w)
}

// writeError maps domain errors onto status codes. Anything unrecognised is a
// 500 whose detail stays in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	requestID := trace.GetRequestID(ctx)
	logger := applog.FromContext(ctx)

	switch {
	case errors.Is(err, errBadRequest), core.IsValidationError(err):
		ErrorResponse(http.StatusBadRequest, err.Error(), requestID).Write(w)
	case errors.Is(err, store.ErrVersionConflict):
		logger.Warn("Write abandoned after version conflicts", applog.FieldError, err)
		ErrorResponse(http.StatusConflict, "the ledger changed concurrently, retry the request", requestID).Write(w)
	case errors.Is(err, services.ErrReadOnly):
		ErrorResponse(http.StatusForbidden, err.Error(), requestID).Write(w)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Request aborted", applog.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "request aborted", requestID).Write(w)
	default:
		op := applog.OpReport
		if r.Method == http.MethodPost {
			op = applog.OpCreate
		}
		fields := applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "")
		applog.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, applog.ComponentHTTP, op, fields)
		ErrorResponse(http.StatusInternalServerError, "internal error", requestID).Write(w)
	}
}
