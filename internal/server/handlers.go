package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"StockScope/internal/model"
	"StockScope/internal/recorder"
	"StockScope/internal/render"
	"StockScope/internal/snapshot"
)

const dateLayout = "2006-01-02"

// formValues are the raw inputs echoed back into the form.
type formValues struct {
	Tickers string
	Start   string
	End     string
}

// parseRequest builds a request from query parameters. Absent parameters
// take the configured defaults; present but blank tickers are malformed.
func (s *Server) parseRequest(q url.Values) (model.PortfolioRequest, formValues, error) {
	var req model.PortfolioRequest
	form := formValues{Tickers: s.defaults.Tickers}

	rng, err := s.defaults.Range(time.Now())
	if err != nil {
		return req, form, errors.Wrap(err, "default range")
	}
	form.Start, form.End = rng.Start.Format(dateLayout), rng.End.Format(dateLayout)

	if q.Has("tickers") {
		form.Tickers = q.Get("tickers")
	}
	if v := q.Get("start"); v != "" {
		form.Start = v
	}
	if v := q.Get("end"); v != "" {
		form.End = v
	}

	tickers, err := snapshot.ParseTickers(form.Tickers, s.defaults.UpperCase)
	if err != nil {
		return req, form, errors.Wrap(err, "enter at least one ticker symbol, separated by commas")
	}
	start, err := time.Parse(dateLayout, form.Start)
	if err != nil {
		return req, form, errors.Wrapf(model.ErrMalformedInput, "start date %q", form.Start)
	}
	end, err := time.Parse(dateLayout, form.End)
	if err != nil {
		return req, form, errors.Wrapf(model.ErrMalformedInput, "end date %q", form.End)
	}
	if end.Before(start) {
		return req, form, errors.Wrap(model.ErrMalformedInput, "end date is before start date")
	}

	req = model.PortfolioRequest{Tickers: tickers, Range: model.DateRange{Start: start, End: end}}
	return req, form, nil
}

// statusFor maps a run error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrProviderUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// run parses, builds and records one request.
func (s *Server) run(r *http.Request, trigger string) (*snapshot.Result, formValues, error) {
	req, form, err := s.parseRequest(r.URL.Query())
	if err != nil {
		return nil, form, err
	}
	res, err := s.builder.BuildSnapshots(r.Context(), req)
	if err != nil {
		return nil, form, err
	}
	if err := s.recorder.RecordRun(r.Context(), res, trigger); err != nil {
		s.log.Error().Err(err).Str("run", res.ID).Msg("record run")
	}
	return res, form, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type snapshotsResponse struct {
	*snapshot.Result
	Missing  []model.TickerSymbol `json:"missing"`
	Table    render.Table         `json:"table"`
	Panels   []render.Panel       `json:"panels"`
	Messages []render.Notice      `json:"messages"`
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	res, _, err := s.run(r, recorder.TriggerAPI)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	report := render.BuildReport(res, s.report)
	missing := res.Missing()
	if missing == nil {
		missing = []model.TickerSymbol{}
	}
	s.writeJSON(w, http.StatusOK, snapshotsResponse{
		Result:   res,
		Missing:  missing,
		Table:    report.Table,
		Panels:   report.Panels,
		Messages: report.Notices,
	})
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	res, _, err := s.run(r, recorder.TriggerAPI)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	out, err := render.PDF(render.BuildReport(res, s.report))
	if err != nil {
		s.log.Error().Err(err).Msg("render pdf")
		s.writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="stockscope-%s.pdf"`, res.Request.Range.End.Format(dateLayout)))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	_, _ = w.Write(out)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.recorder.RecentRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []recorder.RunRecord{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

type runDetailResponse struct {
	ID        string                 `json:"id"`
	Snapshots []recorder.SnapshotRow `json:"snapshots"`
	Errors    []recorder.ErrorRow    `json:"errors"`
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snaps, err := s.recorder.SnapshotsForRun(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	errs, err := s.recorder.ErrorsForRun(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(snaps) == 0 && len(errs) == 0 {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if snaps == nil {
		snaps = []recorder.SnapshotRow{}
	}
	if errs == nil {
		errs = []recorder.ErrorRow{}
	}
	s.writeJSON(w, http.StatusOK, runDetailResponse{ID: id, Snapshots: snaps, Errors: errs})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page := pageData{Title: s.report.Title}
	if page.Title == "" {
		page.Title = render.DefaultTitle
	}

	// the form alone until the user presses Run
	if r.URL.Query().Get("run") == "" {
		_, form, err := s.parseRequest(url.Values{})
		page.Form = form
		if err != nil {
			page.Error = err.Error()
		}
		s.writePage(w, http.StatusOK, page)
		return
	}

	res, form, err := s.run(r, recorder.TriggerWeb)
	page.Form = form
	if err != nil {
		page.Error = err.Error()
		s.writePage(w, statusFor(err), page)
		return
	}

	report := render.BuildReport(res, s.report)
	body, err := render.HTML(report)
	if err != nil {
		s.log.Error().Err(err).Msg("render html")
		page.Error = "failed to render report"
		s.writePage(w, http.StatusInternalServerError, page)
		return
	}
	page.Report = report
	page.Body = body
	page.Chart = render.ChartSVG(report.Chart, 960, 360)
	page.PDFLink = "/api/report.pdf?" + r.URL.Query().Encode()
	s.writePage(w, http.StatusOK, page)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": strings.TrimSpace(message),
	})
}
