package http

import (
	"net/http"

	"finify/internal/core"
	"finify/internal/currency"
	"finify/internal/display"
	applog "finify/internal/log"
	"finify/internal/services"
)

// listResponse is one page of a listing and the context it was rendered in.
type listResponse[T any] struct {
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"`
	services.Page[T]
}

type entryResponse struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	IncomeCents   int64  `json:"income_cents"`
	ExpensesCents int64  `json:"expenses_cents"`
	Remarks       string `json:"remarks"`
}

func newEntryResponse(e core.FinancialEntry) entryResponse {
	return entryResponse{
		ID:            e.ID,
		Date:          e.Date.String(),
		IncomeCents:   e.Income.Cents,
		ExpensesCents: e.Expenses.Cents,
		Remarks:       e.Remarks,
	}
}

type currencyOption struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type currencyResponse struct {
	Selected string           `json:"selected"`
	Base     string           `json:"base"`
	Rate     float64          `json:"rate"`
	Options  []currencyOption `json:"options"`
}

func (s *Server) newCurrencyResponse(dc display.Context) currencyResponse {
	codes := currency.All()
	options := make([]currencyOption, len(codes))
	for i, c := range codes {
		options[i] = currencyOption{Code: string(c), Name: c.DisplayName()}
	}
	return currencyResponse{
		Selected: string(dc.Currency),
		Base:     string(s.currency.Base()),
		Rate:     dc.Rate,
		Options:  options,
	}
}

// writeError logs err and writes the mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	resp, errType := ErrorFor(err)
	applog.FromContext(r.Context()).LogFailure(r.Context(), "Request failed", err, op, errType)
	resp.Write(w)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	rows, dc, err := s.views.Entries()
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	NewJSONResponse().Body(listResponse[services.EntryRow]{
		Currency: string(dc.Currency),
		Rate:     dc.Rate,
		Page:     services.Paginate(rows, parsePage(r.URL.Query()), services.EntriesPageSize),
	}).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	entry, err := s.entries.CreateEntry(r.Context(), services.CreateEntryInput{
		Date:     p.Get("date"),
		Income:   p.Get("income"),
		Expenses: p.Get("expenses"),
		Remarks:  p.Get("remarks"),
	})
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/entries/"+entry.ID).
		Body(newEntryResponse(entry)).
		Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	if err := s.entries.DeleteEntry(r.Context(), id); err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rows, dc, err := s.views.Summaries()
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	NewJSONResponse().Body(listResponse[services.SummaryRow]{
		Currency: string(dc.Currency),
		Rate:     dc.Rate,
		Page:     services.Paginate(rows, parsePage(r.URL.Query()), services.SummariesPageSize),
	}).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.views.Overview()
	if err != nil {
		s.writeError(w, r, err, applog.OpRead)
		return
	}
	NewJSONResponse().Body(ov).Write(w)
}

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.newCurrencyResponse(s.currency.Context())).Write(w)
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	code, err := currency.ParseCode(p.Get("currency"))
	if err != nil {
		s.writeError(w, r, err, applog.OpValidate)
		return
	}
	dc, err := s.currency.SetCurrency(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err, applog.OpPersist)
		return
	}
	NewJSONResponse().Body(s.newCurrencyResponse(dc)).Write(w)
}
