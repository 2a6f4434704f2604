package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"adportal/internal/pricing"
	"adportal/internal/quote"
	"adportal/internal/storage"
	"adportal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type displayLine struct {
	Product   pricing.Product `json:"product"`
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
}

type priceResponse struct {
	Quote pricing.Quote `json:"quote"`
	Lines []displayLine `json:"lines"`
}

func displayLines(card *pricing.RateCard, q pricing.Quote) []displayLine {
	symbol := pricing.CurrencySymbol(card.Currency)
	var out []displayLine
	for _, b := range []*pricing.Breakdown{q.Advertising, q.Leafleting} {
		if b == nil {
			continue
		}
		for _, l := range b.Lines() {
			out = append(out, displayLine{
				Product:   b.Product,
				Label:     l.Label,
				Amount:    l.Amount,
				Formatted: pricing.FormatMoney(symbol, l.Amount),
			})
		}
	}
	return out
}

func (s *Server) listAreas(c *gin.Context) {
	areas, err := s.quotes.Catalog(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	card := s.quotes.RateCard()
	c.JSON(http.StatusOK, gin.H{
		"areas":         areas,
		"bogof_enabled": card.BOGOFEnabled,
		"currency":      card.Currency,
	})
}

func (s *Server) rateCard(c *gin.Context) {
	card := s.quotes.RateCard()
	c.JSON(http.StatusOK, gin.H{
		"rate_card":       card,
		"bookable_months": pricing.BookableMonths(card, s.quotes.Now()),
	})
}

func (s *Server) calculate(c *gin.Context) {
	var draft quote.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	price, err := s.quotes.PriceDraft(c.Request.Context(), draft)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, priceResponse{Quote: price, Lines: displayLines(s.quotes.RateCard(), price)})
}

type scheduleRequest struct {
	Draft           quote.Draft `json:"draft"`
	RequireComplete bool        `json:"require_complete"`
}

func (s *Server) validateSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	err := s.quotes.ValidateSchedule(req.Draft, req.RequireComplete)
	var sv *pricing.ScheduleViolations
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"valid": true})
	case errors.As(err, &sv):
		c.JSON(http.StatusOK, gin.H{"valid": false, "violations": sv.Violations})
	default:
		s.writeError(c, err)
	}
}

type voucherRequest struct {
	Code     string          `json:"code" binding:"required,max=64"`
	Product  pricing.Product `json:"product" binding:"required,oneof=advertising leafleting"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func (s *Server) checkVoucher(c *gin.Context) {
	var req voucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "code and product are required"})
		return
	}

	res, err := s.quotes.CheckVoucher(c.Request.Context(), req.Code, req.Product, req.Subtotal)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type submitRequest struct {
	Draft   quote.Draft   `json:"draft"`
	Contact quote.Contact `json:"contact"`
}

func (s *Server) submitQuote(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	q, err := s.quotes.Submit(c.Request.Context(), quote.Submission{
		Draft:   req.Draft,
		Contact: req.Contact,
		Source:  quote.SourceWeb,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	if s.notifier != nil {
		s.notifier.NotifyNewQuote(c.Request.Context(), q)
	}
	c.JSON(http.StatusCreated, gin.H{
		"quote": q,
		"lines": displayLines(s.quotes.RateCard(), q.Price),
	})
}

func (s *Server) getQuote(c *gin.Context) {
	q, err := s.quotes.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"quote": q,
		"lines": displayLines(s.quotes.RateCard(), q.Price),
	})
}

func (s *Server) exportQuote(c *gin.Context) {
	q, err := s.quotes.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := storage.WriteQuoteWorkbook(&buf, q); err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="quote-%s.xlsx"`, q.Ref[:8]))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *Server) writeError(c *gin.Context, err error) {
	var sv *pricing.ScheduleViolations
	switch {
	case errors.As(err, &sv):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid schedule", "violations": sv.Violations})
	case errors.Is(err, quote.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "quote not found"})
	case errors.Is(err, quote.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case quote.IsUserError(err):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Request failed",
			zap.String("request_id", logger.RequestIDFrom(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
