package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/docuflow/internal/plan"
)

type checkoutRequest struct {
	Plan string `json:"plan"`
}

func (s *Server) CreateCheckout(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	target, err := plan.ParseID(req.Plan)
	if err != nil {
		AbortWithError(c, newValidationError("plan", "unknown_plan", "unknown plan"))
		return
	}

	resp, err := s.billingSvc.Checkout(c.Request.Context(), orgID, target)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Upgrade(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.Upgrade(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ScheduleDowngrade(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.billingSvc.ScheduleDowngrade(c.Request.Context(), orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	downgrade, err := s.billingSvc.ScheduledDowngrade(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"scheduled_downgrade": downgrade}})
}

func (s *Server) Cancel(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.billingSvc.Cancel(c.Request.Context(), orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cancel_at_period_end": true}})
}

func (s *Server) Reactivate(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.billingSvc.Reactivate(c.Request.Context(), orgID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cancel_at_period_end": false}})
}

func (s *Server) CreatePortalSession(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	url, err := s.billingSvc.PortalSession(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"url": url}})
}

func (s *Server) GetBillingSummary(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	summary, err := s.billingSvc.Summary(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) GetUpgradePreview(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	preview, err := s.billingSvc.UpgradePreview(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// A nil preview is a valid response: the amount is advisory and absent
	// whenever the provider cannot produce one.
	c.JSON(http.StatusOK, gin.H{"data": preview})
}

func (s *Server) GetDowngradePreview(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	preview, err := s.billingSvc.DowngradePreview(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": preview})
}

func (s *Server) ListInvoices(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var query struct {
		Limit int64 `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoices, err := s.billingSvc.Invoices(c.Request.Context(), orgID, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) GetPaymentMethod(c *gin.Context) {
	orgID, ok := orgIDFrom(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	method, err := s.billingSvc.PaymentMethod(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": method})
}
