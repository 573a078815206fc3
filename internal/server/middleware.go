package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/orgcontext"
)

const orgHeader = "X-Org-ID"

// OrgContext resolves the acting organization from the X-Org-ID header and
// stores it on the request context. Every billing and usage route requires it.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(orgHeader))
		if raw == "" {
			AbortWithError(c, newValidationError("org_id", "missing_org_id", "missing X-Org-ID header"))
			return
		}

		orgID, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid X-Org-ID header"))
			return
		}

		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), orgID))
		c.Next()
	}
}

func orgIDFrom(c *gin.Context) (snowflake.ID, bool) {
	return orgcontext.OrgIDFromContext(c.Request.Context())
}

// UsageRateLimit bounds the usage assert/record path per organization.
func (s *Server) UsageRateLimit() gin.HandlerFunc {
	return s.rateLimitWith(func(c *gin.Context, orgID string) (allowed bool, retryAfter string, err error) {
		res, err := s.limiter.AllowUsage(c.Request.Context(), orgID)
		if err != nil {
			return false, "", err
		}
		return res.Allowed, strconv.Itoa(int(res.RetryAfter.Seconds()) + 1), nil
	})
}

// BillingRateLimit bounds billing mutations per organization.
func (s *Server) BillingRateLimit() gin.HandlerFunc {
	return s.rateLimitWith(func(c *gin.Context, orgID string) (allowed bool, retryAfter string, err error) {
		res, err := s.limiter.AllowBilling(c.Request.Context(), orgID)
		if err != nil {
			return false, "", err
		}
		return res.Allowed, strconv.Itoa(int(res.RetryAfter.Seconds()) + 1), nil
	})
}

// rateLimitWith fails open on limiter errors: an unreachable redis must not
// take billing down with it.
func (s *Server) rateLimitWith(allow func(*gin.Context, string) (bool, string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		orgID, ok := orgIDFrom(c)
		if !ok {
			c.Next()
			return
		}

		allowed, retryAfter, err := allow(c, orgID.String())
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", retryAfter)
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

// TransitionLock serializes plan transitions per organization so concurrent
// requests cannot race each other against the billing provider.
func (s *Server) TransitionLock(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			handler(c)
			return
		}

		orgID, ok := orgIDFrom(c)
		if !ok {
			handler(c)
			return
		}

		token, locked, err := s.limiter.TryLockTransition(c.Request.Context(), orgID.String())
		if err != nil {
			s.log.Warn("transition lock unavailable", zap.Error(err))
			handler(c)
			return
		}
		if !locked {
			AbortWithError(c, ErrTransitionInProgress)
			return
		}
		defer func() {
			if err := s.limiter.ReleaseTransition(c.Request.Context(), orgID.String(), token); err != nil {
				s.log.Warn("transition lock release failed", zap.Error(err))
			}
		}()

		handler(c)
	}
}
