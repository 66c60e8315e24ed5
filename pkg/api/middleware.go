package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/auth"
	"github.com/marmos91/dittodrive/pkg/files"
)

const principalKey = "principal"

// authenticate resolves the bearer token and stores the principal on the
// request context. Handlers never see the token.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodOptions {
			return next(c)
		}

		token, err := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return files.ErrUnauthenticated
		}

		principal, _, err := s.authn.Authenticate(c.Request().Context(), token)
		if err != nil {
			logger.Debug("auth: %s %s rejected: %v", c.Request().Method, c.Path(), err)
			return files.ErrUnauthenticated
		}

		c.Set(principalKey, principal)
		return next(c)
	}
}

func principalFrom(c echo.Context) *access.Principal {
	p, _ := c.Get(principalKey).(*access.Principal)
	return p
}

// rateLimit throttles uploads per principal.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p := principalFrom(c)
		if p != nil && !s.limiter.Allow(p.ID) {
			logger.Debug("rate limit: upload by %s rejected", p.ID)
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
		}
		return next(c)
	}
}

// requestLogger logs one line per request through the process logger.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			user := "-"
			if p := principalFrom(c); p != nil {
				user = p.ID
			}
			if v.Status >= http.StatusInternalServerError {
				logger.Warn("HTTP %s %s status=%d user=%s remote=%s latency=%s error=%v",
					v.Method, v.URI, v.Status, user, v.RemoteIP, v.Latency, v.Error)
				return nil
			}
			logger.Debug("HTTP %s %s status=%d user=%s remote=%s latency=%s",
				v.Method, v.URI, v.Status, user, v.RemoteIP, v.Latency)
			return nil
		},
	})
}
