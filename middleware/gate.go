package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/upb/order-desk/models"
	"github.com/upb/order-desk/utils"
	"go.uber.org/zap"
)

// Response bodies written when the gate rejects a request
const (
	msgAuthenticationRequired = "Authentication required"
	msgInvalidOrExpiredToken  = "Invalid or expired token"
	msgInvalidToken           = "Invalid token"
)

const bearerPrefix = "Bearer "

// Gate outcomes, used as metric labels
const (
	OutcomePublic             = "public"
	OutcomeAuthenticated      = "authenticated"
	OutcomeUnauthorized       = "unauthorized"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeUnresolvedIdentity = "unresolved_identity"
)

// Authenticator validates bearer tokens and resolves the user behind them
type Authenticator interface {
	// ValidateToken reports whether the token is valid and unexpired.
	// A non-nil error is treated as an invalid token.
	ValidateToken(ctx context.Context, token string) (bool, error)

	// GetUserIDFromToken returns the user ID carried by the token
	GetUserIDFromToken(ctx context.Context, token string) (string, error)
}

// AuditLogger records security-relevant denials
type AuditLogger interface {
	Log(ctx context.Context, entry *models.AuditLog) error
}

// DecisionRecorder counts gate outcomes
type DecisionRecorder interface {
	RecordGateDecision(outcome string)
}

// Gate decides, for every inbound request, whether it may proceed
// unauthenticated, and otherwise authenticates it with a bearer token.
// It holds no mutable state and is safe for concurrent use.
type Gate struct {
	publicPaths []string
	auth        Authenticator
	auditor     AuditLogger
	recorder    DecisionRecorder
	logger      *zap.Logger
}

// GateOption configures optional Gate collaborators
type GateOption func(*Gate)

// WithDecisionRecorder reports every gate outcome to r
func WithDecisionRecorder(r DecisionRecorder) GateOption {
	return func(g *Gate) {
		g.recorder = r
	}
}

// NewGate creates a Gate. Public path prefixes are lower-cased and copied;
// the set never changes afterwards.
func NewGate(publicPaths []string, auth Authenticator, auditor AuditLogger, logger *zap.Logger, opts ...GateOption) *Gate {
	paths := make([]string, 0, len(publicPaths))
	for _, p := range publicPaths {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			paths = append(paths, p)
		}
	}

	g := &Gate{
		publicPaths: paths,
		auth:        auth,
		auditor:     auditor,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PublicPaths returns a copy of the configured public path prefixes
func (g *Gate) PublicPaths() []string {
	out := make([]string, len(g.publicPaths))
	copy(out, g.publicPaths)
	return out
}

// IsPublic reports whether the lower-cased path starts with a public prefix
func (g *Gate) IsPublic(path string) bool {
	path = strings.ToLower(path)
	for _, prefix := range g.publicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Handle wraps next with the gate. Checks run in order and the first failure
// ends the request with a 401:
//  1. public path prefix: pass through untouched
//  2. missing or malformed bearer token: audited, "Authentication required"
//  3. token rejected by the authenticator: audited, "Invalid or expired token"
//  4. no user ID behind the token: "Invalid token", not audited
//  5. otherwise UserId and Token are attached to the context and next runs once
func (g *Gate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)
		path := strings.ToLower(r.URL.Path)

		if g.IsPublic(path) {
			g.record(OutcomePublic)
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractBearerToken(r)
		if !ok {
			g.logger.Warn("missing bearer token",
				zap.String("request_id", requestID),
				zap.String("path", path))
			g.deny(ctx, w, r, path, models.AuditReasonUnauthorized, msgAuthenticationRequired)
			g.record(OutcomeUnauthorized)
			return
		}

		valid, err := g.auth.ValidateToken(ctx, token)
		if err != nil {
			g.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			valid = false
		}
		if !valid {
			g.deny(ctx, w, r, path, models.AuditReasonInvalidToken, msgInvalidOrExpiredToken)
			g.record(OutcomeInvalidToken)
			return
		}

		userID, err := g.auth.GetUserIDFromToken(ctx, token)
		if err != nil || userID == "" {
			// Not audited: only missing and rejected tokens produce ACCESS_DENIED entries.
			g.logger.Warn("token carries no resolvable user",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteText(w, http.StatusUnauthorized, msgInvalidToken)
			g.record(OutcomeUnresolvedIdentity)
			return
		}

		ctx = WithUserID(ctx, userID)
		ctx = WithToken(ctx, token)

		g.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", userID))
		g.record(OutcomeAuthenticated)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// deny writes the audit entry and then the 401. Audit failures are logged
// and never change the response.
func (g *Gate) deny(ctx context.Context, w http.ResponseWriter, r *http.Request, path, reason, message string) {
	entry := models.NewAuditLog(models.AuditActionAccessDenied, models.ResourceTypeAPI, path).
		WithActor(nil).
		WithReason(reason).
		WithRequest(GetRequestIDFromContext(ctx), ClientIP(r), r.UserAgent())

	if err := g.auditor.Log(ctx, entry); err != nil {
		g.logger.Warn("failed to write access denied audit entry",
			zap.String("request_id", entry.RequestID),
			zap.String("reason", reason),
			zap.Error(err))
	}

	if err := utils.WriteText(w, http.StatusUnauthorized, message); err != nil {
		g.logger.Error("failed to write unauthorized response", zap.Error(err))
	}
}

func (g *Gate) record(outcome string) {
	if g.recorder != nil {
		g.recorder.RecordGateDecision(outcome)
	}
}

// extractBearerToken reads the Authorization header. Only the exact,
// case-sensitive "Bearer " prefix followed by a non-empty token is accepted.
func extractBearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// ClientIP returns the host part of RemoteAddr, which chi's RealIP
// middleware has already rewritten from proxy headers.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
