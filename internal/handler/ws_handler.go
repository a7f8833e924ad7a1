/*
Package handler provides the HTTP handler function for WebSocket connection
upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for
rate limiting, authenticating the session token, upgrading the HTTP
connection to WebSocket, and initiating the client lifecycle.
*/
package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lexcollab/internal/app/collab"
	"lexcollab/internal/pkg/auth/jwt"
	"lexcollab/internal/pkg/errs"
	"lexcollab/internal/pkg/limiter"
	"lexcollab/internal/pkg/logx"
	"lexcollab/internal/pkg/resp"
)

// sessionToken extracts the JWT from the handshake request. Browsers cannot
// set headers on websocket requests, so the query parameter is the primary
// carrier; the Authorization header works for non-browser clients.
func sessionToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := sessionToken(r)
		if token == "" {
			logx.Warn("WebSocket request rejected: Missing session token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
			return
		}

		payload, err := jwt.ParseToken(token, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: Invalid session token", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
			return
		}

		connID := uuid.NewString()

		logx.Info("Attempting to upgrade connection", "conn_id", connID, "user_id", payload.UserID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client, customErr := collab.NewClient(deps.Hub, conn, connID, payload.UserID, payload.DisplayName)
		if customErr != nil {
			logx.Warn("WebSocket registration failed", "conn_id", connID, "code", customErr.Code)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, customErr.Message))
			_ = conn.Close()
			return
		}

		go client.WritePump()

		logx.Info("WebSocket connection established and client registered",
			"conn_id", connID, "user_id", payload.UserID)

		client.ReadPump()
	}
}
