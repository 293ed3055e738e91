package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"FinReportsSaas/api/auth"
	"FinReportsSaas/api/constants"
)

type contextKey string

const (
	SessionKey   contextKey = "session"
	UserIDKey    contextKey = "user_id"
	CompanyIDKey contextKey = "company_id"
)

// ExtractUserID pulls user_id from the JSON body, form data, or query string,
// restoring the body for the next handler.
func ExtractUserID(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), constants.ContentTypeJSON) {
		body, err := io.ReadAll(r.Body)
		if err == nil {
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewBuffer(body))
			var m map[string]interface{}
			if json.Unmarshal(body, &m) == nil {
				if uid, ok := m["user_id"].(string); ok && uid != "" {
					return uid
				}
			}
		}
	}
	if uid := r.URL.Query().Get("user_id"); uid != "" {
		return uid
	}
	return r.FormValue("user_id")
}

// SessionMiddleware resolves the caller's session from user_id and injects the
// session, user id, and company scope into the request context. Every tenant
// query downstream reads company_id from context, never from the client.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := ExtractUserID(r)
		if userID == "" {
			RespondWithError(w, http.StatusBadRequest, constants.ErrMissingUserID)
			return
		}
		session := auth.GetSessionByUserID(userID)
		if session == nil {
			RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}
		ctx := r.Context()
		ctx = context.WithValue(ctx, SessionKey, session)
		ctx = context.WithValue(ctx, UserIDKey, session.UserID)
		ctx = context.WithValue(ctx, CompanyIDKey, session.CompanyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetSessionFromCtx(ctx context.Context) *auth.UserSession {
	if session, ok := ctx.Value(SessionKey).(*auth.UserSession); ok {
		return session
	}
	return nil
}

func GetUserIDFromCtx(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

func GetCompanyIDFromCtx(ctx context.Context) string {
	if companyID, ok := ctx.Value(CompanyIDKey).(string); ok {
		return companyID
	}
	return ""
}
