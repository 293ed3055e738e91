package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinReportsSaas/internal/logger"
	"FinReportsSaas/internal/serviceiface"
)

type UserSession struct {
	SessionID     string
	UserID        string
	CompanyID     string
	Name          string
	Email         string
	Role          string
	LastLoginTime string
	ClientIP      string
	ExpiresAt     time.Time
	IsLoggedIn    bool
}

type AuthService struct {
	db             *sql.DB
	maxUsers       int
	sessionTimeout time.Duration
	cleanerPeriod  time.Duration
	users          map[string]*UserSession
	userPointers   map[string]*UserSession
	mu             sync.Mutex
	stopCh         chan struct{}
}

func NewAuthService(db *sql.DB, maxUsers, sessionTimeoutMin, cleanerPeriodMin int) serviceiface.Service {
	if maxUsers <= 0 {
		maxUsers = 500
	}
	if sessionTimeoutMin <= 0 {
		sessionTimeoutMin = 480
	}
	if cleanerPeriodMin <= 0 {
		cleanerPeriodMin = 10
	}
	return &AuthService{
		db:             db,
		maxUsers:       maxUsers,
		sessionTimeout: time.Duration(sessionTimeoutMin) * time.Minute,
		cleanerPeriod:  time.Duration(cleanerPeriodMin) * time.Minute,
		users:          make(map[string]*UserSession),
		userPointers:   make(map[string]*UserSession),
		stopCh:         make(chan struct{}),
	}
}

func (a *AuthService) Name() string { return "auth" }

func (a *AuthService) Start() error {
	go a.sessionCleaner()
	return nil
}

func (a *AuthService) Stop() error {
	close(a.stopCh)
	return nil
}

func (a *AuthService) Login(username, password, clientIP string) (*UserSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, session := range a.users {
		if session.Email == username && session.IsLoggedIn {
			session.LastLoginTime = time.Now().Format(time.RFC3339)
			session.ExpiresAt = time.Now().Add(a.sessionTimeout)
			session.ClientIP = clientIP
			if logger.GlobalLogger != nil {
				logger.GlobalLogger.LogAudit(fmt.Sprintf("User %s re-logged in, returning existing session", username))
			}
			return session, nil
		}
	}

	if len(a.users) >= a.maxUsers {
		return nil, errors.New("maximum concurrent users reached")
	}

	var (
		userID, name, email, companyID string
		role                           sql.NullString
	)
	query := `
    SELECT u.id, u.name, u.email, u.company_id, u.role
    FROM finreports.users u
    JOIN finreports.companies c ON c.id = u.company_id
    WHERE u.email = $1 AND u.password_hash = crypt($2, u.password_hash)
      AND u.status = 'active' AND c.status = 'active'
    `
	err := a.db.QueryRow(query, username, password).Scan(&userID, &name, &email, &companyID, &role)
	if err != nil {
		return nil, errors.New("invalid credentials or user not found")
	}

	session := &UserSession{
		SessionID:     uuid.New().String(),
		UserID:        userID,
		CompanyID:     companyID,
		Name:          name,
		Email:         email,
		Role:          role.String,
		LastLoginTime: time.Now().Format(time.RFC3339),
		ClientIP:      clientIP,
		ExpiresAt:     time.Now().Add(a.sessionTimeout),
		IsLoggedIn:    true,
	}
	a.users[session.SessionID] = session
	a.userPointers[userID] = session

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("User logged in: " + username)
	}
	return session, nil
}

func (a *AuthService) Logout(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, exists := a.users[sessionID]
	if !exists {
		return errors.New("session not found")
	}
	delete(a.users, sessionID)
	delete(a.userPointers, session.UserID)

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("User logged out: " + session.UserID)
	}
	return nil
}

func (a *AuthService) GetActiveSessions() []*UserSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	sessions := make([]*UserSession, 0, len(a.users))
	for _, s := range a.users {
		sessions = append(sessions, s)
	}
	return sessions
}

// GetSessionByUserID returns the live session for a user, or nil when the
// user is not logged in or the session expired.
func (a *AuthService) GetSessionByUserID(userID string) *UserSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	session, exists := a.userPointers[userID]
	if !exists || !session.IsLoggedIn {
		return nil
	}
	if time.Now().After(session.ExpiresAt) {
		delete(a.users, session.SessionID)
		delete(a.userPointers, userID)
		return nil
	}
	return session
}

func (a *AuthService) sessionCleaner() {
	ticker := time.NewTicker(a.cleanerPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.cleanExpired()
		}
	}
}

func (a *AuthService) cleanExpired() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	for id, session := range a.users {
		if now.After(session.ExpiresAt) {
			delete(a.users, id)
			delete(a.userPointers, session.UserID)
		}
	}
}

var globalAuthService *AuthService

// SetGlobalAuthService sets the global AuthService instance
func SetGlobalAuthService(svc *AuthService) {
	globalAuthService = svc
}

// GetActiveSessions returns active sessions from the global AuthService
func GetActiveSessions() []*UserSession {
	if globalAuthService == nil {
		return nil
	}
	return globalAuthService.GetActiveSessions()
}

// GetSessionByUserID resolves a session through the global AuthService.
func GetSessionByUserID(userID string) *UserSession {
	if globalAuthService == nil {
		return nil
	}
	return globalAuthService.GetSessionByUserID(userID)
}
