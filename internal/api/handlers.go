package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bookingchat/internal/auth"
	"bookingchat/internal/chat"
	"bookingchat/internal/models"
)

// ChatService is the conversational surface the HTTP layer drives.
type ChatService interface {
	SendMessage(ctx context.Context, userID int64, text string, hidden bool) (string, error)
	History(ctx context.Context, userID int64) ([]models.Message, error)
	ClearHistory(ctx context.Context, userID int64) error
}

// CalendarGateway exposes the booking operations directly, without going
// through the assistant.
type CalendarGateway interface {
	AvailableSlots(ctx context.Context, start, end time.Time, timezone string) ([]string, error)
	Book(ctx context.Context, req models.BookingRequest) (*models.Appointment, error)
	AppointmentsByEmail(ctx context.Context, email string) ([]models.Appointment, error)
	Reschedule(ctx context.Context, appointmentID, newSlot, timezone string) (*models.Appointment, error)
	Cancel(ctx context.Context, appointmentID string) error
}

// Handler wires HTTP routes to the chat service and the calendar gateway.
type Handler struct {
	chat     ChatService
	calendar CalendarGateway
	auth     *auth.Service
}

// NewHandler constructs a Handler instance.
func NewHandler(chatService ChatService, calendar CalendarGateway, authService *auth.Service) *Handler {
	return &Handler{
		chat:     chatService,
		calendar: calendar,
		auth:     authService,
	}
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)

	authMW := h.auth.Middleware()
	protected := api.Group("")
	protected.Use(authMW, h.auth.CSRFMiddleware())
	protected.POST("/messages", h.sendMessage)
	protected.GET("/messages", h.getHistory)
	protected.DELETE("/messages", h.clearHistory)
	protected.GET("/appointments", h.queryAppointments)
	protected.POST("/appointments", h.bookAppointment)
	protected.PUT("/appointments", h.updateAppointment)
	protected.DELETE("/appointments", h.cancelAppointment)
	protected.POST("/logout", h.logoutUser)
}

// User create&login interface
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.RegisterUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"auth_token": authToken,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

// Chat interface
type messageRequest struct {
	Message string `json:"message"`
	Hidden  bool   `json:"hidden"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	reply, err := h.chat.SendMessage(c.Request.Context(), userID, req.Message, req.Hidden)
	if err != nil {
		if errors.Is(err, chat.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (h *Handler) getHistory(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	history, err := h.chat.History(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, chat.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if history == nil {
		history = make([]models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) clearHistory(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.chat.ClearHistory(c.Request.Context(), userID); err != nil {
		if errors.Is(err, chat.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Appointment interface. GET multiplexes on the action parameter the way the
// widget calls it: action=slots for availability, action=userAppointments for
// a contact's bookings.
func (h *Handler) queryAppointments(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	switch c.Query("action") {
	case "slots":
		h.querySlots(c)
	case "userAppointments":
		h.queryUserAppointments(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action"})
	}
}

func (h *Handler) querySlots(c *gin.Context) {
	startRaw := c.Query("startDate")
	endRaw := c.Query("endDate")
	if startRaw == "" || endRaw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startDate and endDate are required"})
		return
	}
	start, err := parseDateParam(startRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate"})
		return
	}
	end, err := parseDateParam(endRaw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endDate"})
		return
	}
	slots, err := h.calendar.AvailableSlots(c.Request.Context(), start, end, c.Query("timezone"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch slots"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

func (h *Handler) queryUserAppointments(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	appts, err := h.calendar.AppointmentsByEmail(c.Request.Context(), email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch appointments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appts})
}

type bookRequest struct {
	Slot     string `json:"slot"`
	Timezone string `json:"timezone"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (h *Handler) bookAppointment(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Slot == "" || req.Name == "" || req.Email == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot, name, email and phone are required"})
		return
	}
	appt, err := h.calendar.Book(c.Request.Context(), models.BookingRequest{
		Slot:     req.Slot,
		Timezone: req.Timezone,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to book appointment"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"appointment": appt})
}

type updateAppointmentRequest struct {
	AppointmentID string `json:"appointmentId"`
	NewSlot       string `json:"newSlot"`
	Timezone      string `json:"timezone"`
}

func (h *Handler) updateAppointment(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	var req updateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.AppointmentID == "" || req.NewSlot == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "appointmentId and newSlot are required"})
		return
	}
	appt, err := h.calendar.Reschedule(c.Request.Context(), req.AppointmentID, req.NewSlot, req.Timezone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update appointment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointment": appt})
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointmentId"`
}

func (h *Handler) cancelAppointment(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	var req cancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.AppointmentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "appointmentId is required"})
		return
	}
	if err := h.calendar.Cancel(c.Request.Context(), req.AppointmentID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel appointment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func parseDateParam(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
