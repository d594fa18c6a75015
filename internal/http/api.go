package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lookmeal-admin/internal/domain"
	"lookmeal-admin/internal/service"
	"lookmeal-admin/internal/userlist"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth            *service.AuthService
	exports         service.ExportService
	users           []domain.User
	stats           domain.DashboardStats
	chart           []domain.ChartPoint
	defaultPageSize int
}

func NewHandler(auth *service.AuthService, exports service.ExportService, users []domain.User, stats domain.DashboardStats, chart []domain.ChartPoint, defaultPageSize int) *Handler {
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	return &Handler{
		auth:            auth,
		exports:         exports,
		users:           users,
		stats:           stats,
		chart:           chart,
		defaultPageSize: defaultPageSize,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/set-password", h.setPassword)
			auth.POST("/login", h.login)
			auth.POST("/reset-password", h.resetPassword)
			auth.POST("/logout", h.logout)
			auth.GET("/session", h.session)
			auth.GET("/registered", h.registered)
		}

		guarded := api.Group("", h.authRequired())
		{
			guarded.GET("/users", h.listUsers)
			guarded.GET("/users/exports", h.listExports)
			guarded.POST("/users/export", h.exportUsers)
			guarded.GET("/dashboard/stats", h.dashboardStats)
			guarded.GET("/dashboard/chart", h.dashboardChart)
		}

		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authRequired guards routes that only an authenticated session may reach.
func (h *Handler) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := h.auth.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func toResultResponse(res service.Result) resultResponse {
	return resultResponse{Success: res.Success, Message: res.Message}
}

func (h *Handler) setPassword(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	c.JSON(http.StatusOK, toResultResponse(res))
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if !res.Success {
		c.JSON(http.StatusOK, toResultResponse(res))
		return
	}

	token, _ := h.auth.AuthToken(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": res.Message,
		"token":   token,
		"user":    sessionToResponse(h.auth.CurrentSession()),
	})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.auth.ResetPassword(c.Request.Context(), req.Email, req.Password)
	c.JSON(http.StatusOK, toResultResponse(res))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resultResponse{Success: true, Message: "ログアウトしました"})
}

// session reports the authentication state the front-end needs for route
// guarding. The just-logged-out flag is one-shot: reading it here clears it.
func (h *Handler) session(c *gin.Context) {
	resp := gin.H{
		"authenticated":   h.auth.IsAuthenticated(),
		"has_accounts":    h.auth.HasRegisteredAccounts(c.Request.Context()),
		"just_logged_out": h.auth.ConsumeJustLoggedOut(c.Request.Context()),
	}
	if session := h.auth.CurrentSession(); session != nil {
		resp["user"] = sessionToResponse(session)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) registered(c *gin.Context) {
	email := c.Query("email")
	if strings.TrimSpace(email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": h.auth.IsRegistered(c.Request.Context(), email)})
}

func (h *Handler) listUsers(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(h.defaultPageSize)))
	if err != nil || pageSize < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
		return
	}

	result := userlist.Run(h.users, c.Query("search"), page, pageSize)

	users := make([]UserResponse, len(result.Items))
	for i := range result.Items {
		users[i] = userToResponse(result.Items[i])
	}
	c.JSON(http.StatusOK, UserListResponse{
		Users:      users,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) dashboardStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		TotalUsers:             h.stats.TotalUsers,
		ActiveUsers:            h.stats.ActiveUsers,
		NewRegistrations:       h.stats.NewRegistrations,
		MonthlyGrowth:          h.stats.MonthlyGrowth,
		UserGrowthPercentage:   h.stats.UserGrowthPercentage,
		ActiveUserPercentage:   h.stats.ActiveUserPercentage,
		RegistrationPercentage: h.stats.RegistrationPercentage,
		GrowthPercentage:       h.stats.GrowthPercentage,
	})
}

func (h *Handler) dashboardChart(c *gin.Context) {
	points := make([]ChartPointResponse, len(h.chart))
	for i := range h.chart {
		points[i] = ChartPointResponse{Month: h.chart[i].Month, Users: h.chart[i].Users}
	}
	c.JSON(http.StatusOK, points)
}

func (h *Handler) exportUsers(c *gin.Context) {
	if h.exports == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage service not configured"})
		return
	}

	location, err := h.exports.ExportUsers(c.Request.Context(), h.users, c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"location": location})
}

func (h *Handler) listExports(c *gin.Context) {
	if h.exports == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage service not configured"})
		return
	}

	objects, err := h.exports.ListExports(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]ExportObjectResponse, len(objects))
	for i := range objects {
		resp[i] = ExportObjectResponse{Key: objects[i].Key, Size: objects[i].Size}
		if objects[i].LastModified != nil && !objects[i].LastModified.IsZero() {
			v := objects[i].LastModified.Format(time.RFC3339)
			resp[i].LastModified = &v
		}
	}
	c.JSON(http.StatusOK, resp)
}

type UserResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Role             string  `json:"role"`
	Status           string  `json:"status"`
	RegisteredAt     string  `json:"registered_at"`
	RegistrationDate string  `json:"registration_date"`
	LastLoginAt      *string `json:"last_login_at,omitempty"`
	Gender           string  `json:"gender,omitempty"`
	Prefecture       string  `json:"prefecture,omitempty"`
}

type UserListResponse struct {
	Users      []UserResponse `json:"users"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalItems int            `json:"total_items"`
	TotalPages int            `json:"total_pages"`
}

type SessionResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type StatsResponse struct {
	TotalUsers             int     `json:"total_users"`
	ActiveUsers            int     `json:"active_users"`
	NewRegistrations       int     `json:"new_registrations"`
	MonthlyGrowth          int     `json:"monthly_growth"`
	UserGrowthPercentage   float64 `json:"user_growth_percentage"`
	ActiveUserPercentage   float64 `json:"active_user_percentage"`
	RegistrationPercentage float64 `json:"registration_percentage"`
	GrowthPercentage       float64 `json:"growth_percentage"`
}

type ChartPointResponse struct {
	Month string `json:"month"`
	Users int    `json:"users"`
}

type ExportObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func sessionToResponse(session *domain.Session) *SessionResponse {
	if session == nil {
		return nil
	}
	return &SessionResponse{
		ID:    session.ID,
		Email: session.Email,
		Name:  session.Name,
		Role:  session.Role,
	}
}

func userToResponse(user domain.User) UserResponse {
	resp := UserResponse{
		ID:               user.ID,
		Name:             user.Name,
		Email:            user.Email,
		Role:             user.Role,
		Status:           string(user.Status),
		RegisteredAt:     user.RegisteredAt.Format(time.RFC3339),
		RegistrationDate: formatRegistrationDate(user.RegisteredAt),
		Gender:           user.Gender,
		Prefecture:       user.Prefecture,
	}
	if user.LastLoginAt != nil {
		v := user.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &v
	}
	return resp
}

// formatRegistrationDate renders the year-month form the user table displays.
func formatRegistrationDate(t time.Time) string {
	return strconv.Itoa(t.Year()) + "年 " + strconv.Itoa(int(t.Month())) + "月"
}
