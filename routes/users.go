package routes

import (
	"net/http"
	"time"

	"github.com/Dr-xiaoming/tasks/controllers"
	"github.com/Dr-xiaoming/tasks/controllers/auth"
	"github.com/Dr-xiaoming/tasks/controllers/chat"
	"github.com/Dr-xiaoming/tasks/controllers/users"
	"github.com/Dr-xiaoming/tasks/middleware"

	"github.com/gorilla/mux"
)

// UsersRoutes registers the auth, profile, chat and upload routes.
func UsersRoutes(api *mux.Router) {
	// login/register limiter: 60 per IP per 5 minutes
	loginLimiter := middleware.NewIPRateLimiter(60, 5*time.Minute)
	// session limiter: 120 reads / 60 writes per user per minute
	userLimiter := middleware.NewUserRateLimiter(120, 60, 60)
	// chat polling is called frequently, so it gets a looser budget
	chatPollLimiter := middleware.NewIPRateLimiter(500, 5*time.Minute)

	// Register & Login
	api.Handle("/register", loginLimiter.Middleware(http.HandlerFunc(auth.RegisterHandler))).Methods(http.MethodPost)
	api.Handle("/login", loginLimiter.Middleware(http.HandlerFunc(auth.LoginHandler))).Methods(http.MethodPost)
	api.Handle("/refresh", loginLimiter.Middleware(http.HandlerFunc(auth.RefreshHandler))).Methods(http.MethodPost)
	api.Handle("/check-token", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(auth.CheckTokenHandler)))).Methods(http.MethodGet)
	api.Handle("/logout", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(auth.LogoutHandler)))).Methods(http.MethodPost)
	api.Handle("/logout-all", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(auth.LogoutAllHandler)))).Methods(http.MethodPost)

	// Current user
	api.Handle("/users/me", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.MeHandler)))).Methods(http.MethodGet)
	api.Handle("/users/me", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.UpdateProfileHandler)))).Methods(http.MethodPatch)
	api.Handle("/users/me/recharge", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.RechargeHandler)))).Methods(http.MethodPost)
	api.Handle("/users/me/points-history", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.PointsHistoryHandler)))).Methods(http.MethodGet)
	api.Handle("/users/me/notifications", chatPollLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.NotificationsHandler)))).Methods(http.MethodGet)
	api.Handle("/notifications/{id}/read", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(users.MarkNotificationReadHandler)))).Methods(http.MethodPost)

	// Public profiles
	api.Handle("/users", userLimiter.Middleware(http.HandlerFunc(users.ListUsersHandler))).Methods(http.MethodGet)
	api.Handle("/users/{username}", userLimiter.Middleware(http.HandlerFunc(users.ByUsernameHandler))).Methods(http.MethodGet)

	// Chat
	api.Handle("/conversations", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(chat.ListConversationsHandler)))).Methods(http.MethodGet)
	api.Handle("/conversations", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(chat.CreateConversationHandler)))).Methods(http.MethodPost)
	api.Handle("/conversations/{conversationId}/messages", chatPollLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(chat.GetMessagesHandler)))).Methods(http.MethodGet)
	api.Handle("/conversations/{conversationId}/messages", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(chat.SendMessageHandler)))).Methods(http.MethodPost)
	api.Handle("/conversations/{conversationId}/messages/poll", chatPollLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(chat.PollMessagesHandler)))).Methods(http.MethodGet)

	// Attachments
	api.Handle("/upload", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(controllers.UploadHandler)))).Methods(http.MethodPost)
}
