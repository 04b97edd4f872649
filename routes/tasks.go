package routes

import (
	"net/http"

	"github.com/Dr-xiaoming/tasks/controllers/tasks"
	"github.com/Dr-xiaoming/tasks/middleware"

	"github.com/gorilla/mux"
)

// TasksRoutes registers the task board, claim, answer, requirement and
// adoption routes.
func TasksRoutes(api *mux.Router) {
	userLimiter := middleware.NewUserRateLimiter(120, 60, 60)

	// Board
	api.Handle("/tasks", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.CreateTaskHandler)))).Methods(http.MethodPost)
	api.Handle("/tasks", userLimiter.Middleware(middleware.OptionalAuthMiddleware(http.HandlerFunc(tasks.ListTasksHandler)))).Methods(http.MethodGet)
	api.Handle("/tasks/{id}", userLimiter.Middleware(middleware.OptionalAuthMiddleware(http.HandlerFunc(tasks.TaskDetailHandler)))).Methods(http.MethodGet)

	// Claims
	api.Handle("/tasks/{id}/claim", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.ClaimTaskHandler)))).Methods(http.MethodPost)
	api.Handle("/tasks/{id}/claim/release", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.ReleaseClaimHandler)))).Methods(http.MethodPost)
	api.Handle("/users/me/claims/count", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.MyClaimCountHandler)))).Methods(http.MethodGet)

	// Answers
	api.Handle("/tasks/{id}/answers", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.CreateAnswerHandler)))).Methods(http.MethodPost)
	api.Handle("/tasks/{id}/answers", userLimiter.Middleware(middleware.OptionalAuthMiddleware(http.HandlerFunc(tasks.ListAnswersHandler)))).Methods(http.MethodGet)

	// Final answers
	api.Handle("/tasks/{id}/final-answer", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.SubmitFinalAnswerHandler)))).Methods(http.MethodPost)
	api.Handle("/tasks/{id}/final-answers", userLimiter.Middleware(middleware.OptionalAuthMiddleware(http.HandlerFunc(tasks.ListFinalAnswersHandler)))).Methods(http.MethodGet)

	// Requirements
	api.Handle("/tasks/{id}/requirements", userLimiter.Middleware(middleware.OptionalAuthMiddleware(http.HandlerFunc(tasks.ListRequirementsHandler)))).Methods(http.MethodGet)
	api.Handle("/tasks/{id}/requirements/{requirementId}", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.SetRequirementCompletedHandler)))).Methods(http.MethodPatch)

	// Adoption (task-first and answer-first entrypoints)
	api.Handle("/tasks/{id}/answers/{answerId}/adopt", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.AdoptAnswerHandler)))).Methods(http.MethodPost)
	api.Handle("/answers/{id}/adopt", userLimiter.Middleware(middleware.AuthMiddleware(http.HandlerFunc(tasks.AdoptByAnswerHandler)))).Methods(http.MethodPatch)
}
