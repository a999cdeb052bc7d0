package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/reviewkit/engine/internal/domain/usecase"
	"github.com/reviewkit/engine/internal/infra/transport/rest/middleware"
)

type Handlers struct {
	engine usecase.PullRequestEngine
	log    *zap.SugaredLogger
}

func NewHandlers(engine usecase.PullRequestEngine, log *zap.SugaredLogger) *Handlers {
	return &Handlers{engine: engine, log: log}
}

// NewRouter регистрирует операционную поверхность движка на chi-роутере.
func NewRouter(h *Handlers) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(h.log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/pullRequests", func(r chi.Router) {
		r.Post("/", h.CreatePullRequest)
		r.Get("/", h.ListPullRequests)

		r.Route("/{id}", func(r chi.Router) {
			r.Patch("/details", h.UpdateDetails)
			r.Post("/files", h.AddFiles)
			r.Post("/readyForReview", h.MarkReadyForReview)
			r.Post("/convertToDraft", h.ConvertToDraft)
			r.Post("/requestReview", h.RequestReview)
			r.Post("/reviews", h.SubmitReview)
			r.Post("/comments", h.AddComment)
			r.Patch("/requiredApprovals", h.SetRequiredApprovals)
			r.Post("/merge", h.Merge)
			r.Post("/close", h.Close)
			r.Post("/reopen", h.Reopen)

			r.Get("/summary", h.GetSummary)
			r.Get("/reviewCount", h.GetReviewCount)
			r.Get("/approvalCount", h.GetApprovalCount)
			r.Get("/canMerge", h.CanMerge)
		})
	})

	return router
}
