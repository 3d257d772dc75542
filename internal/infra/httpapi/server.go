package httpapi

import (
	"context"
	"net/http"
	"time"

	"billing_collections/internal/app"
	"billing_collections/internal/domain/client"
	"billing_collections/internal/domain/conciliation"
	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/payment"
	"billing_collections/internal/domain/reminder"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// The handlers depend on these narrow views of the app services.

type ClientService interface {
	Create(ctx context.Context, in app.CreateClientInput) (*client.Client, error)
	Get(ctx context.Context, id int64) (*client.Client, error)
	SetStatus(ctx context.Context, id int64, status client.Status) (*client.Client, error)
	Delete(ctx context.Context, id int64) error
}

type ContractService interface {
	Create(ctx context.Context, in app.CreateContractInput) (*contract.Contract, error)
	Get(ctx context.Context, id int64) (*contract.Contract, error)
	Update(ctx context.Context, id int64, in app.UpdateContractInput) (*contract.Contract, error)
	Assign(ctx context.Context, contractID, clientID int64) (*contract.Contract, error)
	Delete(ctx context.Context, id int64) error
	ListReminders(ctx context.Context, id int64) ([]*reminder.Reminder, error)
}

type PaymentService interface {
	Create(ctx context.Context, in app.CreatePaymentInput) (*payment.Payment, error)
	Get(ctx context.Context, id int64) (*payment.Payment, error)
	Update(ctx context.Context, id int64, in app.UpdatePaymentInput) (*payment.Payment, error)
	Delete(ctx context.Context, id int64) error
}

type ConciliationService interface {
	Create(ctx context.Context, in app.CreateConciliationInput) (*conciliation.Conciliation, error)
	Get(ctx context.Context, id int64) (*conciliation.Conciliation, error)
	Update(ctx context.Context, id int64, in app.UpdateConciliationInput) (*conciliation.Conciliation, error)
	Delete(ctx context.Context, id int64) error
	Resettle(ctx context.Context, id int64) (*app.SettlementResult, error)
}

type DispatchService interface {
	ListDue(ctx context.Context, lookahead time.Duration) ([]*reminder.Reminder, error)
	Acknowledge(ctx context.Context, id int64, in app.AckInput) (*reminder.Reminder, error)
	RenderMessage(ctx context.Context, id int64) (string, error)
}

// Services bundles the handler dependencies.
type Services struct {
	Clients       ClientService
	Contracts     ContractService
	Payments      PaymentService
	Conciliations ConciliationService
	Dispatch      DispatchService
}

// Server is the back-office HTTP API.
type Server struct {
	svc    Services
	router *gin.Engine
	logger *logrus.Entry
}

// NewServer builds the router. gatherer may be nil to leave /metrics out.
func NewServer(svc Services, gatherer prometheus.Gatherer, logger *logrus.Entry) *Server {
	router := gin.New()
	s := &Server{
		svc:    svc,
		router: router,
		logger: logger.WithField("component", "httpapi"),
	}
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	clients := router.Group("/clients")
	{
		clients.POST("", s.createClient)
		clients.GET("/:id", s.getClient)
		clients.PATCH("/:id", s.updateClient)
		clients.DELETE("/:id", s.deleteClient)
	}

	contracts := router.Group("/contracts")
	{
		contracts.POST("", s.createContract)
		contracts.GET("/:id", s.getContract)
		contracts.PATCH("/:id", s.updateContract)
		contracts.DELETE("/:id", s.deleteContract)
		contracts.POST("/:id/assign", s.assignContract)
		contracts.GET("/:id/reminders", s.listContractReminders)
	}

	payments := router.Group("/payments")
	{
		payments.POST("", s.createPayment)
		payments.GET("/:id", s.getPayment)
		payments.PATCH("/:id", s.updatePayment)
		payments.DELETE("/:id", s.deletePayment)
	}

	conciliations := router.Group("/conciliations")
	{
		conciliations.POST("", s.createConciliation)
		conciliations.GET("/:id", s.getConciliation)
		conciliations.PATCH("/:id", s.updateConciliation)
		conciliations.DELETE("/:id", s.deleteConciliation)
		conciliations.POST("/:id/settle", s.settleConciliation)
	}

	reminders := router.Group("/reminders")
	{
		reminders.GET("/pending", s.listPendingReminders)
		reminders.POST("/:id/ack", s.acknowledgeReminder)
		reminders.GET("/:id/message", s.renderReminderMessage)
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer wraps the router in an *http.Server bound to addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request handled")
	}
}
