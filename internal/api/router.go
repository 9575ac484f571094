// Package api exposes the library services over HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biblioteca/internal/auth"
	"biblioteca/internal/catalog"
	"biblioteca/internal/documents"
	"biblioteca/internal/loans"
	"biblioteca/internal/models"
	"biblioteca/internal/notify"
	"biblioteca/internal/storage"
	"biblioteca/internal/users"
)

// Services groups the components served by the router
type Services struct {
	Auth      *auth.Service
	Users     *users.Service
	Catalog   *catalog.Service
	Loans     *loans.Service
	Documents *documents.Service
	Logins    storage.LoginLog

	// Events is optional; without it /eventos is not routed
	Events *notify.Hub
}

// Handler holds the dependencies of the HTTP handlers
type Handler struct {
	auth      *auth.Service
	users     *users.Service
	catalog   *catalog.Service
	loans     *loans.Service
	documents *documents.Service
	logins    storage.LoginLog
	events    *notify.Hub
	logger    *zap.Logger
}

// offered lists the success representations chosen through Accept
var offered = []string{gin.MIMEJSON, gin.MIMEXML, gin.MIMEYAML}

// NewRouter builds the gin engine with every route. loginRatePerMinute
// throttles /login per client address.
func NewRouter(s Services, loginRatePerMinute int, logger *zap.Logger) *gin.Engine {
	h := &Handler{
		auth:      s.Auth,
		users:     s.Users,
		catalog:   s.Catalog,
		loans:     s.Loans,
		documents: s.Documents,
		logins:    s.Logins,
		events:    s.Events,
		logger:    logger,
	}
	limiter := NewRateLimiter(loginRatePerMinute)

	router := gin.New()
	router.Use(RequestLogger(logger), gin.Recovery())
	router.HandleMethodNotAllowed = true

	member := h.Authenticate(models.RoleStandard)
	admin := h.Authenticate(models.RoleAdministrator)
	optional := h.OptionalAuth()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Session
	router.POST("/login", limiter.RateLimit(KeyByIP), h.login)
	router.GET("/login", limiter.RateLimit(KeyByIP), h.loginQuery)
	router.DELETE("/logout", member, h.logout)
	router.PUT("/cambiar_password", member, h.changePassword)

	// Users
	router.GET("/usuario", member, h.getSelf)
	router.GET("/usuario/:id", admin, h.getUser)
	router.GET("/usuarios", admin, h.listUsers)
	router.POST("/usuario", admin, h.createUser)
	router.PUT("/usuario", member, h.updateSelf)
	router.DELETE("/usuario/:id", admin, h.deleteUser)

	// Catalog
	router.GET("/libro", optional, h.listBooks)
	router.GET("/libro/:isbn", optional, h.getBook)
	router.POST("/libro", admin, h.createBook)
	router.PUT("/libro/:isbn", admin, h.updateBook)
	router.DELETE("/libro/:isbn", admin, h.deleteBook)
	router.POST("/libro/importar", admin, h.importBooks)
	router.GET("/exportar", h.exportBooks)
	router.GET("/caratula/:isbn", h.getCover)
	router.POST("/caratula/:isbn", admin, h.putCover)
	router.PUT("/caratula/:isbn", admin, h.putCover)

	// Loans
	router.GET("/prestamo", admin, h.listLoans)
	router.POST("/prestamo", admin, h.createLoan)
	router.DELETE("/prestamo/:isbn", member, h.deleteLoan)
	router.GET("/mis_prestamos", member, h.listOwnLoans)

	// Documents
	router.GET("/carne", member, h.ownMemberCard)
	router.GET("/carne/:id", admin, h.memberCard)
	router.GET("/ficha/:isbn", h.bookSheet)
	router.GET("/informe_prestamos", admin, h.loanReport)
	router.GET("/referencia/:isbn", h.citation)

	// Administration
	router.GET("/log", admin, h.listLogins)
	if h.events != nil {
		router.GET("/eventos", admin, func(c *gin.Context) {
			h.events.ServeWS(c.Writer, c.Request)
		})
	}

	return router
}

// respond writes data in the representation negotiated through Accept.
// xmlData replaces data for XML when the value needs a named root element.
func respond(c *gin.Context, status int, data, xmlData any) {
	if xmlData == nil {
		xmlData = data
	}
	c.Negotiate(status, gin.Negotiate{
		Offered:  offered,
		JSONData: data,
		YAMLData: data,
		XMLData:  xmlData,
	})
}
