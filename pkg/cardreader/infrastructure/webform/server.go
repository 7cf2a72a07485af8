package webform

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"kgeyst.com/cardreader/pkg/cardreader/domain"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/metrics"
	"kgeyst.com/cardreader/pkg/common"
)

const (
	// ConfigKeyWebListenAddress where the web form listens
	ConfigKeyWebListenAddress = "webListenAddress"

	formFieldImage  = "image"
	headerRequestID = "X-Request-ID"

	// excluded from gzip: promhttp compresses its own output
	metricsPath = "/metrics"
)

// CardParser the part of api.API the web form needs.
type CardParser interface {
	CheckPrerequisites(ctx context.Context) error
	ParseCard(ctx context.Context, imageData []byte) *domain.Result
	ModelName() string
}

type pageData struct {
	Title     string
	ModelName string
	Output    string
	Failed    bool
}

type Server struct {
	cardParser CardParser
	logger     common.Logger
	router     *gin.Engine
}

func NewServer(cardParser CardParser, logger common.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	server := &Server{
		cardParser: cardParser,
		logger:     logger,
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{metricsPath})))
	router.Use(server.requestID)
	router.Use(server.logRequest)
	router.MaxMultipartMemory = common.MaxDownloadSize
	router.SetHTMLTemplate(template.Must(template.New("index").Parse(indexTemplate)))
	router.GET("/", server.showForm)
	router.POST("/", server.submitForm)
	api := router.Group("/api/v1")
	{
		api.POST("/parse", server.parse)
		api.GET("/health", server.health)
	}
	router.GET(metricsPath, gin.WrapH(metrics.Handler()))
	server.router = router
	return server
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, address string) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChannel := make(chan error, 1)
	go func() {
		errChannel <- httpServer.ListenAndServe()
	}()
	select {
	case err := <-errChannel:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if err != nil {
			return err
		}
		err = <-errChannel
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requestID(c *gin.Context) {
	requestID := c.GetHeader(headerRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(headerRequestID, requestID)
	c.Header(headerRequestID, requestID)
	c.Next()
}

func (s *Server) logRequest(c *gin.Context) {
	t := time.Now()
	c.Next()
	common.Logf(s.logger, "[%s] %s %s: %d (took %d ms)",
		c.GetString(headerRequestID), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(t).Milliseconds())
}

func (s *Server) showForm(c *gin.Context) {
	c.HTML(http.StatusOK, "index", pageData{
		Title:     "Business Card Reader",
		ModelName: s.cardParser.ModelName(),
	})
}

func (s *Server) submitForm(c *gin.Context) {
	result := s.parseUpload(c)
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		output = []byte(err.Error())
	}
	c.HTML(http.StatusOK, "index", pageData{
		Title:     "Business Card Reader",
		ModelName: s.cardParser.ModelName(),
		Output:    string(output),
		Failed:    result.Failed(),
	})
}

func (s *Server) parse(c *gin.Context) {
	result := s.parseUpload(c)
	c.JSON(statusCode(result), result)
}

func (s *Server) health(c *gin.Context) {
	err := s.cardParser.CheckPrerequisites(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "model": s.cardParser.ModelName(), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "model": s.cardParser.ModelName()})
}

func (s *Server) parseUpload(c *gin.Context) *domain.Result {
	fileHeader, err := c.FormFile(formFieldImage)
	if err != nil {
		return domain.NewFailedResult(domain.ErrorMessageNoImage)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return domain.NewFailedResult(domain.ErrorMessageImageFailure + err.Error())
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(file, common.MaxDownloadSize+1))
	if err != nil {
		return domain.NewFailedResult(domain.ErrorMessageImageFailure + err.Error())
	}
	if len(data) > common.MaxDownloadSize {
		return domain.NewFailedResult(domain.ErrorMessageImageFailure + common.ErrDownloadTooLarge.Error())
	}
	return s.cardParser.ParseCard(c.Request.Context(), data)
}

func statusCode(result *domain.Result) int {
	switch {
	case !result.Failed():
		return http.StatusOK
	case result.Error == domain.ErrorMessageNoImage, strings.HasPrefix(result.Error, domain.ErrorMessageImageFailure):
		return http.StatusBadRequest
	case result.Outcome() == domain.OutcomeParseFailure:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
