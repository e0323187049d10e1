package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/interfaces"
	"github.com/mezonai/starledger/logx"
	"github.com/mezonai/starledger/monitoring"
	"github.com/mezonai/starledger/ratelimit"
	"github.com/mezonai/starledger/security/validation"
	"github.com/mezonai/starledger/types"
)

type addressReq struct {
	Address string `json:"address"`
}

type signatureReq struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type APIServer struct {
	StarSvc    interfaces.StarService
	HealthSvc  interfaces.HealthService
	ListenAddr string
	// Validation endpoints protection
	Limiter        *ratelimit.ValidationLimiter
	MetricsEnabled bool

	router *gin.Engine
	server *http.Server
}

func NewAPIServer(starSvc interfaces.StarService, healthSvc interfaces.HealthService, limiter *ratelimit.ValidationLimiter, addr string) *APIServer {
	s := &APIServer{
		StarSvc:        starSvc,
		HealthSvc:      healthSvc,
		ListenAddr:     addr,
		Limiter:        limiter,
		MetricsEnabled: true,
	}
	return s
}

// Router builds the gin engine once and returns it.
func (s *APIServer) Router() *gin.Engine {
	if s.router != nil {
		return s.router
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, validation.DefaultRequestBodyLimit)
		c.Next()
	})

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Server up!")
	})
	r.GET("/health", s.handleHealth)
	r.GET("/block-height", s.handleBlockHeight)
	r.GET("/block/:height", s.handleGetBlock)
	r.POST("/block", s.handleAddBlock)
	r.POST("/requestValidation", s.handleRequestValidation)
	r.POST("/message-signature/validate", s.handleValidateSignature)
	r.GET("/stars/hash/:hash", s.handleStarByHash)
	r.GET("/stars/address/:address", s.handleStarsByAddress)
	r.GET("/chain/validate", s.handleValidateChain)
	if s.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(monitoring.Handler()))
	}

	s.router = r
	return r
}

func (s *APIServer) Start() error {
	s.server = &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logx.Info("API", "API listen on ", s.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *APIServer) handleHealth(c *gin.Context) {
	st, err := s.HealthSvc.Check(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	code := http.StatusOK
	if !st.Ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

func (s *APIServer) handleBlockHeight(c *gin.Context) {
	height, err := s.StarSvc.GetChainHeight(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"height": height})
}

func (s *APIServer) handleGetBlock(c *gin.Context) {
	height, err := strconv.ParseInt(c.Param("height"), 10, 64)
	if err != nil {
		writeError(c, errors.InvalidRequestf("block height must be an integer"))
		return
	}
	blk, err := s.StarSvc.GetBlock(c.Request.Context(), height)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, blk)
}

func (s *APIServer) handleAddBlock(c *gin.Context) {
	var req types.StarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidRequestf("%s", errors.ErrMsgInvalidRequest))
		return
	}
	blk, err := s.StarSvc.AddStar(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, blk)
}

func (s *APIServer) handleRequestValidation(c *gin.Context) {
	var req addressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidRequestf("%s", errors.ErrMsgInvalidRequest))
		return
	}
	if err := s.Limiter.Check(c.ClientIP(), req.Address); err != nil {
		writeError(c, err)
		return
	}
	res, err := s.StarSvc.RequestValidation(c.Request.Context(), req.Address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *APIServer) handleValidateSignature(c *gin.Context) {
	var req signatureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidRequestf("%s", errors.ErrMsgInvalidRequest))
		return
	}
	if err := s.Limiter.Check(c.ClientIP(), req.Address); err != nil {
		writeError(c, err)
		return
	}
	res, err := s.StarSvc.ValidateSignature(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *APIServer) handleStarByHash(c *gin.Context) {
	blk, err := s.StarSvc.GetBlockByHash(c.Request.Context(), c.Param("hash"))
	if err != nil {
		writeError(c, err)
		return
	}
	if blk == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
		return
	}
	c.JSON(http.StatusOK, blk)
}

func (s *APIServer) handleStarsByAddress(c *gin.Context) {
	blocks, err := s.StarSvc.GetBlocksByAddress(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, blocks)
}

func (s *APIServer) handleValidateChain(c *gin.Context) {
	report, err := s.StarSvc.ValidateChain(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// StatusFor maps a ledger error to its HTTP status.
func StatusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeAppendRace:
		return http.StatusConflict
	case errors.ErrCodeUnauthorized, errors.ErrCodeInvalidSignature:
		return http.StatusUnauthorized
	case errors.ErrCodeValidationExpired:
		return http.StatusGone
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeInvalidRequest, errors.ErrCodeNoPendingRequest:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNotReady:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logx.Error("API", c.Request.Method, " ", c.Request.URL.Path, " failed: ", err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code":  errors.CodeOf(err),
		"error": errors.MessageOf(err),
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logx.Debug("API", c.Request.Method, " ", c.Request.URL.Path, " ", c.Writer.Status(), " ", time.Since(start))
	}
}
