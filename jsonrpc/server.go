package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/mezonai/starledger/block"
	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/interfaces"
	"github.com/mezonai/starledger/jsonx"
	"github.com/mezonai/starledger/logx"
	"github.com/mezonai/starledger/mempool"
	"github.com/mezonai/starledger/ratelimit"
	"github.com/mezonai/starledger/security/validation"
	"github.com/mezonai/starledger/types"
)

// Application error codes, outside the range reserved by JSON-RPC 2.0.
const (
	CodeNotFound          jrpc2.Code = -32001
	CodeAppendRace        jrpc2.Code = -32002
	CodeNotReady          jrpc2.Code = -32003
	CodeIO                jrpc2.Code = -32004
	CodeNoPendingRequest  jrpc2.Code = -32010
	CodeInvalidSignature  jrpc2.Code = -32011
	CodeValidationExpired jrpc2.Code = -32012
	CodeUnauthorized      jrpc2.Code = -32013
	CodeRateLimited       jrpc2.Code = -32029
)

func rpcCode(code errors.LedgerErrorCode) jrpc2.Code {
	switch code {
	case errors.ErrCodeInvalidRequest:
		return jrpc2.InvalidParams
	case errors.ErrCodeNotFound:
		return CodeNotFound
	case errors.ErrCodeAppendRace:
		return CodeAppendRace
	case errors.ErrCodeNotReady:
		return CodeNotReady
	case errors.ErrCodeIO:
		return CodeIO
	case errors.ErrCodeNoPendingRequest:
		return CodeNoPendingRequest
	case errors.ErrCodeInvalidSignature:
		return CodeInvalidSignature
	case errors.ErrCodeValidationExpired:
		return CodeValidationExpired
	case errors.ErrCodeUnauthorized:
		return CodeUnauthorized
	case errors.ErrCodeRateLimited:
		return CodeRateLimited
	}
	return jrpc2.InternalError
}

func toJRPC2Error(err error) error {
	if err == nil {
		return nil
	}
	code := errors.CodeOf(err)
	if !errors.IsClientError(err) {
		logx.Error("JSONRPC", "Request failed: ", err)
	}
	return jrpc2.Errorf(rpcCode(code), "%s", errors.MessageOf(err)).WithData(map[string]string{
		"code":    string(code),
		"message": errors.MessageOf(err),
	})
}

// --- Error type used outside handlers ---

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *rpcError       `json:"error,omitempty"`
}

// --- Params/Results ---

type heightResponse struct {
	Height uint64 `json:"height"`
}

type getBlockRequest struct {
	Height int64 `json:"height"`
}

type getBlockByHashRequest struct {
	Hash string `json:"hash"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type validateRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// --- Server ---

type Server struct {
	addr       string
	starSvc    interfaces.StarService
	healthSvc  interfaces.HealthService
	limiter    *ratelimit.ValidationLimiter
	corsConfig CORSConfig
	httpServer *http.Server
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

func NewServer(addr string, starSvc interfaces.StarService, healthSvc interfaces.HealthService, limiter *ratelimit.ValidationLimiter) *Server {
	return &Server{
		addr:      addr,
		starSvc:   starSvc,
		healthSvc: healthSvc,
		limiter:   limiter,
	}
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

// Handler returns the HTTP bridge serving every method. The caller owns Close.
func (s *Server) Handler() (http.Handler, func() error) {
	jh := jhttp.NewBridge(s.buildMethodMap(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validation.DefaultRequestBodyLimit))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		if req := parseJSONRPCRequest(body); req != nil && strings.HasPrefix(req.Method, "validation.") {
			if err := s.limiter.Check(extractClientIPFromRequest(r), req.address()); err != nil {
				writeRPCError(w, req.ID, err)
				return
			}
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		jh.ServeHTTP(w, r)
	})
	return h, jh.Close
}

func (s *Server) Start() error {
	h, closeBridge := s.Handler()
	defer closeBridge()

	s.httpServer = &http.Server{Addr: s.addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	logx.Info("JSONRPC", "JSON-RPC listen on ", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		MethodChainGetHeight: handler.New(func(ctx context.Context) (*heightResponse, error) {
			h, err := s.starSvc.GetChainHeight(ctx)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return &heightResponse{Height: h}, nil
		}),
		MethodChainGetBlock: handler.New(func(ctx context.Context, p getBlockRequest) (*block.Block, error) {
			blk, err := s.starSvc.GetBlock(ctx, p.Height)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return blk, nil
		}),
		MethodChainGetBlockByHash: handler.New(func(ctx context.Context, p getBlockByHashRequest) (*block.Block, error) {
			blk, err := s.starSvc.GetBlockByHash(ctx, p.Hash)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return blk, nil
		}),
		MethodChainGetBlocksByAddress: handler.New(func(ctx context.Context, p addressRequest) ([]*block.Block, error) {
			blocks, err := s.starSvc.GetBlocksByAddress(ctx, p.Address)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return blocks, nil
		}),
		MethodChainAddStar: handler.New(func(ctx context.Context, p types.StarRequest) (*block.Block, error) {
			blk, err := s.starSvc.AddStar(ctx, &p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return blk, nil
		}),
		MethodChainValidate: handler.New(func(ctx context.Context) (*interfaces.ChainReport, error) {
			report, err := s.starSvc.ValidateChain(ctx)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return report, nil
		}),
		MethodValidationRequest: handler.New(func(ctx context.Context, p addressRequest) (*mempool.ValidationRequest, error) {
			res, err := s.starSvc.RequestValidation(ctx, p.Address)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodValidationValidate: handler.New(func(ctx context.Context, p validateRequest) (*mempool.AuthorizationResult, error) {
			res, err := s.starSvc.ValidateSignature(ctx, p.Address, p.Signature)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodHealthCheck: handler.New(func(ctx context.Context) (*interfaces.HealthStatus, error) {
			if s.healthSvc == nil {
				return nil, toJRPC2Error(errors.ErrNotReady)
			}
			st, err := s.healthSvc.Check(ctx)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return st, nil
		}),
	}
}

// writeRPCError answers a request rejected before it reached the bridge.
func writeRPCError(w http.ResponseWriter, id json.RawMessage, err error) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	resp := jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &rpcError{
			Code:    int(rpcCode(errors.CodeOf(err))),
			Message: errors.MessageOf(err),
			Data:    map[string]string{"code": string(errors.CodeOf(err))},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = jsonx.NewEncoder(w).Encode(resp)
}

// --- Helpers ---

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}
	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.corsConfig.MaxAge))
	}
}
