package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/ledger"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/registry"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// Server exposes the anchoring surface over HTTP: ownership and solvency
// submissions for the operator, inclusion verification for anyone.
type Server struct {
	registry    *registry.Registry
	ledger      *ledger.Ledger
	operatorKey string
	engine      *gin.Engine
}

func New(reg *registry.Registry, led *ledger.Ledger, operatorKey string) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{registry: reg, ledger: led, operatorKey: operatorKey, engine: engine}
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.engine.Group("/api/v1")
	v1.POST("/ownership", s.operatorOnly(), s.submitOwnership)
	v1.POST("/solvency", s.operatorOnly(), s.submitSolvency)
	v1.POST("/inclusion/verify", s.verifyInclusion)
	v1.GET("/solvency/:timestamp", s.getSolvencyRecord)
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type submitSolvencyRequest struct {
	Timestamp uint64        `json:"timestamp"`
	MstRoot   string        `json:"mst_root"`
	Assets    []utils.Asset `json:"assets"`
	Proof     []byte        `json:"proof"`
}

type verifyInclusionRequest struct {
	Timestamp uint64 `json:"timestamp"`
	Proof     []byte `json:"proof"`
}

func (s *Server) submitOwnership(c *gin.Context) {
	var proofs []utils.AddressOwnershipProof
	if err := c.ShouldBindJSON(&proofs); err != nil {
		writeError(c, fmt.Errorf("%w: %v", utils.ErrValidation, err))
		return
	}
	if err := s.registry.Submit(c.Request.Context(), proofs); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accepted": len(proofs)})
}

func (s *Server) submitSolvency(c *gin.Context) {
	var req submitSolvencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", utils.ErrValidation, err))
		return
	}
	if err := s.ledger.Submit(c.Request.Context(), req.Timestamp, req.MstRoot, req.Assets, req.Proof); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"timestamp": req.Timestamp, "mst_root": req.MstRoot})
}

func (s *Server) verifyInclusion(c *gin.Context) {
	var req verifyInclusionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", utils.ErrValidation, err))
		return
	}
	valid, err := s.ledger.VerifyInclusion(c.Request.Context(), req.Proof, req.Timestamp)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (s *Server) getSolvencyRecord(c *gin.Context) {
	timestamp, err := strconv.ParseUint(c.Param("timestamp"), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: timestamp: %v", utils.ErrValidation, err))
		return
	}
	record, err := s.ledger.GetRecord(c.Request.Context(), timestamp)
	if err != nil {
		writeError(c, err)
		return
	}
	// proof blobs are fetched separately by verifiers; the record view is
	// the anchored commitment only
	c.JSON(http.StatusOK, utils.SolvencyRecord{
		Timestamp: record.Timestamp,
		MstRoot:   record.MstRoot,
		Assets:    record.Assets,
	})
}

func (s *Server) operatorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Operator-Key")
		if s.operatorKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.operatorKey)) != 1 {
			writeError(c, fmt.Errorf("%w: operator key required", utils.ErrUnauthorized))
			c.Abort()
			return
		}
		c.Next()
	}
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, utils.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, utils.ErrDuplicate):
		status, code = http.StatusConflict, "duplicate"
	case errors.Is(err, utils.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, utils.ErrProofVerification):
		status, code = http.StatusUnprocessableEntity, "proof_verification_failed"
	case errors.Is(err, utils.ErrValidation), errors.Is(err, utils.ErrEmptyInput):
		status, code = http.StatusBadRequest, "validation_error"
	}
	c.JSON(status, errorResponse{Code: code, Message: err.Error()})
}
