package service

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mosaicnetworks/paychan/src/channel"
)

// OpenChannelRequest is the body of POST /api/channels. PeerNodeID is an
// overlay identifier or a hex public key.
type OpenChannelRequest struct {
	PeerNodeID string `json:"peer_node_id"`
	Capacity   uint64 `json:"capacity"`
}

// PaymentRequest is the body of POST /api/channels/:id/payments.
type PaymentRequest struct {
	Amount uint64 `json:"amount"`
}

// ErrorResponse is returned with every failure. Kind is the ledger error
// type.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// CloseResponse ...
type CloseResponse struct {
	Success bool `json:"success"`
}

// GetInfo ...
func (s *Service) GetInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Info())
}

// GetChannels ...
func (s *Service) GetChannels(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Channels())
}

// OpenChannel ...
func (s *Service) OpenChannel(c *gin.Context) {
	var req OpenChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	ch, err := s.backend.OpenChannel(req.PeerNodeID, req.Capacity)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ch)
}

// SendPayment ...
func (s *Service) SendPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	p, err := s.backend.SendPayment(c.Param("id"), req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// GetPayments ...
func (s *Service) GetPayments(c *gin.Context) {
	payments, err := s.backend.Payments(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, payments)
}

// CloseChannel ...
func (s *Service) CloseChannel(c *gin.Context) {
	if err := s.backend.CloseChannel(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, CloseResponse{Success: true})
}

func (s *Service) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: err.Error(),
		Kind:  channel.InvalidInput.String(),
	})
}

func (s *Service) fail(c *gin.Context, err error) {
	status, kind := errorStatus(err)

	if channel.IsBusiness(err) {
		s.logger.WithError(err).Debug("API request refused")
	} else {
		s.logger.WithError(err).Error("API request failed")
	}

	c.JSON(status, ErrorResponse{
		Error: err.Error(),
		Kind:  kind,
	})
}

func errorStatus(err error) (int, string) {
	t, ok := channel.ErrorType(err)
	if !ok {
		return http.StatusInternalServerError, "Internal"
	}

	if !channel.IsBusiness(err) {
		return http.StatusInternalServerError, t.String()
	}

	switch t {
	case channel.InvalidInput:
		return http.StatusBadRequest, t.String()
	case channel.NotFound:
		return http.StatusNotFound, t.String()
	case channel.InvalidState, channel.SequenceConflict:
		return http.StatusConflict, t.String()
	case channel.InsufficientFunds:
		return http.StatusUnprocessableEntity, t.String()
	default:
		return http.StatusInternalServerError, t.String()
	}
}
