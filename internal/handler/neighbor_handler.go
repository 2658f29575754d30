package handler

import (
	"errors"
	"net/http"
	"strconv"
	"townsquare/backend/internal/identity"
	"townsquare/backend/internal/neighbor"
	"townsquare/backend/internal/presence"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// region --- DTOs ---

// NeighborStatusResponse reports the relationship status as seen by the caller.
type NeighborStatusResponse struct {
	Status neighbor.Status `json:"status" example:"requestSent"`
}

// NeighborResponse is one entry of the caller's neighbor list.
type NeighborResponse struct {
	ID       uint   `json:"id" example:"1"`
	Username string `json:"username" example:"testuser"`
	IsOnline bool   `json:"is_online"`
	TownID   string `json:"town_id,omitempty"`
}

// RequestUserResponse is one entry of a sent/received request listing.
type RequestUserResponse struct {
	ID       uint   `json:"id" example:"1"`
	Username string `json:"username" example:"testuser"`
}

// endregion

// NeighborHandler serves the neighbor relationship endpoints.
type NeighborHandler struct {
	graph    *neighbor.Graph
	ids      identity.Store
	presence *presence.Index
}

// NewNeighborHandler creates a NeighborHandler.
func NewNeighborHandler(graph *neighbor.Graph, ids identity.Store, idx *presence.Index) *NeighborHandler {
	return &NeighborHandler{graph: graph, ids: ids, presence: idx}
}

func (h *NeighborHandler) targetFromPath(c *gin.Context) (uint, bool) {
	targetIDStr := c.Param("id")
	targetID, err := strconv.ParseUint(targetIDStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user ID"})
		return 0, false
	}
	return uint(targetID), true
}

// SendRequest godoc
// @Summary      Send neighbor request
// @Description  Opens a neighbor request toward another user. If that user already has an open request toward the caller, both immediately become neighbors. Duplicate sends are no-ops.
// @Tags         neighbors
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Target User ID"
// @Success      200  {object}  NeighborStatusResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Target user not found"
// @Router       /users/{id}/request [post]
func (h *NeighborHandler) SendRequest(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	targetID, ok := h.targetFromPath(c)
	if !ok {
		return
	}

	if viewerID.(uint) == targetID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot send request to yourself"})
		return
	}

	if _, err := h.ids.Lookup(targetID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Target user not found"})
		return
	}

	status, err := h.graph.SendRequest(viewerID.(uint), targetID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Request not allowed from the current state"})
		return
	}

	c.JSON(http.StatusOK, NeighborStatusResponse{Status: status})
}

// AcceptRequest godoc
// @Summary      Accept neighbor request
// @Description  Accepts a pending neighbor request from another user.
// @Tags         neighbors
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Requesting User ID"
// @Success      200  {object}  NeighborStatusResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "No pending request to accept"
// @Router       /users/{id}/accept [post]
func (h *NeighborHandler) AcceptRequest(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	senderID, ok := h.targetFromPath(c)
	if !ok {
		return
	}

	status, err := h.graph.AcceptRequest(viewerID.(uint), senderID)
	if err != nil {
		if errors.Is(err, neighbor.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "No pending request to accept"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept request"})
		return
	}

	c.JSON(http.StatusOK, NeighborStatusResponse{Status: status})
}

// RejectRequest godoc
// @Summary      Cancel or reject neighbor request
// @Description  Withdraws a pending request between the caller and another user. The sender cancels; the receiver rejects. Both collapse the relationship back to unknown.
// @Tags         neighbors
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Other User ID"
// @Success      200  {object}  NeighborStatusResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "No pending request between the users"
// @Router       /users/{id}/reject [post]
func (h *NeighborHandler) RejectRequest(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	otherID, ok := h.targetFromPath(c)
	if !ok {
		return
	}

	status, err := h.graph.CancelOrReject(viewerID.(uint), otherID)
	if err != nil {
		if errors.Is(err, neighbor.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "No pending request between the users"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject request"})
		return
	}

	c.JSON(http.StatusOK, NeighborStatusResponse{Status: status})
}

// RemoveNeighbor godoc
// @Summary      Remove neighbor
// @Description  Dissolves an accepted neighbor link with another user.
// @Tags         neighbors
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Neighbor User ID"
// @Success      200  {object}  NeighborStatusResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Users are not neighbors"
// @Router       /users/{id}/remove [post]
func (h *NeighborHandler) RemoveNeighbor(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	otherID, ok := h.targetFromPath(c)
	if !ok {
		return
	}

	status, err := h.graph.RemoveNeighbor(viewerID.(uint), otherID)
	if err != nil {
		if errors.Is(err, neighbor.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "Users are not neighbors"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove neighbor"})
		return
	}

	c.JSON(http.StatusOK, NeighborStatusResponse{Status: status})
}

// ListNeighbors godoc
// @Summary      List neighbors
// @Description  Lists the caller's neighbors, with online status and current town when joinable.
// @Tags         neighbors
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   NeighborResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /neighbors [get]
func (h *NeighborHandler) ListNeighbors(c *gin.Context) {
	viewerID, _ := c.Get("userID")

	neighborIDs := h.graph.ListNeighbors(viewerID.(uint))
	responses := make([]NeighborResponse, 0, len(neighborIDs))
	for _, id := range neighborIDs {
		user, err := h.ids.Lookup(id)
		if err != nil {
			continue
		}
		townID, online := h.presence.TownOf(id)
		responses = append(responses, NeighborResponse{
			ID:       user.ID,
			Username: user.Username,
			IsOnline: online,
			TownID:   townID,
		})
	}

	c.JSON(http.StatusOK, responses)
}

// ListReceivedRequests godoc
// @Summary      List received neighbor requests
// @Description  Lists users with an open request toward the caller.
// @Tags         neighbors
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   RequestUserResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /neighbors/requests/received [get]
func (h *NeighborHandler) ListReceivedRequests(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	c.JSON(http.StatusOK, h.requestUsers(h.graph.ListReceivedRequests(viewerID.(uint))))
}

// ListSentRequests godoc
// @Summary      List sent neighbor requests
// @Description  Lists users the caller has an open request toward.
// @Tags         neighbors
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   RequestUserResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /neighbors/requests/sent [get]
func (h *NeighborHandler) ListSentRequests(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	c.JSON(http.StatusOK, h.requestUsers(h.graph.ListSentRequests(viewerID.(uint))))
}

func (h *NeighborHandler) requestUsers(ids []uint) []RequestUserResponse {
	users := lo.FilterMap(ids, func(id uint, _ int) (RequestUserResponse, bool) {
		user, err := h.ids.Lookup(id)
		if err != nil {
			return RequestUserResponse{}, false
		}
		return RequestUserResponse{ID: user.ID, Username: user.Username}, true
	})
	return users
}
