package handler

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"townsquare/backend/internal/hub"
	"townsquare/backend/internal/identity"
	"townsquare/backend/internal/session"
	"townsquare/backend/internal/town"
	"townsquare/backend/internal/video"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// region --- DTOs ---

// TownCreateInput defines the structure for creating a town.
type TownCreateInput struct {
	FriendlyName     string `json:"friendly_name" binding:"required" example:"My Town"`
	IsPubliclyListed bool   `json:"is_publicly_listed"`
}

// TownCreateResponse returns the new town's ID and its mutation password.
// The password is only ever disclosed here.
type TownCreateResponse struct {
	TownID       string `json:"town_id"`
	TownPassword string `json:"town_password"`
}

// TownUpdateInput carries the password-gated town mutations. Omitted fields
// are left unchanged; an explicit false/empty value is applied as given.
type TownUpdateInput struct {
	TownPassword     string  `json:"town_password" binding:"required"`
	FriendlyName     *string `json:"friendly_name"`
	IsPubliclyListed *bool   `json:"is_publicly_listed"`
}

// TownInfoResponse is one entry of the public town listing.
type TownInfoResponse struct {
	TownID           string `json:"town_id"`
	FriendlyName     string `json:"friendly_name" example:"My Town"`
	CurrentOccupancy int    `json:"current_occupancy" example:"3"`
	MaximumOccupancy int    `json:"maximum_occupancy" example:"50"`
}

// TownListResponse wraps the public town listing.
type TownListResponse struct {
	Towns []TownInfoResponse `json:"towns"`
}

// OccupantResponse is one player already inside a joined town.
type OccupantResponse struct {
	ID       uint   `json:"id" example:"1"`
	Username string `json:"username" example:"testuser"`
}

// JoinResponse is returned to a player who entered a town.
type JoinResponse struct {
	SessionID        string             `json:"session_id"`
	SessionToken     string             `json:"session_token"`
	VideoToken       string             `json:"video_token"`
	FriendlyName     string             `json:"friendly_name"`
	IsPubliclyListed bool               `json:"is_publicly_listed"`
	CurrentOccupants []OccupantResponse `json:"current_occupants"`
}

// LeaveInput identifies the session to terminate.
type LeaveInput struct {
	SessionID string `json:"session_id" binding:"required"`
}

// endregion

// TownHandler serves town lifecycle and join/leave endpoints.
type TownHandler struct {
	registry *town.Registry
	sessions *session.Manager
	ids      identity.Store
	events   *hub.Hub
}

// NewTownHandler creates a TownHandler.
func NewTownHandler(registry *town.Registry, sessions *session.Manager, ids identity.Store, events *hub.Hub) *TownHandler {
	return &TownHandler{registry: registry, sessions: sessions, ids: ids, events: events}
}

// CreateTown godoc
// @Summary      Create a new town
// @Description  Creates a town and returns its ID and mutation password.
// @Tags         towns
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body TownCreateInput true "Town Info"
// @Success      201  {object}  TownCreateResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /towns [post]
func (h *TownHandler) CreateTown(c *gin.Context) {
	var input TownCreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	townID, password, err := h.registry.Create(input.FriendlyName, input.IsPubliclyListed)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create town"})
		return
	}

	c.JSON(http.StatusCreated, TownCreateResponse{TownID: townID, TownPassword: password})
}

// ListTowns godoc
// @Summary      List public towns
// @Description  Lists all publicly listed towns, fullest first. Available before login so players can pick a town.
// @Tags         towns
// @Produce      json
// @Success      200  {object}  TownListResponse
// @Router       /towns [get]
func (h *TownHandler) ListTowns(c *gin.Context) {
	infos := h.registry.List()
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CurrentOccupancy > infos[j].CurrentOccupancy
	})

	towns := lo.Map(infos, func(info town.Info, _ int) TownInfoResponse {
		return TownInfoResponse{
			TownID:           info.TownID,
			FriendlyName:     info.FriendlyName,
			CurrentOccupancy: info.CurrentOccupancy,
			MaximumOccupancy: info.MaximumOccupancy,
		}
	})

	c.JSON(http.StatusOK, TownListResponse{Towns: towns})
}

// UpdateTown godoc
// @Summary      Update a town
// @Description  Updates the friendly name and/or listing visibility. Requires the town password. Omitted fields are left unchanged.
// @Tags         towns
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true  "Town ID"
// @Param        input body      TownUpdateInput true  "Updates"
// @Success      200   {object}  map[string]string "{"message": "Town updated"}"
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse "Password mismatch"
// @Failure      404   {object}  ErrorResponse "Town not found"
// @Router       /towns/{id} [patch]
func (h *TownHandler) UpdateTown(c *gin.Context) {
	townID := c.Param("id")

	var input TownUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.registry.Update(townID, input.TownPassword, input.FriendlyName, input.IsPubliclyListed)
	if err != nil {
		h.townError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Town updated"})
}

// DeleteTown godoc
// @Summary      Delete a town
// @Description  Deletes a town and force-terminates every session inside it. Requires the town password.
// @Tags         towns
// @Produce      json
// @Security     BearerAuth
// @Param        id        path string true "Town ID"
// @Param        password  path string true "Town password"
// @Success      200  {object}  map[string]string "{"message": "Town deleted"}"
// @Failure      401  {object}  ErrorResponse "Password mismatch"
// @Failure      404  {object}  ErrorResponse "Town not found"
// @Router       /towns/{id}/{password} [delete]
func (h *TownHandler) DeleteTown(c *gin.Context) {
	townID := c.Param("id")
	password := c.Param("password")

	if err := h.sessions.DeleteTown(townID, password); err != nil {
		h.townError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Town deleted"})
}

// JoinTown godoc
// @Summary      Join a town
// @Description  Admits the caller into the town and returns the session and video tokens. Re-joining a town the caller is already in returns the existing session.
// @Tags         towns
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Town ID"
// @Success      200  {object}  JoinResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Town not found"
// @Failure      409  {object}  ErrorResponse "Town is full"
// @Failure      503  {object}  ErrorResponse "Video service unavailable"
// @Router       /towns/{id}/join [post]
func (h *TownHandler) JoinTown(c *gin.Context) {
	userID, _ := c.Get("userID")
	townID := c.Param("id")

	user, err := h.ids.Lookup(userID.(uint))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	result, err := h.sessions.Join(c.Request.Context(), user.ID, user.Username, townID)
	if err != nil {
		switch {
		case errors.Is(err, town.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Town not found"})
		case errors.Is(err, town.ErrTownFull):
			c.JSON(http.StatusConflict, gin.H{"error": "Town is at maximum occupancy"})
		case errors.Is(err, video.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Video service unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join town"})
		}
		return
	}

	occupants := lo.FilterMap(result.CurrentOccupants, func(id uint, _ int) (OccupantResponse, bool) {
		occupant, lookupErr := h.ids.Lookup(id)
		if lookupErr != nil {
			return OccupantResponse{}, false
		}
		return OccupantResponse{ID: occupant.ID, Username: occupant.Username}, true
	})

	c.JSON(http.StatusOK, JoinResponse{
		SessionID:        result.SessionID,
		SessionToken:     result.SessionToken,
		VideoToken:       result.VideoToken,
		FriendlyName:     result.FriendlyName,
		IsPubliclyListed: result.IsPubliclyListed,
		CurrentOccupants: occupants,
	})
}

// LeaveTown godoc
// @Summary      Leave a town
// @Description  Terminates the given session. Leaving an already-terminated session is a no-op.
// @Tags         towns
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body LeaveInput true "Session to terminate"
// @Success      200  {object}  map[string]string "{"message": "Left town"}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /towns/leave [post]
func (h *TownHandler) LeaveTown(c *gin.Context) {
	var input LeaveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.sessions.Leave(input.SessionID)
	c.JSON(http.StatusOK, gin.H{"message": "Left town"})
}

// StreamEvents godoc
// @Summary      Stream town events
// @Description  Server-sent events stream of join/leave activity in a town.
// @Tags         towns
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        id path string true "Town ID"
// @Success      200 {string} string "event stream"
// @Failure      404 {object}  ErrorResponse "Town not found"
// @Router       /towns/{id}/events [get]
func (h *TownHandler) StreamEvents(c *gin.Context) {
	townID := c.Param("id")
	if _, err := h.registry.Info(townID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Town not found"})
		return
	}

	client := make(hub.Client, 16)
	h.events.Subscribe(townID, client)
	defer h.events.Unsubscribe(townID, client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *TownHandler) townError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, town.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Town not found"})
	case errors.Is(err, town.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid town password"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Town operation failed"})
	}
}
