package handler

import (
	"errors"
	"net/http"
	"townsquare/backend/internal/identity"
	"townsquare/backend/internal/neighbor"
	"townsquare/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// region --- DTOs ---

// SignupInput defines the structure for account creation.
type SignupInput struct {
	Username string `json:"username" binding:"required" example:"testuser"`
	Password string `json:"password" binding:"required,min=8" example:"password123"`
}

// LoginInput defines the structure for user login.
type LoginInput struct {
	Username string `json:"username" binding:"required" example:"testuser"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// AuthResponse is returned on successful signup or login.
type AuthResponse struct {
	Token    string `json:"token"`
	ID       uint   `json:"id" example:"1"`
	Username string `json:"username" example:"testuser"`
}

// UserSearchResult is one search hit with the viewer-relative relationship.
type UserSearchResult struct {
	ID           uint            `json:"id" example:"1"`
	Username     string          `json:"username" example:"testuser"`
	Relationship neighbor.Status `json:"relationship" example:"unknown"`
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// endregion

// UserHandler serves account and user-search endpoints.
type UserHandler struct {
	ids   identity.Store
	graph *neighbor.Graph
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(ids identity.Store, graph *neighbor.Graph) *UserHandler {
	return &UserHandler{ids: ids, graph: graph}
}

// Signup godoc
// @Summary      Create a new account
// @Description  Creates a new account and returns an authentication token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body SignupInput true "Account Info"
// @Success      201  {object}  AuthResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/signup [post]
func (h *UserHandler) Signup(c *gin.Context) {
	var input SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.ids.Register(input.Username, input.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token, ID: user.ID, Username: user.Username})
}

// Login godoc
// @Summary      Log in
// @Description  Authenticates a user with username and password, and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  AuthResponse
// @Failure      400  {object}  ErrorResponse "Invalid input"
// @Failure      401  {object}  ErrorResponse "Invalid credentials"
// @Failure      500  {object}  ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.ids.Resolve(input.Username, input.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, ID: user.ID, Username: user.Username})
}

// SearchUsers godoc
// @Summary      Search for users
// @Description  Searches for users by username prefix. Each result carries the relationship status relative to the caller.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        q query string true "Username prefix"
// @Success      200  {array}   UserSearchResult
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /users [get]
func (h *UserHandler) SearchUsers(c *gin.Context) {
	viewerID, _ := c.Get("userID")
	query := c.Query("q")

	users, err := h.ids.SearchByUsername(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search users"})
		return
	}

	// The caller never shows up in their own results.
	users = lo.Filter(users, func(u identity.User, _ int) bool {
		return u.ID != viewerID.(uint)
	})

	results := lo.Map(users, func(u identity.User, _ int) UserSearchResult {
		return UserSearchResult{
			ID:           u.ID,
			Username:     u.Username,
			Relationship: h.graph.StatusFor(viewerID.(uint), u.ID),
		}
	})

	c.JSON(http.StatusOK, results)
}
