package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// UsersHandler manages tenant users, roles and API keys.
type UsersHandler struct {
	users   *service.UserService
	roles   *service.RoleService
	apiKeys *service.APIKeyService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService, roles *service.RoleService, apiKeys *service.APIKeyService) *UsersHandler {
	return &UsersHandler{users: users, roles: roles, apiKeys: apiKeys}
}

// CreateUser POST /users.
func (h *UsersHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.CreateUser(c.UserContext(), actor(c), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		TimeZone: req.TimeZone,
		RoleIDs:  req.RoleIDs,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// ListUsers GET /users.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	q := newQuery(c)
	filter := service.UserListFilter{
		Search: c.Query("search"),
		RoleID: q.optionalString("role_id"),
		Active: q.optionalBool("active"),
		Page:   q.page(),
	}
	if err := q.err(); err != nil {
		return err
	}
	result, err := h.users.ListUsers(c.UserContext(), actor(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(paged(result, userResponse))
}

// GetUser GET /users/:id.
func (h *UsersHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.users.GetUser(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// UpdateUser PATCH /users/:id.
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateUser(c.UserContext(), actor(c), c.Params("id"), service.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		TimeZone: req.TimeZone,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// DeleteUser DELETE /users/:id.
func (h *UsersHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.users.DeleteUser(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// SetUserRoles PUT /users/:id/roles.
func (h *UsersHandler) SetUserRoles(c *fiber.Ctx) error {
	var req dto.SetRolesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.SetUserRoles(c.UserContext(), actor(c), c.Params("id"), req.RoleIDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// ListPermissions GET /roles/permissions.
func (h *UsersHandler) ListPermissions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": domain.AllPermissions()})
}

// CreateRole POST /roles.
func (h *UsersHandler) CreateRole(c *fiber.Ctx) error {
	var req dto.RoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	role, err := h.roles.CreateRole(c.UserContext(), actor(c), service.RoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": roleResponse(role)})
}

// ListRoles GET /roles.
func (h *UsersHandler) ListRoles(c *fiber.Ctx) error {
	roles, err := h.roles.ListRoles(c.UserContext(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mapAll(roles, roleResponse)})
}

// GetRole GET /roles/:id.
func (h *UsersHandler) GetRole(c *fiber.Ctx) error {
	role, err := h.roles.GetRole(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roleResponse(role)})
}

// UpdateRole PATCH /roles/:id.
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	var req dto.UpdateRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	role, err := h.roles.UpdateRole(c.UserContext(), actor(c), c.Params("id"), service.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roleResponse(role)})
}

// DeleteRole DELETE /roles/:id.
func (h *UsersHandler) DeleteRole(c *fiber.Ctx) error {
	if err := h.roles.DeleteRole(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// CreateAPIKey POST /api-keys. The raw key is only returned here.
func (h *UsersHandler) CreateAPIKey(c *fiber.Ctx) error {
	var req dto.CreateAPIKeyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	created, err := h.apiKeys.CreateAPIKey(c.UserContext(), actor(c), service.CreateAPIKeyInput{
		Name:      req.Name,
		UserID:    req.UserID,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreatedAPIKeyResponse{
		APIKeyResponse: apiKeyResponse(created.Key),
		Key:            created.Raw,
	}})
}

// ListAPIKeys GET /api-keys.
func (h *UsersHandler) ListAPIKeys(c *fiber.Ctx) error {
	q := newQuery(c)
	keys, err := h.apiKeys.ListAPIKeys(c.UserContext(), actor(c), q.optionalString("user_id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": mapAll(keys, apiKeyResponse)})
}

// RevokeAPIKey DELETE /api-keys/:id.
func (h *UsersHandler) RevokeAPIKey(c *fiber.Ctx) error {
	if err := h.apiKeys.RevokeAPIKey(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func userResponse(user *domain.User) dto.UserResponse {
	roleIDs := user.RoleIDs
	if roleIDs == nil {
		roleIDs = []string{}
	}
	return dto.UserResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		IsActive:    user.IsActive,
		TimeZone:    user.TimeZone,
		RoleIDs:     roleIDs,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func roleResponse(role *domain.Role) dto.RoleResponse {
	return dto.RoleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: role.Permissions,
		IsBuiltIn:   role.IsBuiltIn,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func apiKeyResponse(key *domain.APIKey) dto.APIKeyResponse {
	return dto.APIKeyResponse{
		ID:         key.ID,
		UserID:     key.UserID,
		Name:       key.Name,
		Prefix:     key.Prefix,
		LastUsedAt: key.LastUsedAt,
		ExpiresAt:  key.ExpiresAt,
		RevokedAt:  key.RevokedAt,
		CreatedAt:  key.CreatedAt,
	}
}
