package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ethlas/builderhub/internal/config"
	"github.com/ethlas/builderhub/internal/domain/builder"
	"github.com/ethlas/builderhub/internal/http/middlewares"
	"github.com/ethlas/builderhub/internal/security"
)

// listLimit caps the public listing at the newest builders.
const listLimit = 10

const storeTimeout = 3 * time.Second

// BuilderStore is the thin contract over the document database. GetByEmail
// carries limit-1 semantics: at most one record is ever considered.
type BuilderStore interface {
	Create(ctx context.Context, b builder.Builder) (string, error)
	GetByID(ctx context.Context, id string) (builder.Builder, error)
	GetByEmail(ctx context.Context, email string) (builder.Builder, error)
	List(ctx context.Context, limit int) ([]builder.Builder, error)
	Update(ctx context.Context, id string, b builder.Builder) error
	Delete(ctx context.Context, id string) error
}

// TokenIssuer signs a bearer token for a builder email.
type TokenIssuer interface {
	Issue(email string) (string, error)
}

type BuildersHandler struct {
	store BuilderStore
	jwt   TokenIssuer
	log   *slog.Logger
}

func NewBuildersHandler(store BuilderStore, jwt TokenIssuer, log *slog.Logger) *BuildersHandler {
	return &BuildersHandler{store: store, jwt: jwt, log: log}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateRequest fields are optional except current_password, which is
// checked by hand so the error message can stay precise.
type UpdateRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	CurrentPassword string `json:"current_password"`
}

func (h *BuildersHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		h.log.Error("hash password failed", "err", err)
		RespondInternal(ctx, "Register builder failed")
		return
	}

	b := builder.Builder{
		Email:        req.Email,
		FullName:     req.FullName,
		JoinDate:     time.Now().UnixMilli(),
		PasswordHash: hash,
	}

	cctx, cancel := config.WithTimeout(storeTimeout)
	defer cancel()

	id, err := h.store.Create(cctx, b)

	if err != nil {
		h.log.Error("create builder failed", "err", err)
		RespondInternal(ctx, "Register builder failed")
		return
	}

	b.ID = id

	token, err := h.jwt.Issue(b.Email)

	if err != nil {
		h.log.Error("issue token failed", "err", err)
		RespondInternal(ctx, "Register builder failed")
		return
	}

	RespondOK(ctx, b.PublicProfile().WithToken(token), "Register succeeded. Builder id: "+id)
}

func (h *BuildersHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(storeTimeout)
	defer cancel()

	b, err := h.store.GetByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, builder.ErrNotFound) {
			RespondUnauthorized(ctx, "Email or password is incorrect")
			return
		}

		h.log.Error("lookup builder failed", "err", err)
		RespondInternal(ctx, "Login failed")
		return
	}

	if !security.CheckPassword(b.PasswordHash, req.Password) {
		RespondUnauthorized(ctx, "Email or password is incorrect")
		return
	}

	token, err := h.jwt.Issue(b.Email)

	if err != nil {
		h.log.Error("issue token failed", "err", err)
		RespondInternal(ctx, "Login failed")
		return
	}

	RespondOK(ctx, b.PublicProfile().WithToken(token), "")
}

func (h *BuildersHandler) GetProfile(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(storeTimeout)
	defer cancel()

	b, err := h.store.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, builder.ErrNotFound) {
			RespondNotFound(ctx, "Builder id not found")
			return
		}

		h.log.Error("get builder failed", "err", err)
		RespondInternal(ctx, "Get builder profile failed")
		return
	}

	RespondOK(ctx, b.PublicProfile(), "")
}

func (h *BuildersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(storeTimeout)
	defer cancel()

	items, err := h.store.List(cctx, listLimit)

	if err != nil {
		h.log.Error("list builders failed", "err", err)
		RespondInternal(ctx, "List builders failed")
		return
	}

	profiles := make([]builder.Profile, 0, len(items))

	for _, b := range items {
		profiles = append(profiles, b.PublicProfile())
	}

	RespondOK(ctx, profiles, "")
}

func (h *BuildersHandler) Update(ctx *gin.Context) {
	var req UpdateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.CurrentPassword == "" {
		RespondBadRequest(ctx, "Current password can't be empty")
		return
	}

	if (req.Password != "" || req.ConfirmPassword != "") && req.Password != req.ConfirmPassword {
		RespondBadRequest(ctx, "Password and confirm password are not the same")
		return
	}

	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(storeTimeout)
	defer cancel()

	b, err := h.store.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, builder.ErrNotFound) {
			RespondNotFound(ctx, "Builder id not found")
			return
		}

		h.log.Error("get builder failed", "err", err)
		RespondInternal(ctx, "Update builder failed")
		return
	}

	if !h.ownedByCaller(ctx, b) {
		RespondForbidden(ctx, "Not authorized")
		return
	}

	if !security.CheckPassword(b.PasswordHash, req.CurrentPassword) {
		RespondUnauthorized(ctx, "Current password is not valid")
		return
	}

	// Only supplied fields overwrite. Everything else keeps its stored value.
	if req.FullName != "" {
		b.FullName = req.FullName
	}

	if req.Email != "" {
		b.Email = req.Email
	}

	if req.Password != "" {
		hash, err := security.HashPassword(req.Password)

		if err != nil {
			h.log.Error("hash password failed", "err", err)
			RespondInternal(ctx, "Update builder failed")
			return
		}

		b.PasswordHash = hash
	}

	err = h.store.Update(cctx, id, b)

	if err != nil {
		if errors.Is(err, builder.ErrNotFound) {
			RespondNotFound(ctx, "Builder id not found")
			return
		}

		h.log.Error("update builder failed", "err", err)
		RespondInternal(ctx, "Update builder failed")
		return
	}

	// Issue against the updated email so the caller's next request
	// still satisfies the ownership check.
	token, err := h.jwt.Issue(b.Email)

	if err != nil {
		h.log.Error("issue token failed", "err", err)
		RespondInternal(ctx, "Update builder failed")
		return
	}

	RespondOK(ctx, b.PublicProfile().WithToken(token), "Update builder succeeded")
}

func (h *BuildersHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(storeTimeout)
	defer cancel()

	b, err := h.store.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, builder.ErrNotFound) {
			RespondNotFound(ctx, "Builder id not found")
			return
		}

		h.log.Error("get builder failed", "err", err)
		RespondInternal(ctx, "Delete builder failed")
		return
	}

	if !h.ownedByCaller(ctx, b) {
		RespondForbidden(ctx, "Not authorized")
		return
	}

	err = h.store.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, builder.ErrNotFound) {
			RespondNotFound(ctx, "Builder id not found")
			return
		}

		h.log.Error("delete builder failed", "err", err)
		RespondInternal(ctx, "Delete builder failed")
		return
	}

	RespondOK(ctx, nil, "Delete builder succeeded")
}

// ownedByCaller enforces the single authorization rule on mutating
// routes: the verified claim must match the record's stored email.
func (h *BuildersHandler) ownedByCaller(ctx *gin.Context, b builder.Builder) bool {
	claim, ok := middlewares.ClaimEmailFromContext(ctx)

	return ok && claim == b.Email
}
