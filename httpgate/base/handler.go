package httpgatebase

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudapex/mqaccount/account"
	"github.com/cloudapex/mqaccount/log"
	"github.com/cloudapex/mqaccount/mqrpc"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// AccountService 网关依赖的账号操作(account.Client)
type AccountService interface {
	RegisterUser(ctx context.Context, req *account.RegisterRequest) (*account.RegisterReply, error)
	GetUserByUsername(ctx context.Context, username string) (*account.User, error)
}

// RegisterForm POST /auth/register
type RegisterForm struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required,min=4,max=72"`
	Role     string `json:"role" form:"role"`
}

// LoginForm POST /auth/login (json或表单)
type LoginForm struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required,min=4"`
}

// LoginReply 登录成功
type LoginReply struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AuthHandler /auth 路由处理
type AuthHandler struct {
	svc     AccountService
	timeout time.Duration
	cost    int // bcrypt cost
}

// NewAuthHandler 创建处理器
func NewAuthHandler(svc AccountService, timeout time.Duration) *AuthHandler {
	return &AuthHandler{svc: svc, timeout: timeout, cost: bcrypt.DefaultCost}
}

// Route 挂载路由
func (h *AuthHandler) Route(r gin.IRouter) {
	r.GET("/", h.index)
	auth := r.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
}

func (h *AuthHandler) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello World"})
}

func (h *AuthHandler) register(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(form.Password), h.cost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()
	reply, err := h.svc.RegisterUser(ctx, &account.RegisterRequest{
		Username: form.Username,
		Password: string(hashed),
		Role:     form.Role,
	})
	if err != nil {
		log.Warning("register %s: %v", form.Username, err)
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *AuthHandler) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	log.Info("Login attempt for user: %s", form.Username)

	ctx, cancel := h.context(c)
	defer cancel()
	u, err := h.svc.GetUserByUsername(ctx, form.Username)
	if err != nil {
		log.Warning("login %s: %v", form.Username, err)
		h.abort(c, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(form.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect password"})
		return
	}
	c.JSON(http.StatusOK, &LoginReply{ID: u.ID, Username: u.Username, Role: u.Role})
}

func (h *AuthHandler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := log.ContextWithTrace(c.Request.Context(), log.NewTraceSpan())
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

// abort 远端错误500, 等待超时504, broker不可用503, 消息格式错误502
func (h *AuthHandler) abort(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mqrpc.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, mqrpc.ErrTransport):
		status = http.StatusServiceUnavailable
	case errors.Is(err, mqrpc.ErrDecode):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
