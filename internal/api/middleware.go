package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/LJTian/TrendingRelay/internal/logging"
)

type RouterOptions struct {
	BasicAuthUser string
	BasicAuthPass string
}

// NewRouter 组装 gin 引擎：恢复、请求日志、跨域，配置了账号密码时启用 Basic Auth
func NewRouter(s *Server, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(), corsMiddleware())
	if opts.BasicAuthUser != "" && opts.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(opts.BasicAuthUser, opts.BasicAuthPass))
	}
	s.RegisterRoutes(r)
	return r
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          0,
	})
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码，/health 不做认证，便于健康检查
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
