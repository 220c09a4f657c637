package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func echo(body string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, body) }
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r2 := NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r2.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	lending := NewDomainGroup("lending", "/lending")
	lending.GET("/loans", echo("loans"))
	r.Register(lending)
	assert.Len(t, r.registrars, 1)

	r.Setup()

	w := serve(engine, http.MethodGet, "/api/v1/lending/loans")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "loans", w.Body.String())
}

func TestDomainGroup_Verbs(t *testing.T) {
	g := NewDomainGroup("lending", "/lending")
	assert.Equal(t, "lending", g.Name())
	assert.Equal(t, "/lending", g.Prefix())

	verbs := []struct {
		register func(*DomainGroup)
		method   string
		path     string
	}{
		{func(g *DomainGroup) { g.GET("/loans", echo("ok")) }, http.MethodGet, "/api/v1/lending/loans"},
		{func(g *DomainGroup) { g.POST("/loans", echo("ok")) }, http.MethodPost, "/api/v1/lending/loans"},
		{func(g *DomainGroup) { g.PUT("/loans/:id", echo("ok")) }, http.MethodPut, "/api/v1/lending/loans/7"},
		{func(g *DomainGroup) { g.PATCH("/loans/:id", echo("ok")) }, http.MethodPatch, "/api/v1/lending/loans/7"},
		{func(g *DomainGroup) { g.DELETE("/loans/:id", echo("ok")) }, http.MethodDelete, "/api/v1/lending/loans/7"},
	}

	for _, v := range verbs {
		t.Run(v.method, func(t *testing.T) {
			engine := gin.New()
			g := NewDomainGroup("lending", "/lending")
			v.register(g)
			g.RegisterRoutes(engine.Group("/api/v1"))

			assert.Equal(t, http.StatusOK, serve(engine, v.method, v.path).Code)
		})
	}
}

func TestDomainGroup_Middleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("lending", "/lending")

	g.Use(func(c *gin.Context) {
		c.Header("X-Branch-Scope", "br-001")
		c.Next()
	})
	g.GET("/loans", echo("ok"))
	g.RegisterRoutes(engine.Group("/api/v1"))

	w := serve(engine, http.MethodGet, "/api/v1/lending/loans")
	assert.Equal(t, "br-001", w.Header().Get("X-Branch-Scope"))
}

func TestDomainGroup_Subgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("lending", "/lending")

	g.Group("loans", "/loans").GET("", echo("loan list"))
	g.Group("tranches", "/tranches").GET("", echo("tranche list"))
	g.RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, "loan list", serve(engine, http.MethodGet, "/api/v1/lending/loans").Body.String())
	assert.Equal(t, "tranche list", serve(engine, http.MethodGet, "/api/v1/lending/tranches").Body.String())
}

func TestRouter_MultipleGroupsAndChaining(t *testing.T) {
	engine := gin.New()

	lending := NewDomainGroup("lending", "/lending")
	lending.GET("/loans", echo("loans")).
		POST("/loans", echo("created")).
		GET("/tranches", echo("tranches"))

	approval := NewDomainGroup("approval", "/approval")
	approval.GET("/requests", echo("requests"))

	NewRouter(engine).Register(lending).Register(approval).Setup()

	for _, path := range []string{
		"/api/v1/lending/loans",
		"/api/v1/lending/tranches",
		"/api/v1/approval/requests",
	} {
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, path).Code, path)
	}
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v2/lending/loans").Code)
}
