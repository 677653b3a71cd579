package api

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed spa
var spaFS embed.FS

func registerSPA(r *gin.Engine) {
	sub, err := fs.Sub(spaFS, "spa")
	if err != nil {
		panic(err)
	}
	r.StaticFS("/app", http.FS(sub))
}
