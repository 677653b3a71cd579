package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strconv"

	"github.com/gin-gonic/gin/render"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// pageNames lists the page templates; each is parsed with the layout.
var pageNames = []string{
	"index", "login", "signup", "menu", "products", "product_add",
	"product_update", "product_delete", "admin", "user_edit", "error",
}

var funcs = template.FuncMap{
	"money": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"mul":   func(p float64, q int64) float64 { return p * float64(q) },
}

// pages implements gin's render.HTMLRender over one template set per page,
// so every page can define its own "content" block.
type pages map[string]*template.Template

func loadPages() (pages, error) {
	p := make(pages, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		p[name] = t
	}
	return p, nil
}

// Instance implements render.HTMLRender.
func (p pages) Instance(name string, data any) render.Render {
	return render.HTML{Template: p[name], Name: "layout", Data: data}
}

// Static returns the embedded stylesheet directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
