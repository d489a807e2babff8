package site

import (
	"html/template"
	"io"
)

// Link is a navigation entry in the page header.
type Link struct {
	Href  string
	Label string
}

// Page is the site layout. Paths are relative to /static/.
type Page struct {
	Title      string
	Stylesheet string
	Logo       string
	Script     string
	Nav        []Link
	Main       template.HTML
	Footer     template.HTML
}

// DefaultPage returns the home page layout.
func DefaultPage() Page {
	return Page{
		Title:      "Document",
		Stylesheet: "css/pages/home.css",
		Logo:       "img/logo.png",
		Script:     "js/pages/home.js",
		Nav: []Link{
			{Href: "/", Label: "Home"},
			{Href: "/blog", Label: "Blog"},
			{Href: "/register", Label: "Register"},
			{Href: "/login", Label: "Login"},
		},
		Main:   "DEFAULT PAGE CONTENT",
		Footer: "Copyright &copy; 2022",
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta http-equiv="X-UA-Compatible" content="IE=edge">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="/static/{{.Stylesheet}}">
</head>
<body>
    <header>
        <img src="/static/{{.Logo}}" alt="logo">
        <nav>
            {{- range .Nav}}
            <a href="{{.Href}}">{{.Label}}</a>
            {{- end}}
            <i class="fa fa-globe"></i>
        </nav>
    </header>
    <main>
        {{.Main}}
    </main>
    <footer>{{.Footer}}</footer>
    <script src="/static/{{.Script}}" type="module" defer></script>
</body>
</html>
`))

// Render writes the page as HTML.
func (p Page) Render(w io.Writer) error {
	return pageTemplate.Execute(w, p)
}
