package http

import (
	"html/template"
	"net/http"
)

// terminalPage renders the full-page terminal state for failed redirects.
// There is no retry from here, only the way back home.
var terminalPage = template.Must(template.New("terminal").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p><a href="/">Back to home</a></p>
</body>
</html>
`))

func renderTerminalPage(w http.ResponseWriter, statusCode int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)

	_ = terminalPage.Execute(w, struct {
		Title   string
		Message string
	}{
		Title:   title,
		Message: message,
	})
}
