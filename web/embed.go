// Package web holds the HTML templates compiled into the binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates
var templates embed.FS

// Templates returns the embedded template tree rooted at templates/.
func Templates() fs.FS {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// MustRead returns the content of an embedded template such as "pages/verify_result.html".
func MustRead(name string) string {
	b, err := fs.ReadFile(Templates(), name)
	if err != nil {
		panic(err)
	}
	return string(b)
}
