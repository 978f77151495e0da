package appfs

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql templates/email/*
var FS embed.FS

// EmailTemplates is the sub tree holding the email templates.
func EmailTemplates() fs.FS {
	sub, err := fs.Sub(FS, "templates/email")
	if err != nil {
		panic(err) // the path is embedded at compile time
	}
	return sub
}
