package main

import (
	"github.com/osmaa/takahe/internal/app"
	"github.com/osmaa/takahe/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
