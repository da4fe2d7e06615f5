package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/roverhub/cmd/roverhub/app"
)

func main() {
	app.NewApp().Run()
}
