/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package main

import (
	"os"

	"github.com/ardikabs/ircnotify/cmd/ircnotify/app"
)

func main() {
	os.Exit(app.Run())
}
