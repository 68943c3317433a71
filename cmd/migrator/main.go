// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/migrator/cmd/migrator/cmd"
)

func main() {
	cmd.Execute()
}
