package main

import (
	"github.com/tanpawarit/chative-shop-assistant/cmd"
	_ "github.com/tanpawarit/chative-shop-assistant/pkg/logger/autoload"
)

func main() {
	cmd.Execute()
}
