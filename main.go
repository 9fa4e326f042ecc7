/*
Demo application that drives the engine package: an animated instanced
triangle grid plus any cooked meshes dropped into assets/meshes.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/vesta-engine/vesta/engine"
	"github.com/vesta-engine/vesta/testbed"
)

func main() {
	game := testbed.NewTestGame()

	e, err := engine.New(game)
	if err != nil {
		panic(err)
	}

	if err := e.Initialize(); err != nil {
		panic(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		e.Shutdown()
		os.Exit(0)
	}()

	if err := e.Run(); err != nil {
		panic(err)
	}
	e.Shutdown()
}
